package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/ledger"
	"kasirledger/backend/internal/numbering"
	"kasirledger/backend/internal/store"
	"kasirledger/backend/internal/xid"
)

type Store struct {
	mu                sync.RWMutex
	products          map[string]domain.Product
	inventory         map[string]map[string]int
	counters          map[string]int64
	salesByID         map[string]*domain.Sale
	saleItemsByID     map[string]domain.SaleItem
	purchasesByID     map[string]*domain.Purchase
	purchaseItemsByID map[string]domain.PurchaseItem
	returnsByID       map[string]*domain.ReturnDocument
	returnItemsByID   map[string]domain.ReturnItem
	returnItemOrder   map[string][]string
	opnameByID        map[string]*domain.OpnameSession
	opnameItemsByID   map[string]domain.OpnameItem
	opnameItemOrder   map[string][]string
	auditLogs         []domain.AuditLog
}

func New() *Store {
	return &Store{
		products:          make(map[string]domain.Product),
		inventory:         make(map[string]map[string]int),
		counters:          make(map[string]int64),
		salesByID:         make(map[string]*domain.Sale),
		saleItemsByID:     make(map[string]domain.SaleItem),
		purchasesByID:     make(map[string]*domain.Purchase),
		purchaseItemsByID: make(map[string]domain.PurchaseItem),
		returnsByID:       make(map[string]*domain.ReturnDocument),
		returnItemsByID:   make(map[string]domain.ReturnItem),
		returnItemOrder:   make(map[string][]string),
		opnameByID:        make(map[string]*domain.OpnameSession),
		opnameItemsByID:   make(map[string]domain.OpnameItem),
		opnameItemOrder:   make(map[string][]string),
		auditLogs:         make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store with a small catalogue stocked at 120 units in
// main-store, for local development and tests.
func NewSeeded() *Store {
	s := New()
	products := []domain.Product{
		{ID: "PRD-MIE-01", Name: "Mie Goreng Instan"},
		{ID: "PRD-TELUR-01", Name: "Telur 10 Butir"},
		{ID: "PRD-SUSU-01", Name: "Susu UHT 1L"},
		{ID: "PRD-ROTI-01", Name: "Roti Tawar"},
		{ID: "PRD-KOPI-01", Name: "Kopi Sachet"},
		{ID: "PRD-GULA-01", Name: "Gula 1kg"},
		{ID: "PRD-TEH-01", Name: "Teh Celup"},
		{ID: "PRD-AIR-01", Name: "Air Mineral 600ml"},
	}
	s.inventory["main-store"] = make(map[string]int)
	for _, p := range products {
		s.products[p.ID] = p
		s.inventory["main-store"][p.ID] = 120
	}
	return s
}

func (s *Store) AddProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

func (s *Store) SetStock(storeID string, productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inventory[storeID]; !ok {
		s.inventory[storeID] = make(map[string]int)
	}
	s.inventory[storeID][productID] = qty
}

func (s *Store) AllocateTransactionNumber(_ context.Context, prefix string, tenantID string, storeID string, asOf time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := numbering.CounterKey(prefix, tenantID, storeID, asOf)
	s.counters[key]++
	return numbering.Format(prefix, asOf, s.counters[key]), nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) InsertSaleHeader(_ context.Context, sale domain.Sale) (string, error) {
	if sale.Number == "" {
		return "", store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return "", store.ErrDuplicate
	}
	sale.Items = nil
	s.salesByID[sale.ID] = &sale
	return sale.ID, nil
}

func (s *Store) InsertSaleItems(_ context.Context, saleID string, items []domain.SaleItem) error {
	if len(items) == 0 {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return store.ErrNotFound
	}
	if len(sale.Items) > 0 {
		return store.ErrDuplicate
	}

	saved := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		if item.Qty < 1 {
			return store.ErrInvalidTransaction
		}
		if item.ID == "" {
			item.ID = xid.New("si")
		}
		item.SaleID = saleID
		saved = append(saved, item)
	}
	for _, item := range saved {
		s.saleItemsByID[item.ID] = item
	}
	sale.Items = saved
	return nil
}

func (s *Store) DeleteSaleHeader(_ context.Context, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return store.ErrNotFound
	}
	for _, item := range sale.Items {
		delete(s.saleItemsByID, item.ID)
	}
	delete(s.salesByID, saleID)
	return nil
}

func (s *Store) FindSaleByID(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *sale
	copied.Items = slices.Clone(sale.Items)
	return &copied, nil
}

func (s *Store) InsertPurchaseHeader(_ context.Context, purchase domain.Purchase) (string, error) {
	if purchase.Number == "" {
		return "", store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if _, exists := s.purchasesByID[purchase.ID]; exists {
		return "", store.ErrDuplicate
	}
	purchase.Items = nil
	s.purchasesByID[purchase.ID] = &purchase
	return purchase.ID, nil
}

func (s *Store) InsertPurchaseItems(_ context.Context, purchaseID string, items []domain.PurchaseItem) error {
	if len(items) == 0 {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	purchase, ok := s.purchasesByID[purchaseID]
	if !ok {
		return store.ErrNotFound
	}
	if len(purchase.Items) > 0 {
		return store.ErrDuplicate
	}

	saved := make([]domain.PurchaseItem, 0, len(items))
	for _, item := range items {
		if item.Qty < 1 {
			return store.ErrInvalidTransaction
		}
		if item.ID == "" {
			item.ID = xid.New("pi")
		}
		item.PurchaseID = purchaseID
		saved = append(saved, item)
	}
	for _, item := range saved {
		s.purchaseItemsByID[item.ID] = item
	}
	purchase.Items = saved
	return nil
}

func (s *Store) DeletePurchaseHeader(_ context.Context, purchaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	purchase, ok := s.purchasesByID[purchaseID]
	if !ok {
		return store.ErrNotFound
	}
	for _, item := range purchase.Items {
		delete(s.purchaseItemsByID, item.ID)
	}
	delete(s.purchasesByID, purchaseID)
	return nil
}

func (s *Store) FindPurchaseByID(_ context.Context, purchaseID string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, ok := s.purchasesByID[purchaseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *purchase
	copied.Items = slices.Clone(purchase.Items)
	return &copied, nil
}

func (s *Store) InsertReturnHeader(_ context.Context, doc domain.ReturnDocument) (string, error) {
	if doc.Number == "" || !doc.Kind.Valid() {
		return "", store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = xid.New("ret")
	}
	if _, exists := s.returnsByID[doc.ID]; exists {
		return "", store.ErrDuplicate
	}
	doc.Items = nil
	s.returnsByID[doc.ID] = &doc
	return doc.ID, nil
}

func (s *Store) FindReturnByID(_ context.Context, returnID string) (*domain.ReturnDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.returnsByID[returnID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *doc
	copied.Items = make([]domain.ReturnItem, 0, len(s.returnItemOrder[returnID]))
	for _, id := range s.returnItemOrder[returnID] {
		copied.Items = append(copied.Items, s.returnItemsByID[id])
	}
	return &copied, nil
}

func (s *Store) UpdateReturnHeader(_ context.Context, returnID string, update domain.ReturnHeaderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.returnsByID[returnID]
	if !ok {
		return store.ErrNotFound
	}
	if update.Status != nil {
		if doc.Status != domain.ReturnStatusDraft {
			return store.ErrNotDraft
		}
		doc.Status = *update.Status
	}
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// RefreshReturnTotal rewrites the header total from the items held at this
// moment, under the same lock that guards item writes.
func (s *Store) RefreshReturnTotal(_ context.Context, returnID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.returnsByID[returnID]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	lines := make([]domain.LineItem, 0, len(s.returnItemOrder[returnID]))
	for _, id := range s.returnItemOrder[returnID] {
		item := s.returnItemsByID[id]
		lines = append(lines, domain.LineItem{ProductID: item.ProductID, Qty: item.Qty, UnitPrice: item.UnitPrice})
	}
	doc.Total = ledger.ComputeTotals(lines, decimal.Zero).Total
	doc.UpdatedAt = time.Now().UTC()
	return doc.Total, nil
}

func (s *Store) DeleteReturnHeader(_ context.Context, returnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.returnsByID[returnID]
	if !ok {
		return store.ErrNotFound
	}
	if doc.Status != domain.ReturnStatusDraft {
		return store.ErrNotDraft
	}
	for _, id := range s.returnItemOrder[returnID] {
		delete(s.returnItemsByID, id)
	}
	delete(s.returnItemOrder, returnID)
	delete(s.returnsByID, returnID)
	return nil
}

func (s *Store) InsertReturnItem(_ context.Context, kind domain.ReturnKind, item domain.ReturnItem) (string, error) {
	if item.Qty < 1 {
		return "", store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.returnsByID[item.ReturnID]
	if !ok {
		return "", store.ErrNotFound
	}
	if doc.Kind != kind {
		return "", store.ErrInvalidTransaction
	}
	if doc.Status != domain.ReturnStatusDraft {
		return "", store.ErrNotDraft
	}
	source, err := s.sourceItemLocked(kind, item.SourceItemID)
	if err != nil {
		return "", err
	}
	remaining := ledger.RemainingReturnable(source.Qty, s.issuedLocked(kind, item.SourceItemID))
	if item.Qty > remaining {
		return "", store.ErrQuotaExceeded
	}

	if item.ID == "" {
		item.ID = xid.New("ri")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.returnItemsByID[item.ID] = item
	s.returnItemOrder[item.ReturnID] = append(s.returnItemOrder[item.ReturnID], item.ID)
	return item.ID, nil
}

func (s *Store) FindReturnItemByID(_ context.Context, itemID string) (*domain.ReturnItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.returnItemsByID[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) UpdateReturnItemQty(_ context.Context, kind domain.ReturnKind, itemID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.returnItemsByID[itemID]
	if !ok {
		return store.ErrNotFound
	}
	doc := s.returnsByID[item.ReturnID]
	if doc == nil || doc.Kind != kind {
		return store.ErrInvalidTransaction
	}
	if doc.Status != domain.ReturnStatusDraft {
		return store.ErrNotDraft
	}
	source, err := s.sourceItemLocked(kind, item.SourceItemID)
	if err != nil {
		return err
	}
	remaining := ledger.RemainingExcluding(source.Qty, s.issuedLocked(kind, item.SourceItemID), itemID)
	if qty > remaining {
		return store.ErrQuotaExceeded
	}

	item.Qty = qty
	item.Subtotal = ledger.LineSubtotal(domain.LineItem{ProductID: item.ProductID, Qty: qty, UnitPrice: item.UnitPrice})
	s.returnItemsByID[itemID] = item
	return nil
}

func (s *Store) DeleteReturnItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.returnItemsByID[itemID]
	if !ok {
		return store.ErrNotFound
	}
	if doc := s.returnsByID[item.ReturnID]; doc != nil && doc.Status != domain.ReturnStatusDraft {
		return store.ErrNotDraft
	}
	delete(s.returnItemsByID, itemID)
	s.returnItemOrder[item.ReturnID] = slices.DeleteFunc(s.returnItemOrder[item.ReturnID], func(id string) bool {
		return id == itemID
	})
	return nil
}

func (s *Store) QuerySourceItems(_ context.Context, kind domain.ReturnKind, sourceID string) ([]domain.SourceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lines []domain.SourceItem
	switch kind {
	case domain.ReturnKindSale:
		sale, ok := s.salesByID[sourceID]
		if !ok {
			return nil, store.ErrNotFound
		}
		for _, item := range sale.Items {
			lines = append(lines, s.saleSourceLocked(item))
		}
	case domain.ReturnKindPurchase:
		purchase, ok := s.purchasesByID[sourceID]
		if !ok {
			return nil, store.ErrNotFound
		}
		for _, item := range purchase.Items {
			lines = append(lines, s.purchaseSourceLocked(item))
		}
	default:
		return nil, store.ErrInvalidTransaction
	}

	for i := range lines {
		lines[i].Remaining = ledger.RemainingReturnable(lines[i].Qty, s.issuedLocked(kind, lines[i].SourceItemID))
	}
	return lines, nil
}

func (s *Store) FindSourceItem(_ context.Context, kind domain.ReturnKind, sourceItemID string) (*domain.SourceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceItemLocked(kind, sourceItemID)
}

func (s *Store) ListIssuedReturnItems(_ context.Context, kind domain.ReturnKind, sourceItemIDs []string) ([]domain.IssuedReturnItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.IssuedReturnItem
	for _, id := range sourceItemIDs {
		out = append(out, s.issuedLocked(kind, id)...)
	}
	return out, nil
}

func (s *Store) InsertOpnameHeader(_ context.Context, session domain.OpnameSession) (string, error) {
	if session.Number == "" {
		return "", store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = xid.New("opn")
	}
	if _, exists := s.opnameByID[session.ID]; exists {
		return "", store.ErrDuplicate
	}
	session.Items = nil
	session.Aggregates = domain.OpnameAggregates{}
	s.opnameByID[session.ID] = &session
	return session.ID, nil
}

func (s *Store) FindOpnameByID(_ context.Context, sessionID string) (*domain.OpnameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.opnameByID[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *session
	copied.Items = make([]domain.OpnameItem, 0, len(s.opnameItemOrder[sessionID]))
	for _, id := range s.opnameItemOrder[sessionID] {
		copied.Items = append(copied.Items, s.opnameItemsByID[id])
	}
	return &copied, nil
}

// CloseOpnameSession moves a draft session to status. Closing as selesai posts
// every item's variance to the session store's stock in the same critical
// section; nothing is written when any product is unknown.
func (s *Store) CloseOpnameSession(_ context.Context, sessionID string, status domain.OpnameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.opnameByID[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if session.Status != domain.OpnameStatusDraft {
		return store.ErrNotDraft
	}

	if status == domain.OpnameStatusDone {
		deltas := make(map[string]int, len(s.opnameItemOrder[sessionID]))
		for _, id := range s.opnameItemOrder[sessionID] {
			item := s.opnameItemsByID[id]
			if _, known := s.products[item.ProductID]; !known {
				return store.ErrNotFound
			}
			if v := ledger.Variance(item.SystemStock, item.PhysicalStock); v != 0 {
				deltas[item.ProductID] += v
			}
		}
		if len(deltas) > 0 {
			if _, ok := s.inventory[session.StoreID]; !ok {
				s.inventory[session.StoreID] = make(map[string]int)
			}
			for productID, delta := range deltas {
				s.inventory[session.StoreID][productID] += delta
			}
		}
	}

	session.Status = status
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteOpnameHeader(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.opnameByID[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if session.Status != domain.OpnameStatusDraft {
		return store.ErrNotDraft
	}
	for _, id := range s.opnameItemOrder[sessionID] {
		delete(s.opnameItemsByID, id)
	}
	delete(s.opnameItemOrder, sessionID)
	delete(s.opnameByID, sessionID)
	return nil
}

func (s *Store) InsertOpnameItem(_ context.Context, item domain.OpnameItem) (string, error) {
	if item.ProductID == "" || item.PhysicalStock < 0 {
		return "", store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.opnameByID[item.SessionID]
	if !ok {
		return "", store.ErrNotFound
	}
	if session.Status != domain.OpnameStatusDraft {
		return "", store.ErrNotDraft
	}
	for _, id := range s.opnameItemOrder[item.SessionID] {
		if s.opnameItemsByID[id].ProductID == item.ProductID {
			return "", store.ErrDuplicate
		}
	}

	if item.ID == "" {
		item.ID = xid.New("oi")
	}
	item.Variance = 0
	s.opnameItemsByID[item.ID] = item
	s.opnameItemOrder[item.SessionID] = append(s.opnameItemOrder[item.SessionID], item.ID)
	return item.ID, nil
}

func (s *Store) FindOpnameItemByID(_ context.Context, itemID string) (*domain.OpnameItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.opnameItemsByID[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

// UpdateOpnameItem writes the physical count and note. The system snapshot is
// never overwritten.
func (s *Store) UpdateOpnameItem(_ context.Context, item domain.OpnameItem) error {
	if item.PhysicalStock < 0 {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.opnameItemsByID[item.ID]
	if !ok {
		return store.ErrNotFound
	}
	if session := s.opnameByID[existing.SessionID]; session != nil && session.Status != domain.OpnameStatusDraft {
		return store.ErrNotDraft
	}
	existing.PhysicalStock = item.PhysicalStock
	existing.Note = item.Note
	s.opnameItemsByID[item.ID] = existing
	return nil
}

func (s *Store) DeleteOpnameItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.opnameItemsByID[itemID]
	if !ok {
		return store.ErrNotFound
	}
	if session := s.opnameByID[item.SessionID]; session != nil && session.Status != domain.OpnameStatusDraft {
		return store.ErrNotDraft
	}
	delete(s.opnameItemsByID, itemID)
	s.opnameItemOrder[item.SessionID] = slices.DeleteFunc(s.opnameItemOrder[item.SessionID], func(id string) bool {
		return id == itemID
	})
	return nil
}

func (s *Store) CurrentSystemStock(_ context.Context, storeID string, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[productID]; !ok {
		return 0, store.ErrNotFound
	}
	return s.inventory[storeID][productID], nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *Store) sourceItemLocked(kind domain.ReturnKind, sourceItemID string) (*domain.SourceItem, error) {
	switch kind {
	case domain.ReturnKindSale:
		item, ok := s.saleItemsByID[sourceItemID]
		if !ok {
			return nil, store.ErrNotFound
		}
		line := s.saleSourceLocked(item)
		return &line, nil
	case domain.ReturnKindPurchase:
		item, ok := s.purchaseItemsByID[sourceItemID]
		if !ok {
			return nil, store.ErrNotFound
		}
		line := s.purchaseSourceLocked(item)
		return &line, nil
	default:
		return nil, store.ErrInvalidTransaction
	}
}

func (s *Store) saleSourceLocked(item domain.SaleItem) domain.SourceItem {
	return domain.SourceItem{
		SourceItemID: item.ID,
		ProductID:    item.ProductID,
		ProductName:  s.products[item.ProductID].Name,
		Qty:          item.Qty,
		UnitPrice:    item.UnitPrice,
		Subtotal:     item.Subtotal,
	}
}

func (s *Store) purchaseSourceLocked(item domain.PurchaseItem) domain.SourceItem {
	return domain.SourceItem{
		SourceItemID: item.ID,
		ProductID:    item.ProductID,
		ProductName:  s.products[item.ProductID].Name,
		Qty:          item.Qty,
		UnitPrice:    item.UnitPrice,
		Subtotal:     item.Subtotal,
	}
}

func (s *Store) issuedLocked(kind domain.ReturnKind, sourceItemID string) []domain.IssuedReturnItem {
	var issued []domain.IssuedReturnItem
	for _, item := range s.returnItemsByID {
		if item.SourceItemID != sourceItemID {
			continue
		}
		doc := s.returnsByID[item.ReturnID]
		if doc == nil || doc.Kind != kind {
			continue
		}
		issued = append(issued, domain.IssuedReturnItem{
			ReturnItemID: item.ID,
			SourceItemID: item.SourceItemID,
			Qty:          item.Qty,
			Status:       doc.Status,
		})
	}
	return issued
}
