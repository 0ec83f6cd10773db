package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/ledger"
	"kasirledger/backend/internal/numbering"
	"kasirledger/backend/internal/store"
	"kasirledger/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns < 1 {
		opts.MaxOpenConns = 30
	}
	if opts.MaxIdleConns < 1 {
		opts.MaxIdleConns = 8
	}
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates missing tables. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) AllocateTransactionNumber(ctx context.Context, prefix string, tenantID string, storeID string, asOf time.Time) (string, error) {
	var seq int64
	err := s.db.GetContext(ctx, &seq, `
		INSERT INTO transaction_counters (prefix, tenant_id, store_id, day, seq)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (prefix, tenant_id, store_id, day)
		DO UPDATE SET seq = transaction_counters.seq + 1
		RETURNING seq
	`, strings.ToUpper(prefix), tenantID, storeID, numbering.Day(asOf))
	if err != nil {
		return "", err
	}
	return numbering.Format(prefix, asOf, seq), nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []domain.Product
	if err := s.db.SelectContext(ctx, &products, `
		SELECT id, name
		FROM products
		WHERE id = ANY($1)
	`, ids); err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Store) InsertSaleHeader(ctx context.Context, sale domain.Sale) (string, error) {
	if sale.Number == "" {
		return "", store.ErrInvalidTransaction
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sales (
			id, number, tenant_id, store_id, operator_id, customer_id, payment_method,
			subtotal, discount, total, paid, change_due, created_at
		)
		VALUES (
			:id, :number, :tenant_id, :store_id, :operator_id, :customer_id, :payment_method,
			:subtotal, :discount, :total, :paid, :change_due, :created_at
		)
	`, sale)
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrDuplicate
		}
		return "", err
	}
	return sale.ID, nil
}

func (s *Store) InsertSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) error {
	if len(items) == 0 {
		return store.ErrInvalidTransaction
	}
	rows := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		if item.Qty < 1 {
			return store.ErrInvalidTransaction
		}
		if item.ID == "" {
			item.ID = xid.New("si")
		}
		item.SaleID = saleID
		rows = append(rows, item)
	}

	// one multi-row INSERT keeps the item set all-or-nothing
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, qty, unit_price, discount, subtotal)
		VALUES (:id, :sale_id, :product_id, :qty, :unit_price, :discount, :subtotal)
	`, rows)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) DeleteSaleHeader(ctx context.Context, saleID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) FindSaleByID(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.GetContext(ctx, &sale, `
		SELECT id, number, tenant_id, store_id, operator_id, customer_id, payment_method,
			subtotal, discount, total, paid, change_due, created_at
		FROM sales
		WHERE id = $1
	`, saleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &sale.Items, `
		SELECT id, sale_id, product_id, qty, unit_price, discount, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) InsertPurchaseHeader(ctx context.Context, purchase domain.Purchase) (string, error) {
	if purchase.Number == "" {
		return "", store.ErrInvalidTransaction
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO purchases (
			id, number, tenant_id, store_id, operator_id, supplier_id,
			subtotal, discount, total, created_at
		)
		VALUES (
			:id, :number, :tenant_id, :store_id, :operator_id, :supplier_id,
			:subtotal, :discount, :total, :created_at
		)
	`, purchase)
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrDuplicate
		}
		return "", err
	}
	return purchase.ID, nil
}

func (s *Store) InsertPurchaseItems(ctx context.Context, purchaseID string, items []domain.PurchaseItem) error {
	if len(items) == 0 {
		return store.ErrInvalidTransaction
	}
	rows := make([]domain.PurchaseItem, 0, len(items))
	for _, item := range items {
		if item.Qty < 1 {
			return store.ErrInvalidTransaction
		}
		if item.ID == "" {
			item.ID = xid.New("pi")
		}
		item.PurchaseID = purchaseID
		rows = append(rows, item)
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO purchase_items (id, purchase_id, product_id, qty, unit_price, discount, subtotal)
		VALUES (:id, :purchase_id, :product_id, :qty, :unit_price, :discount, :subtotal)
	`, rows)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) DeletePurchaseHeader(ctx context.Context, purchaseID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, purchaseID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) FindPurchaseByID(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := s.db.GetContext(ctx, &purchase, `
		SELECT id, number, tenant_id, store_id, operator_id, supplier_id,
			subtotal, discount, total, created_at
		FROM purchases
		WHERE id = $1
	`, purchaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &purchase.Items, `
		SELECT id, purchase_id, product_id, qty, unit_price, discount, subtotal
		FROM purchase_items
		WHERE purchase_id = $1
		ORDER BY id
	`, purchaseID); err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) InsertReturnHeader(ctx context.Context, doc domain.ReturnDocument) (string, error) {
	if doc.Number == "" || !doc.Kind.Valid() {
		return "", store.ErrInvalidTransaction
	}
	if doc.ID == "" {
		doc.ID = xid.New("ret")
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO return_documents (
			id, number, kind, tenant_id, store_id, operator_id, source_id,
			counterparty_id, status, reason, total, created_at, updated_at
		)
		VALUES (
			:id, :number, :kind, :tenant_id, :store_id, :operator_id, :source_id,
			:counterparty_id, :status, :reason, :total, :created_at, :updated_at
		)
	`, doc)
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrDuplicate
		}
		return "", err
	}
	return doc.ID, nil
}

func (s *Store) FindReturnByID(ctx context.Context, returnID string) (*domain.ReturnDocument, error) {
	var doc domain.ReturnDocument
	err := s.db.GetContext(ctx, &doc, `
		SELECT id, number, kind, tenant_id, store_id, operator_id, source_id,
			counterparty_id, status, reason, total, created_at, updated_at
		FROM return_documents
		WHERE id = $1
	`, returnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	doc.Items = []domain.ReturnItem{}
	if err := s.db.SelectContext(ctx, &doc.Items, `
		SELECT id, return_id, source_item_id, product_id, qty, unit_price, subtotal, created_at
		FROM return_items
		WHERE return_id = $1
		ORDER BY created_at, id
	`, returnID); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) UpdateReturnHeader(ctx context.Context, returnID string, update domain.ReturnHeaderUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{returnID}
	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "UPDATE return_documents SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if update.Status != nil {
		query += " AND status = 'draft'"
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.missingOrNotDraft(ctx, "return_documents", returnID)
	}
	return nil
}

// RefreshReturnTotal locks the header, then sums the items in a second
// statement so the snapshot includes every item write committed before the
// lock was granted. The last refresh to run always sees all items.
func (s *Store) RefreshReturnTotal(ctx context.Context, returnID string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return decimal.Zero, err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	if err := tx.GetContext(ctx, &id, `SELECT id FROM return_documents WHERE id = $1 FOR UPDATE`, returnID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, store.ErrNotFound
		}
		return decimal.Zero, err
	}

	var total decimal.Decimal
	if err := tx.GetContext(ctx, &total, `
		UPDATE return_documents
		SET total = (SELECT COALESCE(SUM(subtotal), 0) FROM return_items WHERE return_id = $1),
			updated_at = now()
		WHERE id = $1
		RETURNING total
	`, returnID); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) DeleteReturnHeader(ctx context.Context, returnID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM return_documents
		WHERE id = $1 AND status = 'draft'
	`, returnID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.missingOrNotDraft(ctx, "return_documents", returnID)
	}
	return nil
}

// InsertReturnItem locks the document and the source line, then re-derives
// the remaining quota before inserting. Concurrent inserts against the same
// source line queue on the row lock and see each other's committed rows.
func (s *Store) InsertReturnItem(ctx context.Context, kind domain.ReturnKind, item domain.ReturnItem) (string, error) {
	if item.Qty < 1 {
		return "", store.ErrInvalidTransaction
	}
	if item.ID == "" {
		item.ID = xid.New("ri")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockDraftReturn(ctx, tx, item.ReturnID, kind); err != nil {
		return "", err
	}
	sourceQty, err := lockSourceQty(ctx, tx, kind, item.SourceItemID)
	if err != nil {
		return "", err
	}
	issued, err := issuedForSource(ctx, tx, kind, item.SourceItemID)
	if err != nil {
		return "", err
	}
	if item.Qty > ledger.RemainingReturnable(sourceQty, issued) {
		return "", store.ErrQuotaExceeded
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO return_items (id, return_id, source_item_id, product_id, qty, unit_price, subtotal, created_at)
		VALUES (:id, :return_id, :source_item_id, :product_id, :qty, :unit_price, :subtotal, :created_at)
	`, item); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return item.ID, nil
}

func (s *Store) FindReturnItemByID(ctx context.Context, itemID string) (*domain.ReturnItem, error) {
	var item domain.ReturnItem
	err := s.db.GetContext(ctx, &item, `
		SELECT id, return_id, source_item_id, product_id, qty, unit_price, subtotal, created_at
		FROM return_items
		WHERE id = $1
	`, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateReturnItemQty(ctx context.Context, kind domain.ReturnKind, itemID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidTransaction
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var item domain.ReturnItem
	if err := tx.GetContext(ctx, &item, `
		SELECT id, return_id, source_item_id, product_id, qty, unit_price, subtotal, created_at
		FROM return_items
		WHERE id = $1
	`, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if err := lockDraftReturn(ctx, tx, item.ReturnID, kind); err != nil {
		return err
	}
	sourceQty, err := lockSourceQty(ctx, tx, kind, item.SourceItemID)
	if err != nil {
		return err
	}
	issued, err := issuedForSource(ctx, tx, kind, item.SourceItemID)
	if err != nil {
		return err
	}
	if qty > ledger.RemainingExcluding(sourceQty, issued, itemID) {
		return store.ErrQuotaExceeded
	}

	subtotal := ledger.LineSubtotal(domain.LineItem{ProductID: item.ProductID, Qty: qty, UnitPrice: item.UnitPrice})
	if _, err := tx.ExecContext(ctx, `
		UPDATE return_items
		SET qty = $2, subtotal = $3
		WHERE id = $1
	`, itemID, qty, subtotal); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteReturnItem(ctx context.Context, itemID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM return_items ri
		USING return_documents rd
		WHERE ri.id = $1 AND rd.id = ri.return_id AND rd.status = 'draft'
	`, itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.FindReturnItemByID(ctx, itemID); err != nil {
		return err
	}
	return store.ErrNotDraft
}

func (s *Store) QuerySourceItems(ctx context.Context, kind domain.ReturnKind, sourceID string) ([]domain.SourceItem, error) {
	table, parentColumn, parentTable, err := sourceTables(kind)
	if err != nil {
		return nil, err
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, parentTable), sourceID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	lines := []domain.SourceItem{}
	if err := s.db.SelectContext(ctx, &lines, fmt.Sprintf(`
		SELECT si.id AS source_item_id, si.product_id, COALESCE(p.name, '') AS product_name, si.qty, si.unit_price, si.subtotal
		FROM %s si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.%s = $1
		ORDER BY si.id
	`, table, parentColumn), sourceID); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return lines, nil
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.SourceItemID)
	}
	issued, err := s.ListIssuedReturnItems(ctx, kind, ids)
	if err != nil {
		return nil, err
	}
	bySource := make(map[string][]domain.IssuedReturnItem, len(lines))
	for _, row := range issued {
		bySource[row.SourceItemID] = append(bySource[row.SourceItemID], row)
	}
	for i := range lines {
		lines[i].Remaining = ledger.RemainingReturnable(lines[i].Qty, bySource[lines[i].SourceItemID])
	}
	return lines, nil
}

func (s *Store) FindSourceItem(ctx context.Context, kind domain.ReturnKind, sourceItemID string) (*domain.SourceItem, error) {
	table, _, _, err := sourceTables(kind)
	if err != nil {
		return nil, err
	}

	var line domain.SourceItem
	err = s.db.GetContext(ctx, &line, fmt.Sprintf(`
		SELECT si.id AS source_item_id, si.product_id, COALESCE(p.name, '') AS product_name, si.qty, si.unit_price, si.subtotal
		FROM %s si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.id = $1
	`, table), sourceItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

func (s *Store) ListIssuedReturnItems(ctx context.Context, kind domain.ReturnKind, sourceItemIDs []string) ([]domain.IssuedReturnItem, error) {
	if len(sourceItemIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT ri.id AS return_item_id, ri.source_item_id, ri.qty, rd.status
		FROM return_items ri
		JOIN return_documents rd ON rd.id = ri.return_id
		WHERE rd.kind = ? AND ri.source_item_id IN (?)
	`, string(kind), sourceItemIDs)
	if err != nil {
		return nil, err
	}

	var issued []domain.IssuedReturnItem
	if err := s.db.SelectContext(ctx, &issued, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return issued, nil
}

func (s *Store) InsertOpnameHeader(ctx context.Context, session domain.OpnameSession) (string, error) {
	if session.Number == "" {
		return "", store.ErrInvalidTransaction
	}
	if session.ID == "" {
		session.ID = xid.New("opn")
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}
	if session.Date.IsZero() {
		session.Date = now
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO opname_sessions (
			id, number, tenant_id, store_id, operator_id, opname_date, note, status, created_at, updated_at
		)
		VALUES (
			:id, :number, :tenant_id, :store_id, :operator_id, :opname_date, :note, :status, :created_at, :updated_at
		)
	`, session)
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrDuplicate
		}
		return "", err
	}
	return session.ID, nil
}

func (s *Store) FindOpnameByID(ctx context.Context, sessionID string) (*domain.OpnameSession, error) {
	var session domain.OpnameSession
	err := s.db.GetContext(ctx, &session, `
		SELECT id, number, tenant_id, store_id, operator_id, opname_date, note, status, created_at, updated_at
		FROM opname_sessions
		WHERE id = $1
	`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	session.Items = []domain.OpnameItem{}
	if err := s.db.SelectContext(ctx, &session.Items, `
		SELECT id, session_id, product_id, system_stock, physical_stock, note
		FROM opname_items
		WHERE session_id = $1
		ORDER BY created_at, id
	`, sessionID); err != nil {
		return nil, err
	}
	return &session, nil
}

// CloseOpnameSession moves a draft session to status in one transaction.
// Closing as selesai posts every item's variance to inventory_stocks before
// the commit, so either the status and all postings land or none do.
func (s *Store) CloseOpnameSession(ctx context.Context, sessionID string, status domain.OpnameStatus) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var header struct {
		StoreID string `db:"store_id"`
		Status  string `db:"status"`
	}
	if err := tx.GetContext(ctx, &header, `
		SELECT store_id, status
		FROM opname_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if header.Status != string(domain.OpnameStatusDraft) {
		return store.ErrNotDraft
	}

	if status == domain.OpnameStatusDone {
		var items []domain.OpnameItem
		if err := tx.SelectContext(ctx, &items, `
			SELECT id, session_id, product_id, system_stock, physical_stock, note
			FROM opname_items
			WHERE session_id = $1
			ORDER BY product_id
		`, sessionID); err != nil {
			return err
		}
		for _, item := range items {
			delta := ledger.Variance(item.SystemStock, item.PhysicalStock)
			if delta == 0 {
				continue
			}
			if err := adjustStock(ctx, tx, header.StoreID, item.ProductID, delta); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE opname_sessions
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, sessionID, string(status)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteOpnameHeader(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM opname_sessions
		WHERE id = $1 AND status = 'draft'
	`, sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.missingOrNotDraft(ctx, "opname_sessions", sessionID)
	}
	return nil
}

func (s *Store) InsertOpnameItem(ctx context.Context, item domain.OpnameItem) (string, error) {
	if item.ProductID == "" || item.PhysicalStock < 0 {
		return "", store.ErrInvalidTransaction
	}
	if item.ID == "" {
		item.ID = xid.New("oi")
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO opname_items (id, session_id, product_id, system_stock, physical_stock, note)
		SELECT :id, :session_id, :product_id, :system_stock, :physical_stock, :note
		FROM opname_sessions
		WHERE id = :session_id AND status = 'draft'
	`, item)
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrDuplicate
		}
		return "", err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		return "", s.missingOrNotDraft(ctx, "opname_sessions", item.SessionID)
	}
	return item.ID, nil
}

func (s *Store) FindOpnameItemByID(ctx context.Context, itemID string) (*domain.OpnameItem, error) {
	var item domain.OpnameItem
	err := s.db.GetContext(ctx, &item, `
		SELECT id, session_id, product_id, system_stock, physical_stock, note
		FROM opname_items
		WHERE id = $1
	`, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// UpdateOpnameItem never touches system_stock; the snapshot is fixed at insert.
func (s *Store) UpdateOpnameItem(ctx context.Context, item domain.OpnameItem) error {
	if item.PhysicalStock < 0 {
		return store.ErrInvalidTransaction
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE opname_items oi
		SET physical_stock = $2, note = $3
		FROM opname_sessions os
		WHERE oi.id = $1 AND os.id = oi.session_id AND os.status = 'draft'
	`, item.ID, item.PhysicalStock, item.Note)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.FindOpnameItemByID(ctx, item.ID); err != nil {
		return err
	}
	return store.ErrNotDraft
}

func (s *Store) DeleteOpnameItem(ctx context.Context, itemID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM opname_items oi
		USING opname_sessions os
		WHERE oi.id = $1 AND os.id = oi.session_id AND os.status = 'draft'
	`, itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.FindOpnameItemByID(ctx, itemID); err != nil {
		return err
	}
	return store.ErrNotDraft
}

func (s *Store) CurrentSystemStock(ctx context.Context, storeID string, productID string) (int, error) {
	var known bool
	if err := s.db.GetContext(ctx, &known, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID); err != nil {
		return 0, err
	}
	if !known {
		return 0, store.ErrNotFound
	}

	var qty int
	err := s.db.GetContext(ctx, &qty, `
		SELECT qty
		FROM inventory_stocks
		WHERE store_id = $1 AND product_id = $2
	`, storeID, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, tenant_id, store_id, operator_id, action, entity_type, entity_id, detail, created_at)
		VALUES (:id, :tenant_id, :store_id, :operator_id, :action, :entity_type, :entity_id, :detail, :created_at)
	`, entry)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	logs := []domain.AuditLog{}
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, tenant_id, store_id, operator_id, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	return logs, err
}

func (s *Store) missingOrNotDraft(ctx context.Context, table string, id string) error {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), id); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrNotDraft
}

func lockDraftReturn(ctx context.Context, tx *sqlx.Tx, returnID string, kind domain.ReturnKind) error {
	var header struct {
		Kind   string `db:"kind"`
		Status string `db:"status"`
	}
	err := tx.GetContext(ctx, &header, `
		SELECT kind, status
		FROM return_documents
		WHERE id = $1
		FOR UPDATE
	`, returnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if header.Kind != string(kind) {
		return store.ErrInvalidTransaction
	}
	if header.Status != string(domain.ReturnStatusDraft) {
		return store.ErrNotDraft
	}
	return nil
}

func adjustStock(ctx context.Context, tx *sqlx.Tx, storeID string, productID string, delta int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_stocks (store_id, product_id, qty, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (store_id, product_id)
		DO UPDATE SET qty = inventory_stocks.qty + EXCLUDED.qty, updated_at = now()
	`, storeID, productID, delta)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func lockSourceQty(ctx context.Context, tx *sqlx.Tx, kind domain.ReturnKind, sourceItemID string) (int, error) {
	table, _, _, err := sourceTables(kind)
	if err != nil {
		return 0, err
	}
	var qty int
	err = tx.GetContext(ctx, &qty, fmt.Sprintf(`SELECT qty FROM %s WHERE id = $1 FOR UPDATE`, table), sourceItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

func issuedForSource(ctx context.Context, tx *sqlx.Tx, kind domain.ReturnKind, sourceItemID string) ([]domain.IssuedReturnItem, error) {
	var issued []domain.IssuedReturnItem
	err := tx.SelectContext(ctx, &issued, `
		SELECT ri.id AS return_item_id, ri.source_item_id, ri.qty, rd.status
		FROM return_items ri
		JOIN return_documents rd ON rd.id = ri.return_id
		WHERE rd.kind = $1 AND ri.source_item_id = $2
	`, string(kind), sourceItemID)
	return issued, err
}

// sourceTables maps a return kind to its line table, the line's parent column
// and the parent table.
func sourceTables(kind domain.ReturnKind) (string, string, string, error) {
	switch kind {
	case domain.ReturnKindSale:
		return "sale_items", "sale_id", "sales", nil
	case domain.ReturnKindPurchase:
		return "purchase_items", "purchase_id", "purchases", nil
	default:
		return "", "", "", store.ErrInvalidTransaction
	}
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
