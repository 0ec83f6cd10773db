package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/ledger"
	"kasirledger/backend/internal/lock"
	"kasirledger/backend/internal/store"
	"kasirledger/backend/internal/validate"
	"kasirledger/backend/internal/xid"
)

func (s *Service) CreateReturnDraft(ctx context.Context, req domain.CreateReturnRequest) (*domain.ReturnDocument, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	counterparty, err := s.returnCounterparty(ctx, req.Kind, req.SourceID)
	if err != nil {
		return nil, err
	}
	if req.CounterpartyID == "" {
		req.CounterpartyID = counterparty
	}

	actor := s.actor(ctx)
	number, err := s.allocateNumber(ctx, req.Kind.NumberPrefix(), actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := domain.ReturnDocument{
		ID:             xid.New("ret"),
		Number:         number,
		Kind:           req.Kind,
		TenantID:       actor.TenantID,
		StoreID:        actor.StoreID,
		OperatorID:     actor.OperatorID,
		SourceID:       req.SourceID,
		CounterpartyID: req.CounterpartyID,
		Status:         domain.ReturnStatusDraft,
		Reason:         req.Reason,
		CreatedAt:      now,
		UpdatedAt:      now,
		Items:          []domain.ReturnItem{},
	}
	id, err := s.repo.InsertReturnHeader(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = id

	s.logAudit(ctx, "return_create", "return", id, fmt.Sprintf("kind=%s,number=%s,source=%s", req.Kind, number, req.SourceID))
	return &doc, nil
}

// returnCounterparty resolves the customer or supplier of the source document
// and fails with store.ErrNotFound when the source does not exist.
func (s *Service) returnCounterparty(ctx context.Context, kind domain.ReturnKind, sourceID string) (string, error) {
	switch kind {
	case domain.ReturnKindSale:
		sale, err := s.repo.FindSaleByID(ctx, sourceID)
		if err != nil {
			return "", err
		}
		return sale.CustomerID, nil
	case domain.ReturnKindPurchase:
		purchase, err := s.repo.FindPurchaseByID(ctx, sourceID)
		if err != nil {
			return "", err
		}
		return purchase.SupplierID, nil
	default:
		return "", invalidField("kind", "oneof=sale purchase")
	}
}

// ListReturnableItems lists the lines of a sale or purchase with the quantity
// still available for return.
func (s *Service) ListReturnableItems(ctx context.Context, kind domain.ReturnKind, sourceID string) ([]domain.SourceItem, error) {
	if !kind.Valid() {
		return nil, invalidField("kind", "oneof=sale purchase")
	}
	return s.repo.QuerySourceItems(ctx, kind, sourceID)
}

func (s *Service) GetReturn(ctx context.Context, returnID string) (*domain.ReturnDocument, error) {
	return s.repo.FindReturnByID(ctx, returnID)
}

func (s *Service) AddReturnItem(ctx context.Context, returnID string, req domain.AddReturnItemRequest) (*domain.ReturnItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	doc, err := s.draftReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}

	var saved domain.ReturnItem
	err = s.withQuotaLock(ctx, doc.Kind, req.SourceItemID, func() error {
		source, err := s.sourceLine(ctx, doc, req.SourceItemID)
		if err != nil {
			return err
		}
		if req.Qty > source.Remaining {
			return quotaError(source, req.Qty, source.Remaining)
		}

		unitPrice, err := returnUnitPrice(source, req.UnitPrice)
		if err != nil {
			return err
		}
		item := domain.ReturnItem{
			ID:           xid.New("ri"),
			ReturnID:     doc.ID,
			SourceItemID: source.SourceItemID,
			ProductID:    source.ProductID,
			Qty:          req.Qty,
			UnitPrice:    unitPrice,
			Subtotal:     ledger.LineSubtotal(domain.LineItem{ProductID: source.ProductID, Qty: req.Qty, UnitPrice: unitPrice}),
			CreatedAt:    s.now(),
		}
		id, err := s.repo.InsertReturnItem(ctx, doc.Kind, item)
		if err != nil {
			return s.returnWriteError(ctx, doc, source, req.Qty, err)
		}
		item.ID = id
		saved = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.recomputeReturnTotal(ctx, doc.ID, func(ctx context.Context) error {
		return s.repo.DeleteReturnItem(ctx, saved.ID)
	}); err != nil {
		return nil, err
	}

	s.logAudit(ctx, "return_item_add", "return", doc.ID, fmt.Sprintf("source_item=%s,qty=%d", saved.SourceItemID, saved.Qty))
	return &saved, nil
}

func (s *Service) UpdateReturnItemQty(ctx context.Context, itemID string, req domain.UpdateReturnItemRequest) (*domain.ReturnItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	item, err := s.repo.FindReturnItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	doc, err := s.draftReturn(ctx, item.ReturnID)
	if err != nil {
		return nil, err
	}
	previousQty := item.Qty

	err = s.withQuotaLock(ctx, doc.Kind, item.SourceItemID, func() error {
		source, err := s.sourceLine(ctx, doc, item.SourceItemID)
		if err != nil {
			return err
		}
		issued, err := s.repo.ListIssuedReturnItems(ctx, doc.Kind, []string{item.SourceItemID})
		if err != nil {
			return err
		}
		remaining := ledger.RemainingExcluding(source.Qty, issued, item.ID)
		if req.Qty > remaining {
			return quotaError(source, req.Qty, remaining)
		}
		if err := s.repo.UpdateReturnItemQty(ctx, doc.Kind, item.ID, req.Qty); err != nil {
			return s.returnWriteError(ctx, doc, source, req.Qty, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.recomputeReturnTotal(ctx, doc.ID, func(ctx context.Context) error {
		return s.repo.UpdateReturnItemQty(ctx, doc.Kind, item.ID, previousQty)
	}); err != nil {
		return nil, err
	}

	item.Qty = req.Qty
	item.Subtotal = ledger.LineSubtotal(domain.LineItem{ProductID: item.ProductID, Qty: req.Qty, UnitPrice: item.UnitPrice})
	s.logAudit(ctx, "return_item_update", "return", doc.ID, fmt.Sprintf("item=%s,qty=%d->%d", item.ID, previousQty, req.Qty))
	return item, nil
}

func (s *Service) RemoveReturnItem(ctx context.Context, itemID string) error {
	item, err := s.repo.FindReturnItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	doc, err := s.draftReturn(ctx, item.ReturnID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteReturnItem(ctx, item.ID); err != nil {
		if errors.Is(err, store.ErrNotDraft) {
			return s.returnStateError(ctx, doc.ID)
		}
		return err
	}

	removed := *item
	if err := s.recomputeReturnTotal(ctx, doc.ID, func(ctx context.Context) error {
		_, err := s.repo.InsertReturnItem(ctx, doc.Kind, removed)
		return err
	}); err != nil {
		return err
	}

	s.logAudit(ctx, "return_item_remove", "return", doc.ID, fmt.Sprintf("item=%s,qty=%d", removed.ID, removed.Qty))
	return nil
}

// SetReturnStatus moves a draft to one of the terminal statuses. Terminal
// documents are immutable.
func (s *Service) SetReturnStatus(ctx context.Context, returnID string, req domain.SetStatusRequest) (*domain.ReturnDocument, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	status := domain.ReturnStatus(req.Status)
	if !status.Terminal() {
		return nil, invalidField("status", "oneof=diterima sebagian selesai batal")
	}

	doc, err := s.draftReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if status != domain.ReturnStatusVoid && len(doc.Items) == 0 {
		return nil, fmt.Errorf("%w: return %s", ErrEmptyDocument, doc.Number)
	}

	if err := s.repo.UpdateReturnHeader(ctx, doc.ID, domain.ReturnHeaderUpdate{Status: &status}); err != nil {
		if errors.Is(err, store.ErrNotDraft) {
			return nil, s.returnStateError(ctx, doc.ID)
		}
		return nil, err
	}
	doc.Status = status

	s.logAudit(ctx, "return_status", "return", doc.ID, fmt.Sprintf("status=%s", status))
	s.logger.Info("return status changed", zap.String("return_id", doc.ID), zap.String("number", doc.Number), zap.String("status", string(status)))
	return doc, nil
}

func (s *Service) DeleteReturn(ctx context.Context, returnID string) error {
	doc, err := s.draftReturn(ctx, returnID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteReturnHeader(ctx, doc.ID); err != nil {
		if errors.Is(err, store.ErrNotDraft) {
			return s.returnStateError(ctx, doc.ID)
		}
		return err
	}
	s.logAudit(ctx, "return_delete", "return", doc.ID, doc.Number)
	return nil
}

func (s *Service) draftReturn(ctx context.Context, returnID string) (*domain.ReturnDocument, error) {
	doc, err := s.repo.FindReturnByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.ReturnStatusDraft {
		return nil, &StateError{Entity: "return", ID: doc.Number, Status: string(doc.Status)}
	}
	return doc, nil
}

func (s *Service) returnStateError(ctx context.Context, returnID string) error {
	doc, err := s.repo.FindReturnByID(ctx, returnID)
	if err != nil {
		return &StateError{Entity: "return", ID: returnID, Status: "unknown"}
	}
	return &StateError{Entity: "return", ID: doc.Number, Status: string(doc.Status)}
}

// sourceLine finds a line of the document's source with its remaining quota.
func (s *Service) sourceLine(ctx context.Context, doc *domain.ReturnDocument, sourceItemID string) (domain.SourceItem, error) {
	lines, err := s.repo.QuerySourceItems(ctx, doc.Kind, doc.SourceID)
	if err != nil {
		return domain.SourceItem{}, err
	}
	for _, line := range lines {
		if line.SourceItemID == sourceItemID {
			return line, nil
		}
	}
	return domain.SourceItem{}, invalidField("source_item_id", "in_source")
}

// returnWriteError translates the store's atomic re-checks into service errors.
func (s *Service) returnWriteError(ctx context.Context, doc *domain.ReturnDocument, source domain.SourceItem, qty int, err error) error {
	switch {
	case errors.Is(err, store.ErrQuotaExceeded):
		remaining := 0
		if issued, lerr := s.repo.ListIssuedReturnItems(ctx, doc.Kind, []string{source.SourceItemID}); lerr == nil {
			remaining = ledger.RemainingReturnable(source.Qty, issued)
		}
		return quotaError(source, qty, remaining)
	case errors.Is(err, store.ErrNotDraft):
		return s.returnStateError(ctx, doc.ID)
	default:
		return err
	}
}

func quotaError(source domain.SourceItem, requested int, remaining int) error {
	return &QuotaError{
		ProductID:   source.ProductID,
		ProductName: source.ProductName,
		Requested:   requested,
		Remaining:   remaining,
	}
}

func (s *Service) withQuotaLock(ctx context.Context, kind domain.ReturnKind, sourceItemID string, fn func() error) error {
	key := fmt.Sprintf("lock:return-quota:%s:%s", kind, sourceItemID)
	return lock.With(ctx, s.locker, key, s.lockTTL, fn)
}

// returnUnitPrice is the refund per unit: the source line's net unit price
// unless the caller asks for less. Refunding above what was charged is invalid.
func returnUnitPrice(source domain.SourceItem, requested *decimal.Decimal) (decimal.Decimal, error) {
	net := ledger.NetUnitPrice(source.Qty, source.Subtotal)
	if requested == nil {
		return net, nil
	}
	if requested.GreaterThan(net) {
		return decimal.Zero, &ValidationError{Fields: []validate.FieldError{{Field: "unit_price", Tag: "lte", Param: net.String()}}}
	}
	return *requested, nil
}

// recomputeReturnTotal has the store rewrite the header total from the current
// items. When that write fails, undo reverts the item change once and
// ErrTotalsWriteFailed is returned.
func (s *Service) recomputeReturnTotal(ctx context.Context, returnID string, undo func(context.Context) error) error {
	_, err := s.repo.RefreshReturnTotal(ctx, returnID)
	if err == nil {
		return nil
	}

	if uerr := undo(context.WithoutCancel(ctx)); uerr != nil {
		s.logger.Error("return item change could not be reverted",
			zap.String("return_id", returnID),
			zap.NamedError("total_error", err),
			zap.Error(uerr),
		)
		return fmt.Errorf("%w: %v; %w: %v", ErrTotalsWriteFailed, err, ErrCompensationFailed, uerr)
	}
	s.logger.Warn("return total write failed, item change reverted", zap.String("return_id", returnID), zap.Error(err))
	return fmt.Errorf("%w: %v", ErrTotalsWriteFailed, err)
}
