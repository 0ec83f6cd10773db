package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/ledger"
	"kasirledger/backend/internal/xid"
)

// RecordPurchase books goods received from a supplier. It follows the sale
// write sequence, including header removal when the lines fail.
func (s *Service) RecordPurchase(ctx context.Context, req domain.RecordPurchaseRequest) (domain.RecordPurchaseResponse, error) {
	if err := validateRequest(req); err != nil {
		return domain.RecordPurchaseResponse{}, err
	}
	lines, err := s.cartLines(ctx, req.Items)
	if err != nil {
		return domain.RecordPurchaseResponse{}, err
	}
	totals := ledger.ComputeTotals(lines, req.Discount)

	actor := s.actor(ctx)
	number, err := s.allocateNumber(ctx, domain.NumberPrefixPurchase, actor)
	if err != nil {
		return domain.RecordPurchaseResponse{}, err
	}

	purchaseID, err := s.repo.InsertPurchaseHeader(ctx, domain.Purchase{
		ID:         xid.New("pur"),
		Number:     number,
		TenantID:   actor.TenantID,
		StoreID:    actor.StoreID,
		OperatorID: actor.OperatorID,
		SupplierID: req.SupplierID,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		Total:      totals.Total,
		CreatedAt:  s.now(),
	})
	if err != nil {
		s.logger.Error("purchase header write failed", zap.String("number", number), zap.Error(err))
		return domain.RecordPurchaseResponse{}, &FinalizeError{Stage: ErrHeaderWriteFailed, Number: number, Err: err}
	}

	items := make([]domain.PurchaseItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.PurchaseItem{
			ID:         xid.New("pi"),
			PurchaseID: purchaseID,
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			UnitPrice:  line.UnitPrice,
			Discount:   line.Discount,
			Subtotal:   ledger.LineSubtotal(line),
		})
	}
	if err := s.repo.InsertPurchaseItems(ctx, purchaseID, items); err != nil {
		ferr := &FinalizeError{Stage: ErrItemsWriteFailed, Number: number, HeaderID: purchaseID, Err: err}
		ferr.CompensationErr = s.compensateHeader(ctx, "purchase", purchaseID, number, func(ctx context.Context) error {
			return s.repo.DeletePurchaseHeader(ctx, purchaseID)
		})
		return domain.RecordPurchaseResponse{}, ferr
	}

	s.logAudit(ctx, "purchase_record", "purchase", purchaseID, fmt.Sprintf("number=%s,supplier=%s,total=%s", number, req.SupplierID, totals.Total.StringFixed(2)))

	return domain.RecordPurchaseResponse{
		PurchaseID: purchaseID,
		Number:     number,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		Total:      totals.Total,
	}, nil
}

func (s *Service) GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	return s.repo.FindPurchaseByID(ctx, purchaseID)
}
