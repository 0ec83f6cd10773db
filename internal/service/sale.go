package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/ledger"
	"kasirledger/backend/internal/xid"
)

// FinalizeSale persists a checkout as a header plus its lines. The two writes
// are separate; when the lines fail the header is removed again so no sale is
// left without items.
func (s *Service) FinalizeSale(ctx context.Context, req domain.FinalizeSaleRequest) (domain.FinalizeSaleResponse, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash"
	}
	if err := validateRequest(req); err != nil {
		return domain.FinalizeSaleResponse{}, err
	}
	lines, err := s.cartLines(ctx, req.Items)
	if err != nil {
		return domain.FinalizeSaleResponse{}, err
	}

	totals := ledger.ComputeTotals(lines, req.Discount).WithPayment(req.Paid)
	if !totals.Covered() {
		return domain.FinalizeSaleResponse{}, fmt.Errorf("%w: total %s, paid %s", ErrInsufficientPayment, totals.Total.StringFixed(2), totals.Paid.StringFixed(2))
	}

	actor := s.actor(ctx)
	number, err := s.allocateNumber(ctx, domain.NumberPrefixSale, actor)
	if err != nil {
		return domain.FinalizeSaleResponse{}, err
	}

	saleID, err := s.repo.InsertSaleHeader(ctx, domain.Sale{
		ID:            xid.New("sale"),
		Number:        number,
		TenantID:      actor.TenantID,
		StoreID:       actor.StoreID,
		OperatorID:    actor.OperatorID,
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Total:         totals.Total,
		Paid:          totals.Paid,
		Change:        totals.Change,
		CreatedAt:     s.now(),
	})
	if err != nil {
		s.logger.Error("sale header write failed", zap.String("number", number), zap.Error(err))
		return domain.FinalizeSaleResponse{}, &FinalizeError{Stage: ErrHeaderWriteFailed, Number: number, Err: err}
	}

	items := make([]domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.SaleItem{
			ID:        xid.New("si"),
			SaleID:    saleID,
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
			Subtotal:  ledger.LineSubtotal(line),
		})
	}
	if err := s.repo.InsertSaleItems(ctx, saleID, items); err != nil {
		ferr := &FinalizeError{Stage: ErrItemsWriteFailed, Number: number, HeaderID: saleID, Err: err}
		ferr.CompensationErr = s.compensateHeader(ctx, "sale", saleID, number, func(ctx context.Context) error {
			return s.repo.DeleteSaleHeader(ctx, saleID)
		})
		return domain.FinalizeSaleResponse{}, ferr
	}

	s.logAudit(ctx, "sale_finalize", "sale", saleID, fmt.Sprintf("number=%s,total=%s,items=%d", number, totals.Total.StringFixed(2), len(items)))
	s.logger.Info("sale finalized",
		zap.String("sale_id", saleID),
		zap.String("number", number),
		zap.String("total", totals.Total.StringFixed(2)),
	)

	return domain.FinalizeSaleResponse{
		SaleID:   saleID,
		Number:   number,
		Subtotal: totals.Subtotal,
		Discount: totals.Discount,
		Total:    totals.Total,
		Paid:     totals.Paid,
		Change:   totals.Change,
	}, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	return s.repo.FindSaleByID(ctx, saleID)
}

// cartLines checks every line references a known product and does not
// discount below zero.
func (s *Service) cartLines(ctx context.Context, cart []domain.CartLine) ([]domain.LineItem, error) {
	ids := make([]string, 0, len(cart))
	for _, line := range cart {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.LineItem, 0, len(cart))
	for i, line := range cart {
		if _, ok := products[line.ProductID]; !ok {
			return nil, invalidField(fmt.Sprintf("items[%d].product_id", i), "exists")
		}
		item := line.LineItem()
		if ledger.LineSubtotal(item).IsNegative() {
			return nil, invalidField(fmt.Sprintf("items[%d].discount", i), "lte_line_amount")
		}
		lines = append(lines, item)
	}
	return lines, nil
}

// compensateHeader deletes a header whose lines failed to persist. It runs
// once, on a context that survives the caller's cancellation.
func (s *Service) compensateHeader(ctx context.Context, entity string, headerID string, number string, remove func(context.Context) error) error {
	if err := remove(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("orphan header left behind",
			zap.String("entity", entity),
			zap.String("header_id", headerID),
			zap.String("number", number),
			zap.Error(err),
		)
		return err
	}
	s.logger.Warn("items write failed, header removed",
		zap.String("entity", entity),
		zap.String("header_id", headerID),
		zap.String("number", number),
	)
	return nil
}
