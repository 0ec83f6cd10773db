package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/store"
	"kasirledger/backend/internal/store/memory"
)

// seedSale finalizes a single-line sale of PRD-MIE-01 and returns the sale id
// and the id of its line.
func seedSale(t *testing.T, svc *Service, qty int) (string, string) {
	t.Helper()
	ctx := cashierContext()

	resp, err := svc.FinalizeSale(ctx, domain.FinalizeSaleRequest{
		Paid:  rupiah(int64(qty) * 10000),
		Items: []domain.CartLine{{ProductID: "PRD-MIE-01", Qty: qty, UnitPrice: rupiah(10000)}},
	})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	lines, err := svc.ListReturnableItems(ctx, domain.ReturnKindSale, resp.SaleID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("list returnable items: %v (%d lines)", err, len(lines))
	}
	return resp.SaleID, lines[0].SourceItemID
}

func newSaleReturn(t *testing.T, svc *Service, saleID string) *domain.ReturnDocument {
	t.Helper()
	doc, err := svc.CreateReturnDraft(cashierContext(), domain.CreateReturnRequest{
		Kind:     domain.ReturnKindSale,
		SourceID: saleID,
		Reason:   "kemasan rusak",
	})
	if err != nil {
		t.Fatalf("create return draft: %v", err)
	}
	return doc
}

func remainingFor(t *testing.T, svc *Service, saleID string) int {
	t.Helper()
	lines, err := svc.ListReturnableItems(cashierContext(), domain.ReturnKindSale, saleID)
	if err != nil {
		t.Fatalf("list returnable items: %v", err)
	}
	return lines[0].Remaining
}

func TestCreateReturnDraftStartsEmpty(t *testing.T) {
	svc, _ := newTestService()
	saleID, _ := seedSale(t, svc, 5)

	doc := newSaleReturn(t, svc, saleID)
	if doc.Status != domain.ReturnStatusDraft || !doc.Total.IsZero() {
		t.Fatalf("expected empty draft, got %+v", doc)
	}
	if !strings.HasPrefix(doc.Number, "RJ-20261015-") {
		t.Fatalf("unexpected number %s", doc.Number)
	}
}

func TestCreateReturnDraftRequiresSource(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateReturnDraft(cashierContext(), domain.CreateReturnRequest{
		Kind:     domain.ReturnKindSale,
		SourceID: "sale-missing",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = svc.CreateReturnDraft(cashierContext(), domain.CreateReturnRequest{Kind: "gift", SourceID: "x"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
}

func TestReturnQuotaCountsAcceptedReturns(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 5)

	first := newSaleReturn(t, svc, saleID)
	if _, err := svc.AddReturnItem(ctx, first.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 3}); err != nil {
		t.Fatalf("add return item: %v", err)
	}
	if _, err := svc.SetReturnStatus(ctx, first.ID, domain.SetStatusRequest{Status: "diterima"}); err != nil {
		t.Fatalf("accept return: %v", err)
	}

	if got := remainingFor(t, svc, saleID); got != 2 {
		t.Fatalf("expected remaining 2, got %d", got)
	}

	second := newSaleReturn(t, svc, saleID)
	_, err := svc.AddReturnItem(ctx, second.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 3})
	if !errors.Is(err, ErrReturnQuotaExceeded) {
		t.Fatalf("expected ErrReturnQuotaExceeded, got %v", err)
	}
	var qerr *QuotaError
	if !errors.As(err, &qerr) || qerr.Remaining != 2 || qerr.Requested != 3 {
		t.Fatalf("unexpected quota error %+v", qerr)
	}
	if !strings.Contains(err.Error(), "Mie Goreng Instan") || !strings.Contains(err.Error(), "remaining 2") {
		t.Fatalf("message should name product and remaining qty: %q", err.Error())
	}

	if _, err := svc.AddReturnItem(ctx, second.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 2}); err != nil {
		t.Fatalf("returning the rest should succeed: %v", err)
	}
	if got := remainingFor(t, svc, saleID); got != 0 {
		t.Fatalf("expected remaining 0, got %d", got)
	}
}

func TestDraftReturnsCountAgainstQuota(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 4)

	draft := newSaleReturn(t, svc, saleID)
	if _, err := svc.AddReturnItem(ctx, draft.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 4}); err != nil {
		t.Fatalf("add return item: %v", err)
	}

	other := newSaleReturn(t, svc, saleID)
	if _, err := svc.AddReturnItem(ctx, other.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 1}); !errors.Is(err, ErrReturnQuotaExceeded) {
		t.Fatalf("expected draft items to hold quota, got %v", err)
	}
}

func TestVoidReturnReleasesQuota(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 5)

	doc := newSaleReturn(t, svc, saleID)
	if _, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 5}); err != nil {
		t.Fatalf("add return item: %v", err)
	}
	if got := remainingFor(t, svc, saleID); got != 0 {
		t.Fatalf("expected remaining 0, got %d", got)
	}
	if _, err := svc.SetReturnStatus(ctx, doc.ID, domain.SetStatusRequest{Status: "batal"}); err != nil {
		t.Fatalf("void return: %v", err)
	}
	if got := remainingFor(t, svc, saleID); got != 5 {
		t.Fatalf("expected remaining 5 after void, got %d", got)
	}
}

func TestReturnTotalFollowsItemChanges(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 5)
	doc := newSaleReturn(t, svc, saleID)

	item, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 2})
	if err != nil {
		t.Fatalf("add return item: %v", err)
	}
	assertReturnTotal(t, svc, doc.ID, 20000)

	discounted := rupiah(7500)
	if _, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 1, UnitPrice: &discounted}); err != nil {
		t.Fatalf("add second row: %v", err)
	}
	assertReturnTotal(t, svc, doc.ID, 27500)

	if _, err := svc.UpdateReturnItemQty(ctx, item.ID, domain.UpdateReturnItemRequest{Qty: 4}); err != nil {
		t.Fatalf("update qty: %v", err)
	}
	assertReturnTotal(t, svc, doc.ID, 47500)

	if err := svc.RemoveReturnItem(ctx, item.ID); err != nil {
		t.Fatalf("remove item: %v", err)
	}
	assertReturnTotal(t, svc, doc.ID, 7500)
}

func assertReturnTotal(t *testing.T, svc *Service, returnID string, want int64) {
	t.Helper()
	doc, err := svc.GetReturn(cashierContext(), returnID)
	if err != nil {
		t.Fatalf("get return: %v", err)
	}
	if !doc.Total.Equal(rupiah(want)) {
		t.Fatalf("expected total %d, got %s", want, doc.Total)
	}
}

func TestUpdateReturnItemQtyExcludesItself(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 5)
	doc := newSaleReturn(t, svc, saleID)

	item, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 3})
	if err != nil {
		t.Fatalf("add return item: %v", err)
	}
	if _, err := svc.UpdateReturnItemQty(ctx, item.ID, domain.UpdateReturnItemRequest{Qty: 5}); err != nil {
		t.Fatalf("raising to the full source qty should pass: %v", err)
	}
	_, err = svc.UpdateReturnItemQty(ctx, item.ID, domain.UpdateReturnItemRequest{Qty: 6})
	var qerr *QuotaError
	if !errors.As(err, &qerr) || qerr.Remaining != 5 {
		t.Fatalf("expected quota error with remaining 5, got %v", err)
	}
}

func TestFinishedReturnIsImmutable(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 5)
	doc := newSaleReturn(t, svc, saleID)

	item, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 1})
	if err != nil {
		t.Fatalf("add return item: %v", err)
	}
	if _, err := svc.SetReturnStatus(ctx, doc.ID, domain.SetStatusRequest{Status: "selesai"}); err != nil {
		t.Fatalf("finish return: %v", err)
	}

	if _, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 1}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on add, got %v", err)
	}
	if _, err := svc.UpdateReturnItemQty(ctx, item.ID, domain.UpdateReturnItemRequest{Qty: 2}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on update, got %v", err)
	}
	if err := svc.RemoveReturnItem(ctx, item.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on remove, got %v", err)
	}
	if _, err := svc.SetReturnStatus(ctx, doc.ID, domain.SetStatusRequest{Status: "batal"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on status change, got %v", err)
	}
	if err := svc.DeleteReturn(ctx, doc.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on delete, got %v", err)
	}
}

func TestSetReturnStatusRules(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()
	saleID, _ := seedSale(t, svc, 2)

	doc := newSaleReturn(t, svc, saleID)
	if _, err := svc.SetReturnStatus(ctx, doc.ID, domain.SetStatusRequest{Status: "draft"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for draft target, got %v", err)
	}
	if _, err := svc.SetReturnStatus(ctx, doc.ID, domain.SetStatusRequest{Status: "diterima"}); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	voided, err := svc.SetReturnStatus(ctx, doc.ID, domain.SetStatusRequest{Status: "batal"})
	if err != nil {
		t.Fatalf("void empty return: %v", err)
	}
	if voided.Status != domain.ReturnStatusVoid {
		t.Fatalf("expected batal, got %s", voided.Status)
	}
}

func TestDeleteDraftReturnRemovesItems(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 5)
	doc := newSaleReturn(t, svc, saleID)

	item, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 5})
	if err != nil {
		t.Fatalf("add return item: %v", err)
	}
	if err := svc.DeleteReturn(ctx, doc.ID); err != nil {
		t.Fatalf("delete return: %v", err)
	}
	if _, err := repo.FindReturnItemByID(ctx, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected item removed, got %v", err)
	}
	if got := remainingFor(t, svc, saleID); got != 5 {
		t.Fatalf("expected quota released, got remaining %d", got)
	}
}

func TestAddReturnItemRejectsLineFromOtherSource(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()
	saleA, _ := seedSale(t, svc, 2)
	_, lineB := seedSale(t, svc, 2)

	doc := newSaleReturn(t, svc, saleA)
	if _, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: lineB, Qty: 1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReturnTotalWriteFailureRevertsItem(t *testing.T) {
	repo := &faultyRepo{Repository: memory.NewSeeded()}
	svc := newTestServiceWith(repo)
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 5)
	doc := newSaleReturn(t, svc, saleID)

	repo.returnTotalErr = errors.New("write timeout")
	_, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 2})
	if !errors.Is(err, ErrTotalsWriteFailed) {
		t.Fatalf("expected ErrTotalsWriteFailed, got %v", err)
	}
	if errors.Is(err, ErrCompensationFailed) {
		t.Fatalf("revert should have succeeded: %v", err)
	}

	got, err := svc.GetReturn(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get return: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected added item reverted, got %+v", got.Items)
	}
	if remaining := remainingFor(t, svc, saleID); remaining != 5 {
		t.Fatalf("expected quota untouched, got remaining %d", remaining)
	}
}

func TestPurchaseReturnUsesPurchaseLines(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()

	purchase, err := svc.RecordPurchase(ctx, domain.RecordPurchaseRequest{
		SupplierID: "SUP-07",
		Items:      []domain.CartLine{{ProductID: "PRD-AIR-01", Qty: 24, UnitPrice: rupiah(2500)}},
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	lines, err := svc.ListReturnableItems(ctx, domain.ReturnKindPurchase, purchase.PurchaseID)
	if err != nil || len(lines) != 1 || lines[0].Remaining != 24 {
		t.Fatalf("unexpected returnable lines %+v (%v)", lines, err)
	}

	doc, err := svc.CreateReturnDraft(ctx, domain.CreateReturnRequest{Kind: domain.ReturnKindPurchase, SourceID: purchase.PurchaseID})
	if err != nil {
		t.Fatalf("create purchase return: %v", err)
	}
	if !strings.HasPrefix(doc.Number, "RB-") || doc.CounterpartyID != "SUP-07" {
		t.Fatalf("unexpected purchase return %+v", doc)
	}
	if _, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: lines[0].SourceItemID, Qty: 6}); err != nil {
		t.Fatalf("add purchase return item: %v", err)
	}
	assertReturnTotal(t, svc, doc.ID, 15000)
}

func TestConcurrentReturnsNeverExceedSourceQty(t *testing.T) {
	svc, _ := newTestService()
	saleID, sourceItemID := seedSale(t, svc, 5)

	docs := make([]*domain.ReturnDocument, 8)
	for i := range docs {
		docs[i] = newSaleReturn(t, svc, saleID)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for _, doc := range docs {
		wg.Add(1)
		go func(returnID string) {
			defer wg.Done()
			_, err := svc.AddReturnItem(context.Background(), returnID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 1})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(doc.ID)
	}
	wg.Wait()

	if accepted > 5 {
		t.Fatalf("accepted %d units against a source qty of 5", accepted)
	}
	if got := remainingFor(t, svc, saleID); got != 5-accepted {
		t.Fatalf("expected remaining %d, got %d", 5-accepted, got)
	}
}

// heldTotalRepo parks the first header-total refresh until release is closed.
type heldTotalRepo struct {
	store.Repository

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *heldTotalRepo) RefreshReturnTotal(ctx context.Context, returnID string) (decimal.Decimal, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.release
	}
	return r.Repository.RefreshReturnTotal(ctx, returnID)
}

func seedMultiLineSale(t *testing.T, svc *Service, lines []domain.CartLine) (string, []domain.SourceItem) {
	t.Helper()
	ctx := cashierContext()

	paid := decimal.Zero
	for _, line := range lines {
		paid = paid.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	resp, err := svc.FinalizeSale(ctx, domain.FinalizeSaleRequest{Paid: paid, Items: lines})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	source, err := svc.ListReturnableItems(ctx, domain.ReturnKindSale, resp.SaleID)
	if err != nil || len(source) != len(lines) {
		t.Fatalf("list returnable items: %v (%d lines)", err, len(source))
	}
	return resp.SaleID, source
}

func assertTotalMatchesItems(t *testing.T, svc *Service, returnID string) *domain.ReturnDocument {
	t.Helper()
	doc, err := svc.GetReturn(cashierContext(), returnID)
	if err != nil {
		t.Fatalf("get return: %v", err)
	}
	sum := decimal.Zero
	for _, item := range doc.Items {
		sum = sum.Add(item.Subtotal)
	}
	if !doc.Total.Equal(sum) {
		t.Fatalf("header total %s drifted from item sum %s", doc.Total, sum)
	}
	return doc
}

func TestReturnTotalSurvivesInterleavedLineEdits(t *testing.T) {
	repo := &heldTotalRepo{Repository: memory.NewSeeded(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := newTestServiceWith(repo)
	ctx := cashierContext()
	saleID, source := seedMultiLineSale(t, svc, []domain.CartLine{
		{ProductID: "PRD-MIE-01", Qty: 3, UnitPrice: rupiah(10000)},
		{ProductID: "PRD-TELUR-01", Qty: 3, UnitPrice: rupiah(5000)},
	})
	doc := newSaleReturn(t, svc, saleID)

	done := make(chan error, 1)
	go func() {
		_, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: source[0].SourceItemID, Qty: 1})
		done <- err
	}()
	<-repo.entered

	if _, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: source[1].SourceItemID, Qty: 1}); err != nil {
		t.Fatalf("second line: %v", err)
	}
	close(repo.release)
	if err := <-done; err != nil {
		t.Fatalf("first line: %v", err)
	}

	got := assertTotalMatchesItems(t, svc, doc.ID)
	if !got.Total.Equal(rupiah(15000)) {
		t.Fatalf("expected total 15000, got %s", got.Total)
	}
}

func TestConcurrentDistinctLinesKeepTotalConsistent(t *testing.T) {
	svc, _ := newTestService()
	products := []string{"PRD-MIE-01", "PRD-TELUR-01", "PRD-SUSU-01", "PRD-ROTI-01", "PRD-KOPI-01", "PRD-GULA-01", "PRD-TEH-01", "PRD-AIR-01"}
	cart := make([]domain.CartLine, 0, len(products))
	for i, id := range products {
		cart = append(cart, domain.CartLine{ProductID: id, Qty: 2, UnitPrice: rupiah(int64(i+1) * 1000)})
	}
	saleID, source := seedMultiLineSale(t, svc, cart)
	doc := newSaleReturn(t, svc, saleID)

	var wg sync.WaitGroup
	errs := make(chan error, len(source))
	for _, line := range source {
		wg.Add(1)
		go func(sourceItemID string) {
			defer wg.Done()
			if _, err := svc.AddReturnItem(context.Background(), doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 1}); err != nil {
				errs <- err
			}
		}(line.SourceItemID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("add return item: %v", err)
	}

	got := assertTotalMatchesItems(t, svc, doc.ID)
	if len(got.Items) != len(products) || !got.Total.Equal(rupiah(36000)) {
		t.Fatalf("expected 8 rows totalling 36000, got %d rows / %s", len(got.Items), got.Total)
	}
}

func TestReturnTotalFailureWithFailedRevert(t *testing.T) {
	repo := &faultyRepo{Repository: memory.NewSeeded()}
	svc := newTestServiceWith(repo)
	ctx := cashierContext()
	saleID, sourceItemID := seedSale(t, svc, 5)
	doc := newSaleReturn(t, svc, saleID)

	repo.returnTotalErr = store.ErrNotFound
	repo.returnDeleteErr = errors.New("connection reset")
	_, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: sourceItemID, Qty: 2})
	if !errors.Is(err, ErrTotalsWriteFailed) || !errors.Is(err, ErrCompensationFailed) {
		t.Fatalf("expected totals failure with failed revert, got %v", err)
	}
	if errors.Is(err, store.ErrNotFound) {
		t.Fatalf("store cause must not surface as a lookup miss: %v", err)
	}
}

func TestReturnUnitPriceCappedAtNetSourcePrice(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()

	resp, err := svc.FinalizeSale(ctx, domain.FinalizeSaleRequest{
		Paid:  rupiah(36000),
		Items: []domain.CartLine{{ProductID: "PRD-KOPI-01", Qty: 4, UnitPrice: rupiah(10000), Discount: rupiah(4000)}},
	})
	if err != nil {
		t.Fatalf("finalize sale: %v", err)
	}
	lines, err := svc.ListReturnableItems(ctx, domain.ReturnKindSale, resp.SaleID)
	if err != nil {
		t.Fatalf("list returnable items: %v", err)
	}
	doc := newSaleReturn(t, svc, resp.SaleID)

	item, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: lines[0].SourceItemID, Qty: 1})
	if err != nil {
		t.Fatalf("add return item: %v", err)
	}
	if !item.UnitPrice.Equal(rupiah(9000)) {
		t.Fatalf("expected net unit price 9000, got %s", item.UnitPrice)
	}

	above := rupiah(9500)
	_, err = svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: lines[0].SourceItemID, Qty: 1, UnitPrice: &above})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields[0].Field != "unit_price" {
		t.Fatalf("expected unit_price validation error, got %v", err)
	}

	below := rupiah(8000)
	if _, err := svc.AddReturnItem(ctx, doc.ID, domain.AddReturnItemRequest{SourceItemID: lines[0].SourceItemID, Qty: 1, UnitPrice: &below}); err != nil {
		t.Fatalf("lower refund should be accepted: %v", err)
	}
	assertReturnTotal(t, svc, doc.ID, 17000)
}
