package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"kasirledger/backend/internal/domain"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestComputeTotalsCheckoutHappyPath(t *testing.T) {
	totals := ComputeTotals([]domain.LineItem{
		{ProductID: "P1", Qty: 2, UnitPrice: dec(10000)},
	}, decimal.Zero).WithPayment(dec(20000))

	if !totals.Subtotal.Equal(dec(20000)) {
		t.Fatalf("expected subtotal 20000, got %s", totals.Subtotal)
	}
	if !totals.Total.Equal(dec(20000)) {
		t.Fatalf("expected total 20000, got %s", totals.Total)
	}
	if !totals.Change.IsZero() {
		t.Fatalf("expected change 0, got %s", totals.Change)
	}
	if !totals.Covered() {
		t.Fatalf("expected payment to cover total")
	}
}

func TestComputeTotalsClampsDiscountAboveSubtotal(t *testing.T) {
	totals := ComputeTotals([]domain.LineItem{
		{ProductID: "P1", Qty: 1, UnitPrice: dec(5000)},
	}, dec(8000))

	if !totals.Subtotal.Equal(dec(5000)) {
		t.Fatalf("expected subtotal 5000, got %s", totals.Subtotal)
	}
	if !totals.Total.IsZero() {
		t.Fatalf("expected total 0, got %s", totals.Total)
	}
}

func TestComputeTotalsAppliesLineDiscounts(t *testing.T) {
	totals := ComputeTotals([]domain.LineItem{
		{ProductID: "P1", Qty: 3, UnitPrice: dec(2500), Discount: dec(500)},
		{ProductID: "P2", Qty: 1, UnitPrice: decimal.RequireFromString("1999.50")},
	}, dec(1000)).WithPayment(dec(10000))

	if want := decimal.RequireFromString("8999.50"); !totals.Subtotal.Equal(want) {
		t.Fatalf("expected subtotal %s, got %s", want, totals.Subtotal)
	}
	if want := decimal.RequireFromString("7999.50"); !totals.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, totals.Total)
	}
	if want := decimal.RequireFromString("2000.50"); !totals.Change.Equal(want) {
		t.Fatalf("expected change %s, got %s", want, totals.Change)
	}
}

func TestComputeTotalsIsIdempotent(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: "P1", Qty: 4, UnitPrice: dec(1250), Discount: dec(100)},
		{ProductID: "P2", Qty: 2, UnitPrice: dec(700)},
	}
	first := ComputeTotals(items, dec(300))
	second := ComputeTotals(items, dec(300))
	if !first.Subtotal.Equal(second.Subtotal) || !first.Total.Equal(second.Total) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestChangeFloorsAtZeroWhenUnderpaid(t *testing.T) {
	totals := ComputeTotals([]domain.LineItem{{ProductID: "P1", Qty: 1, UnitPrice: dec(5000)}}, decimal.Zero).WithPayment(dec(1000))
	if !totals.Change.IsZero() {
		t.Fatalf("expected change 0 when underpaid, got %s", totals.Change)
	}
	if totals.Covered() {
		t.Fatalf("expected underpayment to be detected")
	}
}

func TestComputeTotalsEmpty(t *testing.T) {
	totals := ComputeTotals(nil, decimal.Zero)
	if !totals.Subtotal.IsZero() || !totals.Total.IsZero() {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestRemainingReturnableExcludesCancelledDocuments(t *testing.T) {
	issued := []domain.IssuedReturnItem{
		{ReturnItemID: "r1", SourceItemID: "s1", Qty: 3, Status: domain.ReturnStatusAccepted},
		{ReturnItemID: "r2", SourceItemID: "s1", Qty: 2, Status: domain.ReturnStatusVoid},
	}
	if got := RemainingReturnable(5, issued); got != 2 {
		t.Fatalf("expected remaining 2, got %d", got)
	}
}

func TestRemainingReturnableCountsDrafts(t *testing.T) {
	issued := []domain.IssuedReturnItem{
		{ReturnItemID: "r1", SourceItemID: "s1", Qty: 1, Status: domain.ReturnStatusDraft},
		{ReturnItemID: "r2", SourceItemID: "s1", Qty: 1, Status: domain.ReturnStatusPartial},
	}
	if got := RemainingReturnable(5, issued); got != 3 {
		t.Fatalf("expected remaining 3, got %d", got)
	}
}

func TestRemainingReturnableFloorsAtZero(t *testing.T) {
	issued := []domain.IssuedReturnItem{
		{ReturnItemID: "r1", SourceItemID: "s1", Qty: 7, Status: domain.ReturnStatusDone},
	}
	if got := RemainingReturnable(5, issued); got != 0 {
		t.Fatalf("expected remaining 0, got %d", got)
	}
}

func TestRemainingExcludingIgnoresEditedRow(t *testing.T) {
	issued := []domain.IssuedReturnItem{
		{ReturnItemID: "r1", SourceItemID: "s1", Qty: 3, Status: domain.ReturnStatusDraft},
		{ReturnItemID: "r2", SourceItemID: "s1", Qty: 1, Status: domain.ReturnStatusDraft},
	}
	if got := RemainingExcluding(5, issued, "r1"); got != 4 {
		t.Fatalf("expected remaining 4 excluding r1, got %d", got)
	}
}

func TestVarianceSigns(t *testing.T) {
	cases := []struct {
		system   int
		physical int
		want     int
		class    VarianceClass
	}{
		{system: 100, physical: 120, want: 20, class: VarianceSurplus},
		{system: 100, physical: 80, want: -20, class: VarianceShortage},
		{system: 100, physical: 100, want: 0, class: VarianceNone},
	}
	for _, tc := range cases {
		got := Variance(tc.system, tc.physical)
		if got != tc.want {
			t.Fatalf("variance(%d,%d): expected %d, got %d", tc.system, tc.physical, tc.want, got)
		}
		if class := Classify(got); class != tc.class {
			t.Fatalf("classify(%d): expected %s, got %s", got, tc.class, class)
		}
	}
}

func TestAggregateRecomputesAfterAddingSurplus(t *testing.T) {
	items := []domain.OpnameItem{
		{ProductID: "A", SystemStock: 10, PhysicalStock: 20},
		{ProductID: "B", SystemStock: 10, PhysicalStock: 5},
	}
	agg := Aggregate(items)
	if agg.TotalSurplus != 10 || agg.TotalShortage != 5 || agg.TotalNet != 5 {
		t.Fatalf("expected {10,5,5}, got %+v", agg)
	}

	items = append(items, domain.OpnameItem{ProductID: "C", SystemStock: 30, PhysicalStock: 50})
	agg = Aggregate(items)
	if agg.TotalItems != 3 {
		t.Fatalf("expected 3 items, got %d", agg.TotalItems)
	}
	if agg.TotalSurplus != 30 || agg.TotalShortage != 5 || agg.TotalNet != 25 {
		t.Fatalf("expected {30,5,25}, got %+v", agg)
	}
}

func TestWithVarianceDoesNotMutateInput(t *testing.T) {
	items := []domain.OpnameItem{{ProductID: "A", SystemStock: 4, PhysicalStock: 1}}
	out := WithVariance(items)
	if out[0].Variance != -3 {
		t.Fatalf("expected variance -3, got %d", out[0].Variance)
	}
	if items[0].Variance != 0 {
		t.Fatalf("expected input untouched")
	}
}

func TestNetUnitPrice(t *testing.T) {
	cases := []struct {
		qty      int
		subtotal int64
		want     string
	}{
		{qty: 4, subtotal: 36000, want: "9000"},
		{qty: 3, subtotal: 10000, want: "3333.33"},
		{qty: 0, subtotal: 10000, want: "0"},
		{qty: 2, subtotal: 0, want: "0"},
	}
	for _, tc := range cases {
		got := NetUnitPrice(tc.qty, decimal.NewFromInt(tc.subtotal))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("NetUnitPrice(%d, %d): expected %s, got %s", tc.qty, tc.subtotal, tc.want, got)
		}
	}
}
