package ledger

import "kasirledger/backend/internal/domain"

type VarianceClass string

const (
	VarianceSurplus  VarianceClass = "surplus"
	VarianceShortage VarianceClass = "shortage"
	VarianceNone     VarianceClass = "none"
)

func Variance(systemStock int, physicalStock int) int {
	return physicalStock - systemStock
}

func Classify(variance int) VarianceClass {
	switch {
	case variance > 0:
		return VarianceSurplus
	case variance < 0:
		return VarianceShortage
	default:
		return VarianceNone
	}
}

// Aggregate derives the session totals from its items. TotalShortage is a
// magnitude, so TotalNet = TotalSurplus - TotalShortage.
func Aggregate(items []domain.OpnameItem) domain.OpnameAggregates {
	agg := domain.OpnameAggregates{TotalItems: len(items)}
	for _, item := range items {
		v := Variance(item.SystemStock, item.PhysicalStock)
		switch Classify(v) {
		case VarianceSurplus:
			agg.TotalSurplus += v
		case VarianceShortage:
			agg.TotalShortage += -v
		}
	}
	agg.TotalNet = agg.TotalSurplus - agg.TotalShortage
	return agg
}

// WithVariance fills the derived Variance field on a copy of items.
func WithVariance(items []domain.OpnameItem) []domain.OpnameItem {
	out := make([]domain.OpnameItem, len(items))
	for i, item := range items {
		item.Variance = Variance(item.SystemStock, item.PhysicalStock)
		out[i] = item
	}
	return out
}
