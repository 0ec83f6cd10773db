package ledger

import "kasirledger/backend/internal/domain"

// IssuedQty sums the quantity already returned against one source line.
// Rows belonging to cancelled (batal) documents do not count; drafts do.
func IssuedQty(issued []domain.IssuedReturnItem) int {
	total := 0
	for _, item := range issued {
		if item.Status == domain.ReturnStatusVoid {
			continue
		}
		total += item.Qty
	}
	return total
}

// RemainingReturnable is the quantity still returnable for a source line,
// floored at zero.
func RemainingReturnable(sourceQty int, issued []domain.IssuedReturnItem) int {
	remaining := sourceQty - IssuedQty(issued)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingExcluding is RemainingReturnable ignoring one return row, used when
// that row's own quantity is being edited.
func RemainingExcluding(sourceQty int, issued []domain.IssuedReturnItem, returnItemID string) int {
	others := make([]domain.IssuedReturnItem, 0, len(issued))
	for _, item := range issued {
		if item.ReturnItemID == returnItemID {
			continue
		}
		others = append(others, item)
	}
	return RemainingReturnable(sourceQty, others)
}
