// Package numbering formats document numbers and provides a Redis-backed
// allocator for deployments running more than one server instance.
package numbering

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "20060102"

// Format renders PREFIX-YYYYMMDD-NNNNNN, e.g. TRX-20261015-000042.
func Format(prefix string, asOf time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", strings.ToUpper(prefix), Day(asOf), seq)
}

// Day is the counter bucket for asOf, in UTC.
func Day(asOf time.Time) string {
	return asOf.UTC().Format(dayLayout)
}

// CounterKey identifies one sequence. Tenants and stores never share numbers.
func CounterKey(prefix string, tenantID string, storeID string, asOf time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", strings.ToUpper(prefix), tenantID, storeID, Day(asOf))
}
