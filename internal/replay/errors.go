package replay

import (
	"fmt"
	"strings"
)

// ViolationKind identifies which data-integrity invariant a bar sequence
// violated.
type ViolationKind string

// Violation kinds, in check order.
const (
	ViolationNullTimestamp      ViolationKind = "null_timestamp"
	ViolationDuplicateTimestamp ViolationKind = "duplicate_timestamp"
	ViolationNonMonotonic       ViolationKind = "non_monotonic"
	ViolationNaNPrice           ViolationKind = "nan_price"
	ViolationNegativeSpread     ViolationKind = "negative_spread"
)

// ValidationError reports the first failed integrity check, the number of
// offending rows, and (for price checks) the offending fields.
type ValidationError struct {
	Kind   ViolationKind
	Count  int
	Fields []string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ViolationNullTimestamp:
		return fmt.Sprintf("null timestamps found: %d rows", e.Count)
	case ViolationDuplicateTimestamp:
		return fmt.Sprintf("duplicate timestamps found: %d", e.Count)
	case ViolationNonMonotonic:
		return "timestamps not monotonic increasing"
	case ViolationNaNPrice:
		return fmt.Sprintf("NaN values in %s: %d rows", strings.Join(e.Fields, ", "), e.Count)
	case ViolationNegativeSpread:
		return fmt.Sprintf("negative spread found: %d rows", e.Count)
	default:
		return fmt.Sprintf("bar validation failed: %s (%d rows)", e.Kind, e.Count)
	}
}
