// Package replay guards the entrance to the replay loop: fail-fast
// integrity checks over raw bar sequences and a chronological iterator
// over the validated result. Corrupt or malformed data never reaches the
// engine; there is no partial processing.
package replay

import (
	"math"

	"bar-replay-lab/internal/domain"
)

// ValidateBars checks a bar sequence against the data-integrity invariants,
// in fixed order, and returns a *ValidationError for the first one violated:
//
//  1. no null (zero) timestamps
//  2. no duplicate timestamps
//  3. timestamps monotonic increasing
//  4. no NaN in open/high/low/close
//  5. no negative spread, where a spread is present
//
// Valid input is left untouched; validating it again yields the same
// verdict.
func ValidateBars(bars []domain.Bar) error {
	if n := countNullTimestamps(bars); n > 0 {
		return &ValidationError{Kind: ViolationNullTimestamp, Count: n}
	}

	if n := countDuplicateTimestamps(bars); n > 0 {
		return &ValidationError{Kind: ViolationDuplicateTimestamp, Count: n}
	}

	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			return &ValidationError{Kind: ViolationNonMonotonic, Count: 1}
		}
	}

	if fields, n := nanPriceFields(bars); n > 0 {
		return &ValidationError{Kind: ViolationNaNPrice, Count: n, Fields: fields}
	}

	negSpread := 0
	for _, b := range bars {
		if b.HasSpread && b.Spread < 0 {
			negSpread++
		}
	}
	if negSpread > 0 {
		return &ValidationError{Kind: ViolationNegativeSpread, Count: negSpread}
	}

	return nil
}

func countNullTimestamps(bars []domain.Bar) int {
	n := 0
	for _, b := range bars {
		if b.Timestamp.IsZero() {
			n++
		}
	}
	return n
}

// countDuplicateTimestamps counts occurrences beyond the first of each
// timestamp, so [t1, t1, t1] counts 2.
func countDuplicateTimestamps(bars []domain.Bar) int {
	seen := make(map[int64]struct{}, len(bars))
	dupes := 0
	for _, b := range bars {
		key := b.Timestamp.UnixNano()
		if _, ok := seen[key]; ok {
			dupes++
			continue
		}
		seen[key] = struct{}{}
	}
	return dupes
}

// nanPriceFields returns the OHLC fields containing NaN, in open/high/low/
// close order, and the number of rows with at least one NaN price.
func nanPriceFields(bars []domain.Bar) ([]string, int) {
	var (
		badOpen, badHigh, badLow, badClose bool
		rows                               int
	)
	for _, b := range bars {
		bad := false
		if math.IsNaN(b.Open) {
			badOpen, bad = true, true
		}
		if math.IsNaN(b.High) {
			badHigh, bad = true, true
		}
		if math.IsNaN(b.Low) {
			badLow, bad = true, true
		}
		if math.IsNaN(b.Close) {
			badClose, bad = true, true
		}
		if bad {
			rows++
		}
	}

	var fields []string
	if badOpen {
		fields = append(fields, "open")
	}
	if badHigh {
		fields = append(fields, "high")
	}
	if badLow {
		fields = append(fields, "low")
	}
	if badClose {
		fields = append(fields, "close")
	}
	return fields, rows
}
