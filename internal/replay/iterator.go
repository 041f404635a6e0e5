package replay

import (
	"sort"

	"bar-replay-lab/internal/domain"
)

// BarIterator yields bars in strict chronological order from a validated
// sequence.
//
// Guarantees after construction:
//   - every integrity invariant of ValidateBars holds
//   - bars are sorted ascending by timestamp
//   - timestamps are unique
type BarIterator struct {
	bars []domain.Bar
}

// NewBarIterator validates bars and holds a sorted private copy. Invalid
// input returns the *ValidationError unchanged; nothing is repaired.
func NewBarIterator(bars []domain.Bar) (*BarIterator, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	return &BarIterator{bars: sorted}, nil
}

// Len returns the number of bars.
func (it *BarIterator) Len() int { return len(it.bars) }

// Bars returns a copy of the validated, sorted sequence.
func (it *BarIterator) Bars() []domain.Bar {
	out := make([]domain.Bar, len(it.bars))
	copy(out, it.bars)
	return out
}

// Each calls fn for every (index, bar) in chronological order. A non-nil
// error from fn stops the iteration and is returned.
func (it *BarIterator) Each(fn func(index int, bar domain.Bar) error) error {
	for i, b := range it.bars {
		if err := fn(i, b); err != nil {
			return err
		}
	}
	return nil
}
