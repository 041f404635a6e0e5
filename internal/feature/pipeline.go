package feature

import (
	"fmt"
	"math"
	"sort"

	"bar-replay-lab/internal/domain"
)

// Pipeline computes the configured feature columns over a bar sequence.
type Pipeline struct {
	specs []Spec
}

// NewPipeline validates the spec set eagerly: two specs resolving to the
// same column name is a configuration error, not a silent overwrite.
func NewPipeline(specs []Spec) (*Pipeline, error) {
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		name := s.Name()
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate feature column %q", name)
		}
		seen[name] = struct{}{}
	}
	return &Pipeline{specs: specs}, nil
}

// MaxLookback returns the largest total lookback across all specs. Callers
// use it to size the warmup period.
func (p *Pipeline) MaxLookback() int {
	maxLB := 0
	for _, s := range p.specs {
		if lb := s.Lookback(); lb > maxLB {
			maxLB = lb
		}
	}
	return maxLB
}

// Transform computes every spec over bars and assembles the feature matrix:
// one row per bar, one column per spec, columns sorted lexicographically by
// name so the layout is independent of configuration order.
func (p *Pipeline) Transform(bars []domain.Bar) (*Matrix, error) {
	columns := make(map[string][]float64, len(p.specs))
	names := make([]string, 0, len(p.specs))

	for _, s := range p.specs {
		col, err := s.Base.Compute(bars)
		if err != nil {
			return nil, fmt.Errorf("computing %q: %w", s.Name(), err)
		}
		for _, t := range s.Transforms {
			col = t.Apply(col)
		}
		name := s.Name()
		columns[name] = col
		names = append(names, name)
	}

	sort.Strings(names)
	return &Matrix{names: names, columns: columns, rows: len(bars)}, nil
}

// Matrix is a feature matrix aligned 1:1 by position with a bar sequence.
type Matrix struct {
	names   []string
	columns map[string][]float64
	rows    int
}

// NumRows returns the row count (equal to the bar count).
func (m *Matrix) NumRows() int { return m.rows }

// Columns returns the column names in lexicographic order.
func (m *Matrix) Columns() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Column returns the values for one column and whether it exists.
func (m *Matrix) Column(name string) ([]float64, bool) {
	col, ok := m.columns[name]
	return col, ok
}

// Row returns a view of one row for per-bar feature access.
func (m *Matrix) Row(i int) Row {
	return Row{matrix: m, index: i}
}

// Row is a lightweight view of one feature-matrix row.
type Row struct {
	matrix *Matrix
	index  int
}

// Value returns the named feature at this row and whether the column exists.
func (r Row) Value(name string) (float64, bool) {
	if r.matrix == nil {
		return math.NaN(), false
	}
	col, ok := r.matrix.columns[name]
	if !ok || r.index < 0 || r.index >= len(col) {
		return math.NaN(), false
	}
	return col[r.index], true
}
