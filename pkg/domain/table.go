package domain

import (
	"fmt"
	"sort"
)

// TableType selects how a key between rows is handled.
type TableType string

const (
	// TableLookup returns the row with the largest key not above x.
	TableLookup TableType = "lookup"
	// TableInterpolate interpolates linearly between neighbouring rows and
	// clamps outside the key range.
	TableInterpolate TableType = "interpolate"
)

// Table is a numeric lookup table. Column 0 of Data holds the keys in
// ascending order; tbl[x, col] reads column col.
type Table struct {
	Name    string     `json:"name" yaml:"name"`
	Type    TableType  `json:"type" yaml:"type"`
	Headers []string   `json:"headers,omitempty" yaml:"headers,omitempty"`
	Data    [][]float64 `json:"data" yaml:"data"`
	Notes   string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Lookup implements expr.Table.
func (t *Table) Lookup(key float64, col int) (float64, error) {
	if len(t.Data) == 0 {
		return 0, fmt.Errorf("table %s is empty", t.Name)
	}
	if col < 1 || col >= len(t.Data[0]) {
		return 0, fmt.Errorf("table %s has no column %d", t.Name, col)
	}
	// First row whose key is greater than key.
	i := sort.Search(len(t.Data), func(i int) bool { return t.Data[i][0] > key })

	switch t.Type {
	case TableInterpolate:
		switch {
		case i == 0:
			return t.Data[0][col], nil
		case i == len(t.Data):
			return t.Data[i-1][col], nil
		}
		lo, hi := t.Data[i-1], t.Data[i]
		if lo[0] == key {
			return lo[col], nil
		}
		w := (key - lo[0]) / (hi[0] - lo[0])
		return lo[col] + w*(hi[col]-lo[col]), nil
	default:
		if i == 0 {
			return 0, fmt.Errorf("table %s: key %g is below the first row", t.Name, key)
		}
		return t.Data[i-1][col], nil
	}
}

// Validate checks that rows are rectangular and keys ascend.
func (t *Table) Validate() error {
	for i, row := range t.Data {
		if len(row) < 2 {
			return fmt.Errorf("table %s row %d: need a key and at least one value", t.Name, i)
		}
		if len(row) != len(t.Data[0]) {
			return fmt.Errorf("table %s row %d: expected %d columns, got %d", t.Name, i, len(t.Data[0]), len(row))
		}
		if i > 0 && row[0] <= t.Data[i-1][0] {
			return fmt.Errorf("table %s row %d: keys must ascend", t.Name, i)
		}
	}
	return nil
}
