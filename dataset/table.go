// Package dataset holds the in-memory table that the comparison pipeline
// reads from an uploaded CSV file.
package dataset

import (
	"math"
	"sort"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Numeric columns hold float64 values; missing cells are NaN.
	Numeric Kind = iota
	// Categorical columns hold the raw strings.
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Column is one named column of a Table.
type Column struct {
	Name    string
	Kind    Kind
	Values  []float64 // Numeric only
	Labels  []string  // Categorical only
	Missing []bool
}

// Len returns the number of cells.
func (c *Column) Len() int {
	return len(c.Missing)
}

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	return c.Missing[i]
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// NUnique returns the number of distinct non-missing values.
func (c *Column) NUnique() int {
	if c.Kind == Numeric {
		seen := make(map[float64]struct{})
		for i, v := range c.Values {
			if !c.Missing[i] {
				seen[v] = struct{}{}
			}
		}
		return len(seen)
	}
	return len(c.Levels())
}

// Levels returns the distinct non-missing labels of a categorical column in
// ascending order.
func (c *Column) Levels() []string {
	seen := make(map[string]struct{})
	for i, s := range c.Labels {
		if !c.Missing[i] {
			seen[s] = struct{}{}
		}
	}
	levels := make([]string, 0, len(seen))
	for s := range seen {
		levels = append(levels, s)
	}
	sort.Strings(levels)
	return levels
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	out.Missing = append([]bool(nil), c.Missing...)
	if c.Values != nil {
		out.Values = append([]float64(nil), c.Values...)
	}
	if c.Labels != nil {
		out.Labels = append([]string(nil), c.Labels...)
	}
	return out
}

// NewNumericColumn builds a numeric column; NaN values are marked missing.
func NewNumericColumn(name string, values []float64) *Column {
	missing := make([]bool, len(values))
	for i, v := range values {
		missing[i] = math.IsNaN(v)
	}
	return &Column{Name: name, Kind: Numeric, Values: values, Missing: missing}
}

// NewCategoricalColumn builds a categorical column; empty strings are marked missing.
func NewCategoricalColumn(name string, labels []string) *Column {
	missing := make([]bool, len(labels))
	for i, s := range labels {
		missing[i] = s == ""
	}
	return &Column{Name: name, Kind: Categorical, Labels: labels, Missing: missing}
}

// Table is an ordered set of equally long named columns.
type Table struct {
	Columns []*Column
}

// NewTable builds a table from columns of equal length.
func NewTable(columns ...*Column) *Table {
	return &Table{Columns: columns}
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Clone()
	}
	return &Table{Columns: cols}
}
