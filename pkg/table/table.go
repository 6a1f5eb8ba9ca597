// Package table provides the in-memory table abstraction consumed by the
// matching and reconciliation pipeline.
//
// A Table is an ordered set of named, typed, nullable columns whose rows are
// positionally aligned. Tables are values: every method that "changes" a
// table returns a new Table and leaves the receiver untouched, so the same
// source table can be shared by independent pipelines.
//
// Nulls are represented as nil. A float NaN is also treated as null, which
// keeps numeric columns loaded from sparse sources consistent with the
// completeness and uniqueness metrics.
package table

import (
	"fmt"

	"recon/internal/apperrors"
)

// Kind classifies the values held by a column. It drives which metrics and
// comparisons apply downstream.
type Kind int

const (
	// KindObject is the generic, string-like kind (mixed or textual values).
	KindObject Kind = iota
	// KindNumeric holds integers and floats.
	KindNumeric
	// KindBoolean holds bool values.
	KindBoolean
	// KindTemporal holds time.Time values.
	KindTemporal
)

// String returns the kind label used in reports.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindTemporal:
		return "temporal"
	default:
		return "unknown"
	}
}

// Column is a named sequence of nullable scalar values of one kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewColumn builds a column and infers its kind from the Go types of the
// non-null values. See KindOf.
func NewColumn(name string, values []any) Column {
	return Column{Name: name, Kind: KindOf(values), Values: values}
}

// NewTypedColumn builds a column with an explicit kind.
func NewTypedColumn(name string, kind Kind, values []any) Column {
	return Column{Name: name, Kind: kind, Values: values}
}

// Len returns the number of rows in the column.
func (c Column) Len() int { return len(c.Values) }

// Clone returns a deep copy of the value slice.
func (c Column) Clone() Column {
	return Column{Name: c.Name, Kind: c.Kind, Values: append([]any(nil), c.Values...)}
}

// Table is an ordered set of equally long columns.
type Table struct {
	cols  []Column
	index map[string]int
}

// New builds a table from columns.
//
// Errors:
//   - apperrors.ErrInvalidInput when two columns share a name, a name is
//     empty, or column lengths differ.
func New(cols ...Column) (Table, error) {
	t := Table{
		cols:  make([]Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	rows := -1
	for _, c := range cols {
		if c.Name == "" {
			return Table{}, fmt.Errorf("table: empty column name: %w", apperrors.ErrInvalidInput)
		}
		if _, dup := t.index[c.Name]; dup {
			return Table{}, fmt.Errorf("table: duplicate column %q: %w", c.Name, apperrors.ErrInvalidInput)
		}
		if rows >= 0 && c.Len() != rows {
			return Table{}, fmt.Errorf("table: column %q has %d rows, want %d: %w", c.Name, c.Len(), rows, apperrors.ErrInvalidInput)
		}
		rows = c.Len()
		t.index[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(cols ...Column) Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count (0 for a table without columns).
func (t Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumColumns returns the column count.
func (t Table) NumColumns() int { return len(t.cols) }

// Empty reports whether the table has no columns or no rows.
func (t Table) Empty() bool { return len(t.cols) == 0 || t.NumRows() == 0 }

// Names returns the column names in table order.
func (t Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns a shallow copy of the column list.
func (t Table) Columns() []Column {
	return append([]Column(nil), t.cols...)
}

// Has reports whether a column exists.
func (t Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// MustColumn returns the named column or an ErrInvalidInput error.
func (t Table) MustColumn(name string) (Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return Column{}, fmt.Errorf("table: column %q not found: %w", name, apperrors.ErrInvalidInput)
	}
	return c, nil
}

// Row returns the values of row i in column order.
func (t Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Values[i]
	}
	return out
}

// Select returns a table restricted to the named columns, in the given order.
func (t Table) Select(names ...string) (Table, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, err := t.MustColumn(n)
		if err != nil {
			return Table{}, err
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// WithColumn returns a copy of t with col appended, or replacing an existing
// column of the same name in place.
func (t Table) WithColumn(col Column) (Table, error) {
	cols := t.Columns()
	if i, ok := t.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Clone()
	}
	out, _ := New(cols...)
	return out
}

// Take returns a table holding the given rows (by index) in the given order.
func (t Table) Take(rows []int) Table {
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		vals := make([]any, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		cols[i] = Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	out, _ := New(cols...)
	return out
}
