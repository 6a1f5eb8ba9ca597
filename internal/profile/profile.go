// Package profile scores columns for identifier quality.
//
// All functions are pure: they read the column they are handed and return
// derived numbers. Profiles are recomputed on every call and never cached;
// the source table is the sole owner of truth.
package profile

import (
	"sort"
	"unicode/utf8"

	"recon/pkg/table"
)

// Profile is the derived quality record of one column.
type Profile struct {
	Name          string
	Kind          table.Kind
	Completeness  float64
	Uniqueness    float64
	LongestLength float64
}

// Completeness returns the fraction of non-null entries. An empty or
// all-null column scores 0.
func Completeness(col table.Column) float64 {
	if col.Len() == 0 {
		return 0
	}
	return float64(nonNullCount(col)) / float64(col.Len())
}

// Uniqueness returns distinct non-null values divided by non-null values.
// An empty or all-null column scores 0; 1.0 means the column alone is a
// valid identifier.
//
// Numeric columns compare values numerically (1 == 1.0); other kinds
// compare the string form of each value, so a generic column holding 1 and
// "1" counts one distinct value.
func Uniqueness(col table.Column) float64 {
	n := nonNullCount(col)
	if n == 0 {
		return 0
	}
	return float64(DistinctCount(col)) / float64(n)
}

// DistinctCount returns the number of distinct non-null values in col,
// using the same equality as Uniqueness.
func DistinctCount(col table.Column) int {
	seen := make(map[string]struct{}, col.Len())
	for _, v := range col.Values {
		if table.IsNull(v) {
			continue
		}
		seen[distinctKey(col.Kind, v)] = struct{}{}
	}
	return len(seen)
}

// LongestLength returns the maximum rune length of the string form of any
// non-null value, or 0 when there is none.
func LongestLength(col table.Column) float64 {
	longest := 0
	for _, v := range col.Values {
		if table.IsNull(v) {
			continue
		}
		if n := utf8.RuneCountInString(table.FormatValue(v)); n > longest {
			longest = n
		}
	}
	return float64(longest)
}

// ProfileColumn computes the full profile of one column.
func ProfileColumn(col table.Column) Profile {
	return Profile{
		Name:          col.Name,
		Kind:          col.Kind,
		Completeness:  Completeness(col),
		Uniqueness:    Uniqueness(col),
		LongestLength: LongestLength(col),
	}
}

// ProfileTable profiles every column of t, in table order.
func ProfileTable(t table.Table) []Profile {
	cols := t.Columns()
	out := make([]Profile, 0, len(cols))
	for _, c := range cols {
		out = append(out, ProfileColumn(c))
	}
	return out
}

// Keyable reports whether columns of kind k take part in identifier ranking.
// Generic columns and temporal columns qualify; numeric and boolean columns
// are reported separately as non-object fields.
func Keyable(k table.Kind) bool {
	return k == table.KindObject || k == table.KindTemporal
}

// SortedFields groups the columns of a table for key selection.
type SortedFields struct {
	// MostComplete lists keyable fields by completeness desc, then longest
	// length asc.
	MostComplete []string
	// MostUnique lists keyable fields by uniqueness desc, completeness desc,
	// then longest length asc.
	MostUnique []string
	// NonObject lists the remaining fields in table order.
	NonObject []string
}

// SortFields ranks the columns of t for identifier selection.
func SortFields(t table.Table) SortedFields {
	var keyable []Profile
	out := SortedFields{
		MostComplete: []string{},
		MostUnique:   []string{},
		NonObject:    []string{},
	}
	for _, p := range ProfileTable(t) {
		if Keyable(p.Kind) {
			keyable = append(keyable, p)
			continue
		}
		out.NonObject = append(out.NonObject, p.Name)
	}

	byComplete := append([]Profile(nil), keyable...)
	sort.SliceStable(byComplete, func(i, j int) bool {
		a, b := byComplete[i], byComplete[j]
		if a.Completeness != b.Completeness {
			return a.Completeness > b.Completeness
		}
		return a.LongestLength < b.LongestLength
	})
	for _, p := range byComplete {
		out.MostComplete = append(out.MostComplete, p.Name)
	}

	byUnique := append([]Profile(nil), keyable...)
	sort.SliceStable(byUnique, func(i, j int) bool {
		a, b := byUnique[i], byUnique[j]
		if a.Uniqueness != b.Uniqueness {
			return a.Uniqueness > b.Uniqueness
		}
		if a.Completeness != b.Completeness {
			return a.Completeness > b.Completeness
		}
		return a.LongestLength < b.LongestLength
	})
	for _, p := range byUnique {
		out.MostUnique = append(out.MostUnique, p.Name)
	}

	return out
}

func nonNullCount(col table.Column) int {
	n := 0
	for _, v := range col.Values {
		if !table.IsNull(v) {
			n++
		}
	}
	return n
}

func distinctKey(kind table.Kind, v any) string {
	if kind == table.KindNumeric {
		return table.ValueKey(v)
	}
	return table.FormatValue(v)
}
