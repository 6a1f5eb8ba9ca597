package table

import (
	"fmt"

	"recon/internal/apperrors"
)

// JoinPair is one output row of an outer join: the key and the row index on
// each side, with -1 marking a missing side.
type JoinPair struct {
	Key   string
	Left  int
	Right int
}

// OuterJoin aligns two key sequences.
//
// Every left row is emitted once per matching right row (the cartesian
// product for duplicated keys), followed by the unmatched right rows in
// their original order. Keys are compared as plain strings.
func OuterJoin(left, right []string) []JoinPair {
	byKey := make(map[string][]int, len(right))
	for i, k := range right {
		byKey[k] = append(byKey[k], i)
	}

	out := make([]JoinPair, 0, len(left)+len(right))
	matched := make([]bool, len(right))
	for i, k := range left {
		rs := byKey[k]
		if len(rs) == 0 {
			out = append(out, JoinPair{Key: k, Left: i, Right: -1})
			continue
		}
		for _, j := range rs {
			matched[j] = true
			out = append(out, JoinPair{Key: k, Left: i, Right: j})
		}
	}
	for j, k := range right {
		if !matched[j] {
			out = append(out, JoinPair{Key: k, Left: -1, Right: j})
		}
	}
	return out
}

// Duplicates returns the keys that occur more than once, in first-seen order.
func Duplicates(keys []string) []string {
	seen := make(map[string]int, len(keys))
	var out []string
	for _, k := range keys {
		seen[k]++
		if seen[k] == 2 {
			out = append(out, k)
		}
	}
	return out
}

// Mash returns the rows of t that are non-null on every field and, unless
// keepZeros is set, non-zero on numeric values of those fields.
func Mash(t Table, fields []string, keepZeros bool) (Table, error) {
	cols := make([]Column, 0, len(fields))
	for _, f := range fields {
		c, ok := t.Column(f)
		if !ok {
			return Table{}, fmt.Errorf("mash: %q is not in table: %w", f, apperrors.ErrInvalidInput)
		}
		cols = append(cols, c)
	}

	rows := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		keep := true
		for _, c := range cols {
			v := c.Values[i]
			if IsNull(v) {
				keep = false
				break
			}
			if !keepZeros {
				if f, ok := ToFloat(v); ok && f == 0 {
					keep = false
					break
				}
			}
		}
		if keep {
			rows = append(rows, i)
		}
	}
	return t.Take(rows), nil
}
