package reconcile

import (
	"fmt"

	"recon/internal/diagnostic"
	"recon/internal/match"
	"recon/pkg/table"
)

// Report column names.
const (
	ColumnKey           = "key"
	ColumnPresence      = "presence"
	ColumnMatchFraction = "match_fraction"
)

// Pair describes one compared field pair.
type Pair struct {
	FieldL string
	FieldR string
	// LabelL and LabelR are the report column names; equal field names get
	// "_l" and "_r" suffixes.
	LabelL string
	LabelR string
	// Numeric is true when both columns are numeric.
	Numeric bool
	// Err is set when the pair could not be compared at all.
	Err error
	// DiffErr records the first failure computing a diff or ratio.
	DiffErr error
}

func (p Pair) name() string { return p.LabelL + " vs " + p.LabelR }

func derivedNames(l, r string) []string {
	return []string{l + " vs " + r, l + " - " + r, l + " / " + r}
}

// assignLabels gives every pair report column names that are unique across
// the report. Equal field names get "_l" and "_r"; a name already taken by
// a fixed column or an earlier pair gets the side suffix, then "_2", "_3"...
func assignLabels(pairs []Pair) {
	used := map[string]bool{ColumnKey: true, ColumnPresence: true, ColumnMatchFraction: true}
	free := func(names ...string) bool {
		for _, n := range names {
			if used[n] {
				return false
			}
		}
		return true
	}
	claim := func(base, side string, ok func(string) bool) string {
		for n := 0; ; n++ {
			name := base
			switch {
			case n == 1:
				name = base + side
			case n > 1:
				name = fmt.Sprintf("%s%s_%d", base, side, n)
			}
			if !used[name] && ok(name) {
				used[name] = true
				return name
			}
		}
	}

	for i := range pairs {
		p := &pairs[i]
		l, r := p.FieldL, p.FieldR
		if l == r {
			l, r = l+"_l", r+"_r"
		}
		p.LabelL = claim(l, "_l", func(string) bool { return true })
		p.LabelR = claim(r, "_r", func(c string) bool {
			return c != p.LabelL && free(derivedNames(p.LabelL, c)...)
		})
		for _, n := range derivedNames(p.LabelL, p.LabelR) {
			used[n] = true
		}
	}
}

// Cell is one compared field pair on one row.
type Cell struct {
	Left  any
	Right any
	// Compared is false when the pair is unsupported.
	Compared bool
	Match    bool
	Diff     any
	Ratio    any
}

// Row is one join key value.
type Row struct {
	Key           string
	Presence      Presence
	Cells         []Cell
	MatchFraction float64
}

// Break reports whether any compared pair failed to match.
func (r Row) Break() bool { return r.MatchFraction != 1 }

// Summary aggregates a report before any breaks filter.
type Summary struct {
	Rows              int
	Both              int
	LeftOnly          int
	RightOnly         int
	Breaks            int
	MeanMatchFraction float64
}

func summarize(rows []Row) Summary {
	s := Summary{Rows: len(rows)}
	total := 0.0
	for _, r := range rows {
		switch r.Presence {
		case PresenceBoth:
			s.Both++
		case PresenceLeftOnly:
			s.LeftOnly++
		case PresenceRightOnly:
			s.RightOnly++
		}
		if r.Break() {
			s.Breaks++
		}
		total += r.MatchFraction
	}
	if len(rows) > 0 {
		s.MeanMatchFraction = total / float64(len(rows))
	}
	return s
}

// Report is the result of a reconciliation.
type Report struct {
	Pairs   []Pair
	Rows    []Row
	Summary Summary
	// Plan is the key selected by Reconcile; nil for Differ.
	Plan        *match.KeyPlan
	Diagnostics diagnostic.Diagnostics

	showDiff  bool
	showRatio bool
	omitData  bool
}

// Table materializes the report as key, presence, the aligned values of
// every pair, one "<l> vs <r>" match column per pair, optional "<l> - <r>"
// and "<l> / <r>" columns, and match_fraction.
//
// Unsupported pairs have a null match column.
func (rep Report) Table() (table.Table, error) {
	n := len(rep.Rows)
	keys := make([]any, n)
	presence := make([]any, n)
	fractions := make([]any, n)
	for i, r := range rep.Rows {
		keys[i] = r.Key
		presence[i] = string(r.Presence)
		fractions[i] = r.MatchFraction
	}

	cols := []table.Column{
		table.NewTypedColumn(ColumnKey, table.KindObject, keys),
		table.NewTypedColumn(ColumnPresence, table.KindObject, presence),
	}

	if !rep.omitData {
		for pi, p := range rep.Pairs {
			left := make([]any, n)
			right := make([]any, n)
			for i, r := range rep.Rows {
				left[i], right[i] = r.Cells[pi].Left, r.Cells[pi].Right
			}
			cols = append(cols, table.NewColumn(p.LabelL, left), table.NewColumn(p.LabelR, right))
		}
	}

	for pi, p := range rep.Pairs {
		flags := make([]any, n)
		for i, r := range rep.Rows {
			if c := r.Cells[pi]; c.Compared {
				flags[i] = c.Match
			}
		}
		cols = append(cols, table.NewTypedColumn(p.name(), table.KindBoolean, flags))
	}

	for pi, p := range rep.Pairs {
		if !p.Numeric {
			continue
		}
		if rep.showDiff {
			vals := make([]any, n)
			for i, r := range rep.Rows {
				vals[i] = r.Cells[pi].Diff
			}
			cols = append(cols, table.NewTypedColumn(p.LabelL+" - "+p.LabelR, table.KindNumeric, vals))
		}
		if rep.showRatio {
			vals := make([]any, n)
			for i, r := range rep.Rows {
				vals[i] = r.Cells[pi].Ratio
			}
			cols = append(cols, table.NewTypedColumn(p.LabelL+" / "+p.LabelR, table.KindNumeric, vals))
		}
	}

	cols = append(cols, table.NewTypedColumn(ColumnMatchFraction, table.KindNumeric, fractions))

	t, err := table.New(cols...)
	if err != nil {
		return table.Table{}, fmt.Errorf("reconcile: materialize report: %w", err)
	}
	return t, nil
}
