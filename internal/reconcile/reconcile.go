// Package reconcile aligns two tables on a join key and compares their
// fields under a tolerance policy.
//
// Reconcile selects the key itself (see package match); Differ takes key
// columns that already exist on both tables. Neither mutates its inputs.
package reconcile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"recon/internal/apperrors"
	"recon/internal/compositekey"
	"recon/internal/diagnostic"
	"recon/internal/label"
	"recon/internal/match"
	"recon/internal/metrics"
	"recon/pkg/table"
)

// Presence tells which side a report row was found on.
type Presence string

const (
	PresenceBoth      Presence = "both"
	PresenceLeftOnly  Presence = "left_only"
	PresenceRightOnly Presence = "right_only"
)

func (p Presence) rank() int {
	switch p {
	case PresenceBoth:
		return 0
	case PresenceLeftOnly:
		return 1
	default:
		return 2
	}
}

// Options configures Reconcile and Differ.
type Options struct {
	// FieldsL and FieldsR name the columns to compare, pairwise.
	FieldsL []string
	FieldsR []string
	// TolPct and TolAbs form the numeric tolerance |l-r| <= TolAbs + TolPct*|r|.
	TolPct float64
	TolAbs float64
	// ShowDiff and ShowRatio add l-r and l/r per numeric pair.
	ShowDiff  bool
	ShowRatio bool
	// BreaksOnly keeps only rows whose match fraction is not 1.
	BreaksOnly bool
	// OmitData drops the aligned value columns from Report.Table.
	OmitData bool
	// Match configures key selection in Reconcile.
	Match   match.Options
	Logger  *zap.Logger
	Metrics metrics.Backend
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Match.Logger == nil {
		o.Match.Logger = o.Logger
	}
	o.Metrics = metrics.OrNop(o.Metrics)
	return o
}

// Reconcile selects a join key between l and r, builds composite keys on
// both and compares the requested fields.
//
// Errors:
//   - apperrors.ErrInvalidInput for empty tables, empty or mismatched field
//     lists, unknown columns, or negative tolerances.
//   - apperrors.ErrNoKeyFound when no key could be selected. The returned
//     report holds the key selection diagnostics and no rows.
func Reconcile(l, r table.Table, opts Options) (Report, error) {
	opts = opts.withDefaults()
	if err := validate(l, r, opts); err != nil {
		return Report{}, err
	}

	start := time.Now()
	plan, err := match.BestKey(l, r, opts.Match)
	metrics.ObserveStage(opts.Metrics, "best_key", start)
	if err != nil {
		rep := Report{Diagnostics: plan.Diagnostics}
		rep.Diagnostics.Log(opts.Logger)
		if errors.Is(err, apperrors.ErrNoKeyFound) {
			return rep, fmt.Errorf("reconcile: %w", err)
		}
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}

	keysL, err := compositekey.Keys(l, plan.FieldsL, compositekey.Options{})
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: key left: %w", err)
	}
	keysR, err := compositekey.Keys(r, plan.FieldsR, compositekey.Options{})
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: key right: %w", err)
	}
	opts.Logger.Info("reconcile: key selected",
		zap.Strings("fields_l", plan.FieldsL),
		zap.Strings("fields_r", plan.FieldsR))

	rep := differ(l, r, keysL, keysR, opts)
	rep.Plan = &plan
	rep.Diagnostics.Merge(plan.Diagnostics)
	rep.Diagnostics.Log(opts.Logger)
	return rep, nil
}

// Differ compares l and r aligned on existing key columns keyL and keyR.
// Key values are matched by their canonical string form.
func Differ(l, r table.Table, keyL, keyR string, opts Options) (Report, error) {
	opts = opts.withDefaults()
	if err := validate(l, r, opts); err != nil {
		return Report{}, err
	}
	kl, err := l.MustColumn(keyL)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: key: %w", err)
	}
	kr, err := r.MustColumn(keyR)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: key: %w", err)
	}

	rep := differ(l, r, keyStrings(kl), keyStrings(kr), opts)
	rep.Diagnostics.Log(opts.Logger)
	return rep, nil
}

func keyStrings(c table.Column) []string {
	out := make([]string, c.Len())
	for i, v := range c.Values {
		out[i] = table.FormatValue(v)
	}
	return out
}

func validate(l, r table.Table, opts Options) error {
	if l.Empty() || r.Empty() {
		return fmt.Errorf("reconcile: empty table: %w", apperrors.ErrInvalidInput)
	}
	if len(opts.FieldsL) == 0 || len(opts.FieldsL) != len(opts.FieldsR) {
		return fmt.Errorf("reconcile: field lists of length %d and %d: %w",
			len(opts.FieldsL), len(opts.FieldsR), apperrors.ErrInvalidInput)
	}
	if opts.TolAbs < 0 || opts.TolPct < 0 {
		return fmt.Errorf("reconcile: negative tolerance: %w", apperrors.ErrInvalidInput)
	}
	if !finite(opts.TolAbs) || !finite(opts.TolPct) {
		return fmt.Errorf("reconcile: non-finite tolerance: %w", apperrors.ErrInvalidInput)
	}
	for i := range opts.FieldsL {
		if !l.Has(opts.FieldsL[i]) {
			return fmt.Errorf("reconcile: left column %q not found: %w", opts.FieldsL[i], apperrors.ErrInvalidInput)
		}
		if !r.Has(opts.FieldsR[i]) {
			return fmt.Errorf("reconcile: right column %q not found: %w", opts.FieldsR[i], apperrors.ErrInvalidInput)
		}
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// differ joins on precomputed keys and fills the report.
func differ(l, r table.Table, keysL, keysR []string, opts Options) Report {
	rep := Report{
		showDiff:  opts.ShowDiff,
		showRatio: opts.ShowRatio,
		omitData:  opts.OmitData,
	}
	duplicateKeys(&rep.Diagnostics, "left", keysL)
	duplicateKeys(&rep.Diagnostics, "right", keysR)

	start := time.Now()
	joined := table.OuterJoin(keysL, keysR)
	metrics.ObserveStage(opts.Metrics, "join", start)

	start = time.Now()
	rep.Pairs = make([]Pair, len(opts.FieldsL))
	for i := range opts.FieldsL {
		rep.Pairs[i] = Pair{FieldL: opts.FieldsL[i], FieldR: opts.FieldsR[i]}
	}
	assignLabels(rep.Pairs)

	comparators := make([]comparator, len(opts.FieldsL))
	colsL := make([]table.Column, len(opts.FieldsL))
	colsR := make([]table.Column, len(opts.FieldsL))
	for i := range opts.FieldsL {
		colsL[i], _ = l.Column(opts.FieldsL[i])
		colsR[i], _ = r.Column(opts.FieldsR[i])

		p := &rep.Pairs[i]
		p.Numeric = colsL[i].Kind == table.KindNumeric && colsR[i].Kind == table.KindNumeric

		c, err := comparatorFor(colsL[i], colsR[i], opts)
		if err != nil {
			p.Err = err
			rep.Diagnostics.AddWarning(diagnostic.CodeComparisonUnsupported, p.name(), "%s", err.Error())
			opts.Metrics.IncCounter(metrics.PairsUnsupportedTotal, 1, nil)
		}
		comparators[i] = c
	}

	rows := make([]Row, 0, len(joined))
	for _, j := range joined {
		row := Row{Key: j.Key, Presence: presenceOf(j), Cells: make([]Cell, len(rep.Pairs))}
		compared, matched := 0, 0
		for i := range rep.Pairs {
			var cell Cell
			if j.Left >= 0 {
				cell.Left = colsL[i].Values[j.Left]
			}
			if j.Right >= 0 {
				cell.Right = colsR[i].Values[j.Right]
			}
			if comparators[i] != nil {
				cell.Compared = true
				cell.Match = row.Presence == PresenceBoth && compareCell(comparators[i], cell.Left, cell.Right)
				compared++
				if cell.Match {
					matched++
				}
			}
			if opts.ShowDiff || opts.ShowRatio {
				fillArithmetic(&rep.Pairs[i], &cell, opts)
			}
			row.Cells[i] = cell
		}
		if compared > 0 {
			row.MatchFraction = float64(matched) / float64(compared)
		}
		rows = append(rows, row)
	}
	for i := range rep.Pairs {
		if p := rep.Pairs[i]; p.DiffErr != nil {
			rep.Diagnostics.AddWarning(diagnostic.CodeDiffUnsupported, p.name(), "%s", p.DiffErr.Error())
		}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a].Presence.rank(), rows[b].Presence.rank()
		if ra != rb {
			return ra < rb
		}
		return rows[a].Key < rows[b].Key
	})
	metrics.ObserveStage(opts.Metrics, "compare", start)

	rep.Summary = summarize(rows)
	record(opts.Metrics, rep.Summary, rows)
	if opts.BreaksOnly {
		kept := rows[:0]
		for _, row := range rows {
			if row.Break() {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	rep.Rows = rows

	opts.Logger.Debug("reconcile: compared",
		zap.Int("rows", rep.Summary.Rows),
		zap.Int("breaks", rep.Summary.Breaks),
		zap.Float64("mean_match_fraction", rep.Summary.MeanMatchFraction))
	return rep
}

func presenceOf(j table.JoinPair) Presence {
	switch {
	case j.Left >= 0 && j.Right >= 0:
		return PresenceBoth
	case j.Left >= 0:
		return PresenceLeftOnly
	default:
		return PresenceRightOnly
	}
}

// fillArithmetic computes diff and ratio for numeric pairs and records the
// first failure on the pair.
func fillArithmetic(p *Pair, cell *Cell, opts Options) {
	if !p.Numeric {
		if p.DiffErr == nil {
			p.DiffErr = fmt.Errorf("%s is not numeric on both sides: %w", p.name(), apperrors.ErrComparisonUnsupported)
		}
		return
	}
	if opts.ShowDiff {
		v, err := diff(cell.Left, cell.Right)
		if err != nil && p.DiffErr == nil {
			p.DiffErr = fmt.Errorf("%s: %w", p.name(), err)
		}
		cell.Diff = v
	}
	if opts.ShowRatio {
		v, err := ratio(cell.Left, cell.Right)
		if err != nil && p.DiffErr == nil {
			p.DiffErr = fmt.Errorf("%s: %w", p.name(), err)
		}
		cell.Ratio = v
	}
}

func duplicateKeys(d *diagnostic.Diagnostics, side string, keys []string) {
	dups := table.Duplicates(keys)
	if len(dups) == 0 {
		return
	}
	nullToken := strings.ToUpper(label.NullToken)
	for _, k := range dups {
		for _, part := range strings.Split(k, "_") {
			if part == nullToken {
				d.AddWarning(diagnostic.CodeNullKeyCollision, side,
					"key %q repeats and contains a null component", k)
				break
			}
		}
	}
	d.AddWarning(diagnostic.CodeDuplicateKey, side,
		"%d key values repeat; rows are joined pairwise", len(dups))
}

func record(b metrics.Backend, s Summary, rows []Row) {
	b.IncCounter(metrics.RowsTotal, float64(s.Both), metrics.Labels{"presence": string(PresenceBoth)})
	b.IncCounter(metrics.RowsTotal, float64(s.LeftOnly), metrics.Labels{"presence": string(PresenceLeftOnly)})
	b.IncCounter(metrics.RowsTotal, float64(s.RightOnly), metrics.Labels{"presence": string(PresenceRightOnly)})
	b.IncCounter(metrics.BreaksTotal, float64(s.Breaks), nil)
	for _, row := range rows {
		b.ObserveHistogram(metrics.MatchFraction, row.MatchFraction, metrics.Labels{"presence": string(row.Presence)})
	}
}
