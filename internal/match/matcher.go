// Package match pairs columns across two tables and selects join keys.
//
// Scores are heuristics. A pair is a candidate when enough of the left
// column's distinct values occur in the right column; candidates are then
// ranked by the product of their coverage and profile metrics.
package match

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"recon/internal/apperrors"
	"recon/internal/diagnostic"
	"recon/internal/profile"
	"recon/pkg/table"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultThreshold = 0.5
	DefaultWeakScore = 0.25
)

// Options configures SuggestPairs and BestKey.
type Options struct {
	// Threshold is the minimum forward coverage for a pair, in [0, 1].
	// Zero means DefaultThreshold.
	Threshold float64
	// IncludeAllKinds considers every L column, not only object columns.
	IncludeAllKinds bool
	// IncludeAllPairs keeps every retained pair instead of the best per L
	// column.
	IncludeAllPairs bool
	// SymmetricMetrics computes the R-side completeness and uniqueness from
	// the R column. By default both sides are taken from the L column.
	SymmetricMetrics bool
	// WeakScore is the best-pair score under which BestKey reports a weak
	// alignment. Zero means DefaultWeakScore.
	WeakScore float64
	Logger    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.WeakScore == 0 {
		o.WeakScore = DefaultWeakScore
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// PairCandidate is one evaluated L/R column pair.
type PairCandidate struct {
	FieldL        string
	FieldR        string
	CoverageLInR  float64
	CoverageRInL  float64
	CompletenessL float64
	CompletenessR float64
	UniquenessL   float64
	UniquenessR   float64
	Score         float64
}

func (p PairCandidate) score() float64 {
	return p.CoverageLInR * p.CoverageRInL *
		p.CompletenessL * p.CompletenessR *
		p.UniquenessL * p.UniquenessR
}

// Suggestion is the ranked output of SuggestPairs.
type Suggestion struct {
	Pairs       []PairCandidate
	Diagnostics diagnostic.Diagnostics
}

// SuggestPairs scores every eligible (L column, R column) pair.
//
// L columns are restricted to object kind unless IncludeAllKinds is set.
// A pair is kept when the coverage of L in R reaches Threshold. Pairs are
// ranked by Score, descending; without IncludeAllPairs only the best R
// column per L column survives, ranked by score then L column name.
//
// Columns without any non-null value are skipped with an empty_column
// warning since their coverage is undefined.
func SuggestPairs(l, r table.Table, opts Options) (Suggestion, error) {
	opts = opts.withDefaults()
	var out Suggestion

	if opts.Threshold < 0 || opts.Threshold > 1 {
		return out, fmt.Errorf("match: threshold %v outside [0, 1]: %w", opts.Threshold, apperrors.ErrInvalidInput)
	}

	rCols := r.Columns()
	rSets := make([]table.ValueSet, len(rCols))
	rEmpty := make([]bool, len(rCols))
	for j, rc := range rCols {
		rSets[j] = table.NewValueSet(rc)
		rEmpty[j] = len(rSets[j]) == 0
		if rEmpty[j] {
			out.Diagnostics.AddWarning(diagnostic.CodeEmptyColumn, "r."+rc.Name,
				"column has no values; coverage undefined")
		}
	}

	for _, lc := range l.Columns() {
		if !opts.IncludeAllKinds && lc.Kind != table.KindObject {
			continue
		}
		ls := table.NewValueSet(lc)
		if len(ls) == 0 {
			out.Diagnostics.AddWarning(diagnostic.CodeEmptyColumn, "l."+lc.Name,
				"column has no values; coverage undefined")
			continue
		}
		lp := profile.ProfileColumn(lc)

		for j, rc := range rCols {
			if rEmpty[j] {
				continue
			}
			fwd := coverage(ls, rSets[j])
			if fwd < opts.Threshold {
				continue
			}
			p := PairCandidate{
				FieldL:        lc.Name,
				FieldR:        rc.Name,
				CoverageLInR:  fwd,
				CoverageRInL:  coverage(rSets[j], ls),
				CompletenessL: lp.Completeness,
				CompletenessR: lp.Completeness,
				UniquenessL:   lp.Uniqueness,
				UniquenessR:   lp.Uniqueness,
			}
			if opts.SymmetricMetrics {
				p.CompletenessR = profile.Completeness(rc)
				p.UniquenessR = profile.Uniqueness(rc)
			}
			p.Score = p.score()
			out.Pairs = append(out.Pairs, p)

			opts.Logger.Debug("match: pair retained",
				zap.String("field_l", p.FieldL),
				zap.String("field_r", p.FieldR),
				zap.Float64("coverage", p.CoverageLInR),
				zap.Float64("score", p.Score))
		}
	}

	sort.SliceStable(out.Pairs, func(i, j int) bool {
		return out.Pairs[i].Score > out.Pairs[j].Score
	})
	if opts.IncludeAllPairs {
		return out, nil
	}

	seen := make(map[string]bool, len(out.Pairs))
	best := out.Pairs[:0:0]
	for _, p := range out.Pairs {
		if seen[p.FieldL] {
			continue
		}
		seen[p.FieldL] = true
		best = append(best, p)
	}
	sort.SliceStable(best, func(i, j int) bool {
		if best[i].Score != best[j].Score {
			return best[i].Score > best[j].Score
		}
		return best[i].FieldL < best[j].FieldL
	})
	out.Pairs = best
	return out, nil
}

func sortCoverings(cs []Covering) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Coverage > cs[j].Coverage
	})
}
