// Package keysearch finds column combinations that identify rows uniquely.
//
// Search is exponential in the number of candidates. It warns above a
// configurable column count but never caps the enumeration.
package keysearch

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"recon/internal/apperrors"
	"recon/internal/compositekey"
	"recon/internal/diagnostic"
	"recon/internal/profile"
	"recon/pkg/table"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultThreshold       = 1.0
	DefaultMaxMemberLength = 30
	DefaultWarnColumns     = 10
)

// Options configures Search.
type Options struct {
	// Threshold is the uniqueness a subset must reach, in (0, 1].
	Threshold float64
	// MaxMemberLength drops candidates whose longest value is longer.
	MaxMemberLength int
	// Exhaustive scores every subset instead of stopping at the first hit.
	Exhaustive bool
	// WarnColumns is the candidate count above which a warning is emitted.
	WarnColumns int
	Logger      *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MaxMemberLength == 0 {
		o.MaxMemberLength = DefaultMaxMemberLength
	}
	if o.WarnColumns == 0 {
		o.WarnColumns = DefaultWarnColumns
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Scored is one evaluated subset.
type Scored struct {
	Fields     []string
	Uniqueness float64
}

// Result is the outcome of a search.
type Result struct {
	// Fields is the first subset that met the threshold. Empty in
	// exhaustive mode and when nothing qualified.
	Fields     []string
	Uniqueness float64
	// All holds every subset with its score, best first. Exhaustive only.
	All         []Scored
	Diagnostics diagnostic.Diagnostics
}

// Search enumerates subsets of candidates, smallest first, and scores the
// uniqueness of the composite key each one builds.
//
// Errors:
//   - apperrors.ErrInvalidInput for an empty candidate list, an unknown
//     column or a threshold outside (0, 1].
//   - apperrors.ErrNoKeyFound when no subset reaches the threshold in
//     non-exhaustive mode. The returned Result still carries diagnostics.
func Search(t table.Table, candidates []string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	var res Result

	if len(candidates) == 0 {
		return res, fmt.Errorf("keysearch: empty candidate list: %w", apperrors.ErrInvalidInput)
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return res, fmt.Errorf("keysearch: threshold %v outside (0, 1]: %w", opts.Threshold, apperrors.ErrInvalidInput)
	}

	fields := make([]string, 0, len(candidates))
	for _, name := range candidates {
		col, err := t.MustColumn(name)
		if err != nil {
			return res, fmt.Errorf("keysearch: %w", err)
		}
		if profile.LongestLength(col) > float64(opts.MaxMemberLength) {
			opts.Logger.Debug("keysearch: skipping long candidate",
				zap.String("field", name),
				zap.Int("max_member_length", opts.MaxMemberLength))
			continue
		}
		fields = append(fields, name)
	}

	if len(fields) > opts.WarnColumns {
		res.Diagnostics.AddWarning(diagnostic.CodeLargeCandidateSet, "",
			"%d candidate columns; evaluating %d subsets", len(fields), (1<<len(fields))-1)
		opts.Logger.Warn("keysearch: large candidate set",
			zap.Int("columns", len(fields)),
			zap.Int("warn_columns", opts.WarnColumns))
	}

	best := -1.0
	var bestFields []string
	for _, subset := range Combinations(fields) {
		u, err := subsetUniqueness(t, subset)
		if err != nil {
			return res, err
		}
		if u > best {
			best, bestFields = u, subset
		}
		if opts.Exhaustive {
			res.All = append(res.All, Scored{Fields: subset, Uniqueness: u})
			continue
		}
		if u >= opts.Threshold {
			opts.Logger.Debug("keysearch: key found",
				zap.String("fields", strings.Join(subset, ",")),
				zap.Float64("uniqueness", u))
			res.Fields = subset
			res.Uniqueness = u
			return res, nil
		}
	}

	if opts.Exhaustive {
		sort.SliceStable(res.All, func(i, j int) bool {
			return res.All[i].Uniqueness > res.All[j].Uniqueness
		})
		return res, nil
	}

	if best < 0 {
		res.Diagnostics.AddWarning(diagnostic.CodeNoKeyFound, "",
			"no candidate within max member length %d", opts.MaxMemberLength)
	} else {
		res.Diagnostics.AddWarning(diagnostic.CodeNoKeyFound, strings.Join(bestFields, ","),
			"does not meet threshold of %v, best found was %v", opts.Threshold, best)
		res.Uniqueness = best
	}
	return res, fmt.Errorf("keysearch: threshold %v: %w", opts.Threshold, apperrors.ErrNoKeyFound)
}

func subsetUniqueness(t table.Table, fields []string) (float64, error) {
	keys, err := compositekey.Keys(t, fields, compositekey.Options{})
	if err != nil {
		return 0, fmt.Errorf("keysearch: %w", err)
	}
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = k
	}
	return profile.Uniqueness(table.NewTypedColumn("key", table.KindObject, values)), nil
}
