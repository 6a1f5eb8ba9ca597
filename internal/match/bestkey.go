package match

import (
	"fmt"

	"go.uber.org/zap"

	"recon/internal/apperrors"
	"recon/internal/compositekey"
	"recon/internal/diagnostic"
	"recon/internal/profile"
	"recon/pkg/table"
)

// RankedPair is a suggested pair together with the uniqueness of the key
// built from it and every better-ranked pair.
type RankedPair struct {
	PairCandidate
	CumUniquenessL float64
	CumUniquenessR float64
	IncrementL     float64
	IncrementR     float64
}

// KeyPlan is the join key chosen by BestKey.
type KeyPlan struct {
	Pairs       []RankedPair
	FieldsL     []string
	FieldsR     []string
	Diagnostics diagnostic.Diagnostics
}

// CumulativeUniqueness returns, for i in [0, len(fields)), the uniqueness
// of the composite key built from fields[:i+1]. Fields absent from t are
// ignored.
func CumulativeUniqueness(t table.Table, fields []string) ([]float64, error) {
	present := make([]string, 0, len(fields))
	for _, f := range fields {
		if t.Has(f) {
			present = append(present, f)
		}
	}
	out := make([]float64, 0, len(present))
	for i := range present {
		keys, err := compositekey.Keys(t, present[:i+1], compositekey.Options{})
		if err != nil {
			return nil, fmt.Errorf("match: cumulative uniqueness: %w", err)
		}
		values := make([]any, len(keys))
		for j, k := range keys {
			values[j] = k
		}
		out = append(out, profile.Uniqueness(table.NewTypedColumn("key", table.KindObject, values)))
	}
	return out, nil
}

// BestKey ranks column pairs between l and r and prunes the ones that add
// nothing to the uniqueness of the composite key on either side.
//
// The first ranked pair is always kept. A later pair is dropped only when
// its increment is exactly zero on both sides.
//
// Errors:
//   - apperrors.ErrInvalidInput from SuggestPairs.
//   - apperrors.ErrNoKeyFound when no pair qualifies. The plan still
//     carries a no_key_found diagnostic.
func BestKey(l, r table.Table, opts Options) (KeyPlan, error) {
	opts = opts.withDefaults()
	var plan KeyPlan

	sug, err := SuggestPairs(l, r, opts)
	plan.Diagnostics.Merge(sug.Diagnostics)
	if err != nil {
		return plan, err
	}
	if len(sug.Pairs) == 0 {
		plan.Diagnostics.AddWarning(diagnostic.CodeNoKeyFound, "",
			"no column pair reaches coverage threshold %v", opts.Threshold)
		return plan, fmt.Errorf("match: no candidate pairs: %w", apperrors.ErrNoKeyFound)
	}

	fieldsL := make([]string, len(sug.Pairs))
	fieldsR := make([]string, len(sug.Pairs))
	for i, p := range sug.Pairs {
		fieldsL[i], fieldsR[i] = p.FieldL, p.FieldR
	}
	cumL, err := CumulativeUniqueness(l, fieldsL)
	if err != nil {
		return plan, err
	}
	cumR, err := CumulativeUniqueness(r, fieldsR)
	if err != nil {
		return plan, err
	}

	for i, p := range sug.Pairs {
		rp := RankedPair{PairCandidate: p, CumUniquenessL: cumL[i], CumUniquenessR: cumR[i]}
		if i == 0 {
			rp.IncrementL, rp.IncrementR = cumL[0], cumR[0]
		} else {
			rp.IncrementL = cumL[i] - cumL[i-1]
			rp.IncrementR = cumR[i] - cumR[i-1]
			if rp.IncrementL == 0 && rp.IncrementR == 0 {
				opts.Logger.Debug("match: pruning redundant pair",
					zap.String("field_l", p.FieldL),
					zap.String("field_r", p.FieldR))
				continue
			}
		}
		plan.Pairs = append(plan.Pairs, rp)
		plan.FieldsL = append(plan.FieldsL, p.FieldL)
		plan.FieldsR = append(plan.FieldsR, p.FieldR)
	}

	if len(plan.Pairs) == 0 {
		plan.Diagnostics.AddWarning(diagnostic.CodeNoKeyFound, "", "ranking empty after pruning")
		return plan, fmt.Errorf("match: ranking empty after pruning: %w", apperrors.ErrNoKeyFound)
	}

	if top := plan.Pairs[0].Score; top < opts.WeakScore {
		plan.Diagnostics.AddWarning(diagnostic.CodeWeakAlignment,
			plan.Pairs[0].FieldL+"/"+plan.Pairs[0].FieldR,
			"best pair score %.4f is below %.4f", top, opts.WeakScore)
	}

	opts.Logger.Debug("match: key selected",
		zap.Strings("fields_l", plan.FieldsL),
		zap.Strings("fields_r", plan.FieldsR))
	return plan, nil
}
