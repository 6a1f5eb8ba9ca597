package reconcile

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"recon/internal/apperrors"
	"recon/pkg/table"
)

// errDivideByZero marks a ratio against a zero right operand.
var errDivideByZero = fmt.Errorf("divide by zero: %w", apperrors.ErrComparisonUnsupported)

// comparator decides whether two aligned cells match.
type comparator interface {
	match(l, r any) bool
}

// numericTolerance matches when |l - r| <= abs + pct*|r|.
type numericTolerance struct {
	abs decimal.Decimal
	pct decimal.Decimal
}

func (c numericTolerance) match(l, r any) bool {
	if fl, fr, ok := nonFinite(l, r); ok {
		return fl == fr
	}
	dl, okL := toDecimal(l)
	dr, okR := toDecimal(r)
	if !okL || !okR {
		return false
	}
	bound := c.abs.Add(c.pct.Mul(dr.Abs()))
	return dl.Sub(dr).Abs().LessThanOrEqual(bound)
}

// editDistance matches when the string forms are zero edits apart.
type editDistance struct{}

func (editDistance) match(l, r any) bool {
	a := []rune(table.FormatValue(l))
	b := []rune(table.FormatValue(r))
	return levenshtein.DistanceForStrings(a, b, levenshtein.DefaultOptions) == 0
}

// comparatorFor picks the comparison policy for a pair of columns. Numeric
// columns compare with tolerance, non-numeric columns by edit distance.
// Mixing one numeric column with a non-numeric one is unsupported.
func comparatorFor(l, r table.Column, opts Options) (comparator, error) {
	numL, numR := l.Kind == table.KindNumeric, r.Kind == table.KindNumeric
	switch {
	case numL && numR:
		return numericTolerance{
			abs: decimal.NewFromFloat(opts.TolAbs),
			pct: decimal.NewFromFloat(opts.TolPct),
		}, nil
	case !numL && !numR:
		return editDistance{}, nil
	default:
		return nil, fmt.Errorf("reconcile: %s (%s) vs %s (%s): %w",
			l.Name, l.Kind, r.Name, r.Kind, apperrors.ErrComparisonUnsupported)
	}
}

// compareCell applies c to one aligned pair. Two nulls match; a single null
// never does.
func compareCell(c comparator, l, r any) bool {
	nl, nr := table.IsNull(l), table.IsNull(r)
	switch {
	case nl && nr:
		return true
	case nl || nr:
		return false
	default:
		return c.match(l, r)
	}
}

// toDecimal converts finite numerics. Infinities are not representable.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case int64:
		return decimal.NewFromInt(t), true
	}
	if f, ok := table.ToFloat(v); ok && finite(f) {
		return decimal.NewFromFloat(f), true
	}
	return decimal.Decimal{}, false
}

// nonFinite returns both operands as floats when they are numeric and at
// least one of them is infinite or NaN.
func nonFinite(l, r any) (float64, float64, bool) {
	fl, okL := table.ToFloat(l)
	fr, okR := table.ToFloat(r)
	if !okL || !okR || (finite(fl) && finite(fr)) {
		return 0, 0, false
	}
	return fl, fr, true
}

// floatResult maps a float outcome to a cell value; NaN becomes null.
func floatResult(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

// diff returns l - r. A null operand yields a null result.
func diff(l, r any) (any, error) {
	if table.IsNull(l) || table.IsNull(r) {
		return nil, nil
	}
	if fl, fr, ok := nonFinite(l, r); ok {
		return floatResult(fl - fr), nil
	}
	dl, okL := toDecimal(l)
	dr, okR := toDecimal(r)
	if !okL || !okR {
		return nil, fmt.Errorf("difference of %T and %T: %w", l, r, apperrors.ErrComparisonUnsupported)
	}
	return dl.Sub(dr).InexactFloat64(), nil
}

// ratio returns l / r. A null operand yields a null result.
func ratio(l, r any) (any, error) {
	if table.IsNull(l) || table.IsNull(r) {
		return nil, nil
	}
	if fl, fr, ok := nonFinite(l, r); ok {
		if fr == 0 {
			return nil, errDivideByZero
		}
		return floatResult(fl / fr), nil
	}
	dl, okL := toDecimal(l)
	dr, okR := toDecimal(r)
	if !okL || !okR {
		return nil, fmt.Errorf("ratio of %T and %T: %w", l, r, apperrors.ErrComparisonUnsupported)
	}
	if dr.IsZero() {
		return nil, errDivideByZero
	}
	return dl.Div(dr).InexactFloat64(), nil
}
