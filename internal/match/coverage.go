package match

import (
	"recon/internal/profile"
	"recon/pkg/table"
)

// Coverage returns the fraction of the distinct non-null values of l that
// also occur in r. It is directional: Coverage(l, r) and Coverage(r, l)
// generally differ.
//
// ok is false when either column has no non-null value; coverage is then
// undefined and callers must not treat the zero result as a score.
func Coverage(l, r table.Column) (cov float64, ok bool) {
	ls, rs := table.NewValueSet(l), table.NewValueSet(r)
	if len(ls) == 0 || len(rs) == 0 {
		return 0, false
	}
	return coverage(ls, rs), true
}

func coverage(ls, rs table.ValueSet) float64 {
	hit := 0
	for k := range ls {
		if _, ok := rs[k]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(ls))
}

// Jaccard returns |L ∩ R| / |L ∪ R| over the distinct non-null values of
// both columns, and 0 when both are empty.
func Jaccard(l, r table.Column) float64 {
	ls, rs := table.NewValueSet(l), table.NewValueSet(r)
	inter := 0
	for k := range ls {
		if _, ok := rs[k]; ok {
			inter++
		}
	}
	union := len(ls) + len(rs) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// NameMatch reports whether r has a column named like col.
func NameMatch(col table.Column, r table.Table) bool {
	return r.Has(col.Name)
}

// Covering is one entry of MostCovering.
type Covering struct {
	Field    string
	Coverage float64
}

// DefaultCoveringLimit is the number of columns MostCovering returns by
// default.
const DefaultCoveringLimit = 3

// MostCovering returns up to limit columns of r, of the same kind as col,
// that cover col best. Columns with zero or undefined coverage are skipped.
// Ties keep r's column order.
func MostCovering(col table.Column, r table.Table, limit int) []Covering {
	if limit <= 0 {
		limit = DefaultCoveringLimit
	}
	ls := table.NewValueSet(col)
	if len(ls) == 0 {
		return nil
	}

	var out []Covering
	for _, rc := range r.Columns() {
		if rc.Kind != col.Kind {
			continue
		}
		rs := table.NewValueSet(rc)
		if len(rs) == 0 {
			continue
		}
		if cov := coverage(ls, rs); cov > 0 {
			out = append(out, Covering{Field: rc.Name, Coverage: cov})
		}
	}
	sortCoverings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CoverageRow describes how well one L column is covered by R.
type CoverageRow struct {
	Field        string
	Kind         table.Kind
	NameMatch    bool
	Covering     []Covering
	Completeness float64
	Uniqueness   float64
	Longest      float64
}

// CheckCoverage reports, for every column of l in table order, whether r has
// a column of the same name, the best covering columns of r and the L
// column's own profile.
func CheckCoverage(l, r table.Table) []CoverageRow {
	cols := l.Columns()
	out := make([]CoverageRow, 0, len(cols))
	for _, c := range cols {
		p := profile.ProfileColumn(c)
		out = append(out, CoverageRow{
			Field:        c.Name,
			Kind:         c.Kind,
			NameMatch:    NameMatch(c, r),
			Covering:     MostCovering(c, r, DefaultCoveringLimit),
			Completeness: p.Completeness,
			Uniqueness:   p.Uniqueness,
			Longest:      p.LongestLength,
		})
	}
	return out
}
