package profile

import (
	"fmt"
	"sort"
	"strings"
)

// FormatReport renders a human-readable uniqueness report for profiles,
// ordered by uniqueness ascending then name.
func FormatReport(profiles []Profile) string {
	if len(profiles) == 0 {
		return "uniqueness: no columns profiled"
	}

	rows := append([]Profile(nil), profiles...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Uniqueness == rows[j].Uniqueness {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Uniqueness < rows[j].Uniqueness
	})

	var b strings.Builder
	fmt.Fprintf(&b, "uniqueness report:\tcolumns=%d\n", len(rows))
	fmt.Fprintf(&b, "%-15s\t%-8s\tcomplete\tunique\tlongest\n", "col", "kind")
	for _, p := range rows {
		fmt.Fprintf(
			&b,
			"%-15s\t%-8s\t%.1f%%\t%.1f%%\t%d\n",
			p.Name,
			p.Kind,
			p.Completeness*100,
			p.Uniqueness*100,
			int(p.LongestLength),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}
