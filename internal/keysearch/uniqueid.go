package keysearch

import (
	"fmt"
	"sort"

	"recon/internal/compositekey"
	"recon/internal/profile"
	"recon/pkg/table"
)

// Unique id defaults.
const (
	DefaultUniqueIDThreshold = 0.5
	UniqueIDLabel            = "u_id"
)

// AttachUniqueID searches the keyable columns of t, most unique first, for a
// key reaching threshold and returns a table with that key as the first
// column "u_id", followed by the keyable columns by uniqueness and the
// remaining columns sorted by name.
//
// A zero threshold means DefaultUniqueIDThreshold. opts.Threshold and
// opts.Exhaustive are ignored.
func AttachUniqueID(t table.Table, threshold float64, opts Options) (table.Table, Result, error) {
	if threshold == 0 {
		threshold = DefaultUniqueIDThreshold
	}
	opts.Threshold = threshold
	opts.Exhaustive = false

	fields := profile.SortFields(t)
	fields.MostUnique = without(fields.MostUnique, UniqueIDLabel)
	fields.NonObject = without(fields.NonObject, UniqueIDLabel)

	res, err := Search(t, fields.MostUnique, opts)
	if err != nil {
		return table.Table{}, res, fmt.Errorf("keysearch: attach unique id: %w", err)
	}

	withID, err := compositekey.Build(t, res.Fields, compositekey.Options{Label: UniqueIDLabel})
	if err != nil {
		return table.Table{}, res, fmt.Errorf("keysearch: attach unique id: %w", err)
	}

	rest := append([]string(nil), fields.NonObject...)
	sort.Strings(rest)
	order := make([]string, 0, 1+len(fields.MostUnique)+len(rest))
	order = append(order, UniqueIDLabel)
	order = append(order, fields.MostUnique...)
	order = append(order, rest...)

	out, err := withID.Select(order...)
	if err != nil {
		return table.Table{}, res, fmt.Errorf("keysearch: attach unique id: %w", err)
	}
	return out, res, nil
}

func without(names []string, drop string) []string {
	out := names[:0:0]
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}
