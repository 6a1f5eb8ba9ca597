// Package compositekey derives synthetic join keys from one or more columns.
package compositekey

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"recon/internal/apperrors"
	"recon/internal/label"
	"recon/pkg/table"
)

// DefaultLabel names the derived column when Options.Label is empty.
const DefaultLabel = "tempid"

// suffixLen is the number of hex characters in the random suffix.
const suffixLen = 3

// Options controls key construction.
type Options struct {
	// Label is the name of the derived column (default "tempid").
	Label string
	// Prefix, when set, is prepended as "<prefix>_".
	Prefix string
	// AppendRandomSuffix appends "_<3 hex chars>" per row.
	AppendRandomSuffix bool
	// Seed seeds the suffix generator for this call. Ignored when Entropy
	// is set.
	Seed uint64
	// Entropy overrides the seeded generator.
	Entropy io.Reader
}

// Build returns a copy of t with the composite key column added. An existing
// column with the same name is replaced in place; row order is preserved.
//
// Each key is the normalized values of fields, in order, joined by "_" and
// uppercased. Nulls contribute the literal token "nan", so rows differing
// only in null pattern can collide.
func Build(t table.Table, fields []string, opts Options) (table.Table, error) {
	keys, err := Keys(t, fields, opts)
	if err != nil {
		return table.Table{}, err
	}

	name := opts.Label
	if name == "" {
		name = DefaultLabel
	}
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = k
	}

	out, err := t.WithColumn(table.NewTypedColumn(name, table.KindObject, values))
	if err != nil {
		return table.Table{}, fmt.Errorf("compositekey: attach %q: %w", name, err)
	}
	return out, nil
}

// Keys computes the composite key of every row of t without attaching it.
func Keys(t table.Table, fields []string, opts Options) ([]string, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("compositekey: empty field list: %w", apperrors.ErrInvalidInput)
	}
	cols := make([]table.Column, 0, len(fields))
	for _, f := range fields {
		c, err := t.MustColumn(f)
		if err != nil {
			return nil, fmt.Errorf("compositekey: %w", err)
		}
		cols = append(cols, c)
	}

	var entropy io.Reader
	if opts.AppendRandomSuffix {
		entropy = opts.Entropy
		if entropy == nil {
			entropy = seededReader(opts.Seed)
		}
	}

	prefix := ""
	if opts.Prefix != "" {
		prefix = opts.Prefix + "_"
	}

	keys := make([]string, t.NumRows())
	parts := make([]string, len(cols))
	for i := range keys {
		for j, c := range cols {
			parts[j] = label.Normalize(c.Values[i])
		}
		raw := prefix + strings.Join(parts, "_")
		if entropy != nil {
			s, err := suffix(entropy)
			if err != nil {
				return nil, fmt.Errorf("compositekey: suffix for row %d: %w", i, err)
			}
			raw += "_" + s
		}
		keys[i] = strings.ToUpper(label.NormalizeString(raw))
	}
	return keys, nil
}

// seededReader returns a ChaCha8 stream local to one call, so unrelated
// callers never share generator state.
func seededReader(seed uint64) io.Reader {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:8], seed)
	return rand.NewChaCha8(s)
}

func suffix(r io.Reader) (string, error) {
	u, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(u.String()[:suffixLen]), nil
}
