// Package csv loads delimited text into a table.Table.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"recon/pkg/table"
)

// Options controls CSV decoding.
type Options struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// NoHeader treats the first record as data; columns are named col_0..col_n.
	NoHeader bool
	// KeepSpace disables trimming of surrounding whitespace in values.
	KeepSpace bool
	// LazyQuotes allows bare quotes inside fields.
	LazyQuotes bool
	// HeaderMap renames source headers before normalization is applied.
	HeaderMap map[string]string
	// Columns keeps only these normalized columns, in this order. Missing
	// columns come back all-null.
	Columns []string
	// Raw skips kind inference; every value stays a string.
	Raw bool
	// OnError is called for records that fail to parse. They are skipped.
	OnError func(line int, err error)
	Logger  *zap.Logger
}

// NormalizeHeader trims h, drops a UTF-8 BOM and lowercases it with spaces
// replaced by underscores, unless hm maps the trimmed name explicitly.
func NormalizeHeader(h string, hm map[string]string) string {
	h = strings.TrimPrefix(strings.TrimSpace(h), "\uFEFF")
	if mapped, ok := hm[h]; ok {
		return mapped
	}
	return strings.ReplaceAll(strings.ToLower(h), " ", "_")
}

// StreamRecords reads CSV from src and calls emit for every data record with
// values aligned to the returned header. Empty values are nil.
//
// ctx is checked between records.
func StreamRecords(ctx context.Context, src io.Reader, opt Options, emit func(line int, values []any) error) ([]string, error) {
	cr := csv.NewReader(src)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	var header []string
	var pending []string
	first, err := readRec()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	if opt.NoHeader {
		header = make([]string, len(first))
		for i := range first {
			header[i] = fmt.Sprintf("col_%d", i)
		}
		pending = append([]string(nil), first...)
	} else {
		header = make([]string, len(first))
		for i, h := range first {
			header[i] = NormalizeHeader(h, opt.HeaderMap)
		}
	}

	srcIdx := make([]int, len(header))
	for i := range srcIdx {
		srcIdx[i] = i
	}
	if len(opt.Columns) > 0 {
		pos := make(map[string]int, len(header))
		for i, h := range header {
			if _, dup := pos[h]; !dup {
				pos[h] = i
			}
		}
		srcIdx = make([]int, len(opt.Columns))
		for i, c := range opt.Columns {
			srcIdx[i] = -1
			if si, ok := pos[c]; ok {
				srcIdx[i] = si
			}
		}
		header = append([]string(nil), opt.Columns...)
	}

	toRow := func(rec []string) []any {
		row := make([]any, len(srcIdx))
		for t, si := range srcIdx {
			if si < 0 || si >= len(rec) {
				continue
			}
			v := rec[si]
			if !opt.KeepSpace {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row[t] = v
			}
		}
		return row
	}

	if pending != nil {
		if err := emit(1, toRow(pending)); err != nil {
			return header, err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return header, ctx.Err()
		default:
		}

		rec, err := readRec()
		if err == io.EOF {
			return header, nil
		}
		if err != nil {
			if opt.OnError != nil {
				opt.OnError(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}
		if err := emit(line, toRow(rec)); err != nil {
			return header, err
		}
	}
}

// Load reads all of src into a table. Column kinds are inferred from the
// text unless opt.Raw is set. Duplicate header names get a numeric suffix.
func Load(ctx context.Context, src io.Reader, opt Options) (table.Table, error) {
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	skipped := 0
	onErr := opt.OnError
	opt.OnError = func(line int, err error) {
		skipped++
		if onErr != nil {
			onErr(line, err)
		}
	}

	var cols [][]any
	header, err := StreamRecords(ctx, src, opt, func(_ int, values []any) error {
		if cols == nil {
			cols = make([][]any, len(values))
		}
		for i, v := range values {
			cols[i] = append(cols[i], v)
		}
		return nil
	})
	if err != nil {
		return table.Table{}, err
	}
	if cols == nil {
		cols = make([][]any, len(header))
	}
	if skipped > 0 {
		logger.Warn("csv: skipped malformed records", zap.Int("skipped", skipped))
	}

	names := dedupe(header)
	out := make([]table.Column, len(names))
	for i, name := range names {
		if opt.Raw {
			out[i] = table.NewTypedColumn(name, table.KindObject, cols[i])
		} else {
			out[i] = table.ParseColumn(name, cols[i])
		}
	}
	t, err := table.New(out...)
	if err != nil {
		return table.Table{}, fmt.Errorf("csv: build table: %w", err)
	}
	logger.Debug("csv: loaded", zap.Int("rows", t.NumRows()), zap.Int("columns", t.NumColumns()))
	return t, nil
}

func dedupe(names []string) []string {
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if n == "" {
			n = fmt.Sprintf("col_%d", i)
		}
		cand := n
		for k := 1; used[cand]; k++ {
			cand = fmt.Sprintf("%s_%d", n, k)
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}
