package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"recon/pkg/recon"
	"recon/pkg/table"
)

// writeTable encodes t as CSV (header row, nulls empty) or as a JSON
// object {"columns": [...], "rows": [[...], ...]} that keeps column order.
func writeTable(w io.Writer, t table.Table, format string) error {
	switch format {
	case "json":
		return writeJSON(w, t)
	default:
		return writeCSV(w, t)
	}
}

func writeCSV(w io.Writer, t table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, t.NumColumns())
	for i := 0; i < t.NumRows(); i++ {
		for j, v := range t.Row(i) {
			rec[j] = table.FormatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, t table.Table) error {
	doc := struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}{Columns: t.Names(), Rows: make([][]any, t.NumRows())}

	for i := range doc.Rows {
		row := t.Row(i)
		for j, v := range row {
			// NaN and ±Inf are not representable in JSON.
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				row[j] = nil
			}
		}
		doc.Rows[i] = row
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func pairsTable(pairs []recon.PairCandidate) (table.Table, error) {
	n := len(pairs)
	cols := map[string][]any{}
	names := []string{
		"field_l", "field_r", "coverage_l_in_r", "coverage_r_in_l",
		"completeness_l", "completeness_r", "uniqueness_l", "uniqueness_r", "score",
	}
	for _, name := range names {
		cols[name] = make([]any, n)
	}
	for i, p := range pairs {
		cols["field_l"][i] = p.FieldL
		cols["field_r"][i] = p.FieldR
		cols["coverage_l_in_r"][i] = p.CoverageLInR
		cols["coverage_r_in_l"][i] = p.CoverageRInL
		cols["completeness_l"][i] = p.CompletenessL
		cols["completeness_r"][i] = p.CompletenessR
		cols["uniqueness_l"][i] = p.UniquenessL
		cols["uniqueness_r"][i] = p.UniquenessR
		cols["score"][i] = p.Score
	}
	return build(names, cols)
}

func coverageTable(rows []recon.CoverageRow) (table.Table, error) {
	n := len(rows)
	names := []string{"field", "kind", "name_match", "covering", "completeness", "uniqueness", "longest"}
	cols := map[string][]any{}
	for _, name := range names {
		cols[name] = make([]any, n)
	}
	for i, r := range rows {
		covering := make([]string, len(r.Covering))
		for j, c := range r.Covering {
			covering[j] = fmt.Sprintf("%s:%.3f", c.Field, c.Coverage)
		}
		cols["field"][i] = r.Field
		cols["kind"][i] = r.Kind.String()
		cols["name_match"][i] = r.NameMatch
		cols["covering"][i] = strings.Join(covering, " ")
		cols["completeness"][i] = r.Completeness
		cols["uniqueness"][i] = r.Uniqueness
		cols["longest"][i] = r.Longest
	}
	return build(names, cols)
}

func build(names []string, cols map[string][]any) (table.Table, error) {
	out := make([]table.Column, len(names))
	for i, name := range names {
		out[i] = table.NewColumn(name, cols[name])
	}
	return table.New(out...)
}
