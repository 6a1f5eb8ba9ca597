// Package html loads tabular data out of HTML documents.
//
// Two modes are supported. Table mode reads a <table> element: header
// cells become column names and every other row becomes a record. Record
// mode treats each element matched by RecordSelector as one record and
// evaluates Mappings relative to it, one column per mapping.
package html

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"recon/internal/parser/csv"
	"recon/pkg/table"
)

// Mapping extracts one column in record mode.
type Mapping struct {
	Column   string `yaml:"column" json:"column"`
	Selector string `yaml:"selector" json:"selector"`
	// Extract is "text" (default) or "attr".
	Extract string `yaml:"extract" json:"extract"`
	Attr    string `yaml:"attr,omitempty" json:"attr,omitempty"`
	// Match is an optional regex; group 1 wins when present.
	Match string `yaml:"match,omitempty" json:"match,omitempty"`
}

// Options selects what to read.
type Options struct {
	// TableSelector picks the table in table mode; default "table".
	TableSelector string
	// TableIndex picks among multiple matches; default 0.
	TableIndex int
	// RecordSelector switches to record mode when set.
	RecordSelector string
	Mappings       []Mapping
	// HeaderMap renames normalized header cells in table mode.
	HeaderMap map[string]string
	Logger    *zap.Logger
}

// Load parses r and returns a typed table. Text is trimmed, empty cells are
// null and kinds are inferred as for CSV input.
func Load(ctx context.Context, r io.Reader, opt Options) (table.Table, error) {
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return table.Table{}, fmt.Errorf("html: parse: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return table.Table{}, err
	}

	var names []string
	var rows [][]any
	if strings.TrimSpace(opt.RecordSelector) != "" {
		names, rows, err = extractRecords(doc, opt.RecordSelector, opt.Mappings)
	} else {
		names, rows, err = extractTable(doc, opt)
	}
	if err != nil {
		return table.Table{}, err
	}

	cols := make([]table.Column, len(names))
	for i, name := range names {
		raw := make([]any, len(rows))
		for j, row := range rows {
			if i < len(row) {
				raw[j] = row[i]
			}
		}
		cols[i] = table.ParseColumn(name, raw)
	}
	t, err := table.New(cols...)
	if err != nil {
		return table.Table{}, fmt.Errorf("html: build table: %w", err)
	}
	opt.Logger.Debug("html: loaded", zap.Int("rows", t.NumRows()), zap.Int("columns", t.NumColumns()))
	return t, nil
}

func extractTable(doc *goquery.Document, opt Options) ([]string, [][]any, error) {
	sel := opt.TableSelector
	if sel == "" {
		sel = "table"
	}
	tables := doc.Find(sel)
	if opt.TableIndex < 0 || opt.TableIndex >= tables.Length() {
		return nil, nil, fmt.Errorf("html: table %q #%d not found (%d matches)", sel, opt.TableIndex, tables.Length())
	}
	tbl := tables.Eq(opt.TableIndex)

	var header []string
	var rows [][]any
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Rows of nested tables belong to those tables.
		if tr.Closest("table").Get(0) != tbl.Get(0) {
			return
		}
		cells := tr.ChildrenFiltered("th, td")
		if header == nil && cells.Length() > 0 && cells.Length() == tr.ChildrenFiltered("th").Length() {
			cells.Each(func(_ int, c *goquery.Selection) {
				header = append(header, csv.NormalizeHeader(c.Text(), opt.HeaderMap))
			})
			return
		}
		var row []any
		cells.Each(func(_ int, c *goquery.Selection) {
			v := strings.TrimSpace(c.Text())
			var cell any
			if v != "" {
				cell = v
			}
			span := 1
			if s, ok := c.Attr("colspan"); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 1 {
					span = n
				}
			}
			for k := 0; k < span; k++ {
				row = append(row, cell)
			}
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})

	width := len(header)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i := len(header); i < width; i++ {
		header = append(header, fmt.Sprintf("col_%d", i))
	}
	return uniqueNames(header), rows, nil
}

func extractRecords(doc *goquery.Document, recordSelector string, mappings []Mapping) ([]string, [][]any, error) {
	if len(mappings) == 0 {
		return nil, nil, fmt.Errorf("html: record mode needs at least one mapping")
	}
	res := make([]*regexp.Regexp, len(mappings))
	names := make([]string, len(mappings))
	for i, m := range mappings {
		if strings.TrimSpace(m.Column) == "" {
			return nil, nil, fmt.Errorf("html: mapping %d has no column", i)
		}
		names[i] = m.Column
		if strings.TrimSpace(m.Match) == "" {
			continue
		}
		re, err := regexp.Compile(m.Match)
		if err != nil {
			return nil, nil, fmt.Errorf("html: invalid regex for column %q: %w", m.Column, err)
		}
		res[i] = re
	}

	var rows [][]any
	doc.Find(recordSelector).Each(func(_ int, rec *goquery.Selection) {
		row := make([]any, len(mappings))
		found := false
		for i, m := range mappings {
			target := rec
			if m.Selector != "" {
				target = rec.Find(m.Selector).First()
			}
			if target.Length() == 0 {
				continue
			}
			if v := applyRegexFilter(extractOne(target, m), res[i]); v != "" {
				row[i] = v
				found = true
			}
		}
		if found {
			rows = append(rows, row)
		}
	})
	return uniqueNames(names), rows, nil
}

func extractOne(sel *goquery.Selection, m Mapping) string {
	switch m.Extract {
	case "", "text":
		return strings.TrimSpace(sel.Text())
	case "attr":
		if v, ok := sel.Attr(m.Attr); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// applyRegexFilter returns group 1 of re, the whole match without groups,
// or "" when re does not match. A nil re passes value through.
func applyRegexFilter(value string, re *regexp.Regexp) string {
	if value == "" || re == nil {
		return value
	}
	sm := re.FindStringSubmatch(value)
	switch {
	case len(sm) == 0:
		return ""
	case len(sm) > 1:
		return sm[1]
	default:
		return sm[0]
	}
}

func uniqueNames(names []string) []string {
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
