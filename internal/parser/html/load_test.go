package html

import (
	"context"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"recon/pkg/table"
)

const ledgerPage = `<html><body>
<table id="nav"><tr><td>skip me</td></tr></table>
<table class="ledger">
  <thead><tr><th>Trade Id</th><th>Amount</th><th>Desk</th></tr></thead>
  <tbody>
    <tr><td>T1</td><td>10.5</td><td> Rates </td></tr>
    <tr><td>T2</td><td></td><td>FX</td></tr>
    <tr><td>T3</td><td colspan="2">7</td></tr>
    <tr><td>T4</td><td>1</td><td><table><tr><td>nested</td></tr></table></td></tr>
  </tbody>
</table>
</body></html>`

func TestLoad_TableMode(t *testing.T) {
	tb, err := Load(context.Background(), strings.NewReader(ledgerPage), Options{TableSelector: "table.ledger"})
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if got, want := tb.Names(), []string{"trade_id", "amount", "desk"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names()=%v, want %v", got, want)
	}
	if tb.NumRows() != 4 {
		t.Fatalf("NumRows()=%d, want 4 (nested table rows excluded)", tb.NumRows())
	}

	amt, _ := tb.Column("amount")
	if amt.Kind != table.KindNumeric {
		t.Fatalf("amount kind=%v, want numeric", amt.Kind)
	}
	if !reflect.DeepEqual(amt.Values, []any{10.5, nil, 7.0, 1.0}) {
		t.Fatalf("amount=%v", amt.Values)
	}
	desk, _ := tb.Column("desk")
	if desk.Values[0] != "Rates" || desk.Values[2] != "7" {
		t.Fatalf("desk=%v, want trimmed text and colspan fill", desk.Values)
	}
}

func TestLoad_TableIndexAndMissing(t *testing.T) {
	tb, err := Load(context.Background(), strings.NewReader(ledgerPage), Options{TableIndex: 0})
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if got := tb.Names(); !reflect.DeepEqual(got, []string{"col_0"}) {
		t.Fatalf("headerless table Names()=%v, want [col_0]", got)
	}

	if _, err := Load(context.Background(), strings.NewReader(ledgerPage), Options{TableSelector: "table.nope"}); err == nil {
		t.Fatalf("missing table: err=nil, want error")
	}
}

func TestLoad_RecordMode(t *testing.T) {
	page := `
		<div class="rec"><a href="/t/1">Trade 1</a><span class="amt">EUR 12</span></div>
		<div class="rec"><a href="/t/2">Trade 2</a><span class="amt">n/a</span></div>
		<div class="rec"></div>
	`
	tb, err := Load(context.Background(), strings.NewReader(page), Options{
		RecordSelector: ".rec",
		Mappings: []Mapping{
			{Column: "link", Selector: "a", Extract: "attr", Attr: "href"},
			{Column: "amount", Selector: ".amt", Match: `(\d+)`},
		},
	})
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if tb.NumRows() != 2 {
		t.Fatalf("NumRows()=%d, want 2 (empty record skipped)", tb.NumRows())
	}
	if got := tb.Row(0); !reflect.DeepEqual(got, []any{"/t/1", int64(12)}) {
		t.Fatalf("Row(0)=%v", got)
	}
	if got := tb.Row(1); !reflect.DeepEqual(got, []any{"/t/2", nil}) {
		t.Fatalf("Row(1)=%v", got)
	}
}

func TestLoad_RecordModeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  Options
	}{
		{name: "no_mappings", opt: Options{RecordSelector: ".rec"}},
		{name: "no_column", opt: Options{RecordSelector: ".rec", Mappings: []Mapping{{Selector: "a"}}}},
		{name: "bad_regex", opt: Options{RecordSelector: ".rec", Mappings: []Mapping{{Column: "a", Match: "("}}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Load(context.Background(), strings.NewReader(`<div class="rec">x</div>`), tt.opt); err == nil {
				t.Fatalf("Load() err=nil, want error")
			}
		})
	}
}

func TestApplyRegexFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		re    *regexp.Regexp
		want  string
	}{
		{name: "nil_regex", value: "abc", want: "abc"},
		{name: "group", value: "id=42", re: regexp.MustCompile(`id=(\d+)`), want: "42"},
		{name: "whole_match", value: "id=42", re: regexp.MustCompile(`\d+`), want: "42"},
		{name: "no_match", value: "abc", re: regexp.MustCompile(`\d+`), want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyRegexFilter(tt.value, tt.re); got != tt.want {
				t.Fatalf("applyRegexFilter(%q)=%q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
