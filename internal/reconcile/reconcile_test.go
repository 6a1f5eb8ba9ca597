package reconcile

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recon/internal/apperrors"
	"recon/internal/diagnostic"
	"recon/internal/match"
	"recon/internal/metrics"
	"recon/pkg/table"
)

type fakeMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counters: map[string]float64{}, samples: map[string][]float64{}}
}

func (f *fakeMetrics) key(name string, labels metrics.Labels) string {
	if p := labels["presence"]; p != "" {
		return name + "{" + p + "}"
	}
	if s := labels["stage"]; s != "" {
		return name + "{" + s + "}"
	}
	return name
}

func (f *fakeMetrics) IncCounter(name string, delta float64, labels metrics.Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[f.key(name, labels)] += delta
}

func (f *fakeMetrics) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples[f.key(name, labels)] = append(f.samples[f.key(name, labels)], value)
}

func (f *fakeMetrics) Flush() error { return nil }

func idTables(t *testing.T) (table.Table, table.Table) {
	t.Helper()
	l := table.MustNew(
		table.NewColumn("id", []any{1, 2, 3}),
		table.NewColumn("name", []any{"A", "B", "C"}),
	)
	r := table.MustNew(
		table.NewColumn("id", []any{1, 2, 4}),
		table.NewColumn("name", []any{"A", "B", "D"}),
	)
	return l, r
}

func TestDiffer_Scenario(t *testing.T) {
	t.Parallel()
	l, r := idTables(t)

	rep, err := Differ(l, r, "id", "id", Options{FieldsL: []string{"name"}, FieldsR: []string{"name"}})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 4)

	want := []struct {
		key      string
		presence Presence
		fraction float64
	}{
		{"1", PresenceBoth, 1},
		{"2", PresenceBoth, 1},
		{"3", PresenceLeftOnly, 0},
		{"4", PresenceRightOnly, 0},
	}
	for i, w := range want {
		assert.Equal(t, w.key, rep.Rows[i].Key)
		assert.Equal(t, w.presence, rep.Rows[i].Presence)
		assert.Equal(t, w.fraction, rep.Rows[i].MatchFraction)
	}
	assert.Equal(t, "C", rep.Rows[2].Cells[0].Left)
	assert.Nil(t, rep.Rows[2].Cells[0].Right)
	assert.Equal(t, "D", rep.Rows[3].Cells[0].Right)

	assert.Equal(t, Summary{Rows: 4, Both: 2, LeftOnly: 1, RightOnly: 1, Breaks: 2, MeanMatchFraction: 0.5}, rep.Summary)
	assert.Nil(t, rep.Plan)
}

func TestReconcile_Scenario(t *testing.T) {
	t.Parallel()
	l, r := idTables(t)

	rep, err := Reconcile(l, r, Options{
		FieldsL: []string{"name"},
		FieldsR: []string{"name"},
		Match:   match.Options{IncludeAllKinds: true},
	})
	require.NoError(t, err)
	require.NotNil(t, rep.Plan)
	assert.Equal(t, []string{"id"}, rep.Plan.FieldsL, "equal scores rank by name and name adds no uniqueness")

	require.Len(t, rep.Rows, 4)
	assert.Equal(t, []string{"1", "2", "3", "4"}, keys(rep.Rows))
	assert.Equal(t, PresenceBoth, rep.Rows[0].Presence)
	assert.Equal(t, 1.0, rep.Rows[0].MatchFraction)
	assert.Equal(t, 1.0, rep.Rows[1].MatchFraction)
	assert.Equal(t, PresenceLeftOnly, rep.Rows[2].Presence)
	assert.Equal(t, PresenceRightOnly, rep.Rows[3].Presence)
}

func TestReconcile_RoundTripExactKeysAreBoth(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("code", []any{"a-1", "b 2", "C.3", "d4"}),
		table.NewColumn("amt", []any{1.5, 2.0, 3.25, 4}),
	)
	r := table.MustNew(
		table.NewColumn("ref", []any{"d4", "C.3", "a-1", "b 2"}),
		table.NewColumn("value", []any{4, 3.25, 1.5, 2}),
	)

	rep, err := Reconcile(l, r, Options{FieldsL: []string{"amt"}, FieldsR: []string{"value"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, rep.Plan.FieldsL)
	assert.Equal(t, []string{"ref"}, rep.Plan.FieldsR)
	for _, row := range rep.Rows {
		assert.Equal(t, PresenceBoth, row.Presence, "row %s", row.Key)
		assert.Equal(t, 1.0, row.MatchFraction, "row %s", row.Key)
	}
	assert.Equal(t, []string{"A_1", "B_2", "C_3", "D4"}, keys(rep.Rows))
}

func TestDiffer_NumericTolerance(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("id", []any{"a", "b", "c"}),
		table.NewColumn("amt", []any{12.3000000001, 12.31, 100.0}),
	)
	r := table.MustNew(
		table.NewColumn("id", []any{"a", "b", "c"}),
		table.NewColumn("amt", []any{12.3, 12.3, 101.0}),
	)

	tests := []struct {
		name   string
		tolAbs float64
		tolPct float64
		want   []bool
	}{
		{"exact by default", 0, 0, []bool{false, false, false}},
		{"absolute", 0.0001, 0, []bool{true, false, false}},
		{"relative", 0, 0.01, []bool{true, true, true}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rep, err := Differ(l, r, "id", "id", Options{
				FieldsL: []string{"amt"},
				FieldsR: []string{"amt"},
				TolAbs:  tt.tolAbs,
				TolPct:  tt.tolPct,
			})
			require.NoError(t, err)
			require.Len(t, rep.Rows, 3)
			for i, w := range tt.want {
				assert.Equal(t, w, rep.Rows[i].Cells[0].Match, "row %s", rep.Rows[i].Key)
			}
		})
	}
}

func TestDiffer_IdenticalStringsMatchFully(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("k", []any{"1", "2", "3"}),
		table.NewColumn("city", []any{"Zürich", "Oslo", "São Paulo"}),
		table.NewColumn("note", []any{"x", nil, "z"}),
	)
	r := l.Clone()

	rep, err := Differ(l, r, "k", "k", Options{
		FieldsL: []string{"city", "note"},
		FieldsR: []string{"city", "note"},
	})
	require.NoError(t, err)
	for _, row := range rep.Rows {
		assert.Equal(t, 1.0, row.MatchFraction, "row %s", row.Key)
	}
	assert.Zero(t, rep.Summary.Breaks)
}

func TestDiffer_MixedKindsUnsupported(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("k", []any{"a", "b"}),
		table.NewColumn("amt", []any{1, 2}),
		table.NewColumn("name", []any{"x", "y"}),
	)
	r := table.MustNew(
		table.NewColumn("k", []any{"a", "b"}),
		table.NewColumn("amt", []any{"1", "2"}),
		table.NewColumn("name", []any{"x", "q"}),
	)

	fm := newFakeMetrics()
	rep, err := Differ(l, r, "k", "k", Options{
		FieldsL: []string{"amt", "name"},
		FieldsR: []string{"amt", "name"},
		Metrics: fm,
	})
	require.NoError(t, err, "an unsupported pair never aborts the run")

	require.Error(t, rep.Pairs[0].Err)
	assert.True(t, errors.Is(rep.Pairs[0].Err, apperrors.ErrComparisonUnsupported))
	assert.NoError(t, rep.Pairs[1].Err)
	assert.True(t, rep.Diagnostics.Has(diagnostic.CodeComparisonUnsupported))

	assert.Equal(t, 1.0, rep.Rows[0].MatchFraction, "unsupported pair is not counted")
	assert.Equal(t, 0.0, rep.Rows[1].MatchFraction)
	assert.False(t, rep.Rows[0].Cells[0].Compared)
	assert.Equal(t, 1.0, fm.counters[metrics.PairsUnsupportedTotal])
}

func TestDiffer_DiffAndRatio(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("k", []any{"a", "b", "c"}),
		table.NewColumn("amt", []any{10, 0.3, 5}),
		table.NewColumn("name", []any{"x", "y", "z"}),
	)
	r := table.MustNew(
		table.NewColumn("k", []any{"a", "b", "c"}),
		table.NewColumn("amt", []any{4, 0.1, 0}),
		table.NewColumn("name", []any{"x", "y", "z"}),
	)

	rep, err := Differ(l, r, "k", "k", Options{
		FieldsL:   []string{"amt", "name"},
		FieldsR:   []string{"amt", "name"},
		ShowDiff:  true,
		ShowRatio: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 6.0, rep.Rows[0].Cells[0].Diff)
	assert.Equal(t, 2.5, rep.Rows[0].Cells[0].Ratio)
	assert.Equal(t, 0.2, rep.Rows[1].Cells[0].Diff, "decimal arithmetic avoids float noise")
	assert.Equal(t, 3.0, rep.Rows[1].Cells[0].Ratio)
	assert.Nil(t, rep.Rows[2].Cells[0].Ratio, "ratio by zero is null")
	assert.Equal(t, 5.0, rep.Rows[2].Cells[0].Diff)

	require.Error(t, rep.Pairs[0].DiffErr)
	assert.True(t, errors.Is(rep.Pairs[0].DiffErr, apperrors.ErrComparisonUnsupported), "divide by zero is unsupported")
	require.Error(t, rep.Pairs[1].DiffErr, "strings have no difference")
	assert.True(t, errors.Is(rep.Pairs[1].DiffErr, apperrors.ErrComparisonUnsupported))
	assert.True(t, rep.Diagnostics.Has(diagnostic.CodeDiffUnsupported))

	out, err := rep.Table()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"key", "presence",
		"amt_l", "amt_r", "name_l", "name_r",
		"amt_l vs amt_r", "name_l vs name_r",
		"amt_l - amt_r", "amt_l / amt_r",
		"match_fraction",
	}, out.Names())
}

func TestReconcile_InfiniteValues(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("code", []any{"a", "b", "c"}),
		table.ParseColumn("amt", []any{"1.5", "inf", "-inf"}),
	)
	r := table.MustNew(
		table.NewColumn("code", []any{"a", "b", "c"}),
		table.NewColumn("amt", []any{1.5, math.Inf(1), 2.0}),
	)

	require.NotPanics(t, func() {
		_, err := Reconcile(l, r, Options{FieldsL: []string{"amt"}, FieldsR: []string{"amt"}, TolAbs: 0.1})
		require.NoError(t, err)
	})

	rep, err := Differ(l, r, "code", "code", Options{
		FieldsL:   []string{"amt"},
		FieldsR:   []string{"amt"},
		TolAbs:    0.1,
		ShowDiff:  true,
		ShowRatio: true,
	})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 3)

	assert.True(t, rep.Rows[0].Cells[0].Match)
	assert.True(t, rep.Rows[1].Cells[0].Match, "infinities of the same sign match")
	assert.False(t, rep.Rows[2].Cells[0].Match)

	assert.Nil(t, rep.Rows[1].Cells[0].Diff, "inf - inf is null")
	assert.Nil(t, rep.Rows[1].Cells[0].Ratio, "inf / inf is null")
	assert.Equal(t, math.Inf(-1), rep.Rows[2].Cells[0].Diff)
	assert.Equal(t, math.Inf(-1), rep.Rows[2].Cells[0].Ratio)

	_, err = rep.Table()
	require.NoError(t, err)
}

func TestDiffer_LabelsAvoidReportColumns(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("id", []any{"1", "2"}),
		table.NewColumn("key", []any{"x", "y"}),
	)
	r := table.MustNew(
		table.NewColumn("id", []any{"1", "2"}),
		table.NewColumn("ref", []any{"x", "z"}),
	)

	rep, err := Differ(l, r, "id", "id", Options{FieldsL: []string{"key"}, FieldsR: []string{"ref"}})
	require.NoError(t, err)

	out, err := rep.Table()
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "presence", "key_l", "ref", "key_l vs ref", "match_fraction"}, out.Names())
}

func TestDiffer_LabelsStayUnique(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("k", []any{"a", "b"}),
		table.NewColumn("amt", []any{1, 2}),
		table.NewColumn("amt_l", []any{3, 4}),
	)
	r := table.MustNew(
		table.NewColumn("k", []any{"a", "b"}),
		table.NewColumn("amt", []any{1, 5}),
		table.NewColumn("amt_l", []any{3, 4}),
	)

	rep, err := Differ(l, r, "k", "k", Options{
		FieldsL:  []string{"amt", "amt_l", "amt"},
		FieldsR:  []string{"amt", "amt_l", "amt"},
		ShowDiff: true,
	})
	require.NoError(t, err)

	out, err := rep.Table()
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, n := range out.Names() {
		assert.False(t, seen[n], "duplicate column %q", n)
		seen[n] = true
	}
	assert.Equal(t, "amt_l", rep.Pairs[0].LabelL)
	assert.Equal(t, "amt_r", rep.Pairs[0].LabelR)
	assert.NotEqual(t, rep.Pairs[0].LabelL, rep.Pairs[2].LabelL)
	assert.Equal(t, rep.Rows[1].Cells[0].Match, rep.Rows[1].Cells[2].Match)
}

func TestDiffer_BreaksOnlyAndOmitData(t *testing.T) {
	t.Parallel()
	l, r := idTables(t)

	fm := newFakeMetrics()
	rep, err := Differ(l, r, "id", "id", Options{
		FieldsL:    []string{"name"},
		FieldsR:    []string{"name"},
		BreaksOnly: true,
		OmitData:   true,
		Metrics:    fm,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, keys(rep.Rows))
	assert.Equal(t, 4, rep.Summary.Rows, "summary covers rows before filtering")

	out, err := rep.Table()
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "presence", "name_l vs name_r", "match_fraction"}, out.Names())
	assert.Equal(t, 2, out.NumRows())

	assert.Equal(t, 2.0, fm.counters[metrics.RowsTotal+"{both}"])
	assert.Equal(t, 1.0, fm.counters[metrics.RowsTotal+"{left_only}"])
	assert.Equal(t, 2.0, fm.counters[metrics.BreaksTotal])
	assert.Len(t, fm.samples[metrics.StageDurationSeconds+"{compare}"], 1)
}

func TestDiffer_DuplicateKeys(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("k", []any{"a", "a", "b"}),
		table.NewColumn("v", []any{"1", "2", "3"}),
	)
	r := table.MustNew(
		table.NewColumn("k", []any{"a", "b"}),
		table.NewColumn("w", []any{"1", "3"}),
	)

	rep, err := Differ(l, r, "k", "k", Options{FieldsL: []string{"v"}, FieldsR: []string{"w"}})
	require.NoError(t, err)
	assert.True(t, rep.Diagnostics.Has(diagnostic.CodeDuplicateKey))
	require.Len(t, rep.Rows, 3)
	assert.Equal(t, "v vs w", rep.Pairs[0].name())
	assert.Equal(t, 1.0, rep.Rows[0].MatchFraction)
	assert.Equal(t, 0.0, rep.Rows[1].MatchFraction)
}

func TestReconcile_NullKeyCollision(t *testing.T) {
	t.Parallel()

	l := table.MustNew(
		table.NewColumn("k", []any{"a", nil, nil}),
		table.NewColumn("v", []any{1, 2, 3}),
	)
	r := table.MustNew(
		table.NewColumn("k", []any{"a", "b"}),
		table.NewColumn("v", []any{1, 2}),
	)

	rep, err := Reconcile(l, r, Options{
		FieldsL: []string{"v"},
		FieldsR: []string{"v"},
		Match:   match.Options{Threshold: 0.1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, rep.Plan.FieldsL)
	assert.True(t, rep.Diagnostics.Has(diagnostic.CodeNullKeyCollision))
	assert.True(t, rep.Diagnostics.Has(diagnostic.CodeWeakAlignment))
}

func TestReconcile_InvalidInput(t *testing.T) {
	t.Parallel()
	l, r := idTables(t)

	tests := []struct {
		name string
		l, r table.Table
		opts Options
	}{
		{"mismatched fields", l, r, Options{FieldsL: []string{"name"}, FieldsR: []string{"name", "id"}}},
		{"empty fields", l, r, Options{}},
		{"empty left table", table.Table{}, r, Options{FieldsL: []string{"name"}, FieldsR: []string{"name"}}},
		{"unknown column", l, r, Options{FieldsL: []string{"nope"}, FieldsR: []string{"name"}}},
		{"negative tolerance", l, r, Options{FieldsL: []string{"name"}, FieldsR: []string{"name"}, TolAbs: -1}},
		{"infinite tolerance", l, r, Options{FieldsL: []string{"name"}, FieldsR: []string{"name"}, TolAbs: math.Inf(1)}},
		{"nan tolerance", l, r, Options{FieldsL: []string{"name"}, FieldsR: []string{"name"}, TolPct: math.NaN()}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Reconcile(tt.l, tt.r, tt.opts)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "err = %v", err)
		})
	}
}

func TestReconcile_NoKeyFound(t *testing.T) {
	t.Parallel()

	l := table.MustNew(table.NewColumn("a", []any{"p", "q"}))
	r := table.MustNew(table.NewColumn("b", []any{"x", "y"}))

	rep, err := Reconcile(l, r, Options{FieldsL: []string{"a"}, FieldsR: []string{"b"}})
	assert.True(t, errors.Is(err, apperrors.ErrNoKeyFound))
	assert.True(t, rep.Diagnostics.Has(diagnostic.CodeNoKeyFound))
	assert.Empty(t, rep.Rows)
}

func keys(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key
	}
	return out
}
