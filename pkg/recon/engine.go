// Package recon is the entry point to the matching and reconciliation
// pipeline.
//
// An Engine carries configuration, a logger and a metrics backend and
// passes them to every stage. None of its operations perform I/O; load
// tables with the parsers under internal/parser or with internal/source.
package recon

import (
	"time"

	"go.uber.org/zap"

	"recon/internal/compositekey"
	"recon/internal/config"
	"recon/internal/keysearch"
	"recon/internal/match"
	"recon/internal/metrics"
	"recon/internal/profile"
	"recon/internal/reconcile"
	"recon/pkg/table"
)

// Result types of Engine operations.
type (
	Profile       = profile.Profile
	KeyOptions    = compositekey.Options
	SearchResult  = keysearch.Result
	PairCandidate = match.PairCandidate
	Suggestion    = match.Suggestion
	KeyPlan       = match.KeyPlan
	CoverageRow   = match.CoverageRow
	Report        = reconcile.Report
)

// Engine runs pipeline operations with a fixed configuration.
// It holds no per-call state and is safe for concurrent use when its
// metrics backend is.
type Engine struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics metrics.Backend
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics backend. Default: metrics.Nop.
func WithMetrics(b metrics.Backend) Option {
	return func(e *Engine) { e.metrics = metrics.OrNop(b) }
}

// New validates cfg and returns an Engine.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, logger: zap.NewNop(), metrics: metrics.Nop{}}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Default returns an Engine on config.Default with no logging or metrics.
func Default() *Engine {
	e, _ := New(config.Default())
	return e
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.Logger { return e.logger }

// ProfileColumn computes completeness, uniqueness and longest length.
func (e *Engine) ProfileColumn(col table.Column) profile.Profile {
	return profile.ProfileColumn(col)
}

// ProfileTable profiles every column of t in table order. Columns that are
// perfect identifiers on their own are logged at debug level.
func (e *Engine) ProfileTable(t table.Table) []profile.Profile {
	defer e.stage("profile", time.Now())
	ps := profile.ProfileTable(t)
	for _, p := range ps {
		if p.Uniqueness == 1 && p.Completeness == 1 {
			e.logger.Debug("recon: column is a perfect identifier", zap.String("column", p.Name))
		}
	}
	return ps
}

// SortedFields ranks the columns of t for identifier selection.
func (e *Engine) SortedFields(t table.Table) profile.SortedFields {
	return profile.SortFields(t)
}

// BuildCompositeKey returns t with a derived key column built from fields.
func (e *Engine) BuildCompositeKey(t table.Table, fields []string, opts compositekey.Options) (table.Table, error) {
	return compositekey.Build(t, fields, opts)
}

// SearchUniqueKey finds the smallest subset of candidates whose composite
// key reaches the configured uniqueness threshold.
func (e *Engine) SearchUniqueKey(t table.Table, candidates []string) (keysearch.Result, error) {
	defer e.stage("search", time.Now())
	return keysearch.Search(t, candidates, e.cfg.SearchOptions(e.logger))
}

// AttachUniqueID prepends a "u_id" key column to t. A zero threshold uses
// the configured unique id threshold.
func (e *Engine) AttachUniqueID(t table.Table, threshold float64) (table.Table, keysearch.Result, error) {
	defer e.stage("unique_id", time.Now())
	if threshold == 0 {
		threshold = e.cfg.Search.UniqueIDThreshold
	}
	return keysearch.AttachUniqueID(t, threshold, e.cfg.SearchOptions(e.logger))
}

// SuggestFieldPairs scores every eligible L/R column pair.
func (e *Engine) SuggestFieldPairs(l, r table.Table) (match.Suggestion, error) {
	defer e.stage("suggest", time.Now())
	s, err := match.SuggestPairs(l, r, e.cfg.MatchOptions(e.logger))
	s.Diagnostics.Log(e.logger)
	return s, err
}

// SelectBestKey ranks suggested pairs and prunes those that add no
// uniqueness on either side.
func (e *Engine) SelectBestKey(l, r table.Table) (match.KeyPlan, error) {
	defer e.stage("best_key", time.Now())
	plan, err := match.BestKey(l, r, e.cfg.MatchOptions(e.logger))
	plan.Diagnostics.Log(e.logger)
	return plan, err
}

// Reconcile selects a join key and compares fieldsL against fieldsR.
func (e *Engine) Reconcile(l, r table.Table, fieldsL, fieldsR []string) (reconcile.Report, error) {
	opts := e.cfg.ReconcileOptions(e.logger, e.metrics)
	opts.FieldsL, opts.FieldsR = fieldsL, fieldsR
	rep, err := reconcile.Reconcile(l, r, opts)
	if err != nil {
		return rep, err
	}
	e.logSummary(rep)
	return rep, nil
}

// Differ compares fieldsL against fieldsR on the prebuilt key columns keyL
// and keyR.
func (e *Engine) Differ(l, r table.Table, keyL, keyR string, fieldsL, fieldsR []string) (reconcile.Report, error) {
	opts := e.cfg.ReconcileOptions(e.logger, e.metrics)
	opts.FieldsL, opts.FieldsR = fieldsL, fieldsR
	rep, err := reconcile.Differ(l, r, keyL, keyR, opts)
	if err != nil {
		return rep, err
	}
	e.logSummary(rep)
	return rep, nil
}

// CheckCoverage reports, for each L column, how well R covers it.
func (e *Engine) CheckCoverage(l, r table.Table) []match.CoverageRow {
	return match.CheckCoverage(l, r)
}

// Jaccard returns the Jaccard similarity of the distinct values of l and r.
func (e *Engine) Jaccard(l, r table.Column) float64 {
	return match.Jaccard(l, r)
}

// Mash keeps the rows of t where every field is non-null, and non-zero
// unless keepZeros is set.
func (e *Engine) Mash(t table.Table, fields []string, keepZeros bool) (table.Table, error) {
	return table.Mash(t, fields, keepZeros)
}

func (e *Engine) logSummary(rep reconcile.Report) {
	s := rep.Summary
	e.logger.Info("recon: reconciliation finished",
		zap.Int("rows", s.Rows),
		zap.Int("both", s.Both),
		zap.Int("left_only", s.LeftOnly),
		zap.Int("right_only", s.RightOnly),
		zap.Int("breaks", s.Breaks),
		zap.Float64("mean_match_fraction", s.MeanMatchFraction),
	)
}

func (e *Engine) stage(name string, start time.Time) {
	metrics.ObserveStage(e.metrics, name, start)
}
