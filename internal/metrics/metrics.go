// Package metrics defines the small metrics surface used by the pipeline.
//
// Core packages record through Backend only; concrete exporters (see
// internal/metrics/datadog) live in sub-packages and are chosen by the
// embedding application.
package metrics

import "time"

// Metric names recorded by the reconciler.
const (
	RowsTotal             = "recon_rows_total"
	BreaksTotal           = "recon_breaks_total"
	PairsUnsupportedTotal = "recon_pairs_unsupported_total"
	MatchFraction         = "recon_match_fraction"
	StageDurationSeconds  = "recon_stage_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

// OrNop returns b, or Nop when b is nil.
func OrNop(b Backend) Backend {
	if b == nil {
		return Nop{}
	}
	return b
}

// ObserveStage records the wall time of one pipeline stage since start.
func ObserveStage(b Backend, stage string, start time.Time) {
	b.ObserveHistogram(StageDurationSeconds, time.Since(start).Seconds(), Labels{"stage": stage})
}
