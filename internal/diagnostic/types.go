// Package diagnostic collects non-fatal advisories produced while profiling,
// searching, matching and reconciling tables.
//
// Diagnostics never abort an operation. They travel next to partial results
// so callers can decide whether a weak outcome is acceptable.
package diagnostic

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Stable diagnostic codes.
const (
	CodeLargeCandidateSet     = "large_candidate_set"
	CodeEmptyColumn           = "empty_column"
	CodeWeakAlignment         = "weak_alignment"
	CodeNoKeyFound            = "no_key_found"
	CodeComparisonUnsupported = "comparison_unsupported"
	CodeDiffUnsupported       = "diff_unsupported"
	CodeDuplicateKey          = "duplicate_key"
	CodeNullKeyCollision      = "null_key_collision"
)

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
)

// String returns a human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic is a single advisory.
type Diagnostic struct {
	Severity Severity
	// Code is a stable identifier for this type of diagnostic.
	Code string
	// Message is the human-readable description.
	Message string
	// Field names the column or column pair this relates to (if any).
	Field string
}

// String returns a formatted diagnostic string.
func (d Diagnostic) String() string {
	msg := d.Message
	if d.Code != "" {
		msg = fmt.Sprintf("[%s] %s", d.Code, msg)
	}
	if d.Field != "" {
		msg = d.Field + ": " + msg
	}
	return msg
}

// Diagnostics holds all advisories from one operation.
type Diagnostics struct {
	Warnings []Diagnostic
	Infos    []Diagnostic
}

// AddWarning adds a warning diagnostic.
func (d *Diagnostics) AddWarning(code, field, format string, args ...any) {
	d.Warnings = append(d.Warnings, Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Field:    field,
	})
}

// AddInfo adds an info diagnostic.
func (d *Diagnostics) AddInfo(code, field, format string, args ...any) {
	d.Infos = append(d.Infos, Diagnostic{
		Severity: SeverityInfo,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Field:    field,
	})
}

// Merge appends another set of diagnostics.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Warnings = append(d.Warnings, other.Warnings...)
	d.Infos = append(d.Infos, other.Infos...)
}

// HasWarnings reports whether any warning was recorded.
func (d Diagnostics) HasWarnings() bool { return len(d.Warnings) > 0 }

// Has reports whether a warning or info with the given code was recorded.
func (d Diagnostics) Has(code string) bool {
	for _, w := range d.Warnings {
		if w.Code == code {
			return true
		}
	}
	for _, i := range d.Infos {
		if i.Code == code {
			return true
		}
	}
	return false
}

// String joins all diagnostics, warnings first.
func (d Diagnostics) String() string {
	parts := make([]string, 0, len(d.Warnings)+len(d.Infos))
	for _, w := range d.Warnings {
		parts = append(parts, "warning: "+w.String())
	}
	for _, i := range d.Infos {
		parts = append(parts, "info: "+i.String())
	}
	return strings.Join(parts, "\n")
}

// Log writes every diagnostic to logger at the matching level.
func (d Diagnostics) Log(logger *zap.Logger) {
	if logger == nil {
		return
	}
	for _, w := range d.Warnings {
		logger.Warn(w.Message, zap.String("code", w.Code), zap.String("field", w.Field))
	}
	for _, i := range d.Infos {
		logger.Info(i.Message, zap.String("code", i.Code), zap.String("field", i.Field))
	}
}
