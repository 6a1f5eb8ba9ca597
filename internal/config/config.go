// Package config loads recon settings from YAML with environment overrides.
//
// Every field can be set from a RECON_* environment variable; environment
// values win over the file. Fields left zero fall back to their env-default.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"recon/internal/apperrors"
	"recon/internal/keysearch"
	"recon/internal/match"
	"recon/internal/metrics"
	"recon/internal/metrics/datadog"
	"recon/internal/reconcile"
)

// Config holds all configuration for a recon run.
type Config struct {
	Search    SearchConfig    `yaml:"search"`
	Match     MatchConfig     `yaml:"match"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Source    SourceConfig    `yaml:"source"`
}

// SearchConfig drives the unique-key combination search.
type SearchConfig struct {
	Threshold       float64 `yaml:"threshold" env:"RECON_SEARCH_THRESHOLD" env-default:"1.0"`
	MaxMemberLength int     `yaml:"max_member_length" env:"RECON_SEARCH_MAX_MEMBER_LENGTH" env-default:"30"`
	Exhaustive      bool    `yaml:"exhaustive" env:"RECON_SEARCH_EXHAUSTIVE" env-default:"false"`
	WarnColumns     int     `yaml:"warn_columns" env:"RECON_SEARCH_WARN_COLUMNS" env-default:"10"`
	// UniqueIDThreshold is used by attach-unique-id.
	UniqueIDThreshold float64 `yaml:"unique_id_threshold" env:"RECON_SEARCH_UNIQUE_ID_THRESHOLD" env-default:"0.5"`
}

// MatchConfig drives cross-table field matching and key selection.
type MatchConfig struct {
	Threshold        float64 `yaml:"threshold" env:"RECON_MATCH_THRESHOLD" env-default:"0.5"`
	IncludeAllKinds  bool    `yaml:"include_all_kinds" env:"RECON_MATCH_INCLUDE_ALL_KINDS" env-default:"false"`
	IncludeAllPairs  bool    `yaml:"include_all_pairs" env:"RECON_MATCH_INCLUDE_ALL_PAIRS" env-default:"false"`
	SymmetricMetrics bool    `yaml:"symmetric_metrics" env:"RECON_MATCH_SYMMETRIC_METRICS" env-default:"false"`
	WeakScore        float64 `yaml:"weak_score" env:"RECON_MATCH_WEAK_SCORE" env-default:"0.25"`
}

// ReconcileConfig drives comparison and report shape.
type ReconcileConfig struct {
	TolPct     float64 `yaml:"tol_pct" env:"RECON_TOL_PCT" env-default:"0"`
	TolAbs     float64 `yaml:"tol_abs" env:"RECON_TOL_ABS" env-default:"0"`
	ShowDiff   bool    `yaml:"show_diff" env:"RECON_SHOW_DIFF" env-default:"false"`
	ShowRatio  bool    `yaml:"show_ratio" env:"RECON_SHOW_RATIO" env-default:"false"`
	BreaksOnly bool    `yaml:"breaks_only" env:"RECON_BREAKS_ONLY" env-default:"false"`
	OmitData   bool    `yaml:"omit_data" env:"RECON_OMIT_DATA" env-default:"false"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	// Level is any zap level name (debug, info, warn, error).
	Level string `yaml:"level" env:"RECON_LOG_LEVEL" env-default:"info"`
	// Format is "json" or "console".
	Format      string `yaml:"format" env:"RECON_LOG_FORMAT" env-default:"json"`
	Development bool   `yaml:"development" env:"RECON_LOG_DEVELOPMENT" env-default:"false"`
}

// MetricsConfig selects a metrics exporter.
type MetricsConfig struct {
	// Backend is "none" or "datadog".
	Backend    string        `yaml:"backend" env:"RECON_METRICS_BACKEND" env-default:"none"`
	JobName    string        `yaml:"job_name" env:"RECON_METRICS_JOB" env-default:"recon"`
	Tags       string        `yaml:"tags" env:"RECON_METRICS_TAGS" env-default:""` // comma separated
	FlushEvery time.Duration `yaml:"flush_every" env:"RECON_METRICS_FLUSH_EVERY" env-default:"60s"`
}

// SourceConfig points at a SQL database to load tables from.
type SourceConfig struct {
	// Type is a registered source name: sqlite, mssql, mysql or postgres.
	Type             string `yaml:"type" env:"RECON_SOURCE_TYPE" env-default:""`
	ConnectionString string `yaml:"-" env:"RECON_SOURCE_DSN"` // secret, env only
	File             string `yaml:"file,omitempty" env:"RECON_SOURCE_FILE" env-default:""`
}

// Default returns the env-default values without reading the environment.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Threshold:         keysearch.DefaultThreshold,
			MaxMemberLength:   keysearch.DefaultMaxMemberLength,
			WarnColumns:       keysearch.DefaultWarnColumns,
			UniqueIDThreshold: keysearch.DefaultUniqueIDThreshold,
		},
		Match: MatchConfig{
			Threshold: match.DefaultThreshold,
			WeakScore: match.DefaultWeakScore,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Backend: "none", JobName: "recon", FlushEvery: 60 * time.Second},
	}
}

// Load reads a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds a Config from RECON_* variables and defaults only.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes, then applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders the effective configuration as YAML. Secrets are omitted.
func (c Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return out, nil
}

// Validate checks ranges. Failures wrap apperrors.ErrInvalidInput.
func (c Config) Validate() error {
	unit := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: %s=%v outside [0,1]: %w", name, v, apperrors.ErrInvalidInput)
		}
		return nil
	}
	for _, chk := range []error{
		unit("search.threshold", c.Search.Threshold),
		unit("search.unique_id_threshold", c.Search.UniqueIDThreshold),
		unit("match.threshold", c.Match.Threshold),
		unit("match.weak_score", c.Match.WeakScore),
	} {
		if chk != nil {
			return chk
		}
	}
	if c.Search.MaxMemberLength < 0 || c.Search.WarnColumns < 0 {
		return fmt.Errorf("config: negative search limit: %w", apperrors.ErrInvalidInput)
	}
	if c.Reconcile.TolPct < 0 || c.Reconcile.TolAbs < 0 {
		return fmt.Errorf("config: negative tolerance: %w", apperrors.ErrInvalidInput)
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level %q: %w", c.Log.Level, apperrors.ErrInvalidInput)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q: %w", c.Log.Format, apperrors.ErrInvalidInput)
	}
	switch strings.ToLower(c.Metrics.Backend) {
	case "", "none", "datadog":
	default:
		return fmt.Errorf("config: metrics.backend %q: %w", c.Metrics.Backend, apperrors.ErrInvalidInput)
	}
	return nil
}

// SearchOptions converts to keysearch options.
func (c Config) SearchOptions(logger *zap.Logger) keysearch.Options {
	return keysearch.Options{
		Threshold:       c.Search.Threshold,
		MaxMemberLength: c.Search.MaxMemberLength,
		Exhaustive:      c.Search.Exhaustive,
		WarnColumns:     c.Search.WarnColumns,
		Logger:          logger,
	}
}

// MatchOptions converts to match options.
func (c Config) MatchOptions(logger *zap.Logger) match.Options {
	return match.Options{
		Threshold:        c.Match.Threshold,
		IncludeAllKinds:  c.Match.IncludeAllKinds,
		IncludeAllPairs:  c.Match.IncludeAllPairs,
		SymmetricMetrics: c.Match.SymmetricMetrics,
		WeakScore:        c.Match.WeakScore,
		Logger:           logger,
	}
}

// ReconcileOptions converts to reconcile options. Field lists are left for
// the caller.
func (c Config) ReconcileOptions(logger *zap.Logger, b metrics.Backend) reconcile.Options {
	return reconcile.Options{
		TolPct:     c.Reconcile.TolPct,
		TolAbs:     c.Reconcile.TolAbs,
		ShowDiff:   c.Reconcile.ShowDiff,
		ShowRatio:  c.Reconcile.ShowRatio,
		BreaksOnly: c.Reconcile.BreaksOnly,
		OmitData:   c.Reconcile.OmitData,
		Match:      c.MatchOptions(logger),
		Logger:     logger,
		Metrics:    b,
	}
}

// NewLogger builds a zap logger from the log section.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.Encoding = l.Format
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("config: build logger: %w", err)
	}
	return logger, nil
}

// NewBackend builds the configured metrics backend. The returned close
// function flushes and stops it; for "none" it is a no-op.
func (m MetricsConfig) NewBackend(ctx context.Context) (metrics.Backend, func() error, error) {
	switch strings.ToLower(m.Backend) {
	case "", "none":
		return metrics.Nop{}, func() error { return nil }, nil
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    m.JobName,
			Tags:       datadog.ParseTagsCSV(m.Tags),
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("config: datadog metrics: %w", err)
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("config: metrics.backend %q: %w", m.Backend, apperrors.ErrInvalidInput)
	}
}

// DSN returns the connection string for the configured source type.
// sqlite falls back to File, then to an in-memory database.
func (s SourceConfig) DSN() (string, error) {
	switch s.Type {
	case "postgres", "mysql", "mssql":
		if s.ConnectionString == "" {
			return "", fmt.Errorf("config: connection string is required for %s: %w", s.Type, apperrors.ErrInvalidInput)
		}
		return s.ConnectionString, nil
	case "sqlite":
		if s.ConnectionString != "" {
			return s.ConnectionString, nil
		}
		if s.File != "" {
			if _, err := os.Stat(s.File); err != nil {
				return "", fmt.Errorf("config: sqlite file: %w", err)
			}
			return s.File, nil
		}
		return ":memory:", nil
	default:
		return "", fmt.Errorf("config: unsupported source type %q: %w", s.Type, apperrors.ErrInvalidInput)
	}
}
