// Package source loads tables from SQL databases.
//
// Backends register themselves from init() in their own packages; import
// the ones you need for side effects:
//
//	import _ "recon/internal/source/sqlite"
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"recon/internal/apperrors"
	"recon/pkg/table"
)

// Config selects a backend and its connection string.
type Config struct {
	Kind string
	DSN  string
}

// Source runs read-only queries and returns their result as a table.
type Source interface {
	// Load runs query with args and materializes every row. Column kinds
	// follow the driver's Go types; text columns go through inference.
	Load(ctx context.Context, query string, args ...any) (table.Table, error)
	Close() error
}

// Factory opens a Source for cfg.
type Factory func(ctx context.Context, cfg Config) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// Panics if kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("source: Register called with empty kind")
	}
	if f == nil {
		panic("source: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("source: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Source with the factory registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Source, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("source: missing kind: %w", apperrors.ErrInvalidInput)
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("source: unsupported kind %q: %w", cfg.Kind, apperrors.ErrInvalidInput)
	}
	s, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", cfg.Kind, err)
	}
	return s, nil
}

// Kinds lists registered backends in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build assembles a table from column names and row-major values, as
// returned by a driver. Values are normalized with Normalize first.
func Build(names []string, rows [][]any) (table.Table, error) {
	cols := make([]table.Column, len(names))
	for i, name := range names {
		vals := make([]any, len(rows))
		for j, r := range rows {
			if i < len(r) {
				vals[j] = Normalize(r[i])
			}
		}
		cols[i] = table.InferColumn(name, vals)
	}
	t, err := table.New(cols...)
	if err != nil {
		return table.Table{}, fmt.Errorf("source: build table: %w", err)
	}
	return t, nil
}

// Normalize maps common driver types onto table values: byte slices become
// strings and sized integers widen to int64.
func Normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
