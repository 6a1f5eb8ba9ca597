// Package postgres registers the "postgres" source backend on a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"recon/internal/apperrors"
	"recon/internal/source"
	"recon/pkg/table"
)

func init() {
	source.Register("postgres", Open)
}

// Source runs queries on a pgx pool.
type Source struct {
	pool *pgxpool.Pool
}

// Open parses cfg.DSN, builds a pool and checks connectivity.
func Open(ctx context.Context, cfg source.Config) (source.Source, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %v: %w", err, apperrors.ErrInvalidInput)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Source{pool: pool}, nil
}

// Load runs query with positional ($1, $2, ...) args.
func (s *Source) Load(ctx context.Context, query string, args ...any) (table.Table, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return table.Table{}, fmt.Errorf("source: query: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = fd.Name
	}

	var data [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return table.Table{}, fmt.Errorf("source: read row %d: %w", len(data)+1, err)
		}
		for i := range vals {
			vals[i] = convert(vals[i])
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return table.Table{}, fmt.Errorf("source: rows: %w", err)
	}
	return source.Build(names, data)
}

// Close releases the pool.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

// convert maps pgx-specific values onto table values. NUMERIC becomes
// float64, UUID becomes its canonical string.
func convert(v any) any {
	switch t := v.(type) {
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(t).String()
	case pgtype.Date:
		if !t.Valid {
			return nil
		}
		return t.Time
	default:
		return v
	}
}
