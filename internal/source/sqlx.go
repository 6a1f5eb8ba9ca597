package source

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"recon/pkg/table"
)

// DB is a Source over any database/sql driver, used by the sqlite, mysql
// and mssql backends.
type DB struct {
	db *sqlx.DB
}

// NewDB wraps an open handle.
func NewDB(db *sqlx.DB) *DB { return &DB{db: db} }

// OpenDB opens driverName with dsn and checks connectivity.
func OpenDB(ctx context.Context, driverName, dsn string) (*DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return &DB{db: db}, nil
}

// Handle exposes the underlying handle for setup such as pool limits.
func (d *DB) Handle() *sqlx.DB { return d.db }

// Load runs query and materializes the result.
func (d *DB) Load(ctx context.Context, query string, args ...any) (table.Table, error) {
	rows, err := d.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return table.Table{}, fmt.Errorf("source: query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return table.Table{}, fmt.Errorf("source: columns: %w", err)
	}
	var data [][]any
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return table.Table{}, fmt.Errorf("source: scan row %d: %w", len(data)+1, err)
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return table.Table{}, fmt.Errorf("source: rows: %w", err)
	}
	return Build(names, data)
}

// Close closes the handle.
func (d *DB) Close() error { return d.db.Close() }

var _ Source = (*DB)(nil)
