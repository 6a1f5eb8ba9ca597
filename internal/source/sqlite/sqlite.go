// Package sqlite registers the "sqlite" source backend (modernc.org/sqlite,
// no cgo).
package sqlite

import (
	"context"

	_ "modernc.org/sqlite"

	"recon/internal/source"
)

func init() {
	source.Register("sqlite", Open)
}

// Open connects to cfg.DSN, a file path or ":memory:".
//
// The pool is pinned to one connection: every ":memory:" connection is a
// separate database.
func Open(ctx context.Context, cfg source.Config) (source.Source, error) {
	db, err := source.OpenDB(ctx, "sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.Handle().SetMaxOpenConns(1)
	return db, nil
}
