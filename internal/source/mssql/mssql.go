// Package mssql registers the "mssql" source backend over the "sqlserver"
// driver.
package mssql

import (
	"context"

	_ "github.com/microsoft/go-mssqldb"

	"recon/internal/source"
)

func init() {
	source.Register("mssql", Open)
}

// Open connects with a sqlserver:// URL or ADO-style connection string.
// DECIMAL and MONEY arrive as text and go through numeric inference.
func Open(ctx context.Context, cfg source.Config) (source.Source, error) {
	return source.OpenDB(ctx, "sqlserver", cfg.DSN)
}
