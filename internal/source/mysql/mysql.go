// Package mysql registers the "mysql" source backend.
package mysql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"recon/internal/apperrors"
	"recon/internal/source"
)

func init() {
	source.Register("mysql", Open)
}

// Open validates cfg.DSN and connects. DATE and DATETIME columns are
// scanned as time.Time.
func Open(ctx context.Context, cfg source.Config) (source.Source, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	return source.OpenDB(ctx, "mysql", dsn)
}

func normalizeDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %v: %w", err, apperrors.ErrInvalidInput)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}
