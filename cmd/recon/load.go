package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"recon/internal/config"
	csvparser "recon/internal/parser/csv"
	htmlparser "recon/internal/parser/html"
	jsonparser "recon/internal/parser/json"
	"recon/internal/source"
	"recon/pkg/table"
)

const sqlPrefix = "sql:"

// loadTable resolves an input: "sql:<query>" runs against cfg.Source,
// anything else is a file parsed by extension.
func loadTable(ctx context.Context, input string, cfg config.Config, logger *zap.Logger) (table.Table, error) {
	if q, ok := strings.CutPrefix(input, sqlPrefix); ok {
		return loadSQL(ctx, strings.TrimSpace(q), cfg.Source, logger)
	}

	f, err := os.Open(input)
	if err != nil {
		return table.Table{}, err
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(input))
	logger.Debug("recon: loading file", zap.String("path", input), zap.String("ext", ext))
	switch ext {
	case ".csv":
		return csvparser.Load(ctx, f, csvparser.Options{Logger: logger})
	case ".tsv":
		return csvparser.Load(ctx, f, csvparser.Options{Comma: '\t', Logger: logger})
	case ".json", ".ndjson", ".jsonl":
		return jsonparser.Load(ctx, f, jsonparser.Options{Logger: logger})
	case ".html", ".htm":
		return htmlparser.Load(ctx, f, htmlparser.Options{Logger: logger})
	default:
		return table.Table{}, fmt.Errorf("unsupported input extension %q", ext)
	}
}

func loadSQL(ctx context.Context, query string, sc config.SourceConfig, logger *zap.Logger) (table.Table, error) {
	if query == "" {
		return table.Table{}, fmt.Errorf("empty sql query")
	}
	dsn, err := sc.DSN()
	if err != nil {
		return table.Table{}, err
	}
	src, err := source.Open(ctx, source.Config{Kind: sc.Type, DSN: dsn})
	if err != nil {
		return table.Table{}, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("recon: close source", zap.Error(err))
		}
	}()

	logger.Debug("recon: running query", zap.String("kind", sc.Type))
	return src.Load(ctx, query)
}
