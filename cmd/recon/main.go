// Command recon loads two tables, infers how they line up and writes a
// reconciliation report.
//
// Inputs are file paths whose extension selects the parser (.csv, .tsv,
// .json, .ndjson, .jsonl, .html, .htm) or "sql:<query>", run against the
// source configured under source: in the config file (or RECON_SOURCE_*).
//
// Modes:
//
//	reconcile  select a key and compare -fields-left against -fields-right
//	differ     compare on the given -key-left / -key-right columns
//	suggest    list scored column pairs
//	coverage   per left column coverage in the right table
//	profile    uniqueness report of the left table
//	unique-id  left table with a "u_id" key column prepended
//
// Exit codes: 0 success, 1 runtime failure, 2 usage error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"recon/internal/config"
	"recon/internal/metrics"
	"recon/internal/profile"
	"recon/pkg/recon"
	"recon/pkg/table"

	// register all SQL backends with the source registry.
	_ "recon/internal/source/all"
)

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadConfig  func(path string) (*config.Config, error)
	newLogger   func(config.LogConfig) (*zap.Logger, error)
	initMetrics func(ctx context.Context, m config.MetricsConfig) (metrics.Backend, func() error, error)
	loadTable   func(ctx context.Context, input string, cfg config.Config, logger *zap.Logger) (table.Table, error)
	createFile  func(path string) (io.WriteCloser, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig: func(path string) (*config.Config, error) {
			if path == "" {
				return config.LoadFromEnv()
			}
			return config.Load(path)
		},
		newLogger: func(l config.LogConfig) (*zap.Logger, error) { return l.NewLogger() },
		initMetrics: func(ctx context.Context, m config.MetricsConfig) (metrics.Backend, func() error, error) {
			return m.NewBackend(ctx)
		},
		loadTable:  loadTable,
		createFile: func(path string) (io.WriteCloser, error) { return os.Create(path) },
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

type cliFlags struct {
	configPath  string
	mode        string
	left        string
	right       string
	fieldsLeft  []string
	fieldsRight []string
	keyLeft     string
	keyRight    string
	out         string
	format      string
}

const usage = "usage: recon -left <input> [-right <input>] [-mode reconcile|differ|suggest|coverage|profile|unique-id] [-config recon.yaml]"

func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	var f cliFlags
	var fl, fr string

	fs := flag.NewFlagSet("recon", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML config path; environment only when empty")
	fs.StringVar(&f.mode, "mode", "reconcile", "reconcile|differ|suggest|coverage|profile|unique-id")
	fs.StringVar(&f.left, "left", "", "left input: file path or sql:<query>")
	fs.StringVar(&f.right, "right", "", "right input: file path or sql:<query>")
	fs.StringVar(&fl, "fields-left", "", "comma-separated left fields to compare")
	fs.StringVar(&fr, "fields-right", "", "comma-separated right fields to compare")
	fs.StringVar(&f.keyLeft, "key-left", "", "left key column (differ mode)")
	fs.StringVar(&f.keyRight, "key-right", "", "right key column (differ mode)")
	fs.StringVar(&f.out, "out", "", "output path; stdout when empty")
	fs.StringVar(&f.format, "format", "csv", "output format: csv|json")
	if err := fs.Parse(args); err != nil {
		return f, err
	}

	f.left = strings.TrimSpace(f.left)
	f.right = strings.TrimSpace(f.right)
	f.fieldsLeft = splitCSV(fl)
	f.fieldsRight = splitCSV(fr)

	if f.left == "" {
		return f, errors.New(usage)
	}
	switch f.format {
	case "csv", "json":
	default:
		return f, fmt.Errorf("unknown -format %q", f.format)
	}
	switch f.mode {
	case "profile", "unique-id":
	case "suggest", "coverage":
		if f.right == "" {
			return f, fmt.Errorf("-mode %s requires -right", f.mode)
		}
	case "reconcile", "differ":
		if f.right == "" {
			return f, fmt.Errorf("-mode %s requires -right", f.mode)
		}
		if len(f.fieldsLeft) == 0 || len(f.fieldsLeft) != len(f.fieldsRight) {
			return f, fmt.Errorf("-mode %s requires -fields-left and -fields-right of equal length", f.mode)
		}
		if f.mode == "differ" && (f.keyLeft == "" || f.keyRight == "") {
			return f, errors.New("-mode differ requires -key-left and -key-right")
		}
	default:
		return f, fmt.Errorf("unknown -mode %q", f.mode)
	}
	return f, nil
}

// runMain is main with its dependencies injected. It returns the exit code.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return 2
	}

	cfg, err := deps.loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger, err := deps.newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	backend, closeMetrics, err := deps.initMetrics(ctx, cfg.Metrics)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer func() {
		if err := closeMetrics(); err != nil {
			logger.Warn("metrics: close failed", zap.Error(err))
		}
	}()

	engine, err := recon.New(*cfg, recon.WithLogger(logger), recon.WithMetrics(backend))
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	if err := run(ctx, engine, f, stdout, deps); err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, e *recon.Engine, f cliFlags, stdout io.Writer, deps appDeps) error {
	cfg := e.Config()
	left, err := deps.loadTable(ctx, f.left, cfg, e.Logger())
	if err != nil {
		return fmt.Errorf("load left: %w", err)
	}
	var right table.Table
	if f.right != "" {
		if right, err = deps.loadTable(ctx, f.right, cfg, e.Logger()); err != nil {
			return fmt.Errorf("load right: %w", err)
		}
	}

	var out table.Table
	switch f.mode {
	case "profile":
		_, err := fmt.Fprintln(stdout, profile.FormatReport(e.ProfileTable(left)))
		return err
	case "unique-id":
		out, _, err = e.AttachUniqueID(left, 0)
	case "suggest":
		var s recon.Suggestion
		if s, err = e.SuggestFieldPairs(left, right); err == nil {
			out, err = pairsTable(s.Pairs)
		}
	case "coverage":
		out, err = coverageTable(e.CheckCoverage(left, right))
	case "reconcile":
		var rep recon.Report
		if rep, err = e.Reconcile(left, right, f.fieldsLeft, f.fieldsRight); err == nil {
			out, err = rep.Table()
		}
	case "differ":
		var rep recon.Report
		if rep, err = e.Differ(left, right, f.keyLeft, f.keyRight, f.fieldsLeft, f.fieldsRight); err == nil {
			out, err = rep.Table()
		}
	}
	if err != nil {
		return err
	}

	if f.out != "" {
		fw, err := deps.createFile(f.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.out, err)
		}
		if err := writeTable(fw, out, f.format); err != nil {
			_ = fw.Close()
			return err
		}
		if err := fw.Close(); err != nil {
			return fmt.Errorf("close %s: %w", f.out, err)
		}
		return nil
	}
	return writeTable(stdout, out, f.format)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
