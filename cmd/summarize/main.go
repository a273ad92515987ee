// Command summarize prints the dashboard figures of a quantities export, or
// writes them in one of the download formats.
//
//	summarize -in quantities.csv [-n 20] [-format text|json|csv|xlsx] [-out path] [-correct-other]
//	summarize -sheet <id> -range 'Sheet1!A:Z' -credentials creds.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"qtodash/internal/config"
	"qtodash/internal/dataprocessing"
	"qtodash/internal/exporter"
	"qtodash/internal/infrastructure"
	"qtodash/internal/presentation"
	"qtodash/internal/validation"
)

const (
	exitOK      = 0
	exitFailure = 1
	// exitBadInput covers flag errors and files that cannot be summarized
	exitBadInput = 2
)

type options struct {
	in           string
	n            int
	format       string
	out          string
	correctOther bool
	sheet        string
	readRange    string
	credentials  string
	delimiter    string
	worksheet    string
	logLevel     string
	timeout      time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		cfg = config.Default()
	}

	opts, err := parseFlags(args, cfg, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitBadInput
	}

	logger := infrastructure.NewLogger(stderr, opts.logLevel, false)
	if cfgErr != nil {
		logger.Warn("Failed to load config, using defaults", slog.String("error", cfgErr.Error()))
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	validator := validation.NewFileValidator(logger)
	if opts.out != "" {
		if err := validator.ValidateOutputPath(opts.out); err != nil {
			return report(logger, err)
		}
	}

	table, source, err := readInput(ctx, opts, validator, logger)
	if err != nil {
		return report(logger, err)
	}

	buildOpts := dataprocessing.BuildOptions{N: opts.n, OtherFrom: dataprocessing.OtherOffset}
	if opts.correctOther {
		buildOpts = dataprocessing.CorrectedBuildOptions(opts.n)
	}
	products, err := dataprocessing.Analyze(ctx, table, buildOpts)
	if err != nil {
		return report(logger, err)
	}
	if products.Stats.UnparseableVolumes > 0 {
		logger.Warn("Records without a numeric volume were excluded from sums and counts",
			slog.Int("unparseable", products.Stats.UnparseableVolumes),
			slog.Int("records", products.Stats.Records),
			slog.Any("samples", products.Stats.UnparseableSamples))
	}

	presenter, err := presenterFor(opts.format, logger)
	if err != nil {
		return report(logger, err)
	}

	if opts.out == "" {
		err = presenter.Present(ctx, stdout, products)
	} else {
		err = exporter.WriteFile(ctx, opts.out, presenter, products)
	}
	if err != nil {
		return report(logger, err)
	}

	logger.Info("Summary written",
		slog.String("source", source),
		slog.String("format", opts.format),
		slog.String("out", opts.out),
		slog.Int("categories", products.Items.Len()),
		slog.Float64("total_volume", products.Totals.Volume))
	return exitOK
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.in, "in", "", "input .csv or .xlsx file")
	fs.IntVar(&opts.n, "n", cfg.Dataset.TopN, "number of categories shown before \"Other\"")
	fs.StringVar(&opts.format, "format", "text", "output format: text, json, csv or xlsx")
	fs.StringVar(&opts.out, "out", "", "output file (default stdout; required for xlsx)")
	fs.BoolVar(&opts.correctOther, "correct-other", cfg.Dataset.CorrectOther, "sum \"Other\" from the entries after the top n")
	fs.StringVar(&opts.sheet, "sheet", "", "Google spreadsheet ID to read instead of -in")
	fs.StringVar(&opts.readRange, "range", "A:Z", "A1 range of the spreadsheet")
	fs.StringVar(&opts.credentials, "credentials", cfg.Sheets.CredentialsFile, "Google service account credentials file")
	fs.StringVar(&opts.delimiter, "delimiter", cfg.Dataset.Delimiter, "CSV delimiter: ',', ';' or tab (default auto-detect)")
	fs.StringVar(&opts.worksheet, "worksheet", cfg.Dataset.Sheet, "XLSX worksheet (default the first)")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	fs.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall time limit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.format = strings.ToLower(opts.format)
	switch {
	case fs.NArg() > 0:
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	case opts.in == "" && opts.sheet == "":
		return opts, errors.New("one of -in or -sheet is required")
	case opts.in != "" && opts.sheet != "":
		return opts, errors.New("-in and -sheet are mutually exclusive")
	case opts.sheet != "" && opts.credentials == "":
		return opts, errors.New("-sheet requires -credentials")
	case opts.n < 1:
		return opts, fmt.Errorf("-n must be at least 1, got %d", opts.n)
	case opts.format == "xlsx" && opts.out == "":
		return opts, errors.New("-format xlsx requires -out")
	}
	switch opts.format {
	case "text", "json", "csv", "xlsx":
	default:
		return opts, fmt.Errorf("unsupported -format %q (want text, json, csv or xlsx)", opts.format)
	}
	if _, err := (config.DatasetConfig{Delimiter: opts.delimiter}).DelimiterRune(); err != nil {
		return opts, err
	}
	return opts, nil
}

// readInput returns the raw table and a name for log lines
func readInput(ctx context.Context, opts options, validator *validation.FileValidator, logger *slog.Logger) (*dataprocessing.Table, string, error) {
	if opts.sheet != "" {
		reader, err := dataprocessing.NewSheetsReaderFromFile(ctx, opts.credentials, logger)
		if err != nil {
			return nil, "", err
		}
		table, err := reader.ReadTable(ctx, opts.sheet, opts.readRange)
		return table, opts.sheet + "!" + opts.readRange, err
	}

	format, err := validator.ValidateInputFile(opts.in)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(opts.in)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	delimiter, _ := (config.DatasetConfig{Delimiter: opts.delimiter}).DelimiterRune()
	table, err := dataprocessing.ReadTable(ctx, f, format, dataprocessing.ReadOptions{
		Delimiter: delimiter,
		Sheet:     opts.worksheet,
	})
	return table, filepath.Base(opts.in), err
}

func presenterFor(format string, logger *slog.Logger) (presentation.Presenter, error) {
	registry := presentation.NewRegistry()
	exporter.RegisterAll(registry, logger)
	registry.Register("text", presentation.NewTextPresenter())

	p, ok := registry.Get(format)
	if !ok {
		return nil, fmt.Errorf("no presenter for format %q", format)
	}
	return p, nil
}

// report logs err and maps it to an exit code
func report(logger *slog.Logger, err error) int {
	switch {
	case errors.Is(err, dataprocessing.ErrMissingColumn):
		logger.Error("Input is missing required columns",
			slog.Any("columns", dataprocessing.MissingColumns(err)),
			slog.String("error", err.Error()))
		return exitBadInput
	case errors.Is(err, dataprocessing.ErrMalformedFile):
		logger.Error("Input is not a readable table", slog.String("error", err.Error()))
		return exitBadInput
	default:
		logger.Error("Summarize failed", slog.String("error", err.Error()))
		return exitFailure
	}
}
