package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"qtodash/internal/dataprocessing"
	"qtodash/internal/presentation"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes a header and records to w
func WriteCSV(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// CSVPresenter writes the Top-N table as CSV
type CSVPresenter struct {
	logger *slog.Logger
}

// NewCSVPresenter creates a CSVPresenter
func NewCSVPresenter(logger *slog.Logger) *CSVPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVPresenter{logger: logger.With(slog.String("component", "csv_exporter"))}
}

func (c *CSVPresenter) ContentType() string {
	return "text/csv; charset=utf-8"
}

func (c *CSVPresenter) Present(ctx context.Context, w io.Writer, p *dataprocessing.Products) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make([][]string, len(p.TopN.Entries))
	for i, e := range p.TopN.Entries {
		records[i] = []string{e.Category, formatVolume(e.Volume)}
	}

	c.logger.DebugContext(ctx, "writing top-n csv", slog.Int("record_count", len(records)))
	return WriteCSV(w, WriteOptions{
		Headers:   []string{p.TopN.CategoryLabel, p.TopN.VolumeLabel},
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteFile presents p into the file at path, creating parent directories
func WriteFile(ctx context.Context, path string, presenter presentation.Presenter, p *dataprocessing.Products) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := presenter.Present(ctx, file, p); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// RegisterAll registers every presenter that can be downloaded
func RegisterAll(r *presentation.Registry, logger *slog.Logger) {
	r.Register("csv", NewCSVPresenter(logger))
	r.Register("xlsx", NewXLSXPresenter(logger))
	r.Register("json", presentation.NewJSONPresenter())
}
