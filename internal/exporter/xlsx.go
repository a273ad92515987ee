package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"qtodash/internal/dataprocessing"
	"qtodash/internal/presentation"
)

// Sheet names of the exported workbook, in order
const (
	SheetTopN     = "Top N"
	SheetFamilies = "Families"
	SheetItems    = "Items"
	SheetTotals   = "Totals"
)

// XLSXPresenter writes all data products to a workbook
type XLSXPresenter struct {
	logger *slog.Logger
}

// NewXLSXPresenter creates an XLSXPresenter
func NewXLSXPresenter(logger *slog.Logger) *XLSXPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXPresenter{logger: logger.With(slog.String("component", "xlsx_exporter"))}
}

func (x *XLSXPresenter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (x *XLSXPresenter) Present(ctx context.Context, w io.Writer, p *dataprocessing.Products) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1"; rename it instead of deleting
	if err := f.SetSheetName(f.GetSheetName(0), SheetTopN); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	topRows := make([][]interface{}, len(p.TopN.Entries))
	for i, e := range p.TopN.Entries {
		topRows[i] = []interface{}{e.Category, e.Volume}
	}
	if err := writeSheet(f, SheetTopN, []interface{}{p.TopN.CategoryLabel, p.TopN.VolumeLabel}, topRows); err != nil {
		return err
	}

	for _, s := range []struct {
		name    string
		label   string
		summary *dataprocessing.Summary
	}{
		{SheetFamilies, dataprocessing.ColumnFamilyName, p.Families},
		{SheetItems, dataprocessing.ColumnCompositeKey, p.Items},
	} {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		rows := make([][]interface{}, len(s.summary.Categories))
		for i, c := range s.summary.Categories {
			rows[i] = []interface{}{c.Category, c.Sum, c.Count}
		}
		if err := writeSheet(f, s.name, []interface{}{s.label, dataprocessing.LabelVolume, "Count"}, rows); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetTotals); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetTotals, err)
	}
	totals := [][]interface{}{
		{presentation.LabelTotalVolume, p.Totals.Volume},
		{presentation.LabelTotalCount, p.Totals.Count},
		{"Records", p.Stats.Records},
		{"Records without a numeric volume", p.Stats.UnparseableVolumes},
	}
	if err := writeSheet(f, SheetTotals, []interface{}{"Metric", "Value"}, totals); err != nil {
		return err
	}

	x.logger.DebugContext(ctx, "writing workbook",
		slog.Int("top_n_rows", len(topRows)),
		slog.String("total_volume", formatFloat(p.Totals.Volume)),
		slog.String("total_count", formatInt(p.Totals.Count)))

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
