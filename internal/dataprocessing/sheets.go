package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apierrors "qtodash/internal/errors"
)

// SheetsReader reads quantity schedules straight from a Google spreadsheet
type SheetsReader struct {
	service *sheets.Service
	logger  *slog.Logger
}

// NewSheetsReader creates a reader authenticated with service account
// credentials JSON. Extra options are appended, which tests use to point the
// client at a fake endpoint.
func NewSheetsReader(ctx context.Context, credentialsJSON []byte, logger *slog.Logger, opts ...option.ClientOption) (*SheetsReader, error) {
	clientOpts := make([]option.ClientOption, 0, len(opts)+2)
	if len(credentialsJSON) > 0 {
		clientOpts = append(clientOpts,
			option.WithCredentialsJSON(credentialsJSON),
			option.WithScopes(sheets.SpreadsheetsReadonlyScope),
		)
	}
	clientOpts = append(clientOpts, opts...)

	service, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, apierrors.NewConfigError("failed to create Google Sheets client", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsReader{
		service: service,
		logger:  logger.With(slog.String("component", "sheets_reader")),
	}, nil
}

// NewSheetsReaderFromFile loads service account credentials from path
func NewSheetsReaderFromFile(ctx context.Context, path string, logger *slog.Logger) (*SheetsReader, error) {
	credentials, err := os.ReadFile(path)
	if err != nil {
		return nil, apierrors.NewConfigError(fmt.Sprintf("failed to read Google credentials %s", path), err)
	}
	return NewSheetsReader(ctx, credentials, logger)
}

// ReadTable fetches readRange (A1 notation, e.g. "Schedule!A:Z") and builds
// a table from it with the first row as header.
func (r *SheetsReader) ReadTable(ctx context.Context, spreadsheetID, readRange string) (*Table, error) {
	resp, err := r.service.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		r.logger.WarnContext(ctx, "sheets range fetch failed",
			slog.String("spreadsheet_id", spreadsheetID),
			slog.String("range", readRange),
			slog.String("error", err.Error()))
		return nil, apierrors.NewNetworkError(fmt.Sprintf("failed to read range %q from spreadsheet", readRange), err)
	}

	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		grid[i] = cells
	}

	r.logger.InfoContext(ctx, "sheets range fetched",
		slog.String("spreadsheet_id", spreadsheetID),
		slog.String("range", resp.Range),
		slog.Int("rows", len(grid)))

	return TableFromRows(grid)
}
