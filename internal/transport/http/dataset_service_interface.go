package http

import (
	"context"
	"io"

	"qtodash/internal/dataprocessing"
	"qtodash/internal/services"
)

// DatasetServiceInterface is the part of services.DatasetService the
// handlers need
type DatasetServiceInterface interface {
	Upload(ctx context.Context, sessionID, fileName string, r io.Reader) (*services.Dataset, error)
	ImportSheet(ctx context.Context, sessionID, spreadsheetID, readRange string) (*services.Dataset, error)
	Current(ctx context.Context, sessionID string) (*services.Dataset, error)
	Clear(ctx context.Context, sessionID string) error
	Products(ctx context.Context, sessionID, view string, n int) (*dataprocessing.Products, error)
	Summary(ctx context.Context, sessionID, groupBy string) (*dataprocessing.Summary, error)
	Top(ctx context.Context, sessionID string, n int) (dataprocessing.TopNView, error)
	Totals(ctx context.Context, sessionID string) (dataprocessing.Totals, error)
}

var _ DatasetServiceInterface = (*services.DatasetService)(nil)
