package http

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"qtodash/internal/dataprocessing"
	"qtodash/internal/services"
)

type MockDatasetService struct {
	mock.Mock
}

func (m *MockDatasetService) Upload(ctx context.Context, sessionID, fileName string, r io.Reader) (*services.Dataset, error) {
	args := m.Called(ctx, sessionID, fileName, r)
	ds, _ := args.Get(0).(*services.Dataset)
	return ds, args.Error(1)
}

func (m *MockDatasetService) ImportSheet(ctx context.Context, sessionID, spreadsheetID, readRange string) (*services.Dataset, error) {
	args := m.Called(ctx, sessionID, spreadsheetID, readRange)
	ds, _ := args.Get(0).(*services.Dataset)
	return ds, args.Error(1)
}

func (m *MockDatasetService) Current(ctx context.Context, sessionID string) (*services.Dataset, error) {
	args := m.Called(ctx, sessionID)
	ds, _ := args.Get(0).(*services.Dataset)
	return ds, args.Error(1)
}

func (m *MockDatasetService) Clear(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockDatasetService) Products(ctx context.Context, sessionID, view string, n int) (*dataprocessing.Products, error) {
	args := m.Called(ctx, sessionID, view, n)
	p, _ := args.Get(0).(*dataprocessing.Products)
	return p, args.Error(1)
}

func (m *MockDatasetService) Summary(ctx context.Context, sessionID, groupBy string) (*dataprocessing.Summary, error) {
	args := m.Called(ctx, sessionID, groupBy)
	s, _ := args.Get(0).(*dataprocessing.Summary)
	return s, args.Error(1)
}

func (m *MockDatasetService) Top(ctx context.Context, sessionID string, n int) (dataprocessing.TopNView, error) {
	args := m.Called(ctx, sessionID, n)
	return args.Get(0).(dataprocessing.TopNView), args.Error(1)
}

func (m *MockDatasetService) Totals(ctx context.Context, sessionID string) (dataprocessing.Totals, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(dataprocessing.Totals), args.Error(1)
}
