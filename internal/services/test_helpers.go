package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"qtodash/internal/dataprocessing"
)

// MockEventPublisher records published session events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishToSession(sessionID, eventType string, data interface{}) {
	m.Called(sessionID, eventType, data)
}

// MockSheetsSource is a mock for SheetsSource
type MockSheetsSource struct {
	mock.Mock
}

func (m *MockSheetsSource) ReadTable(ctx context.Context, spreadsheetID, readRange string) (*dataprocessing.Table, error) {
	args := m.Called(ctx, spreadsheetID, readRange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataprocessing.Table), args.Error(1)
}

// MockHub is a ClientCounter with a fixed answer
type MockHub struct {
	mu      sync.Mutex
	clients int
	running bool
}

func (m *MockHub) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients
}

func (m *MockHub) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
