package websocket

import (
	"errors"
	"sync"
	"time"
)

var errMockClosed = errors.New("connection closed")

type mockFrame struct {
	Type int
	Data []byte
}

// MockConnection is an in-memory Connection. Reads block until a frame is
// pushed or the connection is closed.
type MockConnection struct {
	mu sync.Mutex

	written  []mockFrame
	inbound  chan mockFrame
	closed   chan struct{}
	closeOne sync.Once

	// WriteErr, when set, is returned by every write
	WriteErr error

	readLimit     int64
	readDeadline  time.Time
	writeDeadline time.Time
	pongHandler   func(string) error
	remoteAddr    string
}

func NewMockConnection() *MockConnection {
	return &MockConnection{
		inbound:    make(chan mockFrame, 16),
		closed:     make(chan struct{}),
		remoteAddr: "127.0.0.1:8080",
	}
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.closed:
		return errMockClosed
	default:
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.written = append(m.written, mockFrame{Type: messageType, Data: append([]byte(nil), data...)})
	return nil
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	select {
	case f := <-m.inbound:
		return f.Type, f.Data, nil
	case <-m.closed:
		return 0, nil, errMockClosed
	}
}

// Push queues a frame for ReadMessage
func (m *MockConnection) Push(messageType int, data []byte) {
	m.inbound <- mockFrame{Type: messageType, Data: data}
}

func (m *MockConnection) Close() error {
	m.closeOne.Do(func() { close(m.closed) })
	return nil
}

func (m *MockConnection) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *MockConnection) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	m.readDeadline = t
	m.mu.Unlock()
	return nil
}

func (m *MockConnection) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	m.writeDeadline = t
	m.mu.Unlock()
	return nil
}

func (m *MockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	m.readLimit = limit
	m.mu.Unlock()
}

func (m *MockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	m.pongHandler = h
	m.mu.Unlock()
}

func (m *MockConnection) RemoteAddr() string {
	return m.remoteAddr
}

// Written returns a copy of every frame written so far
func (m *MockConnection) Written() []mockFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockFrame(nil), m.written...)
}

func (m *MockConnection) ReadLimit() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readLimit
}
