// Package testutil provides mocks shared by the relay's tests.
package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/FreePeak/threejs-mcp-server/internal/domain/shared"
	"github.com/FreePeak/threejs-mcp-server/internal/domain/transport"
)

// MockViewerConn implements domain.ViewerConn and records every frame.
type MockViewerConn struct {
	EnqueueFunc func(frame []byte) error
	CloseFunc   func() error

	id     string
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

// NewMockViewerConn creates a mock connection with a random id.
func NewMockViewerConn() *MockViewerConn {
	return &MockViewerConn{id: uuid.New().String()}
}

// ID implements ViewerConn.ID
func (m *MockViewerConn) ID() string {
	return m.id
}

// Enqueue implements ViewerConn.Enqueue
func (m *MockViewerConn) Enqueue(frame []byte) error {
	if m.EnqueueFunc != nil {
		if err := m.EnqueueFunc(frame); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(frame))
	copy(buf, frame)
	m.frames = append(m.frames, buf)
	return nil
}

// Close implements ViewerConn.Close
func (m *MockViewerConn) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Frames returns the frames received so far as strings.
func (m *MockViewerConn) Frames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.frames))
	for i, f := range m.frames {
		out[i] = string(f)
	}
	return out
}

// IsClosed reports whether Close was called.
func (m *MockViewerConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockTransport implements transport.Transport for testing
type MockTransport struct {
	StartFunc func(ctx context.Context, handler transport.MessageHandler) error
	SendFunc  func(ctx context.Context, message shared.JSONRPCMessage) error
	CloseFunc func() error

	Handler transport.MessageHandler

	mu        sync.Mutex
	messages  []shared.JSONRPCMessage
	started   bool
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{done: make(chan struct{})}
}

// Start implements Transport.Start
func (m *MockTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	m.mu.Lock()
	m.Handler = handler
	m.started = true
	m.mu.Unlock()
	if m.StartFunc != nil {
		return m.StartFunc(ctx, handler)
	}
	return nil
}

// Send implements Transport.Send
func (m *MockTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	m.mu.Lock()
	m.messages = append(m.messages, message)
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, message)
	}
	return nil
}

// Close implements Transport.Close
func (m *MockTransport) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Done implements Transport.Done
func (m *MockTransport) Done() <-chan struct{} {
	return m.done
}

// SimulateIncomingMessage feeds a message to the registered handler.
func (m *MockTransport) SimulateIncomingMessage(ctx context.Context, message shared.JSONRPCMessage) error {
	m.mu.Lock()
	handler := m.Handler
	m.mu.Unlock()
	if handler != nil {
		return handler(ctx, message)
	}
	return nil
}

// GetMessages returns all sent messages
func (m *MockTransport) GetMessages() []shared.JSONRPCMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shared.JSONRPCMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// LastResponse returns the last sent message as a response.
func (m *MockTransport) LastResponse() (shared.JSONRPCResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return shared.JSONRPCResponse{}, false
	}
	resp, ok := m.messages[len(m.messages)-1].(shared.JSONRPCResponse)
	return resp, ok
}

// IsStartCalled reports whether Start was called.
func (m *MockTransport) IsStartCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// IsCloseCalled reports whether Close was called.
func (m *MockTransport) IsCloseCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
