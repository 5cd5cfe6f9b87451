package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/FreePeak/threejs-mcp-server/internal/domain"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/logging"
)

// session.go defines the domain.ViewerConn implementation backed by a
// WebSocket connection.

// Session represents one accepted viewer socket. Outbound frames go through
// a buffered queue drained by a single writer goroutine, so Enqueue never
// blocks and frames leave in the order they were queued.
type Session struct {
	id           string
	conn         *websocket.Conn
	queue        chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	logger       *logging.Logger
}

// NewSession wraps an upgraded connection.
func NewSession(conn *websocket.Conn, queueSize int, writeTimeout time.Duration, logger *logging.Logger) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	return &Session{
		id:           id,
		conn:         conn,
		queue:        make(chan []byte, queueSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.With(logging.Fields{"viewer_id": id}),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Enqueue queues a frame for the writer goroutine.
func (s *Session) Enqueue(frame []byte) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	select {
	case s.queue <- frame:
		return nil
	default:
		return domain.ErrSendQueueFull
	}
}

// Close closes the socket. Queued frames that were not written yet are dropped.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

// Context is cancelled once the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// writeLoop drains the queue until the session closes or a write fails.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.queue:
			if s.writeTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Warn("Failed to write to viewer", logging.Fields{"error": err.Error()})
				_ = s.Close()
				return
			}
		}
	}
}

// readLoop hands every inbound frame to onReport until the socket fails.
func (s *Session) readLoop(onReport func(frame []byte)) error {
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		onReport(frame)
	}
}
