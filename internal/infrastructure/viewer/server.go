// Package viewer exposes the WebSocket endpoint a browser viewer connects to.
package viewer

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/FreePeak/threejs-mcp-server/internal/domain"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/logging"
)

const (
	// DefaultAddr is the viewer endpoint listen address.
	DefaultAddr = ":8082"

	// DefaultQueueSize bounds the frames buffered per viewer.
	DefaultQueueSize = 64

	// DefaultReadLimit caps the size of one inbound scene report. A larger
	// frame closes the socket, which detaches the viewer.
	DefaultReadLimit = 64 << 20

	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second
)

// SceneChannel is the part of the scene channel the endpoint drives.
type SceneChannel interface {
	Attach(conn domain.ViewerConn)
	Detach(conn domain.ViewerConn)
	OnReport(conn domain.ViewerConn, raw []byte)
	CurrentState() (domain.SceneState, bool)
	Attached() bool
	ViewerID() string
}

// Server accepts viewer connections and hands them to a SceneChannel.
type Server struct {
	addr         string
	channel      SceneChannel
	logger       *logging.Logger
	queueSize    int
	readLimit    int64
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	engine   *gin.Engine
	srv      *http.Server
	listener net.Listener

	mu       sync.Mutex
	sessions map[string]*Session
	closing  bool
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithQueueSize sets the per-viewer outbound queue size.
func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadLimit sets the maximum size of an inbound frame.
func WithReadLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

// WithWriteTimeout sets the deadline applied to each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// NewServer creates a viewer endpoint bound to addr once Listen is called.
func NewServer(addr string, channel SceneChannel, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:         addr,
		channel:      channel,
		logger:       logging.NewNop(),
		queueSize:    DefaultQueueSize,
		readLimit:    DefaultReadLimit,
		writeTimeout: DefaultWriteTimeout,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("viewer")

	// Viewers are served from file:// pages and arbitrary local hosts.
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), logging.GinMiddleware(s.logger))
	s.engine.GET("/", s.handleWebSocket)
	s.engine.GET("/ws", s.handleWebSocket)
	s.engine.GET("/status", s.handleStatus)

	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for embedding in tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Listen binds the listen address. A bind failure is returned to the caller
// so startup can abort before the MCP side comes up.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to bind viewer endpoint on %s", s.addr)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("WebSocket server listening", logging.Fields{"addr": ln.Addr().String()})
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Serve accepts connections until Shutdown is called.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "viewer endpoint stopped")
	}
	return nil
}

// Shutdown stops accepting connections and closes every live viewer socket.
// Sockets upgraded after Shutdown starts are closed without attaching.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	ln := s.listener
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		_ = session.Close()
	}

	err := s.srv.Shutdown(ctx)

	// Serve may never have run; the listener is then not owned by srv.
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// SessionCount returns the number of open viewer sockets, including orphans.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	logger := logging.FromContext(c.Request.Context())

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Warn("WebSocket upgrade failed", logging.Fields{"error": err.Error()})
		return
	}
	conn.SetReadLimit(s.readLimit)

	session := NewSession(conn, s.queueSize, s.writeTimeout, s.logger)
	if !s.track(session) {
		logger.Debug("Rejecting viewer during shutdown", logging.Fields{"viewer_id": session.ID()})
		_ = session.Close()
		return
	}
	defer s.untrack(session)

	s.channel.Attach(session)

	go func() {
		defer s.wg.Done()
		session.writeLoop()
	}()

	err = session.readLoop(func(frame []byte) {
		s.channel.OnReport(session, frame)
	})
	if errors.Is(err, websocket.ErrReadLimit) {
		logger.Warn("Viewer report exceeded read limit, closing connection", logging.Fields{
			"viewer_id": session.ID(),
			"limit":     s.readLimit,
		})
	} else if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Debug("Viewer read loop ended", logging.Fields{"viewer_id": session.ID(), "error": err.Error()})
	}

	s.channel.Detach(session)
	_ = session.Close()
}

func (s *Server) handleStatus(c *gin.Context) {
	_, hasState := s.channel.CurrentState()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"viewerAttached": s.channel.Attached(),
		"viewerId":       s.channel.ViewerID(),
		"hasSceneState":  hasState,
	})
}

// track registers session and reserves its writer goroutine in wg. It
// returns false once Shutdown has started.
func (s *Server) track(session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[session.ID()] = session
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(session *Session) {
	s.mu.Lock()
	delete(s.sessions, session.ID())
	s.mu.Unlock()
}
