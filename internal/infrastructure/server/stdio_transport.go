package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/FreePeak/threejs-mcp-server/internal/domain/shared"
	"github.com/FreePeak/threejs-mcp-server/internal/domain/transport"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/logging"
)

// maxLineSize bounds a single inbound JSON-RPC line.
const maxLineSize = 16 << 20

// errLineTooLong reports an inbound line that was discarded for exceeding
// the line limit.
var errLineTooLong = errors.New("message exceeds line limit")

// StdioTransport implements a transport over standard input/output.
// Messages are newline delimited and handled one at a time in arrival order.
type StdioTransport struct {
	reader    *bufio.Reader
	writer    *bufio.Writer
	handler   transport.MessageHandler
	logger    *logging.Logger
	maxLine   int
	closeCh   chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	doneOnce  sync.Once
	writeMu   sync.Mutex
}

// StdioOption configures a StdioTransport.
type StdioOption func(*StdioTransport)

// WithStdioLogger sets the transport logger.
func WithStdioLogger(logger *logging.Logger) StdioOption {
	return func(t *StdioTransport) {
		if logger != nil {
			t.logger = logger.Named("stdio")
		}
	}
}

// WithMaxLineSize sets the largest inbound line accepted. Longer lines are
// discarded and answered with a parse error.
func WithMaxLineSize(n int) StdioOption {
	return func(t *StdioTransport) {
		if n > 0 {
			t.maxLine = n
		}
	}
}

// NewStdioTransport creates a transport bound to the process stdin and stdout.
func NewStdioTransport(opts ...StdioOption) *StdioTransport {
	return NewStreamTransport(os.Stdin, os.Stdout, opts...)
}

// NewStreamTransport creates a stdio-style transport over arbitrary streams.
func NewStreamTransport(r io.Reader, w io.Writer, opts ...StdioOption) *StdioTransport {
	t := &StdioTransport{
		reader:  bufio.NewReaderSize(r, 64*1024),
		writer:  bufio.NewWriter(w),
		logger:  logging.NewNop(),
		maxLine: maxLineSize,
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start starts the transport
func (t *StdioTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	if handler == nil {
		return errors.New("no message handler specified")
	}
	t.handler = handler

	// Start reading messages
	go t.readMessages(ctx)

	return nil
}

// Send sends a message through the transport
func (t *StdioTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "error marshalling message")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.closeCh:
		return errors.New("transport closed")
	default:
	}

	if _, err := t.writer.Write(data); err != nil {
		return errors.Wrap(err, "error writing message")
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "error writing newline")
	}
	if err := t.writer.Flush(); err != nil {
		return errors.Wrap(err, "error flushing writer")
	}

	return nil
}

// Close closes the transport. A read blocked on stdin is abandoned; Done
// is closed immediately.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
	})
	t.finish()
	return nil
}

// Done is closed when input ends or the transport is closed.
func (t *StdioTransport) Done() <-chan struct{} {
	return t.doneCh
}

func (t *StdioTransport) finish() {
	t.doneOnce.Do(func() {
		close(t.doneCh)
	})
}

// readMessages reads and dispatches messages until EOF, Close or ctx ends.
func (t *StdioTransport) readMessages(ctx context.Context) {
	defer t.finish()

	for {
		select {
		case <-t.closeCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		line, err := t.readLine()
		if errors.Is(err, errLineTooLong) {
			t.logger.Warn("Discarded oversized message", logging.Fields{"limit": t.maxLine})
			t.sendDecodeError(ctx, err)
			continue
		}
		if len(bytes.TrimSpace(line)) > 0 {
			t.dispatch(ctx, line)
		}
		if err != nil {
			if err == io.EOF {
				t.logger.Info("Input closed")
			} else {
				t.logger.Error("Error reading input", logging.Fields{"error": err.Error()})
			}
			return
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// the limit is read to its end and dropped, yielding errLineTooLong.
func (t *StdioTransport) readLine() ([]byte, error) {
	var line []byte
	oversized := false
	for {
		chunk, isPrefix, err := t.reader.ReadLine()
		if !oversized {
			line = append(line, chunk...)
			if len(line) > t.maxLine {
				oversized = true
				line = nil
			}
		}
		if err != nil {
			if oversized && err == io.EOF {
				return nil, errLineTooLong
			}
			return line, err
		}
		if !isPrefix {
			if oversized {
				return nil, errLineTooLong
			}
			return line, nil
		}
	}
}

func (t *StdioTransport) dispatch(ctx context.Context, line []byte) {
	message, err := shared.DecodeMessage(line)
	if err != nil {
		t.logger.Warn("Invalid JSON-RPC message", logging.Fields{"error": err.Error()})
		t.sendDecodeError(ctx, err)
		return
	}

	if err := t.handler(ctx, message); err != nil {
		t.logger.Error("Error handling message", logging.Fields{"error": err.Error()})
	}
}

// sendDecodeError answers an undecodable line with a null-id error.
func (t *StdioTransport) sendDecodeError(ctx context.Context, err error) {
	rpcErr := &shared.JSONRPCError{
		Code:    int(shared.ParseError),
		Message: shared.ErrorMessage(shared.ParseError),
	}
	if errors.Is(err, errLineTooLong) {
		rpcErr.Data = err.Error()
	}
	var invalid *shared.JSONRPCError
	if errors.As(err, &invalid) {
		rpcErr = invalid
	}

	response := shared.JSONRPCResponse{
		JSONRPC: shared.JSONRPCVersion,
		ID:      nil,
		Error:   rpcErr,
	}
	if sendErr := t.Send(ctx, response); sendErr != nil {
		t.logger.Error("Error sending parse error", logging.Fields{"error": sendErr.Error()})
	}
}
