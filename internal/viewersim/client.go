// Package viewersim is a headless viewer. It connects to the relay's viewer
// endpoint, applies every command to an in-memory scene and reports the scene
// back, the way the browser viewer does.
package viewersim

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/logging"
)

// Client is a connected headless viewer.
type Client struct {
	id      string
	conn    *websocket.Conn
	scene   *Scene
	logger  *logging.Logger
	writeMu sync.Mutex
	applied chan struct{}
}

// Dial connects to the viewer endpoint at url (ws://host:port/).
func Dial(ctx context.Context, url string, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}

	id := uuid.New().String()
	return &Client{
		id:      id,
		conn:    conn,
		scene:   NewScene(),
		logger:  logger.Named("viewer-sim").With(logging.Fields{"sim_id": id}),
		applied: make(chan struct{}, 1),
	}, nil
}

// ID returns the client's local id.
func (c *Client) ID() string {
	return c.id
}

// Scene returns the simulated scene.
func (c *Client) Scene() *Scene {
	return c.scene
}

// Applied signals after each processed command frame.
func (c *Client) Applied() <-chan struct{} {
	return c.applied
}

// Run reports the initial scene and then processes commands until ctx is
// cancelled or the connection drops.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	if err := c.report(); err != nil {
		return err
	}
	c.logger.Info("Connected to relay")

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "viewer connection lost")
		}

		if err := c.scene.Apply(frame); err != nil {
			c.logger.Warn("Ignoring command", logging.Fields{"error": err.Error(), "frame": string(frame)})
		} else {
			c.logger.Debug("Applied command", logging.Fields{"frame": string(frame)})
		}

		if err := c.report(); err != nil {
			return err
		}

		select {
		case c.applied <- struct{}{}:
		default:
		}
	}
}

// SendRaw writes an arbitrary frame, for exercising the relay's report path.
func (c *Client) SendRaw(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) report() error {
	data, err := c.scene.Report()
	if err != nil {
		return errors.Wrap(err, "failed to encode scene report")
	}
	if err := c.SendRaw(data); err != nil {
		return errors.Wrap(err, "failed to send scene report")
	}
	return nil
}
