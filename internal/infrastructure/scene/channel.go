// Package scene holds the single viewer attachment slot and the last scene
// report received from that viewer.
package scene

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/FreePeak/threejs-mcp-server/internal/domain"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/logging"
)

// Channel owns the attached viewer connection and its last reported state.
// At most one connection is tracked; attaching a new one drops the previous
// reference without closing it.
type Channel struct {
	mu     sync.RWMutex
	conn   domain.ViewerConn
	state  domain.SceneState
	logger *logging.Logger
}

// NewChannel creates an empty channel.
func NewChannel(logger *logging.Logger) *Channel {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Channel{logger: logger.Named("scene-channel")}
}

// Attach records conn as the current viewer and clears the retained state.
func (c *Channel) Attach(conn domain.ViewerConn) {
	c.mu.Lock()
	previous := c.conn
	c.conn = conn
	c.state = domain.SceneState{}
	c.mu.Unlock()

	fields := logging.Fields{"viewer_id": conn.ID()}
	if previous != nil {
		fields["replaced_viewer_id"] = previous.ID()
	}
	c.logger.Info("Client connected", fields)
}

// Detach clears the slot and the retained state when conn is the current
// viewer. A connection that was already replaced leaves the slot untouched.
func (c *Channel) Detach(conn domain.ViewerConn) {
	c.mu.Lock()
	current := c.conn != nil && c.conn == conn
	if current {
		c.conn = nil
		c.state = domain.SceneState{}
	}
	c.mu.Unlock()

	if current {
		c.logger.Info("Client disconnected", logging.Fields{"viewer_id": conn.ID()})
		return
	}
	if conn != nil {
		c.logger.Debug("Orphaned client disconnected", logging.Fields{"viewer_id": conn.ID()})
	}
}

// OnReport replaces the retained state with raw when it is valid JSON and
// was sent by the current viewer. Anything else is logged and dropped.
func (c *Channel) OnReport(conn domain.ViewerConn, raw []byte) {
	if !json.Valid(raw) {
		c.logger.Warn("Invalid scene state message", logging.Fields{
			"viewer_id": idOf(conn),
			"message":   truncate(raw, 256),
		})
		return
	}

	c.mu.Lock()
	current := c.conn != nil && c.conn == conn
	if current {
		c.state = domain.NewSceneState(raw)
	}
	c.mu.Unlock()

	if !current {
		c.logger.Debug("Ignoring report from orphaned client", logging.Fields{"viewer_id": idOf(conn)})
		return
	}
	c.logger.Debug("Updated scene state", logging.Fields{"viewer_id": conn.ID(), "bytes": len(raw)})
}

// Send encodes cmd and hands it to the attached viewer. It returns
// domain.ErrNoViewer when nothing is attached. A nil error means the frame
// was queued, not that the viewer applied it.
func (c *Channel) Send(ctx context.Context, cmd domain.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := domain.EncodeCommand(cmd)
	if err != nil {
		return errors.Wrap(err, "error encoding command")
	}

	// The read lock is held across Enqueue so frames from sequential calls
	// reach the same connection's queue in call order.
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil {
		return domain.ErrNoViewer
	}
	if err := c.conn.Enqueue(frame); err != nil {
		c.logger.Warn("Failed to queue command", logging.Fields{
			"viewer_id": c.conn.ID(),
			"action":    cmd.Action(),
			"error":     err.Error(),
		})
		return err
	}

	c.logger.Debug("Command sent", logging.Fields{"viewer_id": c.conn.ID(), "action": cmd.Action()})
	return nil
}

// CurrentState returns the retained snapshot and whether one exists.
func (c *Channel) CurrentState() (domain.SceneState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, !c.state.IsZero()
}

// Snapshot returns the retained state, or domain.ErrNoSceneState when no
// report has arrived since the current viewer attached.
func (c *Channel) Snapshot() (domain.SceneState, error) {
	state, ok := c.CurrentState()
	if !ok {
		return domain.SceneState{}, domain.ErrNoSceneState
	}
	return state, nil
}

// Attached reports whether a viewer is attached.
func (c *Channel) Attached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// ViewerID returns the id of the attached viewer, or "" if none.
func (c *Channel) ViewerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return idOf(c.conn)
}

func idOf(conn domain.ViewerConn) string {
	if conn == nil {
		return ""
	}
	return conn.ID()
}

func truncate(raw []byte, max int) string {
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
