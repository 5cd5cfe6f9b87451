package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/threejs-mcp-server/internal/domain"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/scene"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, opts ...Option) (*scene.Channel, *Server, *httptest.Server) {
	t.Helper()
	ch := scene.NewChannel(nil)
	srv := NewServer("127.0.0.1:0", ch, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
	})
	return ch, srv, ts
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestViewerReceivesCommands(t *testing.T) {
	ch, _, ts := newTestServer(t)
	conn := dial(t, ts, "/")

	require.Eventually(t, ch.Attached, time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Send(context.Background(), domain.AddObject{Kind: "cube", Position: domain.Vector3{1, 2, 3}, Color: "#ff0000"}))
	require.NoError(t, ch.Send(context.Background(), domain.StopRotation{ID: "cube1"}))

	assert.Equal(t, `{"action":"addObject","kind":"cube","position":[1,2,3],"color":"#ff0000"}`, readFrame(t, conn))
	assert.Equal(t, `{"action":"stopRotation","id":"cube1"}`, readFrame(t, conn))
}

func TestViewerReportUpdatesState(t *testing.T) {
	ch, _, ts := newTestServer(t)
	conn := dial(t, ts, "/ws")

	report := `{"data":[{"id":"cube1","type":"cube"}]}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(report)))

	require.Eventually(t, func() bool {
		state, ok := ch.CurrentState()
		return ok && state.String() == report
	}, time.Second, 10*time.Millisecond)
}

func TestViewerMalformedReportIgnored(t *testing.T) {
	ch, _, ts := newTestServer(t)
	conn := dial(t, ts, "/")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":[]}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":[1]}`)))

	require.Eventually(t, func() bool {
		state, ok := ch.CurrentState()
		return ok && state.String() == `{"data":[1]}`
	}, time.Second, 10*time.Millisecond)
}

func TestSecondViewerReplacesFirst(t *testing.T) {
	ch, srv, ts := newTestServer(t)

	first := dial(t, ts, "/")
	require.Eventually(t, ch.Attached, time.Second, 10*time.Millisecond)
	firstID := ch.ViewerID()

	second := dial(t, ts, "/")
	require.Eventually(t, func() bool {
		return ch.ViewerID() != firstID && ch.ViewerID() != ""
	}, time.Second, 10*time.Millisecond)

	// The orphaned socket stays open.
	assert.Equal(t, 2, srv.SessionCount())

	require.NoError(t, ch.Send(context.Background(), domain.RemoveObject{ID: "a"}))
	assert.Equal(t, `{"action":"removeObject","id":"a"}`, readFrame(t, second))

	require.NoError(t, first.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)
}

func TestViewerDisconnectDetaches(t *testing.T) {
	ch, srv, ts := newTestServer(t)
	conn := dial(t, ts, "/")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":[]}`)))
	require.Eventually(t, func() bool {
		_, ok := ch.CurrentState()
		return ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		_, ok := ch.CurrentState()
		return !ch.Attached() && !ok && srv.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, ch.Send(context.Background(), domain.RemoveObject{ID: "a"}), domain.ErrNoViewer)
}

func TestStatusEndpoint(t *testing.T) {
	ch, _, ts := newTestServer(t)

	var status map[string]interface{}
	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()

	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, false, status["viewerAttached"])
	assert.Equal(t, false, status["hasSceneState"])

	dial(t, ts, "/")
	require.Eventually(t, ch.Attached, time.Second, 10*time.Millisecond)

	resp, err = http.Get(ts.URL + "/status")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()

	assert.Equal(t, true, status["viewerAttached"])
	assert.Equal(t, ch.ViewerID(), status["viewerId"])
}

func TestPlainHTTPRequestRejected(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListenServeShutdown(t *testing.T) {
	ch := scene.NewChannel(nil)
	srv := NewServer("127.0.0.1:0", ch)

	assert.ErrorIs(t, srv.Serve(), ErrNotListening)

	require.NoError(t, srv.Listen())
	addr := srv.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, ch.Attached, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}

	// The live socket was closed by Shutdown.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestListenBindFailure(t *testing.T) {
	first := NewServer("127.0.0.1:0", scene.NewChannel(nil))
	require.NoError(t, first.Listen())
	defer first.Shutdown(context.Background())

	second := NewServer(first.Addr(), scene.NewChannel(nil))
	err := second.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind viewer endpoint")
}

func TestViewerLargeReportWithinDefaultLimit(t *testing.T) {
	ch, _, ts := newTestServer(t)
	conn := dial(t, ts, "/")

	report := `{"data":[{"id":"mesh1","vertices":"` + strings.Repeat("v", 5<<20) + `"}]}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(report)))

	require.Eventually(t, func() bool {
		state, ok := ch.CurrentState()
		return ok && len(state.String()) == len(report)
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, ch.Attached())
}

func TestViewerReportOverReadLimitDetaches(t *testing.T) {
	ch, _, ts := newTestServer(t, WithReadLimit(64))
	conn := dial(t, ts, "/")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":[]}`)))
	require.Eventually(t, func() bool {
		_, ok := ch.CurrentState()
		return ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":["`+strings.Repeat("x", 128)+`"]}`)))

	require.Eventually(t, func() bool { return !ch.Attached() }, time.Second, 10*time.Millisecond)
}

func TestViewerRejectedAfterShutdown(t *testing.T) {
	ch, srv, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	conn := dial(t, ts, "/")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.False(t, ch.Attached())
	assert.Equal(t, 0, srv.SessionCount())
}
