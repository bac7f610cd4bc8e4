package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/models"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(NewRouter(
		&AuthHandler{AuthService: &fakeAuthService{}, Validate: models.NewValidator(), Logger: zap.NewNop()},
		&TrackerHandler{Tracker: &fakeTracker{}, Validate: models.NewValidator(), Logger: zap.NewNop()},
		hub, fakeParser{}, zap.NewNop(),
	))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, id string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/"+id, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(msg, &frame), string(msg))
	return frame
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Len() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Greeting(t *testing.T) {
	_, base := startHub(t)
	conn := dial(t, base, "7")

	frame := readFrame(t, conn)
	assert.Equal(t, string(models.EventConnectionEstablished), frame["type"])
	assert.NotEmpty(t, frame["message"])
	assert.NotEmpty(t, frame["timestamp"])
}

func TestHub_Echo(t *testing.T) {
	_, base := startHub(t)
	conn := dial(t, base, "7")
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "Message received: ping", string(msg))
}

func TestHub_BroadcastReachesAll(t *testing.T) {
	hub, base := startHub(t)
	a := dial(t, base, "1")
	b := dial(t, base, "2")
	readFrame(t, a)
	readFrame(t, b)
	waitClients(t, hub, 2)

	hub.Broadcast(models.EventTaskUpdated, models.Task{ID: 3, Status: models.TaskDone})

	for _, conn := range []*websocket.Conn{a, b} {
		frame := readFrame(t, conn)
		assert.Equal(t, "task_updated", frame["type"])
		data, ok := frame["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "done", data["status"])

		env, err := models.DecodeEnvelope(mustJSON(t, frame))
		require.NoError(t, err)
		assert.Equal(t, models.EventTaskUpdated, env.Type)
	}
}

func TestHub_SameIDReplacesConnection(t *testing.T) {
	hub, base := startHub(t)
	first := dial(t, base, "5")
	readFrame(t, first)
	second := dial(t, base, "5")
	readFrame(t, second)

	// the first connection is closed by the hub
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)
	waitClients(t, hub, 1)

	hub.Broadcast(models.EventBugCreated, models.Bug{ID: 1})
	assert.Equal(t, "bug_created", readFrame(t, second)["type"])
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	hub, base := startHub(t)
	conn := dial(t, base, "9")
	readFrame(t, conn)
	waitClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitClients(t, hub, 0)
}

func TestHub_CloseRejectsNew(t *testing.T) {
	hub, base := startHub(t)
	hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/1", nil)
	if err == nil {
		defer conn.Close()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = conn.ReadMessage()
	}
	require.Error(t, err)
	assert.Zero(t, hub.Len())
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
