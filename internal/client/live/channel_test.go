package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/atinyakov/devtrack/internal/client/api"
	"github.com/atinyakov/devtrack/internal/client/events"
	"github.com/atinyakov/devtrack/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

// wsServer accepts connections on /ws/{id} and lets tests push frames.
type wsServer struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	paths    []string
	auth     []string
	received chan string
	wg       sync.WaitGroup
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{t: t, received: make(chan string, 16)}
	upgrader := websocket.Upgrader{}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ws/") {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "connection_established", "data": map[string]string{"client_id": strings.TrimPrefix(r.URL.Path, "/ws/")}})

		// registered only after the greeting so tests never write concurrently
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.paths = append(s.paths, r.URL.Path)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				select {
				case s.received <- string(msg):
				default:
				}
			}
		}()
	}))

	t.Cleanup(func() {
		s.mu.Lock()
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		s.srv.Close()
		s.wg.Wait()
	})
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// awaitConns blocks until n connections have been accepted.
func (s *wsServer) awaitConns(n int) {
	s.t.Helper()
	require.Eventually(s.t, func() bool { return s.connCount() >= n }, waitFor, 5*time.Millisecond)
}

func (s *wsServer) lastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.paths) == 0 {
		return ""
	}
	return s.paths[len(s.paths)-1]
}

// push writes a raw text frame on the most recent connection.
func (s *wsServer) push(frame string) {
	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	require.NoError(s.t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (s *wsServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
}

func collect(b *events.Broker) (<-chan models.Envelope, func()) {
	ch := make(chan models.Envelope, 16)
	sub := b.SubscribeAll(func(e models.Envelope) { ch <- e })
	return ch, sub.Unsubscribe
}

func TestChannel_DispatchesKnownEventsOnly(t *testing.T) {
	srv := newWSServer(t)
	broker := events.NewBroker(nil)
	got, unsub := collect(broker)
	defer unsub()

	ch := NewChannel(srv.wsURL(), broker, nil)
	defer ch.Close()

	require.NoError(t, ch.Connect(t.Context(), 1))
	assert.Equal(t, StateOpen, ch.State())
	srv.awaitConns(1)
	assert.Equal(t, "/ws/1", srv.lastPath())

	srv.push(`{"type":"unknown_x","data":{}}`)
	srv.push(`not json`)
	srv.push(`{"data":{"id":3}}`)
	srv.push(`{"type":"task_updated","data":{"id":3,"status":"done"}}`)

	select {
	case e := <-got:
		assert.Equal(t, models.EventTaskUpdated, e.Type)
		assert.JSONEq(t, `{"id":3,"status":"done"}`, string(e.Payload))
	case <-time.After(waitFor):
		t.Fatal("task_updated not delivered")
	}

	srv.push(`{"type":"project_created","payload":{"id":9}}`)
	select {
	case e := <-got:
		assert.Equal(t, models.EventProjectCreated, e.Type)
	case <-time.After(waitFor):
		t.Fatal("project_created not delivered")
	}
	assert.Empty(t, got)
}

func TestChannel_SendOnlyWhenOpen(t *testing.T) {
	srv := newWSServer(t)
	ch := NewChannel(srv.wsURL(), events.NewBroker(nil), nil)

	assert.False(t, ch.Send(map[string]string{"ping": "1"}))

	require.NoError(t, ch.Connect(t.Context(), 2))
	assert.True(t, ch.Send(map[string]string{"ping": "2"}))
	select {
	case msg := <-srv.received:
		assert.JSONEq(t, `{"ping":"2"}`, msg)
	case <-time.After(waitFor):
		t.Fatal("server did not receive message")
	}

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.Equal(t, StateClosed, ch.State())
	assert.False(t, ch.Send(map[string]string{"ping": "3"}))
}

func TestChannel_ServerCloseIsTerminal(t *testing.T) {
	srv := newWSServer(t)
	ch := NewChannel(srv.wsURL(), events.NewBroker(nil), nil)

	require.NoError(t, ch.Connect(t.Context(), 3))
	done := ch.Done()
	srv.awaitConns(1)
	srv.dropAll()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("channel did not notice the close")
	}
	assert.Equal(t, StateClosed, ch.State())

	// no reconnect
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, srv.connCount())
}

func TestChannel_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ch := NewChannel(url, events.NewBroker(nil), nil, WithHandshakeTimeout(time.Second))
	err := ch.Connect(t.Context(), 1)
	require.Error(t, err)
	assert.Equal(t, StateClosed, ch.State())

	select {
	case <-ch.Done():
	default:
		t.Fatal("done not closed after failed connect")
	}
}

func TestChannel_ConnectCanceled(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1", events.NewBroker(nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.Connect(ctx, 1), context.Canceled)
	assert.Equal(t, StateClosed, ch.State())
}

func TestChannel_ReconnectReplacesConnection(t *testing.T) {
	srv := newWSServer(t)
	ch := NewChannel(srv.wsURL()+"/", events.NewBroker(nil), nil)
	defer ch.Close()

	require.NoError(t, ch.Connect(t.Context(), 1))
	first := ch.Done()
	require.NoError(t, ch.Connect(t.Context(), 4))

	select {
	case <-first:
	default:
		t.Fatal("first connection still considered live")
	}
	assert.Equal(t, StateOpen, ch.State())
	srv.awaitConns(2)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.ElementsMatch(t, []string{"/ws/1", "/ws/4"}, srv.paths)
}

func TestChannel_HandshakeBearer(t *testing.T) {
	srv := newWSServer(t)
	ch := NewChannel(srv.wsURL(), events.NewBroker(nil), nil,
		WithTokenSource(api.TokenFunc(func() string { return "jwt" })))
	defer ch.Close()

	require.NoError(t, ch.Connect(t.Context(), 1))
	srv.awaitConns(1)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"Bearer jwt"}, srv.auth)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "state(7)", State(7).String())
}
