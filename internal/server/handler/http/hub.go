package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/models"
)

const (
	hubSendBuffer   = 32
	hubWriteTimeout = 5 * time.Second
)

type hubFrame struct {
	Type      models.EventType `json:"type"`
	Data      any              `json:"data,omitempty"`
	Message   string           `json:"message,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub keeps one WebSocket per client id and fans tracker changes out to
// all of them. A second connection with the same id replaces the first.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*hubClient
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now:     time.Now,
		clients: make(map[string]*hubClient),
	}
}

// ServeWS handles GET /ws/{clientID}.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "clientID")
	if id == "" {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.String("client_id", id), zap.Error(err))
		return
	}

	c := &hubClient{id: id, conn: conn, send: make(chan []byte, hubSendBuffer)}
	if !h.add(c) {
		_ = conn.Close()
		return
	}
	h.logger.Info("websocket connected", zap.String("client_id", id))

	go func() {
		defer h.wg.Done()
		h.writeLoop(c)
	}()

	h.sendTo(c, hubFrame{
		Type:      models.EventConnectionEstablished,
		Message:   "Connected to DevTrack real-time updates",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
	h.readLoop(c)
}

// add registers c and reserves its writer in wg.
func (h *Hub) add(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if old, ok := h.clients[c.id]; ok {
		old.close()
	}
	h.clients[c.id] = c
	h.wg.Add(1)
	return true
}

// remove drops c unless it was already replaced by a newer connection.
func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) readLoop(c *hubClient) {
	defer func() {
		h.remove(c)
		h.logger.Info("websocket disconnected", zap.String("client_id", c.id))
	}()
	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.sendRaw(c, []byte("Message received: "+string(msg)))
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("websocket write", zap.String("client_id", c.id), zap.Error(err))
			h.remove(c)
			// drain so senders never block on a dead client
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(hubWriteTimeout))
}

func (h *Hub) sendTo(c *hubClient, f hubFrame) {
	msg, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("encode frame", zap.Error(err))
		return
	}
	h.sendRaw(c, msg)
}

// sendRaw queues msg for c. A client whose buffer is full is dropped.
func (h *Hub) sendRaw(c *hubClient, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.id] != c {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("websocket client too slow, dropping", zap.String("client_id", c.id))
		delete(h.clients, c.id)
		c.close()
	}
}

// Broadcast sends {"type": t, "data": data} to every connected client.
func (h *Hub) Broadcast(t models.EventType, data any) {
	msg, err := json.Marshal(hubFrame{Type: t, Data: data})
	if err != nil {
		h.logger.Error("encode broadcast", zap.String("type", string(t)), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("websocket client too slow, dropping", zap.String("client_id", id))
			delete(h.clients, id)
			c.close()
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones. It waits for the
// writers to finish.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}
