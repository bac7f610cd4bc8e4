// Package live keeps a WebSocket open to the backend for the signed-in
// identity and republishes push events on an events.Broker.
package live

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/client/api"
	"github.com/atinyakov/devtrack/internal/client/events"
	"github.com/atinyakov/devtrack/internal/models"
)

// State of the current connection.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// ErrSuperseded is returned by Connect when Close or another Connect ran
// before the handshake finished.
var ErrSuperseded = errors.New("connection attempt superseded")

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 5 * time.Second
)

// Channel is one push connection at a time. There is no automatic
// reconnect; the binder opens a new connection when the identity changes.
type Channel struct {
	base   string
	broker *events.Broker
	logger *zap.Logger
	dialer *websocket.Dialer
	tokens api.TokenSource

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	gen        uint64
	done       chan struct{}
	cancelDial context.CancelFunc

	writeMu sync.Mutex
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithTokenSource sends the bearer credential on the handshake.
func WithTokenSource(ts api.TokenSource) ChannelOption {
	return func(c *Channel) { c.tokens = ts }
}

// WithTLSConfig is used for wss:// targets.
func WithTLSConfig(cfg *tls.Config) ChannelOption {
	return func(c *Channel) { c.dialer.TLSClientConfig = cfg }
}

func WithHandshakeTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

// NewChannel creates a closed channel targeting wsBaseURL.
func NewChannel(wsBaseURL string, broker *events.Broker, logger *zap.Logger, opts ...ChannelOption) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	close(done)

	c := &Channel{
		base:   strings.TrimRight(wsBaseURL, "/"),
		broker: broker,
		logger: logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		done: done,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint for identityID.
func (c *Channel) URL(identityID int64) string {
	return c.base + "/ws/" + strconv.FormatInt(identityID, 10)
}

// State reports the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the current connection ends. Before the first
// Connect it is already closed.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Connect opens a connection for identityID, replacing any current one.
// It blocks until the handshake completes or fails.
func (c *Channel) Connect(ctx context.Context, identityID int64) error {
	c.mu.Lock()
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return err
	}
	old := c.closeLocked()
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.done = make(chan struct{})
	dialCtx, cancel := context.WithCancel(ctx)
	c.cancelDial = cancel
	c.mu.Unlock()
	c.shutdown(old)
	defer cancel()

	target := c.URL(identityID)
	header := http.Header{}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	c.logger.Debug("connecting", zap.String("url", target))
	conn, resp, err := c.dialer.DialContext(dialCtx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSuperseded
	}
	if err != nil {
		c.state = StateClosed
		c.cancelDial = nil
		close(c.done)
		c.mu.Unlock()
		c.logger.Warn("live connection failed", zap.String("url", target), zap.Error(err))
		return fmt.Errorf("dial %s: %w", target, err)
	}
	c.state = StateOpen
	c.conn = conn
	c.cancelDial = nil
	done := c.done
	c.mu.Unlock()

	c.logger.Info("live connection open", zap.Int64("user_id", identityID))
	go c.readLoop(conn, gen, done)
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn, gen uint64, done chan struct{}) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("live connection lost", zap.Error(err))
			} else {
				c.logger.Debug("live connection ended", zap.Error(err))
			}
			break
		}
		c.dispatch(frame)
	}

	c.mu.Lock()
	if c.gen == gen {
		c.state = StateClosed
		c.conn = nil
		close(done)
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Channel) dispatch(frame []byte) {
	env, err := models.DecodeEnvelope(frame)
	if err != nil {
		c.logger.Warn("dropping malformed event", zap.Error(err), zap.Int("bytes", len(frame)))
		return
	}
	if !env.Type.Known() {
		c.logger.Debug("dropping unknown event", zap.String("type", string(env.Type)))
		return
	}
	c.broker.Publish(env)
}

// Send writes v as a JSON text frame. It returns false without writing
// unless the channel is open.
func (c *Channel) Send(v any) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open || conn == nil {
		return false
	}

	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("encode outbound message", zap.Error(err))
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.logger.Warn("send failed", zap.Error(err))
		return false
	}
	return true
}

// Close ends the current connection or attempt. It is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.closeLocked()
	c.mu.Unlock()
	c.shutdown(conn)
	return nil
}

// closeLocked moves to Closed and returns the connection to shut down.
func (c *Channel) closeLocked() *websocket.Conn {
	if c.state == StateClosed {
		return nil
	}
	c.gen++
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateClosed
	close(c.done)
	return conn
}

func (c *Channel) shutdown(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	_ = conn.Close()
	c.logger.Debug("live connection closed")
}
