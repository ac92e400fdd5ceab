package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"motors-client/internal/models"
	"motors-client/internal/observability"
)

var (
	ErrNoToken      = errors.New("ws: auth token required")
	ErrClosed       = errors.New("ws: connection closed")
	ErrNotConnected = errors.New("ws: not connected")
)

// AckError is returned by Request when the server acknowledges with an error.
type AckError struct {
	Event   string
	Message string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("ws: %s rejected: %s", e.Event, e.Message)
}

// Config holds transport settings.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	AckTimeout   time.Duration
	RetryBackoff []time.Duration
}

type ackResult struct {
	frame models.Frame
	err   error
}

// Conn is the realtime transport of one authenticated session. It redials on
// its own after a drop and keeps subscriptions across transports.
type Conn struct {
	cfg    Config
	token  string
	userID string
	hub    *Hub
	dialer *websocket.Dialer
	logger *slog.Logger

	mu      sync.Mutex
	ws      *websocket.Conn
	closed  bool
	pending map[string]chan ackResult

	writeMu sync.Mutex
	events  chan models.Frame
	done    chan struct{}
}

// NewConn prepares a transport without touching the network. It fails with
// ErrNoToken when no token is available.
func NewConn(cfg Config, token, userID string, logger *slog.Logger) (*Conn, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	if cfg.URL == "" {
		return nil, errors.New("ws: url required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{
		cfg:     cfg,
		token:   token,
		userID:  userID,
		hub:     NewHub(),
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		logger:  logger.With("component", "ws"),
		pending: make(map[string]chan ackResult),
		events:  make(chan models.Frame, 256),
		done:    make(chan struct{}),
	}
	go c.dispatchLoop()
	return c, nil
}

// Dial creates a transport and performs the first handshake.
func Dial(ctx context.Context, cfg Config, token, userID string, logger *slog.Logger) (*Conn, error) {
	c, err := NewConn(cfg, token, userID, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// UserID returns the identity the transport announces on join.
func (c *Conn) UserID() string {
	return c.userID
}

// On subscribes to an inbound event.
func (c *Conn) On(event string, fn Handler) func() {
	return c.hub.Add(event, fn)
}

// Connected reports whether a live transport is attached.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil && !c.closed
}

// Connect performs a handshake carrying the token, announces the user and
// dispatches the local connect event.
func (c *Conn) Connect(ctx context.Context) error {
	target, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("ws: parse url: %w", err)
	}
	q := target.Query()
	q.Set("token", c.token)
	target.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	conn, resp, err := c.dialer.DialContext(dialCtx, target.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("ws: handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("ws: handshake: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.ws = conn
	c.mu.Unlock()

	observability.SetWSConnected(true)
	go c.readLoop(conn)

	if err := c.Emit(ctx, models.EventJoin, models.JoinPayload{UserID: c.userID}); err != nil {
		c.logger.Warn("join announce failed", "error", err)
	}
	c.logger.Info("socket connected", "user_id", c.userID)
	c.enqueue(models.EventConnect, nil)
	return nil
}

// Emit sends a fire-and-forget event.
func (c *Conn) Emit(ctx context.Context, event string, payload any) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	data, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("ws: encode %s: %w", event, err)
	}
	if err := c.write(ctx, conn, models.Frame{Event: event, Data: data}); err != nil {
		return err
	}
	observability.IncWSEvent("out", event)
	return nil
}

// Request sends an event and waits for its acknowledgement. The ack payload is
// decoded into out when out is non-nil.
func (c *Conn) Request(ctx context.Context, event string, payload any, out any) error {
	data, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("ws: encode %s: %w", event, err)
	}

	id := newAckID()
	ch := make(chan ackResult, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	conn := c.ws
	if conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(ctx, conn, models.Frame{Event: event, ID: id, Data: data}); err != nil {
		c.dropPending(id)
		return err
	}
	observability.IncWSEvent("out", event)

	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if res.frame.Error != "" {
			return &AckError{Event: event, Message: res.frame.Error}
		}
		if out != nil && len(res.frame.Data) > 0 {
			if err := json.Unmarshal(res.frame.Data, out); err != nil {
				return fmt.Errorf("ws: decode %s ack: %w", event, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	case <-timer.C:
		c.dropPending(id)
		return fmt.Errorf("ws: %s ack timed out after %s", event, c.cfg.AckTimeout)
	}
}

// Close shuts the transport down for good. Pending requests fail with ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.ws
	c.ws = nil
	c.failPendingLocked(ErrClosed)
	close(c.done)
	c.mu.Unlock()

	observability.SetWSConnected(false)
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Conn) current() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.ws == nil {
		return nil, ErrNotConnected
	}
	return c.ws, nil
}

func (c *Conn) write(ctx context.Context, conn *websocket.Conn, frame models.Frame) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.cfg.AckTimeout)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("ws: write %s: %w", frame.Event, err)
	}
	return nil
}

func (c *Conn) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("discarding malformed frame", "error", err)
			continue
		}
		if frame.Event == models.EventAck {
			c.resolve(frame)
			continue
		}
		observability.IncWSEvent("in", frame.Event)
		c.enqueue(frame.Event, frame.Data)
	}
}

func (c *Conn) resolve(frame models.Frame) {
	c.mu.Lock()
	ch, ok := c.pending[frame.ID]
	delete(c.pending, frame.ID)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("ack without pending request", "id", frame.ID)
		return
	}
	ch <- ackResult{frame: frame}
}

func (c *Conn) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) failPendingLocked(err error) {
	for id, ch := range c.pending {
		ch <- ackResult{err: err}
		delete(c.pending, id)
	}
}

func (c *Conn) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws == conn {
		c.ws = nil
	}
	closed := c.closed
	if !closed {
		c.failPendingLocked(ErrNotConnected)
	}
	c.mu.Unlock()
	conn.Close()

	if closed {
		return
	}
	observability.SetWSConnected(false)
	c.logger.Warn("socket dropped", "error", err)
	_ = c.reconnectLoop()
}

// Reconnect redials on the backoff schedule until a handshake succeeds. Every
// failed attempt dispatches connect_error. It returns ErrClosed once the conn
// is closed.
func (c *Conn) Reconnect() error {
	return c.reconnectLoop()
}

func (c *Conn) reconnectLoop() error {
	for attempt := 0; ; attempt++ {
		timer := time.NewTimer(backoffDelay(c.cfg.RetryBackoff, attempt))
		select {
		case <-c.done:
			timer.Stop()
			return ErrClosed
		case <-timer.C:
		}

		err := c.Connect(context.Background())
		if err == nil {
			observability.IncWSReconnect()
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return ErrClosed
		}
		c.logger.Warn("reconnect failed", "attempt", attempt+1, "error", err)
		payload, _ := json.Marshal(models.ErrorEvent{Message: err.Error()})
		c.enqueue(models.EventConnectError, payload)
	}
}

func (c *Conn) enqueue(event string, data json.RawMessage) {
	select {
	case c.events <- models.Frame{Event: event, Data: data}:
	case <-c.done:
	}
}

// dispatchLoop runs handlers off the read goroutine so that a handler may
// issue a Request and still receive its ack.
func (c *Conn) dispatchLoop() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.events:
			c.hub.Dispatch(frame.Event, frame.Data)
		}
	}
}
