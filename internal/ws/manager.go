package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"motors-client/internal/models"
	"motors-client/internal/telemetry"
)

var (
	ErrNotReady       = errors.New("ws: connection not ready")
	ErrNoConnection   = errors.New("ws: no connection")
	ErrAlreadyStarted = errors.New("ws: connection already started")
)

// State is the lifecycle phase of the managed connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// AuthStateClearer wipes persisted credentials.
type AuthStateClearer interface {
	Clear(ctx context.Context) error
}

// Notifier shows transient notices to the user.
type Notifier interface {
	Notify(level, text string)
}

// Redirector moves the user to another entry point.
type Redirector interface {
	Redirect(path string)
}

// ManagerOptions wires the collaborators of a Manager.
type ManagerOptions struct {
	Config    Config
	AuthState AuthStateClearer
	Notifier  Notifier
	Navigator Redirector
	Audit     *telemetry.AuditEmitter
	LoginPath string
	Logger    *slog.Logger
}

// Manager owns the single connection of the authenticated app and hands it
// out to consumers. Only the manager closes it.
type Manager struct {
	opts   ManagerOptions
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	conn   *Conn
	err    error
	userID string
	gen    uint64
	// ready closes once the first handshake outcome is known; up closes once
	// a handshake succeeds. Teardown closes both.
	ready chan struct{}
	up    chan struct{}
	hooks []func()
}

// NewManager constructs an idle Manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{opts: opts, logger: logger.With("component", "ws.manager"), state: StateIdle}
}

// Start begins the handshake in the background. Without a token it fails
// immediately and never dials. A failed handshake is reported through Lookup
// and retried on the backoff schedule until it succeeds or Teardown runs.
func (m *Manager) Start(ctx context.Context, token, userID string) error {
	conn, err := NewConn(m.opts.Config, token, userID, m.opts.Logger)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		conn.Close()
		return ErrAlreadyStarted
	}
	stale := m.conn
	m.resolveLocked()
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	m.conn = nil
	m.err = nil
	m.userID = userID
	m.ready = make(chan struct{})
	m.up = make(chan struct{})
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	conn.On(models.EventStatusUpdate, m.handleStatusUpdate)
	go m.run(context.WithoutCancel(ctx), gen, conn, userID)
	return nil
}

func (m *Manager) run(ctx context.Context, gen uint64, conn *Conn, userID string) {
	err := conn.Connect(ctx)
	if err != nil {
		if !m.fail(gen, conn, err) {
			conn.Close()
			return
		}
		m.logger.Error("socket handshake failed", "user_id", userID, "error", err)
		m.notify(models.NoticeError, "Connection error: "+err.Error())
		m.audit(models.NoticeError, "socket handshake failed: "+err.Error(), userID)
		payload, _ := json.Marshal(models.ErrorEvent{Message: err.Error()})
		conn.enqueue(models.EventConnectError, payload)

		if err := conn.Reconnect(); err != nil {
			return
		}
	}
	if !m.connected(gen, conn) {
		conn.Close()
		return
	}
	if err != nil {
		m.logger.Info("socket recovered after failed handshake", "user_id", userID)
	}
}

// fail records a failed first handshake. The conn is kept so that Teardown
// stops its retries.
func (m *Manager) fail(gen uint64, conn *Conn, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.state != StateConnecting {
		return false
	}
	m.state = StateFailed
	m.err = err
	m.conn = conn
	closeSignal(&m.ready)
	return true
}

func (m *Manager) connected(gen uint64, conn *Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || (m.state != StateConnecting && m.state != StateFailed) {
		return false
	}
	m.state = StateConnected
	m.err = nil
	m.conn = conn
	m.resolveLocked()
	return true
}

func (m *Manager) resolveLocked() {
	closeSignal(&m.ready)
	closeSignal(&m.up)
}

func closeSignal(ch *chan struct{}) {
	if *ch != nil {
		close(*ch)
		*ch = nil
	}
}

// Lookup returns the live connection. ErrNotReady means the handshake is still
// in flight; any other error means there is no usable connection right now.
func (m *Manager) Lookup() (*Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateConnecting:
		return nil, ErrNotReady
	case StateConnected:
		return m.conn, nil
	case StateFailed:
		return nil, m.err
	default:
		return nil, ErrNoConnection
	}
}

// Wait blocks until the first handshake resolves and then behaves like Lookup.
func (m *Manager) Wait(ctx context.Context) (*Conn, error) {
	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()
	return m.await(ctx, ready)
}

// WaitConnected blocks until a handshake succeeds, retries included, or the
// manager is torn down.
func (m *Manager) WaitConnected(ctx context.Context) (*Conn, error) {
	m.mu.Lock()
	up := m.up
	m.mu.Unlock()
	return m.await(ctx, up)
}

func (m *Manager) await(ctx context.Context, ch <-chan struct{}) (*Conn, error) {
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Lookup()
}

// State reports the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnTeardown registers fn to run before the transport is closed.
func (m *Manager) OnTeardown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Teardown runs the teardown hooks, closes the transport and clears the handle.
func (m *Manager) Teardown() {
	m.mu.Lock()
	conn := m.conn
	hooks := m.hooks
	m.hooks = nil
	m.conn = nil
	m.err = nil
	m.gen++
	m.resolveLocked()
	if m.state != StateIdle {
		m.state = StateClosed
	}
	m.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	if conn != nil {
		conn.Close()
	}
}

func (m *Manager) handleStatusUpdate(data json.RawMessage) {
	var update models.StatusUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		m.logger.Warn("malformed statusUpdate", "error", err)
		return
	}
	if update.Action != models.StatusActionLogout {
		m.logger.Debug("ignoring statusUpdate", "action", update.Action)
		return
	}
	m.forceLogout(update.Message)
}

func (m *Manager) forceLogout(message string) {
	m.mu.Lock()
	userID := m.userID
	m.mu.Unlock()

	m.logger.Warn("server forced logout", "user_id", userID, "message", message)
	if m.opts.AuthState != nil {
		if err := m.opts.AuthState.Clear(context.Background()); err != nil {
			m.logger.Error("clear auth state failed", "error", err)
		}
	}
	if message == "" {
		message = "You have been logged out."
	}
	m.notify(models.NoticeWarning, message)
	m.audit(models.NoticeWarning, "forced logout: "+message, userID)

	m.Teardown()
	if m.opts.Navigator != nil {
		m.opts.Navigator.Redirect(m.opts.LoginPath)
	}
}

func (m *Manager) notify(level, text string) {
	if m.opts.Notifier != nil {
		m.opts.Notifier.Notify(level, text)
	}
}

func (m *Manager) audit(level, text, userID string) {
	m.opts.Audit.Emit(context.Background(), telemetry.AuditEvent{
		Level:     level,
		Component: "ws",
		Text:      text,
		UserID:    userID,
	})
}
