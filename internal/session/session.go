package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"motors-client/internal/inbox"
	"motors-client/internal/models"
	"motors-client/internal/repositories"
	"motors-client/internal/telemetry"
	"motors-client/internal/ui"
	"motors-client/internal/ws"
)

var (
	ErrNoSession   = errors.New("session: not signed in")
	ErrMissingUser = errors.New("session: user id required")
)

// Connector is the connection provider a session drives.
type Connector interface {
	Start(ctx context.Context, token, userID string) error
	WaitConnected(ctx context.Context) (*ws.Conn, error)
	Lookup() (*ws.Conn, error)
	OnTeardown(fn func())
	Teardown()
	State() ws.State
}

// Options wires a Session.
type Options struct {
	Manager      Connector
	AuthState    repositories.AuthStateRepository
	Navigator    *ui.Navigator
	Notices      *ui.NoticeBoard
	Audit        *telemetry.AuditEmitter
	Location     *time.Location
	LoginPath    string
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// Status summarizes the session for the UI.
type Status struct {
	SignedIn bool         `json:"signedIn"`
	User     *models.User `json:"user,omitempty"`
	State    string       `json:"connection"`
	Error    string       `json:"error,omitempty"`
}

// Session is the authenticated page tree: it owns the connection provider and
// mounts the conversation store once the connection is up.
type Session struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	user  *models.User
	store *inbox.Store
	gen   uint64
}

// New builds a signed-out Session.
func New(opts Options) *Session {
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, logger: logger.With("component", "session")}
}

// Begin persists credentials and starts the connection.
func (s *Session) Begin(ctx context.Context, state models.AuthState) error {
	user, err := state.User()
	if err != nil {
		return fmt.Errorf("session: decode user: %w", err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(state.Token) == "" {
		return ws.ErrNoToken
	}
	if err := checkExpiry(state.Token, time.Now()); err != nil {
		return err
	}
	s.End(ctx, false)

	state.UpdatedAt = time.Now().UTC()
	if err := s.opts.AuthState.Save(ctx, state); err != nil {
		return fmt.Errorf("session: save auth state: %w", err)
	}
	return s.start(ctx, state.Token, user)
}

// Restore resumes a session from persisted credentials. It is a no-op when
// nobody is signed in.
func (s *Session) Restore(ctx context.Context) error {
	state, err := s.opts.AuthState.Load(ctx)
	if errors.Is(err, repositories.ErrNoAuthState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: load auth state: %w", err)
	}
	user, err := state.User()
	if err != nil || user.ID == "" {
		s.logger.Warn("discarding auth state without a usable user", "error", err)
		return s.opts.AuthState.Clear(ctx)
	}
	if err := checkExpiry(state.Token, time.Now()); err != nil {
		s.logger.Info("stored token expired, signing out", "user_id", user.ID)
		if s.opts.Notices != nil {
			s.opts.Notices.Notify(models.NoticeWarning, "Your session has expired. Please sign in again.")
		}
		return s.opts.AuthState.Clear(ctx)
	}
	return s.start(ctx, state.Token, user)
}

func (s *Session) start(ctx context.Context, token string, user models.User) error {
	if err := s.opts.Manager.Start(ctx, token, user.ID); err != nil {
		return err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.user = &user
	s.mu.Unlock()

	s.opts.Manager.OnTeardown(func() { s.unmount(gen) })
	go s.mountWhenReady(gen, user.ID)
	return nil
}

func (s *Session) mountWhenReady(gen uint64, userID string) {
	conn, err := s.opts.Manager.WaitConnected(context.Background())
	if err != nil {
		s.logger.Info("session ended before the connection came up", "user_id", userID, "error", err)
		return
	}

	store := inbox.NewStore(conn, inbox.Options{
		ViewerID:     userID,
		Navigator:    s.opts.Navigator,
		Notifier:     s.opts.Notices,
		Audit:        s.opts.Audit,
		Location:     s.opts.Location,
		FetchTimeout: s.opts.FetchTimeout,
		Logger:       s.logger,
	})

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.store = store
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout())
	defer cancel()
	if err := store.Mount(ctx); err != nil {
		s.logger.Warn("initial conversation fetch failed", "error", err)
	}
}

func (s *Session) fetchTimeout() time.Duration {
	if s.opts.FetchTimeout > 0 {
		return s.opts.FetchTimeout
	}
	return 15 * time.Second
}

func (s *Session) unmount(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	store := s.store
	s.store = nil
	s.user = nil
	s.gen++
	s.mu.Unlock()

	if store != nil {
		store.Unmount(context.Background())
	}
}

// End signs out. With clear set the persisted credentials are wiped and the
// navigator is sent to the login page.
func (s *Session) End(ctx context.Context, clear bool) {
	s.opts.Manager.Teardown()
	if !clear {
		return
	}
	if err := s.opts.AuthState.Clear(ctx); err != nil {
		s.logger.Error("clear auth state failed", "error", err)
	}
	if s.opts.Navigator != nil {
		s.opts.Navigator.Redirect(s.opts.LoginPath)
	}
}

// Inbox returns the mounted conversation store. ws.ErrNotReady means the
// connection is still coming up.
func (s *Session) Inbox() (*inbox.Store, error) {
	s.mu.Lock()
	signedIn := s.user != nil
	store := s.store
	s.mu.Unlock()
	if !signedIn {
		return nil, ErrNoSession
	}
	if store != nil {
		return store, nil
	}
	if _, err := s.opts.Manager.Lookup(); err != nil {
		if errors.Is(err, ws.ErrNoConnection) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	// Connected but the store is still being mounted.
	return nil, ws.ErrNotReady
}

// User returns the signed-in user.
func (s *Session) User() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Status reports the signed-in user and the connection phase.
func (s *Session) Status() Status {
	st := Status{State: s.opts.Manager.State().String()}
	if u, ok := s.User(); ok {
		st.SignedIn = true
		st.User = &u
	}
	if _, err := s.opts.Manager.Lookup(); err != nil && !errors.Is(err, ws.ErrNotReady) && !errors.Is(err, ws.ErrNoConnection) {
		st.Error = err.Error()
	}
	return st
}

// EncodeUser renders a user for the persisted auth state.
func EncodeUser(u models.User) (string, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
