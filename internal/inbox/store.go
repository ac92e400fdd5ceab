package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"motors-client/internal/models"
	"motors-client/internal/telemetry"
	"motors-client/internal/ws"
)

var (
	ErrThreadNotFound   = errors.New("inbox: conversation not found")
	ErrNoActiveThread   = errors.New("inbox: no conversation selected")
	ErrEmptyMessage     = errors.New("inbox: message is empty")
	ErrSelfConversation = errors.New("inbox: cannot message yourself")
)

// TimestampLayout is how message times are shown.
const TimestampLayout = "03:04 PM"

// KeyEscape closes the open thread.
const KeyEscape = "Escape"

// Socket is the part of the realtime connection the store needs.
type Socket interface {
	ws.Subscriber
	Emit(ctx context.Context, event string, payload any) error
	Request(ctx context.Context, event string, payload any, out any) error
	Connected() bool
}

// Navigator keeps the open thread in the navigable location.
type Navigator interface {
	SetThread(ref models.ThreadRef)
	ClearThread()
}

// Notifier shows transient notices.
type Notifier interface {
	Notify(level, text string)
}

// Options configures a Store.
type Options struct {
	ViewerID     string
	Navigator    Navigator
	Notifier     Notifier
	Audit        *telemetry.AuditEmitter
	Location     *time.Location
	FetchTimeout time.Duration
	// OnActiveUpdate fires when a message lands in the open thread.
	OnActiveUpdate func(ref models.ThreadRef)
	Logger         *slog.Logger
}

// View is what the conversation page renders.
type View struct {
	Conversations models.ConversationIndex `json:"conversations"`
	Active        *ActiveThread            `json:"active,omitempty"`
	Loading       bool                     `json:"loading"`
	Error         string                   `json:"error,omitempty"`
}

// ActiveThread is the open conversation pane.
type ActiveThread struct {
	Location
	ChatID   string                `json:"chatId"`
	Name     string                `json:"name"`
	Product  models.ProductDetails `json:"product"`
	Messages []models.Message      `json:"messages"`
}

// Store is the local mirror of the viewer's conversations. The server copy is
// authoritative: snapshots replace the mirror and push events patch it.
type Store struct {
	socket Socket
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	idx      *index
	active   *Location
	joined   string
	inflight int
	lastErr  string
	scope    *ws.Scope
}

// NewStore creates an unmounted store over socket.
func NewStore(socket Socket, opts Options) *Store {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		socket: socket,
		opts:   opts,
		logger: logger.With("component", "inbox", "viewer_id", opts.ViewerID),
		idx:    newIndex(),
	}
}

// Mount subscribes to push events and loads the first snapshot when the
// socket is already up.
func (s *Store) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.scope != nil {
		s.mu.Unlock()
		return nil
	}
	scope := ws.NewScope(s.socket)
	scope.On(models.EventConnect, s.onConnect)
	scope.On(models.EventConnectError, s.onConnectError)
	scope.On(models.EventNewMessage, s.onNewMessage)
	scope.On(models.EventMessageError, s.onMessageError)
	s.scope = scope
	s.mu.Unlock()

	if s.socket.Connected() {
		return s.FetchConversations(ctx)
	}
	return nil
}

// Unmount leaves the joined room and drops every subscription.
func (s *Store) Unmount(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope == nil {
		return
	}
	s.active = nil
	s.syncRoomLocked(ctx)
	s.scope.Close()
	s.scope = nil
}

// FetchConversations replaces the mirror with a fresh snapshot. On failure
// the current mirror is kept and the error is surfaced.
func (s *Store) FetchConversations(ctx context.Context) error {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	var snapshot models.ConversationIndex
	err := s.socket.Request(ctx, models.EventFetchConversations, nil, &snapshot)

	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.logger.Warn("fetch conversations failed", "error", err)
		s.notify(models.NoticeError, "Failed to load conversations: "+err.Error())
		return fmt.Errorf("inbox: fetch conversations: %w", err)
	}
	s.replaceLocked(snapshot)
	s.lastErr = ""
	s.syncRoomLocked(ctx)
	s.mu.Unlock()
	return nil
}

// replaceLocked swaps in a snapshot, carrying over a local draft thread the
// server does not know about yet.
func (s *Store) replaceLocked(snapshot models.ConversationIndex) {
	next := indexFrom(snapshot)
	if s.active != nil {
		loc := *s.active
		if _, ok := next.threads[loc]; !ok {
			if draft, ok := s.idx.threads[loc]; ok && draft.chatID == "" {
				next.products[loc.Direction][loc.ProductID] = s.idx.products[loc.Direction][loc.ProductID]
				next.put(loc, draft)
			} else {
				s.active = nil
			}
		}
	}
	s.idx = next
}

// SelectConversation opens the thread with userID about productID.
func (s *Store) SelectConversation(ctx context.Context, productID, userID string) error {
	s.mu.Lock()
	loc, ok := s.idx.find(productID, userID)
	if !ok {
		s.mu.Unlock()
		s.notify(models.NoticeError, "Conversation not found.")
		return ErrThreadNotFound
	}
	s.active = &loc
	s.syncRoomLocked(ctx)
	ref := s.refLocked(loc)
	s.mu.Unlock()

	if s.opts.Navigator != nil {
		s.opts.Navigator.SetThread(ref)
	}
	return nil
}

// UnselectConversation closes the open thread and leaves its room.
func (s *Store) UnselectConversation(ctx context.Context) {
	s.mu.Lock()
	s.active = nil
	s.syncRoomLocked(ctx)
	s.mu.Unlock()

	if s.opts.Navigator != nil {
		s.opts.Navigator.ClearThread()
	}
}

// HandleKey closes the open thread on Escape. It reports whether the key was used.
func (s *Store) HandleKey(ctx context.Context, key string) bool {
	if key != KeyEscape {
		return false
	}
	s.mu.Lock()
	open := s.active != nil
	s.mu.Unlock()
	if !open {
		return false
	}
	s.UnselectConversation(ctx)
	return true
}

// OpenDraft starts a local thread with a seller the viewer has not messaged
// about listingID yet, and opens it. The server allocates the room on the
// first message.
func (s *Store) OpenDraft(ctx context.Context, listingID, sellerID, sellerName string, details models.ProductDetails) error {
	if sellerID == s.opts.ViewerID {
		return ErrSelfConversation
	}
	s.mu.Lock()
	if _, ok := s.idx.find(listingID, sellerID); !ok {
		loc := Location{Direction: models.DirectionSent, ProductID: listingID, UserID: sellerID}
		s.idx.products[models.DirectionSent][listingID] = details
		s.idx.put(loc, &thread{name: sellerName})
	}
	s.mu.Unlock()
	return s.SelectConversation(ctx, listingID, sellerID)
}

// Resume reopens the thread a navigable reference points to.
func (s *Store) Resume(ctx context.Context, ref models.ThreadRef) error {
	if ref.ChatID != "" {
		s.mu.Lock()
		loc, ok := s.idx.byChat[ref.ChatID]
		s.mu.Unlock()
		if !ok {
			s.notify(models.NoticeError, "Conversation not found.")
			return ErrThreadNotFound
		}
		return s.SelectConversation(ctx, loc.ProductID, loc.UserID)
	}
	if ref.ProductID == "" || ref.UserID == "" {
		return ErrThreadNotFound
	}
	return s.SelectConversation(ctx, ref.ProductID, ref.UserID)
}

// SendMessage posts text to the open thread. Nothing is echoed locally; the
// message appears once the server pushes it back.
func (s *Store) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return ErrNoActiveThread
	}
	loc := *s.active
	t, ok := s.idx.threads[loc]
	if !ok {
		s.mu.Unlock()
		s.notify(models.NoticeError, "Conversation not found.")
		return ErrThreadNotFound
	}
	chatID := t.chatID
	s.mu.Unlock()

	var err error
	if chatID != "" {
		err = s.socket.Emit(ctx, models.EventSendMessage, models.SendMessagePayload{
			ChatID:  chatID,
			Message: text,
		})
	} else {
		err = s.socket.Emit(ctx, models.EventSendInitialMessage, models.InitialMessagePayload{
			SellerID:  loc.UserID,
			ListingID: loc.ProductID,
			Message:   text,
			Initiator: s.opts.ViewerID,
		})
	}
	if err != nil {
		s.logger.Warn("send message failed", "chat_id", chatID, "error", err)
		s.notify(models.NoticeError, "Failed to send message: "+err.Error())
		s.opts.Audit.Emit(ctx, telemetry.AuditEvent{
			Level:     models.NoticeError,
			Component: "inbox",
			Text:      "send failed: " + err.Error(),
			UserID:    s.opts.ViewerID,
		})
		return fmt.Errorf("inbox: send: %w", err)
	}
	return nil
}

// View renders the page state.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Conversations: s.idx.render(),
		Loading:       s.inflight > 0,
		Error:         s.lastErr,
	}
	if s.active != nil {
		if t, ok := s.idx.threads[*s.active]; ok {
			tv := t.view()
			v.Active = &ActiveThread{
				Location: *s.active,
				ChatID:   tv.ChatID,
				Name:     tv.Name,
				Product:  s.idx.products[s.active.Direction][s.active.ProductID],
				Messages: tv.Messages,
			}
		}
	}
	return v
}

// Snapshot returns a copy of the conversation index.
func (s *Store) Snapshot() models.ConversationIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.render()
}

// Loading reports whether a snapshot fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// JoinedRoom returns the room the store is currently a member of.
func (s *Store) JoinedRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

// syncRoomLocked makes room membership match the open thread. Calling it
// again without a change emits nothing.
func (s *Store) syncRoomLocked(ctx context.Context) {
	want := ""
	if s.active != nil {
		if t, ok := s.idx.threads[*s.active]; ok {
			want = t.chatID
		}
	}
	if s.joined == want {
		return
	}
	if s.joined != "" {
		if err := s.socket.Emit(ctx, models.EventLeaveRoom, models.RoomPayload{RoomID: s.joined}); err != nil {
			s.logger.Warn("leave room failed", "room", s.joined, "error", err)
		}
		s.joined = ""
	}
	if want != "" {
		if err := s.socket.Emit(ctx, models.EventJoinRoom, models.RoomPayload{RoomID: want}); err != nil {
			s.logger.Warn("join room failed", "room", want, "error", err)
			return
		}
		s.joined = want
	}
}

func (s *Store) refLocked(loc Location) models.ThreadRef {
	ref := models.ThreadRef{ProductID: loc.ProductID, UserID: loc.UserID}
	if t, ok := s.idx.threads[loc]; ok {
		ref.ChatID = t.chatID
	}
	return ref
}

func (s *Store) onConnect(json.RawMessage) {
	// Room membership does not survive a new transport.
	s.mu.Lock()
	s.joined = ""
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
	defer cancel()
	_ = s.FetchConversations(ctx)

	s.mu.Lock()
	s.syncRoomLocked(ctx)
	s.mu.Unlock()
}

func (s *Store) onConnectError(data json.RawMessage) {
	var ev models.ErrorEvent
	_ = json.Unmarshal(data, &ev)
	s.notify(models.NoticeError, "Connection error: "+ev.Message)
}

func (s *Store) onMessageError(data json.RawMessage) {
	var ev models.ErrorEvent
	_ = json.Unmarshal(data, &ev)
	if ev.Message == "" {
		ev.Message = "message could not be delivered"
	}
	s.notify(models.NoticeError, ev.Message)
}

func (s *Store) onNewMessage(data json.RawMessage) {
	var ev models.NewMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("malformed newMessage", "error", err)
		return
	}
	msg := s.normalize(ev.Message)

	s.mu.Lock()
	loc, ok := s.idx.byChat[ev.ChatID]
	if !ok {
		s.mu.Unlock()
		s.logger.Info("message for unknown chat, resyncing", "chat_id", ev.ChatID)
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
		defer cancel()
		_ = s.FetchConversations(ctx)
		return
	}
	t := s.idx.threads[loc]
	t.messages = append(t.messages, msg)
	isActive := s.active != nil && *s.active == loc
	ref := s.refLocked(loc)
	s.mu.Unlock()

	if isActive && s.opts.OnActiveUpdate != nil {
		s.opts.OnActiveUpdate(ref)
	}
}

func (s *Store) normalize(in models.IncomingMessage) models.Message {
	sender := in.Sender.ID
	if sender == s.opts.ViewerID {
		sender = models.SenderMe
	}
	at := in.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return models.Message{
		Text:      in.Content,
		Sender:    sender,
		Timestamp: at.In(s.opts.Location).Format(TimestampLayout),
	}
}

func (s *Store) notify(level, text string) {
	if s.opts.Notifier != nil {
		s.opts.Notifier.Notify(level, text)
	}
}
