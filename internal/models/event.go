package models

import (
	"encoding/json"
	"time"
)

// Realtime event names.
const (
	EventConnect            = "connect"
	EventConnectError       = "connect_error"
	EventAck                = "ack"
	EventJoin               = "join"
	EventFetchConversations = "fetchConversations"
	EventSendMessage        = "sendMessage"
	EventSendInitialMessage = "sendInitialMessage"
	EventJoinRoom           = "joinRoom"
	EventLeaveRoom          = "leaveRoom"
	EventStatusUpdate       = "statusUpdate"
	EventNewMessage         = "newMessage"
	EventMessageError       = "messageError"
)

// StatusActionLogout tags a server-forced logout.
const StatusActionLogout = "LOGOUT"

// Frame is the JSON envelope carried by every websocket text frame.
type Frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// JoinPayload identifies the user after connecting.
type JoinPayload struct {
	UserID string `json:"userId"`
}

// RoomPayload is used for joinRoom and leaveRoom.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// SendMessagePayload appends to an existing room.
type SendMessagePayload struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// InitialMessagePayload starts a conversation on a listing.
type InitialMessagePayload struct {
	SellerID  string `json:"sellerId"`
	ListingID string `json:"listingId"`
	Message   string `json:"message"`
	Initiator string `json:"initiator"`
}

// ErrorEvent is the payload of connect_error and messageError.
type ErrorEvent struct {
	Message string `json:"message"`
}

// StatusUpdate is pushed by the server to override session state.
type StatusUpdate struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// NewMessageEvent announces a message persisted in a room.
type NewMessageEvent struct {
	ChatID  string          `json:"chatId"`
	Message IncomingMessage `json:"message"`
}

// IncomingMessage is the server representation of a message.
type IncomingMessage struct {
	Content   string    `json:"content"`
	Sender    SenderRef `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts createdAt as RFC 3339 text or epoch milliseconds.
// Anything else leaves CreatedAt zero so the message is still delivered.
func (m *IncomingMessage) UnmarshalJSON(data []byte) error {
	type plain IncomingMessage
	aux := struct {
		*plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.CreatedAt = parseCreatedAt(aux.CreatedAt)
	return nil
}

func parseCreatedAt(raw json.RawMessage) time.Time {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return t
		}
		return time.Time{}
	}
	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil && millis > 0 {
		return time.UnixMilli(millis)
	}
	return time.Time{}
}

// SenderRef references the author of a message.
type SenderRef struct {
	ID string `json:"_id"`
}
