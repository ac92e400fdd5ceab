package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motors-client/internal/models"
)

func waitSignal(t *testing.T, ch <-chan json.RawMessage, what string) json.RawMessage {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func subscribe(c *Conn, event string) <-chan json.RawMessage {
	ch := make(chan json.RawMessage, 16)
	c.On(event, func(data json.RawMessage) {
		select {
		case ch <- data:
		default:
		}
	})
	return ch
}

func TestNewConnWithoutTokenNeverDials(t *testing.T) {
	ts := newTestServer(t)

	_, err := NewConn(ts.config(), "  ", "u1", nil)
	require.ErrorIs(t, err, ErrNoToken)

	_, err = Dial(context.Background(), ts.config(), "", "u1", nil)
	require.ErrorIs(t, err, ErrNoToken)
	assert.Zero(t, ts.dialCount())
}

func TestDialCarriesTokenAndAnnouncesUser(t *testing.T) {
	ts := newTestServer(t)

	conn, err := NewConn(ts.config(), "tok-1", "user-1", nil)
	require.NoError(t, err)
	defer conn.Close()
	connected := subscribe(conn, models.EventConnect)

	require.NoError(t, conn.Connect(context.Background()))
	assert.True(t, conn.Connected())

	join := ts.expect(models.EventJoin)
	var payload models.JoinPayload
	require.NoError(t, json.Unmarshal(join.Data, &payload))
	assert.Equal(t, "user-1", payload.UserID)
	waitSignal(t, connected, "connect")

	ts.mu.Lock()
	defer ts.mu.Unlock()
	assert.Equal(t, []string{"tok-1"}, ts.tokens)
	assert.Equal(t, []string{"Bearer tok-1"}, ts.auths)
}

func TestDialRejectedHandshake(t *testing.T) {
	ts := newTestServer(t)
	ts.setReject(true)

	_, err := Dial(context.Background(), ts.config(), "tok", "u1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRequestDecodesAck(t *testing.T) {
	ts := newTestServer(t)
	ts.reply(models.EventFetchConversations, models.ConversationIndex{
		Received: models.ProductMap{"car-1": {Users: models.UserMap{"b1": {Name: "Ann", ChatID: "r1"}}}},
	})
	conn, err := Dial(context.Background(), ts.config(), "tok", "u1", nil)
	require.NoError(t, err)
	defer conn.Close()

	var out models.ConversationIndex
	require.NoError(t, conn.Request(context.Background(), models.EventFetchConversations, nil, &out))
	assert.Equal(t, "r1", out.Received["car-1"].Users["b1"].ChatID)
}

func TestRequestAckError(t *testing.T) {
	ts := newTestServer(t)
	ts.mu.Lock()
	ts.ackErrs[models.EventFetchConversations] = "forbidden"
	ts.mu.Unlock()
	conn, err := Dial(context.Background(), ts.config(), "tok", "u1", nil)
	require.NoError(t, err)
	defer conn.Close()

	err = conn.Request(context.Background(), models.EventFetchConversations, nil, nil)
	var ackErr *AckError
	require.True(t, errors.As(err, &ackErr))
	assert.Equal(t, "forbidden", ackErr.Message)
}

func TestHandlerCanRequestFromInsideDispatch(t *testing.T) {
	ts := newTestServer(t)
	ts.reply(models.EventFetchConversations, models.ConversationIndex{})
	conn, err := NewConn(ts.config(), "tok", "u1", nil)
	require.NoError(t, err)
	defer conn.Close()

	done := make(chan json.RawMessage, 1)
	conn.On(models.EventConnect, func(json.RawMessage) {
		var out models.ConversationIndex
		if err := conn.Request(context.Background(), models.EventFetchConversations, nil, &out); err == nil {
			done <- nil
		}
	})
	require.NoError(t, conn.Connect(context.Background()))
	waitSignal(t, done, "fetch from connect handler")
}

func TestEmitAfterCloseFails(t *testing.T) {
	ts := newTestServer(t)
	conn, err := Dial(context.Background(), ts.config(), "tok", "u1", nil)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, conn.Connected())
	assert.ErrorIs(t, conn.Emit(context.Background(), models.EventJoinRoom, models.RoomPayload{RoomID: "r"}), ErrClosed)
	assert.ErrorIs(t, conn.Request(context.Background(), models.EventFetchConversations, nil, nil), ErrClosed)
}

func TestInboundEventsReachHandlers(t *testing.T) {
	ts := newTestServer(t)
	conn, err := Dial(context.Background(), ts.config(), "tok", "u1", nil)
	require.NoError(t, err)
	defer conn.Close()
	ts.expect(models.EventJoin)
	msgs := subscribe(conn, models.EventNewMessage)

	ts.push(models.EventNewMessage, models.NewMessageEvent{ChatID: "r1", Message: models.IncomingMessage{Content: "hi"}})

	var ev models.NewMessageEvent
	require.NoError(t, json.Unmarshal(waitSignal(t, msgs, "newMessage"), &ev))
	assert.Equal(t, "r1", ev.ChatID)
	assert.Equal(t, "hi", ev.Message.Content)
}

func TestReconnectAfterDrop(t *testing.T) {
	ts := newTestServer(t)
	conn, err := NewConn(ts.config(), "tok", "u1", nil)
	require.NoError(t, err)
	defer conn.Close()
	connected := subscribe(conn, models.EventConnect)
	msgs := subscribe(conn, models.EventNewMessage)

	require.NoError(t, conn.Connect(context.Background()))
	waitSignal(t, connected, "first connect")
	ts.expect(models.EventJoin)

	ts.dropLatest()
	waitSignal(t, connected, "reconnect")
	ts.expect(models.EventJoin)
	assert.Equal(t, 2, ts.dialCount())

	ts.push(models.EventNewMessage, models.NewMessageEvent{ChatID: "r1"})
	waitSignal(t, msgs, "newMessage after reconnect")
}

func TestReconnectReportsFailedAttempts(t *testing.T) {
	ts := newTestServer(t)
	conn, err := NewConn(ts.config(), "tok", "u1", nil)
	require.NoError(t, err)
	defer conn.Close()
	failures := subscribe(conn, models.EventConnectError)
	connected := subscribe(conn, models.EventConnect)
	require.NoError(t, conn.Connect(context.Background()))
	waitSignal(t, connected, "first connect")
	ts.expect(models.EventJoin)

	ts.setReject(true)
	ts.dropLatest()

	var ev models.ErrorEvent
	require.NoError(t, json.Unmarshal(waitSignal(t, failures, "connect_error"), &ev))
	assert.NotEmpty(t, ev.Message)
	assert.False(t, conn.Connected())

	ts.setReject(false)
	waitSignal(t, connected, "recovery")
	assert.True(t, conn.Connected())
}
