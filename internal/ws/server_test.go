package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"motors-client/internal/models"
)

// testServer is a minimal realtime backend. It acks every frame that carries
// an id and records everything it receives.
type testServer struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	conns   []*serverConn
	tokens  []string
	auths   []string
	dials   int
	reject  bool
	replies map[string]json.RawMessage
	ackErrs map[string]string

	frames chan models.Frame
}

type serverConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (s *serverConn) send(frame models.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.WriteJSON(frame)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		t:       t,
		replies: make(map[string]json.RawMessage),
		ackErrs: make(map[string]string),
		frames:  make(chan models.Frame, 256),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.dials++
		reject := ts.reject
		ts.mu.Unlock()
		if reject {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := &serverConn{ws: conn}
		ts.mu.Lock()
		ts.conns = append(ts.conns, sc)
		ts.tokens = append(ts.tokens, r.URL.Query().Get("token"))
		ts.auths = append(ts.auths, r.Header.Get("Authorization"))
		ts.mu.Unlock()
		ts.serve(sc)
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) serve(sc *serverConn) {
	defer sc.ws.Close()
	for {
		var frame models.Frame
		if err := sc.ws.ReadJSON(&frame); err != nil {
			return
		}
		select {
		case ts.frames <- frame:
		default:
		}
		if frame.ID == "" {
			continue
		}
		ts.mu.Lock()
		data := ts.replies[frame.Event]
		ackErr := ts.ackErrs[frame.Event]
		ts.mu.Unlock()
		_ = sc.send(models.Frame{Event: models.EventAck, ID: frame.ID, Data: data, Error: ackErr})
	}
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) config() Config {
	return Config{
		URL:          ts.url(),
		DialTimeout:  time.Second,
		AckTimeout:   time.Second,
		RetryBackoff: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond},
	}
}

func (ts *testServer) reply(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		ts.t.Fatalf("marshal reply: %v", err)
	}
	ts.mu.Lock()
	ts.replies[event] = raw
	ts.mu.Unlock()
}

func (ts *testServer) setReject(v bool) {
	ts.mu.Lock()
	ts.reject = v
	ts.mu.Unlock()
}

func (ts *testServer) dialCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.dials
}

func (ts *testServer) latest() *serverConn {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.conns) == 0 {
		return nil
	}
	return ts.conns[len(ts.conns)-1]
}

// push sends an event to the most recent client.
func (ts *testServer) push(event string, payload any) {
	ts.t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		ts.t.Fatalf("marshal push: %v", err)
	}
	sc := ts.latest()
	if sc == nil {
		ts.t.Fatalf("no client connected")
	}
	if err := sc.send(models.Frame{Event: event, Data: raw}); err != nil {
		ts.t.Fatalf("push %s: %v", event, err)
	}
}

// dropLatest kills the most recent client transport.
func (ts *testServer) dropLatest() {
	if sc := ts.latest(); sc != nil {
		sc.ws.Close()
	}
}

// expect waits for the next received frame with the given event name.
func (ts *testServer) expect(event string) models.Frame {
	ts.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame := <-ts.frames:
			if frame.Event == event {
				return frame
			}
		case <-deadline:
			ts.t.Fatalf("timed out waiting for %s", event)
			return models.Frame{}
		}
	}
}
