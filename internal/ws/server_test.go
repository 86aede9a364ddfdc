package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ventline/internal/callgateway"
	"ventline/internal/config"
	"ventline/internal/ledger"
	"ventline/internal/matchmaking"
	"ventline/internal/pending"
	"ventline/internal/testutil"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	cfg := config.CallConfig{
		DefaultDuration:        10 * time.Minute,
		MaxDuration:            60 * time.Minute,
		ReadyTimeout:           time.Hour,
		DisconnectGrace:        15 * time.Second,
		HeartbeatTimeout:       15 * time.Second,
		InitialTimeBankMinutes: 30,
		InitialReputation:      50,
		DailyMatchAllowance:    5,
	}
	ms := testutil.NewMemStore()
	reg := NewRegistry()
	reg.replacedCloseDelay = 20 * time.Millisecond
	coord := callgateway.NewCoordinator(ms, matchmaking.NewQueue(ms, cfg.HeartbeatTimeout), ledger.New(ms, cfg),
		pending.NewMemoryCache(time.Minute), reg, cfg)
	srv := NewServer(reg, coord, time.Second)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)
	return ts, reg
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var m map[string]any
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if m["type"] == want {
			return m
		}
	}
}

func waitLive(t *testing.T, reg *Registry, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.IsLive(sessionID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never registered", sessionID)
}

func TestWebSocketMatchAndHandshake(t *testing.T) {
	ts, reg := newTestServer(t)
	a := dial(t, ts)
	b := dial(t, ts)

	_ = a.WriteJSON(map[string]any{"type": "register", "sessionId": "a"})
	_ = b.WriteJSON(map[string]any{"type": "register", "sessionId": "b"})
	waitLive(t, reg, "a")
	waitLive(t, reg, "b")

	_ = a.WriteJSON(map[string]any{"type": "join_queue", "mood": "vent", "cardId": "c1"})
	if m := readType(t, a, "waiting"); m["mood"] != "vent" {
		t.Fatalf("unexpected waiting: %v", m)
	}
	_ = b.WriteJSON(map[string]any{"type": "join_queue", "mood": "listen", "cardId": "c2"})

	fa := readType(t, a, "match_found")
	fb := readType(t, b, "match_found")
	if fa["callId"] != fb["callId"] || fa["partnerId"] != "b" || fb["partnerId"] != "a" {
		t.Fatalf("unexpected match: a=%v b=%v", fa, fb)
	}

	_ = a.WriteJSON(map[string]any{"type": "call_ready", "callId": fa["callId"]})
	readType(t, a, "waiting_for_partner")
	_ = b.WriteJSON(map[string]any{"type": "call_ready", "callId": fb["callId"]})
	sa := readType(t, a, "call_started")
	sb := readType(t, b, "call_started")
	if sa["startedAt"] != sb["startedAt"] {
		t.Fatalf("startedAt differs: %v vs %v", sa["startedAt"], sb["startedAt"])
	}

	_ = b.WriteJSON(map[string]any{"type": "end_call", "reason": "normal", "remainingSeconds": 300})
	if m := readType(t, a, "call_ended"); m["reason"] != "normal" {
		t.Fatalf("unexpected call_ended: %v", m)
	}
}

func TestWebSocketIgnoresMalformedFrames(t *testing.T) {
	ts, reg := newTestServer(t)
	a := dial(t, ts)

	_ = a.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_queue","mood":"vent"}`))
	_ = a.WriteMessage(websocket.TextMessage, []byte(`garbage`))
	_ = a.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`))
	_ = a.WriteJSON(map[string]any{"type": "register", "sessionId": "a"})
	waitLive(t, reg, "a")

	_ = a.WriteJSON(map[string]any{"type": "join_queue", "mood": "listen"})
	if m := readType(t, a, "waiting"); m["mood"] != "listen" {
		t.Fatalf("connection should survive bad frames, got %v", m)
	}
}

func TestWebSocketReplacedConnection(t *testing.T) {
	ts, reg := newTestServer(t)
	first := dial(t, ts)
	_ = first.WriteJSON(map[string]any{"type": "register", "sessionId": "a"})
	waitLive(t, reg, "a")

	second := dial(t, ts)
	_ = second.WriteJSON(map[string]any{"type": "register", "sessionId": "a"})
	readType(t, first, "connection_replaced")

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	if !reg.IsLive("a") {
		t.Fatal("closing the replaced connection must not evict the new one")
	}
	_ = second.WriteJSON(map[string]any{"type": "join_queue", "mood": "vent"})
	readType(t, second, "waiting")
}
