package callgateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ventline/internal/config"
	"ventline/internal/ledger"
	"ventline/internal/matchmaking"
	"ventline/internal/pending"
	"ventline/internal/testutil"
)

type fakeConns struct {
	mu      sync.Mutex
	live    map[string]bool
	dropped map[string]bool
	sent    map[string][]map[string]any
}

func newFakeConns() *fakeConns {
	return &fakeConns{live: map[string]bool{}, dropped: map[string]bool{}, sent: map[string][]map[string]any{}}
}

func (f *fakeConns) IsLive(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[sessionID]
}

func (f *fakeConns) Send(sessionID string, msg any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[sessionID] || f.dropped[sessionID] {
		return false
	}
	raw, _ := json.Marshal(msg)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	f.sent[sessionID] = append(f.sent[sessionID], m)
	return true
}

func (f *fakeConns) setLive(sessionID string, live bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[sessionID] = live
}

func (f *fakeConns) setDropped(sessionID string, dropped bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped[sessionID] = dropped
}

func (f *fakeConns) ofType(sessionID, typ string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, m := range f.sent[sessionID] {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	coord *Coordinator
	conns *fakeConns
	store *testutil.MemStore
	cache *pending.MemoryCache
	led   *ledger.Ledger
	clock *fakeClock
	ctx   context.Context
}

func testCallConfig() config.CallConfig {
	return config.CallConfig{
		DefaultDuration:        10 * time.Minute,
		MaxDuration:            60 * time.Minute,
		ReadyTimeout:           time.Hour,
		DisconnectGrace:        15 * time.Second,
		HeartbeatTimeout:       15 * time.Second,
		InitialTimeBankMinutes: 30,
		InitialReputation:      50,
		DailyMatchAllowance:    5,
	}
}

func newHarness(t *testing.T, cfg config.CallConfig) *harness {
	t.Helper()
	ms := testutil.NewMemStore()
	conns := newFakeConns()
	cache := pending.NewMemoryCache(time.Minute)
	led := ledger.New(ms, cfg)
	queue := matchmaking.NewQueue(ms, cfg.HeartbeatTimeout)
	coord := NewCoordinator(ms, queue, led, cache, conns, cfg)
	clock := &fakeClock{t: time.Now()}
	coord.now = clock.Now
	return &harness{coord: coord, conns: conns, store: ms, cache: cache, led: led, clock: clock, ctx: context.Background()}
}

func (h *harness) connect(sessionID string) {
	h.conns.setLive(sessionID, true)
	h.coord.Register(h.ctx, sessionID)
}

// match pairs venter with listener and returns the call id.
func (h *harness) match(t *testing.T, venter, listener string) string {
	t.Helper()
	h.connect(venter)
	h.connect(listener)
	h.coord.JoinQueue(h.ctx, JoinRequest{SessionID: venter, Mood: "vent", CardID: "card_" + venter})
	h.coord.JoinQueue(h.ctx, JoinRequest{SessionID: listener, Mood: "listen", CardID: "card_" + listener})
	found := h.conns.ofType(venter, "match_found")
	if len(found) != 1 {
		t.Fatalf("expected one match_found for %s, got %d", venter, len(found))
	}
	return found[0]["callId"].(string)
}

// start matches the pair and completes the ready handshake.
func (h *harness) start(t *testing.T, venter, listener string) string {
	t.Helper()
	callID := h.match(t, venter, listener)
	h.coord.Ready(h.ctx, venter, callID)
	h.coord.Ready(h.ctx, listener, callID)
	rt, ok := h.coord.RuntimeFor(venter)
	if !ok || !rt.Active {
		t.Fatalf("expected active call after handshake")
	}
	return callID
}

func (h *harness) timeBank(t *testing.T, sessionID string) int64 {
	t.Helper()
	a, err := h.store.GetAccount(h.ctx, sessionID)
	if err != nil {
		t.Fatalf("get account %s: %v", sessionID, err)
	}
	return a.TimeBankMinutes
}

func (h *harness) reputation(t *testing.T, sessionID string) int64 {
	t.Helper()
	a, err := h.store.GetAccount(h.ctx, sessionID)
	if err != nil {
		t.Fatalf("get account %s: %v", sessionID, err)
	}
	return a.Reputation
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type failingCache struct {
	err error
}

func (f *failingCache) Put(context.Context, string, pending.Event) error { return f.err }

func (f *failingCache) Take(context.Context, string) (*pending.Event, error) { return nil, f.err }

func (f *failingCache) Delete(context.Context, ...string) error { return f.err }
