package matchmaking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ventline/internal/store"
	"ventline/internal/testutil"
)

type livePresence map[string]bool

func (p livePresence) IsLive(sessionID string) bool { return p[sessionID] }

func allLive(ids ...string) livePresence {
	p := livePresence{}
	for _, id := range ids {
		p[id] = true
	}
	return p
}

func newTestQueue() (*Queue, *testutil.MemStore) {
	ms := testutil.NewMemStore()
	return NewQueue(ms, 15*time.Second), ms
}

func TestJoinReplacesPriorEntryAndPurgesStale(t *testing.T) {
	q, ms := newTestQueue()
	ctx := context.Background()
	stale := time.Now().Add(-time.Minute)
	_ = ms.InsertQueueEntry(ctx, store.QueueEntry{SessionID: "ghost", Mood: store.MoodListen, Status: store.EntryWaiting, LastHeartbeat: stale, JoinedAt: stale})

	if _, err := q.Join(ctx, store.QueueEntry{SessionID: "a", Mood: store.MoodVent, CardID: "c1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := q.Join(ctx, store.QueueEntry{SessionID: "a", Mood: store.MoodListen, CardID: "c2"}); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if ms.QueueLen() != 1 {
		t.Fatalf("expected only the rejoined entry, got %d", ms.QueueLen())
	}
	e, err := ms.GetQueueEntry(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Mood != store.MoodListen || e.CardID != "c2" || e.Status != store.EntryWaiting {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	q, _ := newTestQueue()
	if err := q.Leave(context.Background(), "nobody"); err != nil {
		t.Fatalf("leave absent: %v", err)
	}
}

func TestUpdateHeartbeatReportsPresence(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()
	ok, err := q.UpdateHeartbeat(ctx, "a")
	if err != nil || ok {
		t.Fatalf("expected no entry, ok=%v err=%v", ok, err)
	}
	_, _ = q.Join(ctx, store.QueueEntry{SessionID: "a", Mood: store.MoodVent})
	ok, err = q.UpdateHeartbeat(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("expected ack, ok=%v err=%v", ok, err)
	}
}

func TestFindAndClaimOrderingAndSkips(t *testing.T) {
	q, ms := newTestQueue()
	ctx := context.Background()
	base := time.Now()
	for _, e := range []store.QueueEntry{
		{SessionID: "offline", Mood: store.MoodListen, IsPriority: true, JoinedAt: base},
		{SessionID: "first", Mood: store.MoodListen, JoinedAt: base.Add(time.Millisecond)},
		{SessionID: "vip", Mood: store.MoodListen, IsPriority: true, JoinedAt: base.Add(2 * time.Millisecond)},
		{SessionID: "self", Mood: store.MoodListen, IsPriority: true, JoinedAt: base},
	} {
		e.Status = store.EntryWaiting
		e.LastHeartbeat = base
		_ = ms.InsertQueueEntry(ctx, e)
	}

	got, err := q.FindAndClaim(ctx, store.MoodVent, allLive("first", "vip", "self"), "self")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.SessionID != "vip" || got.Status != store.EntryMatched {
		t.Fatalf("expected vip claimed, got %+v", got)
	}
	if _, err := ms.GetQueueEntry(ctx, "offline"); err != nil {
		t.Fatalf("offline candidate must stay queued: %v", err)
	}

	got, _ = q.FindAndClaim(ctx, store.MoodVent, allLive("first", "vip", "self"), "self")
	if got == nil || got.SessionID != "first" {
		t.Fatalf("expected first claimed next, got %+v", got)
	}
	got, _ = q.FindAndClaim(ctx, store.MoodVent, allLive("first", "vip", "self"), "self")
	if got != nil {
		t.Fatalf("expected nobody left, got %+v", got)
	}
}

// lossyStore loses the claim race for one named session.
type lossyStore struct {
	*testutil.MemStore
	loseFor string
}

func (s *lossyStore) ClaimQueueEntry(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == s.loseFor {
		return false, nil
	}
	return s.MemStore.ClaimQueueEntry(ctx, sessionID)
}

func TestFindAndClaimAdvancesAfterLostRace(t *testing.T) {
	ls := &lossyStore{MemStore: testutil.NewMemStore(), loseFor: "b1"}
	q := NewQueue(ls, 15*time.Second)
	ctx := context.Background()
	now := time.Now()
	_ = ls.InsertQueueEntry(ctx, store.QueueEntry{SessionID: "b1", Mood: store.MoodListen, Status: store.EntryWaiting, LastHeartbeat: now, JoinedAt: now})
	_ = ls.InsertQueueEntry(ctx, store.QueueEntry{SessionID: "b2", Mood: store.MoodListen, Status: store.EntryWaiting, LastHeartbeat: now, JoinedAt: now.Add(time.Second)})

	before := metricClaimRacesLostTotal.Value()
	got, err := q.FindAndClaim(ctx, store.MoodVent, allLive("b1", "b2"), "a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.SessionID != "b2" {
		t.Fatalf("expected b2 after lost race, got %+v", got)
	}
	if metricClaimRacesLostTotal.Value() != before+1 {
		t.Fatal("expected lost race to be counted")
	}
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	q, ms := newTestQueue()
	ctx := context.Background()
	now := time.Now()
	_ = ms.InsertQueueEntry(ctx, store.QueueEntry{SessionID: "target", Mood: store.MoodListen, Status: store.EntryWaiting, LastHeartbeat: now, JoinedAt: now})

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := q.FindAndClaim(ctx, store.MoodVent, allLive("target"), "")
			if err != nil {
				t.Errorf("find: %v", err)
				return
			}
			if got != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected one winner, got %d", wins)
	}
}

func TestMatchClaimsBothEntriesUntilConsumed(t *testing.T) {
	q, ms := newTestQueue()
	ctx := context.Background()
	a, _ := q.Join(ctx, store.QueueEntry{SessionID: "a", Mood: store.MoodVent})
	partner, err := q.Match(ctx, a, allLive("a", "b"))
	if err != nil || partner != nil {
		t.Fatalf("expected no partner yet, partner=%+v err=%v", partner, err)
	}
	e, _ := ms.GetQueueEntry(ctx, "a")
	if e.Status != store.EntryWaiting {
		t.Fatalf("self claim must be released, got %s", e.Status)
	}

	b, _ := q.Join(ctx, store.QueueEntry{SessionID: "b", Mood: store.MoodListen})
	partner, err = q.Match(ctx, b, allLive("a", "b"))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if partner == nil || partner.SessionID != "a" {
		t.Fatalf("expected a as partner, got %+v", partner)
	}
	for _, id := range []string{"a", "b"} {
		e, err := ms.GetQueueEntry(ctx, id)
		if err != nil || e.Status != store.EntryMatched {
			t.Fatalf("expected %s held as matched, got %+v err=%v", id, e, err)
		}
	}

	if err := q.Consume(ctx, "b", "a"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ms.QueueLen() != 0 {
		t.Fatalf("expected empty queue after consume, got %d", ms.QueueLen())
	}
}

func TestAbandonReturnsPartnerToPool(t *testing.T) {
	q, ms := newTestQueue()
	ctx := context.Background()
	a, _ := q.Join(ctx, store.QueueEntry{SessionID: "a", Mood: store.MoodVent})
	b, _ := q.Join(ctx, store.QueueEntry{SessionID: "b", Mood: store.MoodListen})
	partner, err := q.Match(ctx, b, allLive("a", "b"))
	if err != nil || partner == nil {
		t.Fatalf("expected a match, partner=%+v err=%v", partner, err)
	}

	if err := q.Abandon(ctx, "b", "a"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, err := ms.GetQueueEntry(ctx, "b"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected requester removed, got %v", err)
	}
	e, err := ms.GetQueueEntry(ctx, "a")
	if err != nil || e.Status != store.EntryWaiting {
		t.Fatalf("expected partner waiting again, got %+v err=%v", e, err)
	}

	c, _ := q.Join(ctx, store.QueueEntry{SessionID: "c", Mood: store.MoodListen})
	partner, err = q.Match(ctx, c, allLive("a", "c"))
	if err != nil || partner == nil || partner.SessionID != a.SessionID {
		t.Fatalf("expected released partner to match again, got %+v err=%v", partner, err)
	}
}

func TestMatchStopsWhenAlreadyClaimed(t *testing.T) {
	q, ms := newTestQueue()
	ctx := context.Background()
	a, _ := q.Join(ctx, store.QueueEntry{SessionID: "a", Mood: store.MoodVent})
	_, _ = ms.ClaimQueueEntry(ctx, "a")

	if _, err := q.Match(ctx, a, allLive("a")); !errors.Is(err, ErrNotQueued) {
		t.Fatalf("expected ErrNotQueued, got %v", err)
	}
}
