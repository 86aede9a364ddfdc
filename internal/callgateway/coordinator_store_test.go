package callgateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"ventline/internal/ledger"
	"ventline/internal/matchmaking"
	"ventline/internal/pending"
	"ventline/internal/store"
	"ventline/internal/testutil"
)

func TestCallLifecycleAgainstPostgres(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()
	cfg := testCallConfig()

	// startPG pairs a and b over the real store and completes the handshake.
	startPG := func(t *testing.T, a, b string) (*Coordinator, *fakeConns, string) {
		t.Helper()
		testutil.ResetTables(t, st)
		conns := newFakeConns()
		led := ledger.New(st, cfg)
		coord := NewCoordinator(st, matchmaking.NewQueue(st, cfg.HeartbeatTimeout), led, pending.NewMemoryCache(time.Minute), conns, cfg)
		for _, id := range []string{a, b} {
			conns.setLive(id, true)
			coord.Register(ctx, id)
		}
		coord.JoinQueue(ctx, JoinRequest{SessionID: a, Mood: "vent"})
		coord.JoinQueue(ctx, JoinRequest{SessionID: b, Mood: "listen"})
		found := conns.ofType(a, "match_found")
		if len(found) != 1 {
			t.Fatalf("expected match_found, got %v", found)
		}
		callID := found[0]["callId"].(string)
		coord.Ready(ctx, a, callID)
		coord.Ready(ctx, b, callID)
		if _, err := st.GetQueueEntry(ctx, a); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected queue entries consumed, got %v", err)
		}
		return coord, conns, callID
	}

	t.Run("extend and end", func(t *testing.T) {
		coord, conns, callID := startPG(t, "pg_a", "pg_b")
		coord.Extend(ctx, "pg_a", 5)
		if ext := conns.ofType("pg_b", "call_extended"); len(ext) != 1 {
			t.Fatalf("expected call_extended for partner, got %v", ext)
		}

		remaining := 400.0
		coord.EndCall(ctx, "pg_a", EndReasonNormal, &remaining)
		if ended := conns.ofType("pg_b", "call_ended"); len(ended) != 1 || ended[0]["reason"] != EndReasonNormal {
			t.Fatalf("expected call_ended for partner, got %v", ended)
		}

		call, err := st.GetCall(ctx, callID)
		if err != nil {
			t.Fatalf("get call: %v", err)
		}
		if call.Status != store.CallEnded || call.ExtensionsUsed != 1 || call.EndReason != EndReasonNormal || call.StartedAt == nil {
			t.Fatalf("unexpected call row: %+v", call)
		}
		acct, err := st.GetAccount(ctx, "pg_a")
		if err != nil {
			t.Fatalf("get account: %v", err)
		}
		// 30 - 5 extension + 6 refunded.
		if acct.TimeBankMinutes != 31 || acct.Reputation != 51 {
			t.Fatalf("unexpected account after call: %+v", acct)
		}
	})

	t.Run("reported", func(t *testing.T) {
		coord, _, callID := startPG(t, "pg_c", "pg_d")
		coord.EndCall(ctx, "pg_d", EndReasonReported, nil)

		call, err := st.GetCall(ctx, callID)
		if err != nil || call.EndReason != EndReasonReported {
			t.Fatalf("expected reported call row, got %+v err=%v", call, err)
		}
		acct, err := st.GetAccount(ctx, "pg_c")
		if err != nil || acct.Reputation != 45 {
			t.Fatalf("expected reported partner at 45, got %+v err=%v", acct, err)
		}
	})
}
