package store_test

import (
	"errors"
	"testing"
	"time"

	"ventline/internal/store"
)

func TestCallLifecycle(t *testing.T) {
	st, ctx := openStore(t)

	id := store.NewCallID()
	created := time.Now().UTC()
	if err := st.CreateCall(ctx, store.Call{ID: id, VenterSessionID: "a", ListenerSessionID: "b", CreatedAt: created}); err != nil {
		t.Fatalf("create call: %v", err)
	}
	started := created.Add(2 * time.Second)
	if err := st.MarkCallConnected(ctx, id, started); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := st.MarkCallConnected(ctx, id, started); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("second connect should not apply, got %v", err)
	}
	if err := st.RecordCallExtension(ctx, id); err != nil {
		t.Fatalf("extension: %v", err)
	}
	if err := st.EndCall(ctx, id, "normal", started.Add(90*time.Second)); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := st.EndCall(ctx, id, "disconnected", started.Add(120*time.Second)); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("ended call must stay ended, got %v", err)
	}

	c, err := st.GetCall(ctx, id)
	if err != nil {
		t.Fatalf("get call: %v", err)
	}
	if c.Status != store.CallEnded || c.EndReason != "normal" {
		t.Fatalf("unexpected call state: %+v", c)
	}
	if c.DurationSeconds != 90 || c.ExtensionsUsed != 1 {
		t.Fatalf("expected 90s and 1 extension, got %ds and %d", c.DurationSeconds, c.ExtensionsUsed)
	}
}

func TestEndPendingCallHasZeroDuration(t *testing.T) {
	st, ctx := openStore(t)

	id := store.NewCallID()
	if err := st.CreateCall(ctx, store.Call{ID: id, VenterSessionID: "a", ListenerSessionID: "b", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create call: %v", err)
	}
	if err := st.EndCall(ctx, id, "connection_timeout", time.Now()); err != nil {
		t.Fatalf("end: %v", err)
	}
	c, err := st.GetCall(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.DurationSeconds != 0 || c.StartedAt != nil {
		t.Fatalf("expected no duration for a never-connected call, got %+v", c)
	}
}

func TestCallTransitionOnMissingRow(t *testing.T) {
	st, ctx := openStore(t)

	if err := st.MarkCallConnected(ctx, "missing", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.EndCall(ctx, "missing", "normal", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
