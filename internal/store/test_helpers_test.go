package store_test

import (
	"context"
	"testing"

	"ventline/internal/store"
	"ventline/internal/testutil"
)

func openStore(t *testing.T) (*store.Store, context.Context) {
	t.Helper()
	return testutil.OpenTestStore(t), context.Background()
}

func mustEnsureAccount(t *testing.T, st *store.Store, ctx context.Context, sessionID string, timeBank int64) {
	t.Helper()
	err := st.EnsureAccount(ctx, store.Account{
		SessionID:       sessionID,
		TimeBankMinutes: timeBank,
		Reputation:      50,
		DailyMatches:    5,
		MatchRefills:    1,
		PriorityTokens:  1,
	})
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}
}
