package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"ventline/internal/store"
)

// MemStore is an in-process stand-in for store.Store. Conditional updates
// keep the same row-count semantics as the SQL they mirror.
type MemStore struct {
	mu       sync.Mutex
	queue    map[string]store.QueueEntry
	calls    map[string]store.Call
	accounts map[string]store.Account
	ledger   []store.LedgerEntry
	failure  error
}

func NewMemStore() *MemStore {
	return &MemStore{
		queue:    map[string]store.QueueEntry{},
		calls:    map[string]store.Call{},
		accounts: map[string]store.Account{},
	}
}

func (m *MemStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// SetFailure makes every subsequent call return err until cleared with nil.
func (m *MemStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

func (m *MemStore) PurgeStaleQueueEntries(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return 0, m.failure
	}
	var n int64
	for id, e := range m.queue {
		if e.LastHeartbeat.Before(cutoff) {
			delete(m.queue, id)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) InsertQueueEntry(_ context.Context, e store.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	m.queue[e.SessionID] = e
	return nil
}

func (m *MemStore) DeleteQueueEntry(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	delete(m.queue, sessionID)
	return nil
}

func (m *MemStore) GetQueueEntry(_ context.Context, sessionID string) (*store.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	e, ok := m.queue[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (m *MemStore) TouchQueueHeartbeat(_ context.Context, sessionID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return false, m.failure
	}
	e, ok := m.queue[sessionID]
	if !ok {
		return false, nil
	}
	e.LastHeartbeat = at
	m.queue[sessionID] = e
	return true, nil
}

func (m *MemStore) ListWaitingByMood(_ context.Context, mood store.Mood) ([]store.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	out := []store.QueueEntry{}
	for _, e := range m.queue {
		if e.Mood == mood && e.Status == store.EntryWaiting {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPriority != out[j].IsPriority {
			return out[i].IsPriority
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (m *MemStore) ClaimQueueEntry(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return false, m.failure
	}
	e, ok := m.queue[sessionID]
	if !ok {
		return false, nil
	}
	claimed, err := e.Claim()
	if err != nil {
		return false, nil
	}
	m.queue[sessionID] = claimed
	return true, nil
}

func (m *MemStore) ReleaseQueueEntry(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return false, m.failure
	}
	e, ok := m.queue[sessionID]
	if !ok {
		return false, nil
	}
	released, err := e.Release()
	if err != nil {
		return false, nil
	}
	m.queue[sessionID] = released
	return true, nil
}

// QueueLen reports how many entries are stored, regardless of status.
func (m *MemStore) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *MemStore) CreateCall(_ context.Context, c store.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	c.Status = store.CallPending
	m.calls[c.ID] = c
	return nil
}

func (m *MemStore) GetCall(_ context.Context, callID string) (*store.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	c, ok := m.calls[callID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *MemStore) MarkCallConnected(_ context.Context, callID string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	c, ok := m.calls[callID]
	if !ok {
		return store.ErrNotFound
	}
	next, err := c.Connect(startedAt)
	if err != nil {
		return err
	}
	m.calls[callID] = next
	return nil
}

func (m *MemStore) RecordCallExtension(_ context.Context, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	c, ok := m.calls[callID]
	if !ok || c.Status != store.CallConnected {
		return store.ErrNotFound
	}
	c.ExtensionsUsed++
	m.calls[callID] = c
	return nil
}

func (m *MemStore) EndCall(_ context.Context, callID, reason string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	c, ok := m.calls[callID]
	if !ok {
		return store.ErrNotFound
	}
	next, err := c.End(reason, endedAt)
	if err != nil {
		return err
	}
	if next.DurationSeconds < 0 {
		next.DurationSeconds = 0
	}
	m.calls[callID] = next
	return nil
}

// CallsWithStatus counts stored calls in status s.
func (m *MemStore) CallsWithStatus(s store.CallStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Status == s {
			n++
		}
	}
	return n
}

func (m *MemStore) EnsureAccount(_ context.Context, initial store.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	if _, ok := m.accounts[initial.SessionID]; ok {
		return nil
	}
	initial.UpdatedAt = time.Now()
	m.accounts[initial.SessionID] = initial
	return nil
}

func (m *MemStore) GetAccount(_ context.Context, sessionID string) (*store.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	a, ok := m.accounts[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (m *MemStore) AdjustTimeBank(_ context.Context, sessionID string, delta int64, entryType, refID string) (int64, error) {
	return m.adjust(sessionID, store.UnitMinutes, delta, entryType, refID, false, func(a *store.Account) *int64 { return &a.TimeBankMinutes })
}

func (m *MemStore) AdjustReputation(_ context.Context, sessionID string, delta int64, entryType, refID string) (int64, error) {
	return m.adjust(sessionID, store.UnitReputation, delta, entryType, refID, true, func(a *store.Account) *int64 { return &a.Reputation })
}

func (m *MemStore) UseDailyMatch(_ context.Context, sessionID string) (int64, error) {
	return m.adjust(sessionID, store.UnitDailyMatches, -1, "daily_match_used", sessionID, false, func(a *store.Account) *int64 { return &a.DailyMatches })
}

func (m *MemStore) ConsumePriorityToken(_ context.Context, sessionID string) (bool, error) {
	_, err := m.adjust(sessionID, store.UnitPriority, -1, "priority_join", sessionID, false, func(a *store.Account) *int64 { return &a.PriorityTokens })
	if err == store.ErrInsufficientBalance {
		return false, nil
	}
	return err == nil, err
}

func (m *MemStore) RefillDailyMatches(_ context.Context, sessionID string, allowance int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return 0, m.failure
	}
	a, ok := m.accounts[sessionID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if a.MatchRefills < 1 {
		return 0, store.ErrInsufficientBalance
	}
	a.MatchRefills--
	a.DailyMatches = allowance
	a.UpdatedAt = time.Now()
	m.accounts[sessionID] = a
	m.appendLedger(sessionID, "daily_match_refill", store.UnitRefills, -1, sessionID)
	return a.DailyMatches, nil
}

func (m *MemStore) ListLedgerEntries(_ context.Context, sessionID string, limit int) ([]store.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	out := []store.LedgerEntry{}
	for i := len(m.ledger) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.ledger[i].SessionID == sessionID {
			out = append(out, m.ledger[i])
		}
	}
	return out, nil
}

// SetAccount overwrites an account row.
func (m *MemStore) SetAccount(a store.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.SessionID] = a
}

func (m *MemStore) adjust(sessionID, unit string, delta int64, entryType, refID string, clamp bool, field func(*store.Account) *int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return 0, m.failure
	}
	a, ok := m.accounts[sessionID]
	if !ok {
		return 0, store.ErrNotFound
	}
	v := field(&a)
	next := *v + delta
	if next < 0 {
		if !clamp {
			return 0, store.ErrInsufficientBalance
		}
		next = 0
	}
	*v = next
	a.UpdatedAt = time.Now()
	m.accounts[sessionID] = a
	m.appendLedger(sessionID, entryType, unit, delta, refID)
	return next, nil
}

func (m *MemStore) appendLedger(sessionID, entryType, unit string, amount int64, refID string) {
	m.ledger = append(m.ledger, store.LedgerEntry{
		ID:        store.NewID(),
		SessionID: sessionID,
		Type:      entryType,
		Unit:      unit,
		Amount:    amount,
		RefType:   "call",
		RefID:     refID,
		CreatedAt: time.Now(),
	})
}
