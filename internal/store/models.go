package store

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid_transition")

type Mood string

const (
	MoodVent   Mood = "vent"
	MoodListen Mood = "listen"
)

func ParseMood(v string) (Mood, bool) {
	switch Mood(v) {
	case MoodVent, MoodListen:
		return Mood(v), true
	default:
		return "", false
	}
}

// Opposite returns the mood a session of mood m is paired with.
func (m Mood) Opposite() Mood {
	if m == MoodVent {
		return MoodListen
	}
	return MoodVent
}

type EntryStatus string

const (
	EntryWaiting EntryStatus = "waiting"
	EntryMatched EntryStatus = "matched"
)

type QueueEntry struct {
	SessionID     string
	Mood          Mood
	CardID        string
	IsPriority    bool
	Status        EntryStatus
	LastHeartbeat time.Time
	JoinedAt      time.Time
}

// Claim moves a waiting entry to matched. It is the in-process mirror of the
// conditional update the Postgres store performs.
func (e QueueEntry) Claim() (QueueEntry, error) {
	if e.Status != EntryWaiting {
		return e, fmt.Errorf("%w: claim from %s", ErrInvalidTransition, e.Status)
	}
	e.Status = EntryMatched
	return e, nil
}

// Release undoes a self-claim that found no partner.
func (e QueueEntry) Release() (QueueEntry, error) {
	if e.Status != EntryMatched {
		return e, fmt.Errorf("%w: release from %s", ErrInvalidTransition, e.Status)
	}
	e.Status = EntryWaiting
	return e, nil
}

type CallStatus string

const (
	CallPending   CallStatus = "pending"
	CallConnected CallStatus = "connected"
	CallEnded     CallStatus = "ended"
)

// CanTransition reports whether a call row may move from s to next.
func (s CallStatus) CanTransition(next CallStatus) bool {
	switch s {
	case CallPending:
		return next == CallConnected || next == CallEnded
	case CallConnected:
		return next == CallEnded
	default:
		return false
	}
}

type Call struct {
	ID                string
	VenterSessionID   string
	ListenerSessionID string
	Status            CallStatus
	CreatedAt         time.Time
	StartedAt         *time.Time
	EndedAt           *time.Time
	DurationSeconds   int64
	ExtensionsUsed    int
	EndReason         string
}

// Connect returns the call moved to connected at startedAt.
func (c Call) Connect(startedAt time.Time) (Call, error) {
	if !c.Status.CanTransition(CallConnected) {
		return c, fmt.Errorf("%w: connect from %s", ErrInvalidTransition, c.Status)
	}
	c.Status = CallConnected
	c.StartedAt = &startedAt
	return c, nil
}

// End returns the call moved to ended. Duration counts from StartedAt when the
// call was ever connected.
func (c Call) End(reason string, endedAt time.Time) (Call, error) {
	if !c.Status.CanTransition(CallEnded) {
		return c, fmt.Errorf("%w: end from %s", ErrInvalidTransition, c.Status)
	}
	c.Status = CallEnded
	c.EndReason = reason
	c.EndedAt = &endedAt
	if c.StartedAt != nil {
		c.DurationSeconds = int64(endedAt.Sub(*c.StartedAt) / time.Second)
	}
	return c, nil
}

type Account struct {
	SessionID       string    `json:"sessionId"`
	TimeBankMinutes int64     `json:"timeBankMinutes"`
	Reputation      int64     `json:"reputation"`
	DailyMatches    int64     `json:"dailyMatches"`
	MatchRefills    int64     `json:"matchRefills"`
	PriorityTokens  int64     `json:"priorityTokens"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type LedgerEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"`
	Unit      string    `json:"unit"`
	Amount    int64     `json:"amount"`
	RefType   string    `json:"refType"`
	RefID     string    `json:"refId"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	UnitMinutes      = "minutes"
	UnitReputation   = "reputation"
	UnitDailyMatches = "daily_matches"
	UnitRefills      = "match_refills"
	UnitPriority     = "priority_tokens"
)
