package matchmaking

import (
	"context"
	"errors"
	"time"

	"ventline/internal/store"

	"github.com/rs/zerolog/log"
)

var ErrNotQueued = errors.New("not_queued")

type QueueStore interface {
	PurgeStaleQueueEntries(ctx context.Context, cutoff time.Time) (int64, error)
	InsertQueueEntry(ctx context.Context, e store.QueueEntry) error
	DeleteQueueEntry(ctx context.Context, sessionID string) error
	GetQueueEntry(ctx context.Context, sessionID string) (*store.QueueEntry, error)
	TouchQueueHeartbeat(ctx context.Context, sessionID string, at time.Time) (bool, error)
	ListWaitingByMood(ctx context.Context, mood store.Mood) ([]store.QueueEntry, error)
	ClaimQueueEntry(ctx context.Context, sessionID string) (bool, error)
	ReleaseQueueEntry(ctx context.Context, sessionID string) (bool, error)
}

// Presence answers whether a session currently holds a live connection.
type Presence interface {
	IsLive(sessionID string) bool
}

type Queue struct {
	store            QueueStore
	heartbeatTimeout time.Duration
	now              func() time.Time
}

func NewQueue(s QueueStore, heartbeatTimeout time.Duration) *Queue {
	return &Queue{store: s, heartbeatTimeout: heartbeatTimeout, now: time.Now}
}

// Join purges stale entries, drops any previous entry for the session and
// inserts a fresh waiting one.
func (q *Queue) Join(ctx context.Context, e store.QueueEntry) (store.QueueEntry, error) {
	now := q.now()
	purged, err := q.store.PurgeStaleQueueEntries(ctx, now.Add(-q.heartbeatTimeout))
	if err != nil {
		return store.QueueEntry{}, err
	}
	if purged > 0 {
		metricQueuePurgedTotal.Add(purged)
		log.Debug().Int64("purged", purged).Msg("stale queue entries purged")
	}
	if err := q.store.DeleteQueueEntry(ctx, e.SessionID); err != nil {
		return store.QueueEntry{}, err
	}
	e.Status = store.EntryWaiting
	e.LastHeartbeat = now
	e.JoinedAt = now
	if err := q.store.InsertQueueEntry(ctx, e); err != nil {
		return store.QueueEntry{}, err
	}
	metricQueueJoinTotal.Add(1)
	return e, nil
}

func (q *Queue) Leave(ctx context.Context, sessionID string) error {
	return q.store.DeleteQueueEntry(ctx, sessionID)
}

// Entry returns the session's queue entry, or nil when it is not queued.
func (q *Queue) Entry(ctx context.Context, sessionID string) (*store.QueueEntry, error) {
	e, err := q.store.GetQueueEntry(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

func (q *Queue) UpdateHeartbeat(ctx context.Context, sessionID string) (bool, error) {
	return q.store.TouchQueueHeartbeat(ctx, sessionID, q.now())
}

// FindAndClaim walks opposite-mood waiting entries in priority then FIFO
// order and claims the first live one. A nil entry with nil error means no
// partner is available.
func (q *Queue) FindAndClaim(ctx context.Context, mood store.Mood, presence Presence, excludeSessionID string) (*store.QueueEntry, error) {
	candidates, err := q.store.ListWaitingByMood(ctx, mood.Opposite())
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		c := candidates[i]
		if c.SessionID == excludeSessionID {
			continue
		}
		if presence != nil && !presence.IsLive(c.SessionID) {
			continue
		}
		ok, err := q.store.ClaimQueueEntry(ctx, c.SessionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			metricClaimRacesLostTotal.Add(1)
			continue
		}
		claimed, _ := c.Claim()
		return &claimed, nil
	}
	return nil, nil
}

// Match runs one pairing attempt for a queued session. The requester's own
// entry is claimed first so no concurrent matcher can take it while it
// searches; it is released again when no partner turns up. On success both
// entries stay claimed until the caller either Consumes or Abandons the pair.
func (q *Queue) Match(ctx context.Context, self store.QueueEntry, presence Presence) (*store.QueueEntry, error) {
	ok, err := q.store.ClaimQueueEntry(ctx, self.SessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotQueued
	}
	partner, err := q.FindAndClaim(ctx, self.Mood, presence, self.SessionID)
	if err != nil || partner == nil {
		if _, relErr := q.store.ReleaseQueueEntry(ctx, self.SessionID); relErr != nil {
			log.Error().Err(relErr).Str("session_id", self.SessionID).Msg("queue self release failed")
		}
		return nil, err
	}
	metricMatchesTotal.Add(1)
	return partner, nil
}

// Consume drops both entries of a pairing that became a call.
func (q *Queue) Consume(ctx context.Context, selfID, partnerID string) error {
	var firstErr error
	for _, id := range []string{selfID, partnerID} {
		if err := q.store.DeleteQueueEntry(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Abandon undoes a pairing that could not become a call. The partner goes
// back to waiting; the requester leaves the pool.
func (q *Queue) Abandon(ctx context.Context, selfID, partnerID string) error {
	released, err := q.store.ReleaseQueueEntry(ctx, partnerID)
	if err != nil {
		return err
	}
	if !released {
		log.Warn().Str("session_id", partnerID).Msg("queue partner release missed")
	}
	metricMatchesAbandonedTotal.Add(1)
	return q.store.DeleteQueueEntry(ctx, selfID)
}
