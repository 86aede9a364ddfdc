package store

import (
	"context"
	"time"
)

// PurgeStaleQueueEntries deletes entries whose heartbeat is older than cutoff.
func (s *Store) PurgeStaleQueueEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM queue_entries WHERE last_heartbeat < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) InsertQueueEntry(ctx context.Context, e QueueEntry) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO queue_entries (session_id, mood, card_id, is_priority, status, last_heartbeat, joined_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.SessionID, string(e.Mood), e.CardID, e.IsPriority, string(e.Status), e.LastHeartbeat, e.JoinedAt)
	return err
}

func (s *Store) DeleteQueueEntry(ctx context.Context, sessionID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM queue_entries WHERE session_id = $1`, sessionID)
	return err
}

func (s *Store) GetQueueEntry(ctx context.Context, sessionID string) (*QueueEntry, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT session_id, mood, card_id, is_priority, status, last_heartbeat, joined_at
		FROM queue_entries WHERE session_id = $1
	`, sessionID)
	e, err := scanQueueEntry(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &e, nil
}

// TouchQueueHeartbeat reports whether an entry existed for the session.
func (s *Store) TouchQueueHeartbeat(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE queue_entries SET last_heartbeat = $2 WHERE session_id = $1`, sessionID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListWaitingByMood returns waiting entries of one mood, priority entries
// first and FIFO within each band.
func (s *Store) ListWaitingByMood(ctx context.Context, mood Mood) ([]QueueEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT session_id, mood, card_id, is_priority, status, last_heartbeat, joined_at
		FROM queue_entries
		WHERE mood = $1 AND status = 'waiting'
		ORDER BY is_priority DESC, joined_at ASC
	`, string(mood))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QueueEntry{}
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClaimQueueEntry flips waiting to matched. Zero affected rows means another
// matcher, possibly in another process, already won the entry.
func (s *Store) ClaimQueueEntry(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE queue_entries SET status = 'matched'
		WHERE session_id = $1 AND status = 'waiting'
	`, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ReleaseQueueEntry(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE queue_entries SET status = 'waiting'
		WHERE session_id = $1 AND status = 'matched'
	`, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueEntry(row rowScanner) (QueueEntry, error) {
	var e QueueEntry
	var mood, status string
	if err := row.Scan(&e.SessionID, &mood, &e.CardID, &e.IsPriority, &status, &e.LastHeartbeat, &e.JoinedAt); err != nil {
		return QueueEntry{}, err
	}
	e.Mood = Mood(mood)
	e.Status = EntryStatus(status)
	return e, nil
}
