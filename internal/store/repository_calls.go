package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateCall(ctx context.Context, c Call) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO calls (id, venter_session_id, listener_session_id, status, created_at)
		VALUES ($1,$2,$3,'pending',$4)
	`, c.ID, c.VenterSessionID, c.ListenerSessionID, c.CreatedAt)
	return err
}

const callColumns = `id, venter_session_id, listener_session_id, status, created_at, started_at, ended_at,
		       duration_seconds, extensions_used, end_reason`

func (s *Store) GetCall(ctx context.Context, callID string) (*Call, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, callID)
	return scanCall(row)
}

func scanCall(row rowScanner) (*Call, error) {
	var c Call
	var status string
	if err := row.Scan(&c.ID, &c.VenterSessionID, &c.ListenerSessionID, &status, &c.CreatedAt, &c.StartedAt,
		&c.EndedAt, &c.DurationSeconds, &c.ExtensionsUsed, &c.EndReason); err != nil {
		return nil, mapNotFound(err)
	}
	c.Status = CallStatus(status)
	return &c, nil
}

// MarkCallConnected moves a pending row to connected. Rows in any other
// status are left alone and ErrInvalidTransition is returned.
func (s *Store) MarkCallConnected(ctx context.Context, callID string, startedAt time.Time) error {
	return s.transitionCall(ctx, callID, func(c Call) (Call, error) { return c.Connect(startedAt) })
}

func (s *Store) RecordCallExtension(ctx context.Context, callID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE calls SET extensions_used = extensions_used + 1
		WHERE id = $1 AND status = 'connected'
	`, callID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EndCall ends a pending or connected row; an ended row stays as it is.
func (s *Store) EndCall(ctx context.Context, callID, reason string, endedAt time.Time) error {
	return s.transitionCall(ctx, callID, func(c Call) (Call, error) { return c.End(reason, endedAt) })
}

// transitionCall locks the row, applies step and writes the lifecycle
// columns back.
func (s *Store) transitionCall(ctx context.Context, callID string, step func(Call) (Call, error)) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cur, err := scanCall(tx.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1 FOR UPDATE`, callID))
	if err != nil {
		return err
	}
	next, err := step(*cur)
	if err != nil {
		return err
	}
	if next.DurationSeconds < 0 {
		next.DurationSeconds = 0
	}
	if _, err := tx.Exec(ctx, `
		UPDATE calls
		SET status = $2, started_at = $3, ended_at = $4, duration_seconds = $5, end_reason = $6
		WHERE id = $1
	`, next.ID, string(next.Status), next.StartedAt, next.EndedAt, next.DurationSeconds, next.EndReason); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
