package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `session_id, time_bank_minutes, reputation, daily_matches, match_refills, priority_tokens, updated_at`

func (s *Store) EnsureAccount(ctx context.Context, initial Account) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO accounts (session_id, time_bank_minutes, reputation, daily_matches, match_refills, priority_tokens)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id) DO NOTHING
	`, initial.SessionID, initial.TimeBankMinutes, initial.Reputation, initial.DailyMatches, initial.MatchRefills, initial.PriorityTokens)
	return err
}

func (s *Store) GetAccount(ctx context.Context, sessionID string) (*Account, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE session_id = $1`, sessionID)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

// AdjustTimeBank adds delta minutes. A negative delta only applies when the
// balance covers it; otherwise nothing changes and ErrInsufficientBalance is
// returned.
func (s *Store) AdjustTimeBank(ctx context.Context, sessionID string, delta int64, entryType, refID string) (int64, error) {
	return s.adjustCounter(ctx, sessionID, "time_bank_minutes", UnitMinutes, delta, entryType, refID)
}

// AdjustReputation adds delta points, clamping the score at zero.
func (s *Store) AdjustReputation(ctx context.Context, sessionID string, delta int64, entryType, refID string) (int64, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var score int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET reputation = GREATEST(0, reputation + $2), updated_at = now()
		WHERE session_id = $1
		RETURNING reputation
	`, sessionID, delta).Scan(&score)
	if err != nil {
		return 0, mapNotFound(err)
	}
	if err := insertLedgerEntry(ctx, tx, sessionID, entryType, UnitReputation, delta, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return score, nil
}

func (s *Store) ConsumePriorityToken(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.adjustCounter(ctx, sessionID, "priority_tokens", UnitPriority, -1, "priority_join", sessionID)
	if errors.Is(err, ErrInsufficientBalance) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) UseDailyMatch(ctx context.Context, sessionID string) (int64, error) {
	return s.adjustCounter(ctx, sessionID, "daily_matches", UnitDailyMatches, -1, "daily_match_used", sessionID)
}

// RefillDailyMatches spends one refill credit and resets the daily counter to
// allowance in the same transaction.
func (s *Store) RefillDailyMatches(ctx context.Context, sessionID string, allowance int64) (int64, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var remaining int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts
		SET match_refills = match_refills - 1, daily_matches = $2, updated_at = now()
		WHERE session_id = $1 AND match_refills >= 1
		RETURNING daily_matches
	`, sessionID, allowance).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.insufficientOrMissing(ctx, sessionID)
		}
		return 0, err
	}
	if err := insertLedgerEntry(ctx, tx, sessionID, "daily_match_refill", UnitRefills, -1, sessionID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, sessionID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, session_id, type, unit, amount, ref_type, ref_id, created_at
		FROM ledger_entries WHERE session_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &e.Unit, &e.Amount, &e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// adjustCounter applies delta to one non-negative account column. column is
// always a package constant, never caller input.
func (s *Store) adjustCounter(ctx context.Context, sessionID, column, unit string, delta int64, entryType, refID string) (int64, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var newBal int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET `+column+` = `+column+` + $2, updated_at = now()
		WHERE session_id = $1 AND `+column+` + $2 >= 0
		RETURNING `+column, sessionID, delta).Scan(&newBal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.insufficientOrMissing(ctx, sessionID)
		}
		return 0, err
	}
	if err := insertLedgerEntry(ctx, tx, sessionID, entryType, unit, delta, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBal, nil
}

func (s *Store) insufficientOrMissing(ctx context.Context, sessionID string) error {
	if _, err := s.GetAccount(ctx, sessionID); err != nil {
		return err
	}
	return ErrInsufficientBalance
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, sessionID, entryType, unit string, amount int64, refID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, session_id, type, unit, amount, ref_type, ref_id)
		VALUES ($1,$2,$3,$4,$5,'call',$6)
	`, NewID(), sessionID, entryType, unit, amount, refID)
	return err
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	err := row.Scan(&a.SessionID, &a.TimeBankMinutes, &a.Reputation, &a.DailyMatches, &a.MatchRefills, &a.PriorityTokens, &a.UpdatedAt)
	return a, err
}
