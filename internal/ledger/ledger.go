package ledger

import (
	"context"
	"errors"

	"ventline/internal/config"
	"ventline/internal/store"
)

const (
	extensionAwardShort = 1
	extensionAwardLong  = 3
	longExtensionMins   = 30
	completionBonus     = 2
	reportPenalty       = 5
)

var (
	ErrInsufficientTimeBank = errors.New("insufficient_time_bank")
	ErrNoDailyMatches       = errors.New("no_daily_matches")
	ErrInsufficientBalance  = errors.New("insufficient_balance")
	ErrInvalidAmount        = errors.New("invalid_amount")
)

// AccountStore is the slice of store.Store the economy needs.
type AccountStore interface {
	EnsureAccount(ctx context.Context, initial store.Account) error
	GetAccount(ctx context.Context, sessionID string) (*store.Account, error)
	AdjustTimeBank(ctx context.Context, sessionID string, delta int64, entryType, refID string) (int64, error)
	AdjustReputation(ctx context.Context, sessionID string, delta int64, entryType, refID string) (int64, error)
	ConsumePriorityToken(ctx context.Context, sessionID string) (bool, error)
	UseDailyMatch(ctx context.Context, sessionID string) (int64, error)
	RefillDailyMatches(ctx context.Context, sessionID string, allowance int64) (int64, error)
}

type Ledger struct {
	Store AccountStore
	cfg   config.CallConfig
}

func New(s AccountStore, cfg config.CallConfig) *Ledger {
	return &Ledger{Store: s, cfg: cfg}
}

// EnsureAccount creates the account with starting balances the first time a
// session is seen.
func (l *Ledger) EnsureAccount(ctx context.Context, sessionID string) error {
	return l.Store.EnsureAccount(ctx, store.Account{
		SessionID:       sessionID,
		TimeBankMinutes: l.cfg.InitialTimeBankMinutes,
		Reputation:      l.cfg.InitialReputation,
		DailyMatches:    l.cfg.DailyMatchAllowance,
	})
}

func (l *Ledger) Account(ctx context.Context, sessionID string) (*store.Account, error) {
	return l.Store.GetAccount(ctx, sessionID)
}

func (l *Ledger) SpendExtension(ctx context.Context, sessionID, callID string, minutes int64) (int64, error) {
	bal, err := l.Store.AdjustTimeBank(ctx, sessionID, -minutes, "extension_debit", callID)
	if errors.Is(err, store.ErrInsufficientBalance) || errors.Is(err, store.ErrNotFound) {
		return 0, ErrInsufficientTimeBank
	}
	return bal, err
}

func (l *Ledger) AwardExtension(ctx context.Context, sessionID, callID string, minutes int64) (int64, error) {
	points := int64(extensionAwardShort)
	if minutes >= longExtensionMins {
		points = extensionAwardLong
	}
	return l.Store.AdjustReputation(ctx, sessionID, points, "extension_award", callID)
}

func (l *Ledger) RefundMinutes(ctx context.Context, sessionID, callID string, minutes int64) (int64, error) {
	if minutes <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.Store.AdjustTimeBank(ctx, sessionID, minutes, "unused_refund", callID)
}

func (l *Ledger) AwardCompletion(ctx context.Context, sessionID, callID string) (int64, error) {
	return l.Store.AdjustReputation(ctx, sessionID, completionBonus, "completion_bonus", callID)
}

func (l *Ledger) PenalizeReport(ctx context.Context, sessionID, callID string) (int64, error) {
	return l.Store.AdjustReputation(ctx, sessionID, -reportPenalty, "report_penalty", callID)
}

// IsSoftBanned reports whether reputation has reached zero. Unknown sessions
// are not banned.
func (l *Ledger) IsSoftBanned(ctx context.Context, sessionID string) (bool, error) {
	a, err := l.Store.GetAccount(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.Reputation <= 0, nil
}

func (l *Ledger) ConsumePriorityToken(ctx context.Context, sessionID string) (bool, error) {
	return l.Store.ConsumePriorityToken(ctx, sessionID)
}

func (l *Ledger) UseDailyMatch(ctx context.Context, sessionID string) (int64, error) {
	left, err := l.Store.UseDailyMatch(ctx, sessionID)
	if errors.Is(err, store.ErrInsufficientBalance) {
		return 0, ErrNoDailyMatches
	}
	return left, err
}

func (l *Ledger) RefillDailyMatches(ctx context.Context, sessionID string) (int64, error) {
	left, err := l.Store.RefillDailyMatches(ctx, sessionID, l.cfg.DailyMatchAllowance)
	if errors.Is(err, store.ErrInsufficientBalance) {
		return 0, ErrInsufficientBalance
	}
	return left, err
}

func (l *Ledger) GrantTimeBank(ctx context.Context, sessionID, refID string, minutes int64) (int64, error) {
	if minutes <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.Store.AdjustTimeBank(ctx, sessionID, minutes, "admin_grant", refID)
}
