package callgateway

import (
	"errors"
	"net/http"

	"ventline/internal/ledger"
	"ventline/internal/store"
	"ventline/internal/voice"
)

var (
	ErrNotParticipant = errors.New("call_not_found")
	ErrInvalidSession = errors.New("invalid_session_id")
)

const (
	rejectSoftBanned     = "soft_banned"
	rejectAlreadyInCall  = "already_in_call"
	rejectInvalidMood    = "invalid_mood"
	rejectInternal       = "internal_error"
	rejectInvalidMinutes = "invalid_minutes"
	rejectNoActiveCall   = "no_active_call"
	rejectMaxDuration    = "max_duration"
	rejectTimeBank       = "insufficient_time_bank"
)

var rejectMessages = map[string]string{
	rejectSoftBanned:     "your reputation is too low to join right now",
	rejectAlreadyInCall:  "you are already in a call",
	rejectInvalidMood:    "mood must be vent or listen",
	rejectInternal:       "something went wrong, try again",
	rejectInvalidMinutes: "extensions are 5, 10, 20 or 30 minutes",
	rejectNoActiveCall:   "there is no active call to extend",
	rejectMaxDuration:    "calls cannot exceed the maximum length",
	rejectTimeBank:       "not enough minutes in your time bank",
}

func rejectMessage(reason string) string {
	if m, ok := rejectMessages[reason]; ok {
		return m
	}
	return reason
}

// MapError converts coordinator and economy errors into an HTTP status and
// error code.
func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidSession):
		return http.StatusBadRequest, "invalid_session_id"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, ErrNotParticipant):
		return http.StatusNotFound, "call_not_found"
	case errors.Is(err, ledger.ErrNoDailyMatches):
		return http.StatusConflict, "no_daily_matches"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, voice.ErrNotConfigured):
		return http.StatusServiceUnavailable, "voice_not_configured"
	case errors.Is(err, voice.ErrMintFailed):
		return http.StatusBadGateway, "voice_mint_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
