package httptransport

import (
	"encoding/json"
	"net/http"

	"ventline/internal/callgateway"
	"ventline/internal/ledger"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type SessionHandlers struct {
	coord  *callgateway.Coordinator
	ledger *ledger.Ledger
}

func NewSessionHandlers(coord *callgateway.Coordinator, led *ledger.Ledger) *SessionHandlers {
	return &SessionHandlers{coord: coord, ledger: led}
}

// PendingMatch is the poll fallback for clients whose socket is suspended.
func (h *SessionHandlers) PendingMatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		resp, err := h.coord.PendingMatch(r.Context(), sessionID)
		if err != nil {
			metricPendingPollErrors.Add(1)
			status, code := callgateway.MapError(err)
			if status >= http.StatusInternalServerError {
				log.Error().Err(err).Str("session_id", sessionID).Msg("pending_match_poll_failed")
			}
			WriteHTTPError(w, status, code)
			return
		}
		metricPendingPollTotal.Add(1)
		writeJSON(w, resp)
	}
}

func (h *SessionHandlers) Economy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := h.ledger.Account(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			status, code := callgateway.MapError(err)
			WriteHTTPError(w, status, code)
			return
		}
		writeJSON(w, acct)
	}
}

func (h *SessionHandlers) UseDailyMatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		left, err := h.ledger.UseDailyMatch(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			status, code := callgateway.MapError(err)
			WriteHTTPError(w, status, code)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "dailyMatches": left})
	}
}

func (h *SessionHandlers) RefillDailyMatches() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		left, err := h.ledger.RefillDailyMatches(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			status, code := callgateway.MapError(err)
			WriteHTTPError(w, status, code)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "dailyMatches": left})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
