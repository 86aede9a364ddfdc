package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"ventline/internal/callgateway"
	"ventline/internal/ledger"
)

type AdminHandlers struct {
	store  StoreReader
	ledger *ledger.Ledger
}

func NewAdminHandlers(st StoreReader, led *ledger.Ledger) *AdminHandlers {
	return &AdminHandlers{store: st, ledger: led}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) GrantTimeBank() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SessionID string `json:"session_id"`
			Minutes   int64  `json:"minutes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.SessionID == "" || body.Minutes <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		refID := "grant_" + strconv.FormatInt(time.Now().UnixNano(), 10)
		bal, err := h.ledger.GrantTimeBank(r.Context(), body.SessionID, refID, body.Minutes)
		if err != nil {
			status, code := callgateway.MapError(err)
			WriteHTTPError(w, status, code)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "time_bank_minutes": bal})
	}
}

func (h *AdminHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		limit := ParseLimit(r)
		items, err := h.store.ListLedgerEntries(r.Context(), sessionID, limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, map[string]any{"items": items, "limit": limit})
	}
}
