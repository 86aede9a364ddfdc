package httptransport

import (
	"net/http"

	"ventline/internal/callgateway"
	"ventline/internal/voice"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type CallHandlers struct {
	coord  *callgateway.Coordinator
	minter voice.Minter
}

func NewCallHandlers(coord *callgateway.Coordinator, minter voice.Minter) *CallHandlers {
	return &CallHandlers{coord: coord, minter: minter}
}

func (h *CallHandlers) VoiceToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callID := chi.URLParam(r, "call_id")
		sessionID := r.URL.Query().Get("session_id")
		cred, err := h.coord.VoiceCredential(r.Context(), h.minter, callID, sessionID)
		if err != nil {
			status, code := callgateway.MapError(err)
			if status >= http.StatusInternalServerError {
				log.Error().Err(err).Str("call_id", callID).Msg("voice_token_failed")
			}
			WriteHTTPError(w, status, code)
			return
		}
		metricVoiceTokensTotal.Add(1)
		writeJSON(w, cred)
	}
}
