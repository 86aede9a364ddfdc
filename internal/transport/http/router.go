package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"ventline/internal/callgateway"
	"ventline/internal/config"
	"ventline/internal/ledger"
	"ventline/internal/store"
	"ventline/internal/voice"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// StoreReader is the read side the admin and health handlers need.
type StoreReader interface {
	Ping(ctx context.Context) error
	ListLedgerEntries(ctx context.Context, sessionID string, limit int) ([]store.LedgerEntry, error)
}

type Deps struct {
	Store  StoreReader
	Ledger *ledger.Ledger
	Coord  *callgateway.Coordinator
	// Minter may be nil when no voice provider is configured.
	Minter voice.Minter
	WS     http.HandlerFunc
}

func NewRouter(cfg config.ServerConfig, deps Deps) *chi.Mux {
	sessionHandlers := NewSessionHandlers(deps.Coord, deps.Ledger)
	callHandlers := NewCallHandlers(deps.Coord, deps.Minter)
	adminHandlers := NewAdminHandlers(deps.Store, deps.Ledger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	if deps.WS != nil {
		r.Get("/ws", deps.WS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/sessions/{session_id}/pending-match", sessionHandlers.PendingMatch())
		r.Get("/sessions/{session_id}/economy", sessionHandlers.Economy())
		r.Post("/sessions/{session_id}/daily-matches/use", sessionHandlers.UseDailyMatch())
		r.Post("/sessions/{session_id}/daily-matches/refill", sessionHandlers.RefillDailyMatches())
		r.Get("/calls/{call_id}/voice-token", callHandlers.VoiceToken())

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.With(BodyCaptureMiddleware(4096)).Post("/time-bank", adminHandlers.GrantTimeBank())
			r.Get("/ledger", adminHandlers.Ledger())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
