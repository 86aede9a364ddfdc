package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ventline/internal/callgateway"
	"ventline/internal/config"
	"ventline/internal/ledger"
	"ventline/internal/logging"
	"ventline/internal/matchmaking"
	"ventline/internal/pending"
	"ventline/internal/store"
	httptransport "ventline/internal/transport/http"
	"ventline/internal/voice"
	"ventline/internal/ws"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log.WithService("call-server"))

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	cache, closeCache := newPendingCache(cfg.Server)
	defer closeCache()

	var minter voice.Minter
	if cfg.Server.VoiceTokenURL != "" {
		minter = voice.NewHTTPMinter(cfg.Server.VoiceTokenURL, cfg.Server.VoiceTokenAPIKey, cfg.Server.VoiceTokenTTL, cfg.Server.VoiceTokenTimeout)
	} else {
		log.Warn().Msg("voice_token_url_unset")
	}

	reg := ws.NewRegistry()
	queue := matchmaking.NewQueue(st, cfg.Call.HeartbeatTimeout)
	led := ledger.New(st, cfg.Call)
	coord := callgateway.NewCoordinator(st, queue, led, cache, reg, cfg.Call)
	wsServer := ws.NewServer(reg, coord, cfg.Server.WSPingInterval)

	r := httptransport.NewRouter(cfg.Server, httptransport.Deps{
		Store:  st,
		Ledger: led,
		Coord:  coord,
		Minter: minter,
		WS:     wsServer.HandleWS,
	})
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("pending_backend", cfg.Server.PendingBackend).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func newPendingCache(cfg config.ServerConfig) (pending.Cache, func()) {
	switch cfg.PendingBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
		}
		return pending.NewRedisCache(client, cfg.PendingTTL), func() { _ = client.Close() }
	case "memory", "":
		return pending.NewMemoryCache(cfg.PendingTTL), func() {}
	default:
		log.Fatal().Str("backend", cfg.PendingBackend).Msg("unknown pending backend")
		return nil, nil
	}
}
