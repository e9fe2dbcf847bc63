package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lumacast/pairing-server-go/internal/config"
	"github.com/lumacast/pairing-server-go/internal/handler"
	"github.com/lumacast/pairing-server-go/internal/jobs"
	"github.com/lumacast/pairing-server-go/internal/middleware"
	"github.com/lumacast/pairing-server-go/internal/redis"
	"github.com/lumacast/pairing-server-go/internal/service"
	"github.com/lumacast/pairing-server-go/internal/sse"
	"github.com/lumacast/pairing-server-go/internal/store"
	"github.com/lumacast/pairing-server-go/internal/xtream"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	// Redis is optional: with it, SSE fanout and rate limits are shared
	// across instances; without it, everything stays in-process.
	var redisClient *redis.Client
	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		limiter = service.NewRedisRateLimiter(redisClient.Client)
		log.Info().Msg("redis connected")
	} else {
		limiter = service.NewMemoryRateLimiter()
		log.Info().Msg("no redis configured, using in-process fanout and rate limits")
	}

	sessionStore := store.NewMemoryStore(cfg.PairingTTL())

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	pairingService := service.NewPairingService(sessionStore, broker, service.PairingConfig{
		TTL:          cfg.PairingTTL(),
		CodeLength:   cfg.CodeLength,
		CodeAlphabet: cfg.CodeAlphabet,
		MaxAttempts:  cfg.MaxCodeAttempts,
	})

	xtreamClient := xtream.NewClient(cfg.XtreamUserAgent, cfg.XtreamTimeout())

	eventsHandler := handler.NewEventsHandler(broker, pairingService)
	pairingHandler := handler.NewPairingHandler(pairingService, eventsHandler)
	xtreamHandler := handler.NewXtreamHandler(xtreamClient)

	createLimit := middleware.NewIPRateLimitMiddleware(
		limiter, config.CreateSessionLimitPerMin, config.RateLimitWindow, "create")
	pairingLimit := middleware.NewIPRateLimitMiddleware(
		limiter, config.PairingLimitPerMin, config.RateLimitWindow, "pair")

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxBodySize)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	startedAt := time.Now()

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":        "ok",
			"timestamp":     time.Now().UnixMilli(),
			"uptimeSeconds": int(time.Since(startedAt).Seconds()),
			"sessions":      sessionStore.Len(),
			"sseClients":    broker.TotalClients(),
		})
	})

	r.Route("/v1/pair", func(r chi.Router) {
		r.With(createLimit.Handler).Post("/sessions", pairingHandler.CreateSession)
		r.With(pairingLimit.Handler).Post("/sessions/{code}/join", pairingHandler.Join)
		r.With(pairingLimit.Handler).Post("/sessions/{code}/credentials", pairingHandler.SubmitCredentials)
		r.Get("/sessions/{code}", pairingHandler.GetStatus)
		r.Get("/sessions/{code}/events", eventsHandler.ServeHTTP)
	})

	r.Route("/v1/xtream", func(r chi.Router) {
		r.Use(pairingLimit.Handler)
		r.Mount("/", xtreamHandler.Routes())
	})

	reaper := jobs.NewReaper(sessionStore, cfg.ReaperInterval())
	reaper.Start()
	defer reaper.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// SSE connections stay open indefinitely; no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
