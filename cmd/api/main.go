package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"example.com/activitytimer/internal/api"
	"example.com/activitytimer/internal/auth"
	"example.com/activitytimer/internal/bootstrap"
	"example.com/activitytimer/internal/config"
	"example.com/activitytimer/internal/logger"
	httptransport "example.com/activitytimer/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	lg := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "timer-api"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := bootstrap.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to wire services")
	}
	defer svc.Close()

	deps := api.Deps{
		Tracker:  svc.Tracker,
		Source:   svc.Repo,
		Importer: svc.Importer,
		Upgrader: svc.Upgrader,
		Logger:   lg.With().Str("component", "api").Logger(),
	}
	if svc.Archive != nil {
		deps.Archive = svc.Archive
	}

	handler := api.NewHandler(deps)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	requestLogger := httptransport.RequestLogger(lg.With().Str("component", "http").Logger())
	cors := httptransport.CORS(cfg.CORSOrigin)

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		requestLogger(cors(authMiddleware.Wrap(mux))),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lg.Info().Str("addr", cfg.HTTPAddress).Str("store", cfg.StoreDriver).Msg("timer api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed")
	}
}
