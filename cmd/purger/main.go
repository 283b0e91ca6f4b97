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

	"example.com/activitytimer/internal/bootstrap"
	"example.com/activitytimer/internal/config"
	"example.com/activitytimer/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	lg := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "timer-purger"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := bootstrap.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to wire services")
	}
	defer svc.Close()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		lg.Info().Str("addr", cfg.MetricsAddress).Msg("purger metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error().Err(err).Msg("metrics server error")
		}
	}()

	ticker := time.NewTicker(cfg.PurgeInterval)
	defer ticker.Stop()

	lg.Info().Dur("interval", cfg.PurgeInterval).Int("batch", cfg.PurgeBatchSize).Msg("reservation purger started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			purged, err := svc.Purger.RunOnce(ctx, cfg.PurgeBatchSize)
			if err != nil {
				lg.Error().Err(err).Int("purged", purged).Msg("purge run incomplete")
			} else if purged > 0 {
				lg.Info().Int("purged", purged).Msg("purge run complete")
			}
		case <-stop:
			lg.Info().Msg("purger received shutdown signal")
			cancel()
			break loop
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("metrics server shutdown error")
	}
}
