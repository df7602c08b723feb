// Command homewarpd runs the home/teleport engine as a standalone service
// with an HTTP command surface and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homewarp/internal/adapters/exports"
	"homewarp/internal/adapters/httpapi"
	"homewarp/internal/blob"
	"homewarp/internal/core"
	"homewarp/internal/metrics"
	"homewarp/pkg/domain"
)

// logNotifier delivers player notifications to the process log. A game
// server embedding the engine replaces this with its chat pipeline.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Notify(id domain.PlayerID, message string) {
	n.logger.Info("notify", "player", id, "message", message)
}

// acceptingExecutor relocates nobody but reports success; the real
// executor lives in the game-engine glue that embeds this service.
type acceptingExecutor struct{}

func (acceptingExecutor) Execute(domain.PlayerID, domain.Home) domain.TeleportResult {
	return domain.ResultSuccess
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := core.LoadConfig()
	if err != nil {
		return err
	}

	storage, err := core.OpenPersistentStore()
	if err != nil {
		return err
	}
	if err := storage.Init(ctx); err != nil {
		return err
	}

	blobStore, err := blob.Open(ctx)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	perms := core.FailOpen{Next: core.NoGrants{}, Logger: logger}
	homes := core.NewHomeStore(storage, perms, cfg, logger, m)
	shares := core.NewPendingShareRegistry(cfg.ShareRequestTTL, m)
	teleports := core.NewTeleportScheduler(homes, perms, core.SystemTimers{}, acceptingExecutor{}, logNotifier{logger: logger}, cfg, logger, m)

	exporter := exports.NewWorker(homes, blobStore, m)
	exporter.Start()

	// Housekeeping sweep; reads also expire lazily, so cadence is relaxed.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				shares.CleanupExpired()
			}
		}
	}()

	handler := &httpapi.Handler{Homes: homes, Shares: shares, Teleports: teleports, Exports: exporter}
	router := handler.Router()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if err := exporter.Stop(shutdownCtx); err != nil {
		logger.Error("exporter shutdown", "err", err)
	}
	return homes.Shutdown(shutdownCtx)
}
