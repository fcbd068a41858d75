package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/molvista/molvista/internal/adapters/backend"
	"github.com/molvista/molvista/internal/config"
	"github.com/molvista/molvista/internal/core/services"
	"github.com/molvista/molvista/pkg/dashboard"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting molvista dashboard kernel")

	if err := run(logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("configuration loaded",
		"backend_url", cfg.BackendURL,
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval)

	client := backend.NewClient(cfg.BackendURL)

	hub := services.NewHub(logger)
	frames := services.NewFrameSync(logger, hub)
	store := services.NewDashboardStore(logger, hub, frames)
	playback := services.NewPlaybackController(logger, frames, hub, cfg.PlaybackFPS)
	store.SetPlayback(playback)

	poller := services.NewStatusPoller(logger, client, store, cfg.PollInterval)
	launcher := services.NewLaunchCoordinator(logger, client, store, poller)
	analysis := services.NewAnalysisCoordinator(ctx, logger, client, hub, cfg.AnalysisPollInterval)

	server := dashboard.NewServer(logger, store, frames, playback, launcher, poller, analysis, hub)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(server.Handler())

	httpServer := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     corsHandler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the SSE stream stays open for the session.
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return poller.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("dashboard listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		playback.Pause()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("molvista stopped")
	return nil
}
