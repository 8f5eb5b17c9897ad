package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/auth"
	"github.com/saturnino-fabrica-de-software/ponto/internal/backend"
	"github.com/saturnino-fabrica-de-software/ponto/internal/camera"
	"github.com/saturnino-fabrica-de-software/ponto/internal/capture"
	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/control"
	"github.com/saturnino-fabrica-de-software/ponto/internal/control/handler"
	"github.com/saturnino-fabrica-de-software/ponto/internal/database"
	"github.com/saturnino-fabrica-de-software/ponto/internal/facecheck"
	"github.com/saturnino-fabrica-de-software/ponto/internal/feedback"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
	"github.com/saturnino-fabrica-de-software/ponto/internal/spool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, cfg.DeviceID)
	slog.SetDefault(logger)

	logger.Info("starting ponto agent",
		slog.String("environment", cfg.Environment),
		slog.String("backend", cfg.BackendURL),
		slog.String("detector", cfg.Detector),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Auth blob store
	sessions := auth.NewStore(cfg.SessionFile)

	// Backend client
	client := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
	})

	// Face-presence detector
	det, err := facecheck.NewDetector(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}

	// Camera source
	source, err := camera.NewSource(cfg)
	if err != nil {
		return fmt.Errorf("failed to create camera source: %w", err)
	}

	// Geolocation
	locator, err := geo.NewLocator(cfg)
	if err != nil {
		return fmt.Errorf("failed to create locator: %w", err)
	}

	// Feedback sinks
	board := feedback.NewBoard(cfg.ToastTTL)
	notifier := feedback.NewMulti(
		board,
		feedback.NewSpeech(cfg.SpeechCommand, logger),
		feedback.NewLogNotifier(logger),
	)

	// Optional local storage
	var (
		events    repository.EventRepositoryInterface
		spoolRepo repository.SpoolRepositoryInterface
		ready     handler.ReadyChecker
	)
	deps := &control.Dependencies{
		Sessions: sessions,
		Board:    board,
		DeviceID: cfg.DeviceID,
	}

	engineOpts := []capture.Option{}
	if cfg.EventsEnabled() {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			// The kiosk must keep clocking people in with its database down.
			// Run without the event log and spool; /readyz reports degraded.
			connectErr := err
			logger.Error("database unreachable, event log and spool disabled",
				slog.Any("error", connectErr))
			deps.Ready = func(context.Context) error {
				return fmt.Errorf("database unreachable: %w", connectErr)
			}
		} else {
			defer pool.Close()

			eventRepo := repository.NewEventRepository(pool)
			sRepo := repository.NewSpoolRepository(pool)
			events = eventRepo
			spoolRepo = sRepo
			ready = func(ctx context.Context) error {
				return database.HealthCheck(ctx, pool)
			}

			engineOpts = append(engineOpts,
				capture.WithEventRepository(events),
				capture.WithSpoolRepository(spoolRepo),
			)
			deps.Events = eventRepo
			deps.Spool = sRepo
			deps.Ready = ready
		}
	} else {
		logger.Warn("no database configured, event log and spool disabled")
	}

	// Capture engine
	engine := capture.NewEngine(
		source,
		det,
		client,
		sessions,
		locator,
		notifier,
		logger,
		capture.Settings{
			DeviceID:          cfg.DeviceID,
			SampleInterval:    cfg.SampleInterval,
			RequiredStreak:    cfg.RequiredStreak,
			SuccessCooldown:   cfg.SuccessCooldown,
			RejectionCooldown: cfg.RejectionCooldown,
			RetryCooldown:     cfg.RetryCooldown,
			SpoolMaxAttempts:  cfg.SpoolMaxAttempts,
		},
		engineOpts...,
	)
	deps.Engine = engine

	go engine.Run(ctx)

	// Spool retry worker
	if spoolRepo != nil {
		worker := spool.NewWorker(spoolRepo, client, sessions, notifier, logger, cfg.DeviceID, cfg.SpoolInterval,
			spool.WithGate(engine))
		go worker.Run(ctx)
	}

	// Device registration (best-effort, needs a session)
	registerDevice(ctx, cfg, client, sessions, logger)

	// Control API
	router := control.NewRouter(logger, deps, !cfg.IsProduction())
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.ControlPort)
		logger.Info("control API listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("control server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("agent stopped")

	return nil
}

func registerDevice(ctx context.Context, cfg *config.Config, client *backend.Client, sessions *auth.Store, logger *slog.Logger) {
	session, err := sessions.Load()
	if err != nil {
		logger.Info("device registration skipped, not signed in")
		return
	}

	regCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.RegisterDevice(regCtx, session.Token, cfg.DeviceID, cfg.PushToken, cfg.Location); err != nil {
		logger.Warn("device registration failed", slog.Any("error", err))
		return
	}
	logger.Info("device registered", slog.String("device_id", cfg.DeviceID))
}
