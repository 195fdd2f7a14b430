package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/api/handlers"
	"github.com/cloo-solutions/coverdraft/internal/config"
	"github.com/cloo-solutions/coverdraft/internal/jobs"
	"github.com/cloo-solutions/coverdraft/internal/server"
	"github.com/cloo-solutions/coverdraft/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the coverdraft API server and the background index worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides COVERDRAFT_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything elsewhere
		sampleRate := 1.0
		if cfg.Environment == "production" {
			sampleRate = 0.1
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	a, err := newApp(ctx, cfg, appOptions{migrate: !noMigrate, warm: true})
	if err != nil {
		return err
	}
	defer a.close()

	released, err := a.jobRepo.ReleaseStale(ctx)
	if err != nil {
		return fmt.Errorf("failed to release stale index jobs: %w", err)
	}
	if released > 0 {
		logger.Info("released stale index jobs", "count", released)
	}

	worker := jobs.NewWorker(a.worker, cfg.WorkerPollInterval)
	a.documents.NotifyOnEnqueue(worker.Notify)
	go worker.Start(ctx)
	logger.Info("index worker started", "poll_interval", cfg.WorkerPollInterval)

	router := server.NewRouter(server.RouterConfig{
		APITokens:        []string{cfg.APIToken, cfg.APITokenPrevious},
		MaxUploadBytes:   cfg.MaxUploadBytes,
		MaxJSONBytes:     cfg.MaxJSONBytes,
		Logger:           logger,
		DocumentHandler:  handlers.NewDocumentHandler(a.documents, a.weights, cfg.MaxUploadBytes),
		RetrievalHandler: handlers.NewRetrievalHandler(a.retriever, a.documents, a.generation, a.registry),
		LetterHandler:    handlers.NewCoverLetterHandler(a.letters),
	})
	if cfg.APIToken == "" {
		logger.Warn("COVERDRAFT_API_TOKEN not set, API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		worker.Stop()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
