// Command server runs the studyhall API: the AI study-content
// generation pipeline and its supporting endpoints.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/studyhall/studyhall-api/internal/api"
	"github.com/studyhall/studyhall-api/internal/api/middleware"
	"github.com/studyhall/studyhall-api/internal/config"
	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/platform/gemini"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
	"github.com/studyhall/studyhall-api/internal/platform/postgres"
	"github.com/studyhall/studyhall-api/internal/platform/vault"
	"github.com/studyhall/studyhall-api/internal/service"
	"github.com/studyhall/studyhall-api/internal/service/quota"
	"github.com/studyhall/studyhall-api/internal/task"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := postgres.RunMigrations(ctx, db, log); err != nil {
		return err
	}

	credentialVault, err := vault.New(cfg.Auth.VaultSecret)
	if err != nil {
		return fmt.Errorf("failed to create credential vault: %w", err)
	}

	generator, err := gemini.NewGeminiGenerator(ctx, cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	topicStore := postgres.NewPostgresTopicStore(db, log)
	artifactStore := postgres.NewPostgresArtifactStore(db, log)
	taskStore := postgres.NewPostgresGenerationTaskStore(db, log)
	profileStore := postgres.NewPostgresUsageProfileStore(db, log)

	governor := quota.NewGovernor(db, profileStore, credentialVault,
		cfg.LLM.GeminiAPIKey, cfg.Quota.DailyLimit, log)

	orchestrator := task.NewOrchestrator(db, topicStore, artifactStore,
		taskStore, generator, governor, log)

	runner := task.NewRunner(taskStore, cfg.Task, log)
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	defer runner.Stop()

	svc := service.NewGenerationService(service.GenerationServiceParams{
		Topics:       topicStore,
		Artifacts:    artifactStore,
		Tasks:        taskStore,
		Profiles:     profileStore,
		Generator:    generator,
		Governor:     governor,
		Orchestrator: orchestrator,
		Inline:       task.InlineExecutor{},
		Queued:       task.NewQueuedExecutor(runner),
		Vault:        credentialVault,
		Pricing: domain.TokenPricing{
			InputPerMillion:  cfg.LLM.InputPricePerMillion,
			OutputPerMillion: cfg.LLM.OutputPricePerMillion,
		},
		DailyLimit: cfg.Quota.DailyLimit,
		Logger:     log,
	})

	handler := api.NewGenerationHandler(svc, log)
	auth := middleware.NewAuth(cfg.Auth.JWTSecret, log)
	router := api.NewRouter(handler, auth, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established")
	return db, nil
}
