package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sms-expense-tracker/internal/api/handlers"
	"github.com/dvloznov/sms-expense-tracker/internal/api/middleware"
	"github.com/dvloznov/sms-expense-tracker/internal/config"
	"github.com/dvloznov/sms-expense-tracker/internal/extract"
	"github.com/dvloznov/sms-expense-tracker/internal/jobs"
	"github.com/dvloznov/sms-expense-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/sms-expense-tracker/internal/logger"
	"github.com/dvloznov/sms-expense-tracker/internal/pipeline"
	"github.com/dvloznov/sms-expense-tracker/internal/store/sqlite"
)

func main() {
	log := logger.New()

	configPath := flag.String("config", "", "Path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("Failed to open store")
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	// The generative backend is optional: when it cannot be built the
	// engine still runs on the pattern cascade alone, same as the
	// original app when the on-device model failed to load.
	var gen extract.Generator
	if !cfg.DisableInference {
		backend, err := extract.NewGeminiBackend(ctx, cfg.Model)
		if err != nil {
			log.Warn().Err(err).Msg("Inference backend unavailable, running pattern-only")
		} else {
			gen = backend
		}
	}

	engine := extract.NewEngine(gen, cfg.InferenceTimeout, log)
	defer engine.Close()

	processor := pipeline.NewProcessor(store, engine, cfg.Banks, log)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueSize, cfg.Workers, jobStore)

	handler := extractionHandler(processor)
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	messagesHandler := handlers.NewMessagesHandler(processor, jobQueue, store, cfg.AutoProcess, log)
	transactionsHandler := handlers.NewTransactionsHandler(store, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handlers.Health)
	mux.HandleFunc("POST /api/messages", messagesHandler.Create)
	mux.HandleFunc("GET /api/messages", messagesHandler.List)
	mux.HandleFunc("POST /api/messages/{id}/reparse", messagesHandler.Reparse)
	mux.HandleFunc("GET /api/transactions", transactionsHandler.List)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: middleware.Logger(log)(mux),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Queue shutdown error")
	}

	log.Info().Msg("Server exited")
}

// extractionHandler adapts the processor to the queue's handler signature.
func extractionHandler(processor *pipeline.Processor) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		extractJob, ok := job.(*jobs.ExtractMessageJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		return pipeline.HandleExtractJob(ctx, processor, extractJob)
	}
}
