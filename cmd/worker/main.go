// The worker drains pending or failed captured messages through the
// extraction pipeline. Useful after enabling a backend, adding bank
// identifiers, or running the API with auto-processing off.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/sms-expense-tracker/internal/config"
	"github.com/dvloznov/sms-expense-tracker/internal/domain"
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
	status := flag.String("status", string(domain.ParseStatusPending), "Reprocess messages with this parse status (pending or failed)")
	limit := flag.Int("limit", 500, "Maximum number of messages to reprocess")
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

	captured, err := store.ListCaptured(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list captured messages")
	}

	var pendingJobs []*jobs.ExtractMessageJob
	for _, m := range captured {
		if string(m.Status) != *status {
			continue
		}
		pendingJobs = append(pendingJobs, &jobs.ExtractMessageJob{
			MessageID: m.ID,
			Sender:    m.Sender,
			Body:      m.Body,
			Timestamp: m.Timestamp,
		})
	}

	if len(pendingJobs) == 0 {
		log.Info().Str("status", *status).Msg("Nothing to reprocess")
		return
	}

	log.Info().Int("count", len(pendingJobs)).Str("status", *status).Msg("Starting reprocessing")

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(pendingJobs), cfg.Workers, jobStore)

	handler := func(ctx context.Context, job jobs.Job) error {
		extractJob, ok := job.(*jobs.ExtractMessageJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		return pipeline.HandleExtractJob(ctx, processor, extractJob)
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	for _, job := range pendingJobs {
		if err := jobQueue.PublishExtractMessage(ctx, job); err != nil {
			log.Error().Err(err).Str("message_id", job.MessageID).Msg("Failed to enqueue job")
		}
	}

	// Poll the job store until everything settles, then drain the pool.
	for {
		remaining := 0
		for _, job := range pendingJobs {
			saved, err := jobStore.GetJob(ctx, job.JobID)
			if err != nil {
				continue
			}
			switch saved.Status {
			case jobs.JobStatusCompleted, jobs.JobStatusFailed:
			default:
				remaining++
			}
		}
		if remaining == 0 {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Queue shutdown error")
	}

	log.Info().Int("count", len(pendingJobs)).Msg("Reprocessing complete")
}
