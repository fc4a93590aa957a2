// Package pipeline sequences the per-message flow: capture, bank
// classification, field extraction, and recording the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-expense-tracker/internal/bankdir"
	"github.com/dvloznov/sms-expense-tracker/internal/domain"
	"github.com/dvloznov/sms-expense-tracker/internal/extract"
	"github.com/dvloznov/sms-expense-tracker/internal/jobs"
)

// Sink is the persistence boundary the processor writes through.
type Sink interface {
	SaveTransaction(ctx context.Context, t *domain.Transaction) error
	SaveCaptured(ctx context.Context, m *domain.CapturedMessage) error
	GetCaptured(ctx context.Context, id string) (*domain.CapturedMessage, error)
	MarkParsed(ctx context.Context, messageID, transactionID string) error
	MarkFailed(ctx context.Context, messageID, reason string) error
	MarkSkipped(ctx context.Context, messageID string) error
}

// Extractor is the engine boundary, satisfied by *extract.Engine.
type Extractor interface {
	Extract(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error)
}

// Processor owns one message's journey from intake to stored outcome.
// The directory is snapshotted at construction; configuration changes take
// effect on the next processor, never mid-extraction.
type Processor struct {
	sink      Sink
	engine    Extractor
	directory []domain.BankIdentifier
	log       zerolog.Logger
}

// NewProcessor builds a processor over a stable directory snapshot.
func NewProcessor(sink Sink, engine Extractor, directory []domain.BankIdentifier, log zerolog.Logger) *Processor {
	snapshot := make([]domain.BankIdentifier, len(directory))
	copy(snapshot, directory)
	return &Processor{sink: sink, engine: engine, directory: snapshot, log: log}
}

// Capture records an inbound message in the audit trail and returns it with
// its bank classification filled in. Every message is captured, bank or not.
func (p *Processor) Capture(ctx context.Context, sender, body string, timestamp int64) (*domain.CapturedMessage, error) {
	captured := &domain.CapturedMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Body:      body,
		Timestamp: timestamp,
		Status:    domain.ParseStatusPending,
	}

	if bank, ok := bankdir.Classify(sender, p.directory); ok {
		captured.FromBank = true
		captured.BankName = bank.BankName
	}

	if err := p.sink.SaveCaptured(ctx, captured); err != nil {
		return nil, fmt.Errorf("capture message: %w", err)
	}

	p.log.Debug().
		Str("message_id", captured.ID).
		Str("sender", sender).
		Bool("from_bank", captured.FromBank).
		Msg("Message captured")

	return captured, nil
}

// Process runs extraction for one captured message and records the outcome.
// A nil transaction with nil error means the message was skipped (not a
// bank) or extraction failed terminally; both are recorded on the captured
// message, not surfaced as errors. A non-nil error is an infrastructure
// failure worth retrying.
func (p *Processor) Process(ctx context.Context, msg domain.Message) (*domain.Transaction, error) {
	bank, ok := bankdir.Classify(msg.Sender, p.directory)
	if !ok {
		// Normal for most SMS traffic
		p.log.Debug().Str("message_id", msg.ID).Str("sender", msg.Sender).Msg("Sender not in bank directory")
		if err := p.sink.MarkSkipped(ctx, msg.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	tx, err := p.engine.Extract(ctx, msg, bank.BankName)
	if err != nil {
		if errors.Is(err, extract.ErrFieldsNotFound) {
			p.log.Info().
				Str("message_id", msg.ID).
				Str("bank", bank.BankName).
				Msg("Extraction failed, marking message")
			if markErr := p.sink.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				return nil, markErr
			}
			return nil, nil
		}
		return nil, err
	}

	if err := p.sink.SaveTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := p.sink.MarkParsed(ctx, msg.ID, tx.ID); err != nil {
		return nil, err
	}

	p.log.Info().
		Str("message_id", msg.ID).
		Str("transaction_id", tx.ID).
		Str("bank", tx.BankName).
		Str("merchant", tx.Merchant).
		Str("amount", tx.Amount.String()).
		Msg("Transaction saved")

	return tx, nil
}

// HandleExtractJob runs the processor for one queued job. The error return
// follows the queue's retry contract: only infrastructure failures bubble
// up, terminal extraction outcomes are recorded and swallowed.
func HandleExtractJob(ctx context.Context, p *Processor, job *jobs.ExtractMessageJob) error {
	_, err := p.Process(ctx, domain.Message{
		ID:        job.MessageID,
		Sender:    job.Sender,
		Body:      job.Body,
		Timestamp: job.Timestamp,
	})
	return err
}

// Reprocess re-runs extraction for a previously captured message.
func (p *Processor) Reprocess(ctx context.Context, messageID string) (*domain.Transaction, error) {
	captured, err := p.sink.GetCaptured(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, domain.Message{
		ID:        captured.ID,
		Sender:    captured.Sender,
		Body:      captured.Body,
		Timestamp: captured.Timestamp,
	})
}
