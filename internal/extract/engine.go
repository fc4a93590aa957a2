// Package extract turns raw bank SMS bodies into structured transactions.
//
// Extraction runs two stages: a best-effort generative attempt against an
// inference backend prompted to emit JSON, then a deterministic regex
// cascade that guarantees coverage of the known formats when the backend is
// absent, slow or wrong. A validated generative result always wins; the
// cascade never overrides it.
package extract

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sms-expense-tracker/internal/domain"
)

// ErrFieldsNotFound is the single failure surface of the engine: both stages
// ran and neither resolved an amount plus a merchant. Every lower-level
// condition (backend unreachable, malformed response, no pattern match) is
// absorbed before it can reach a caller.
var ErrFieldsNotFound = errors.New("unable to extract required fields (amount or merchant)")

// Currency is fixed for this deployment; the field exists to generalize.
const Currency = "INR"

// Generator is the inference backend boundary: prompt in, free text out.
// Implementations may block for seconds and may fail; the engine treats any
// error as "the generative stage yielded nothing".
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// stageFields is the partial result a single stage produces before the
// engine promotes it to a full transaction.
type stageFields struct {
	Amount    decimal.Decimal
	Merchant  string
	Account   string // empty when the stage could not resolve it
	Reference string // empty when the stage could not resolve it
}

// Engine extracts transaction fields from message bodies. Safe for
// concurrent use; each Extract call is independent and touches no shared
// mutable state.
type Engine struct {
	gen     Generator // nil disables the generative stage entirely
	timeout time.Duration
	log     zerolog.Logger
}

// NewEngine builds an engine around an optional generative backend. timeout
// bounds each backend call so a hung backend degrades to the pattern
// cascade; zero means no bound.
func NewEngine(gen Generator, timeout time.Duration, log zerolog.Logger) *Engine {
	return &Engine{gen: gen, timeout: timeout, log: log}
}

// Extract derives a transaction from one message. The only outcomes are a
// fully valid record or ErrFieldsNotFound; stage-level failures never
// propagate.
func (e *Engine) Extract(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error) {
	if f, ok := e.generativeStage(ctx, msg.Body); ok {
		e.log.Debug().Str("message_id", msg.ID).Msg("generative extraction succeeded")
		return buildTransaction(msg, bankName, f), nil
	}

	if f, ok := cascadeStage(msg.Body); ok {
		e.log.Debug().Str("message_id", msg.ID).Msg("pattern extraction succeeded")
		return buildTransaction(msg, bankName, f), nil
	}

	return nil, ErrFieldsNotFound
}

// generativeStage prompts the backend and recovers fields from whatever it
// returns. Any failure collapses to a false return.
func (e *Engine) generativeStage(ctx context.Context, body string) (stageFields, bool) {
	if e.gen == nil {
		return stageFields{}, false
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	response, err := e.gen.Generate(ctx, buildPrompt(body))
	if err != nil {
		e.log.Debug().Err(err).Msg("inference backend unavailable, falling back to patterns")
		return stageFields{}, false
	}

	f, ok := recoverFields(response)
	if !ok {
		e.log.Debug().Str("response", response).Msg("generative response unusable, falling back to patterns")
	}
	return f, ok
}

// Close releases the inference backend if it holds resources. Idempotent on
// engines built without a backend.
func (e *Engine) Close() error {
	if c, ok := e.gen.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// buildTransaction promotes validated stage fields to a full record. Both
// stages produce identically shaped output.
func buildTransaction(msg domain.Message, bankName string, f stageFields) *domain.Transaction {
	receivedAt := time.UnixMilli(msg.Timestamp)
	return &domain.Transaction{
		ID:              uuid.NewString(),
		Amount:          f.Amount,
		Currency:        Currency,
		Merchant:        f.Merchant,
		AccountNumber:   f.Account,
		ReferenceNumber: f.Reference,
		Timestamp:       msg.Timestamp,
		Date:            receivedAt.Format("02/01/06"),
		Time:            receivedAt.Format("15:04"),
		BankName:        bankName,
		Category:        "", // assigned by the user later
		RawText:         msg.Body,
		IsExpense:       true,
	}
}
