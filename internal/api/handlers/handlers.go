package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-expense-tracker/internal/api/middleware"
	"github.com/dvloznov/sms-expense-tracker/internal/domain"
	"github.com/dvloznov/sms-expense-tracker/internal/jobs"
	"github.com/dvloznov/sms-expense-tracker/internal/pipeline"
	"github.com/dvloznov/sms-expense-tracker/internal/store/sqlite"
)

// MessagesHandler handles message intake and the captured-message query
// surface.
type MessagesHandler struct {
	processor   *pipeline.Processor
	publisher   jobs.Publisher
	store       *sqlite.Store
	autoProcess bool
	log         zerolog.Logger
}

// NewMessagesHandler creates a new messages handler. When autoProcess is
// false inbound messages are captured only; extraction waits for a manual
// reparse.
func NewMessagesHandler(processor *pipeline.Processor, publisher jobs.Publisher, store *sqlite.Store, autoProcess bool, log zerolog.Logger) *MessagesHandler {
	return &MessagesHandler{
		processor:   processor,
		publisher:   publisher,
		store:       store,
		autoProcess: autoProcess,
		log:         log,
	}
}

// Create handles POST /api/messages
func (h *MessagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Sender    string `json:"sender"`
		Body      string `json:"body"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Sender == "" || req.Body == "" {
		middleware.WriteError(w, http.StatusBadRequest, "sender and body are required")
		return
	}
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().UnixMilli()
	}

	captured, err := h.processor.Capture(ctx, req.Sender, req.Body, req.Timestamp)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to capture message")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store message")
		return
	}

	if h.autoProcess {
		job := &jobs.ExtractMessageJob{
			MessageID: captured.ID,
			Sender:    captured.Sender,
			Body:      captured.Body,
			Timestamp: captured.Timestamp,
		}
		if err := h.publisher.PublishExtractMessage(ctx, job); err != nil {
			h.log.Error().Err(err).Str("message_id", captured.ID).Msg("Failed to enqueue extraction job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue message")
			return
		}
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"message_id": captured.ID,
		"from_bank":  captured.FromBank,
		"bank_name":  captured.BankName,
		"queued":     h.autoProcess,
	})
}

// List handles GET /api/messages
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	messages, err := h.store.ListCaptured(ctx, queryLimit(r, 100))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list captured messages")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

// Reparse handles POST /api/messages/{id}/reparse
func (h *MessagesHandler) Reparse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	messageID := r.PathValue("id")
	if messageID == "" {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	tx, err := h.processor.Reprocess(ctx, messageID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Message not found")
			return
		}
		h.log.Error().Err(err).Str("message_id", messageID).Msg("Reparse failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Reparse failed")
		return
	}

	if tx == nil {
		captured, err := h.store.GetCaptured(ctx, messageID)
		if err != nil {
			middleware.WriteError(w, http.StatusNotFound, "Message not found")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"message_id": messageID,
			"status":     captured.Status,
			"error":      captured.ParseError,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message_id":  messageID,
		"status":      domain.ParseStatusParsed,
		"transaction": transactionResponse(tx),
	})
}

// TransactionsHandler handles the stored-transaction query surface.
type TransactionsHandler struct {
	store *sqlite.Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store *sqlite.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: store, log: log}
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transactions, err := h.store.ListTransactions(ctx, queryLimit(r, 100))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	out := make([]map[string]interface{}, 0, len(transactions))
	for i := range transactions {
		out = append(out, transactionResponse(&transactions[i]))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": out,
		"count":        len(out),
	})
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func transactionResponse(t *domain.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"id":               t.ID,
		"amount":           t.Amount.String(),
		"currency":         t.Currency,
		"merchant":         t.Merchant,
		"account_number":   t.AccountNumber,
		"reference_number": t.ReferenceNumber,
		"timestamp":        t.Timestamp,
		"date":             t.Date,
		"time":             t.Time,
		"bank_name":        t.BankName,
		"category":         t.Category,
	}
}

func queryLimit(r *http.Request, def int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
