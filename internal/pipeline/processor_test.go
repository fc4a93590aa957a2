package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sms-expense-tracker/internal/domain"
	"github.com/dvloznov/sms-expense-tracker/internal/extract"
)

// mockSink is a test double for the persistence boundary.
type mockSink struct {
	saved      []*domain.Transaction
	captured   []*domain.CapturedMessage
	parsed     map[string]string // messageID -> transactionID
	failed     map[string]string // messageID -> reason
	skipped    []string
	saveTxErr  error
	capturedBy map[string]*domain.CapturedMessage
}

func newMockSink() *mockSink {
	return &mockSink{
		parsed:     make(map[string]string),
		failed:     make(map[string]string),
		capturedBy: make(map[string]*domain.CapturedMessage),
	}
}

func (m *mockSink) SaveTransaction(ctx context.Context, t *domain.Transaction) error {
	if m.saveTxErr != nil {
		return m.saveTxErr
	}
	m.saved = append(m.saved, t)
	return nil
}

func (m *mockSink) SaveCaptured(ctx context.Context, c *domain.CapturedMessage) error {
	m.captured = append(m.captured, c)
	m.capturedBy[c.ID] = c
	return nil
}

func (m *mockSink) GetCaptured(ctx context.Context, id string) (*domain.CapturedMessage, error) {
	if c, ok := m.capturedBy[id]; ok {
		return c, nil
	}
	return nil, errors.New("not found")
}

func (m *mockSink) MarkParsed(ctx context.Context, messageID, transactionID string) error {
	m.parsed[messageID] = transactionID
	return nil
}

func (m *mockSink) MarkFailed(ctx context.Context, messageID, reason string) error {
	m.failed[messageID] = reason
	return nil
}

func (m *mockSink) MarkSkipped(ctx context.Context, messageID string) error {
	m.skipped = append(m.skipped, messageID)
	return nil
}

// mockExtractor is a test double for the extraction engine.
type mockExtractor struct {
	extractFunc func(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error)
}

func (m *mockExtractor) Extract(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error) {
	return m.extractFunc(ctx, msg, bankName)
}

var testDirectory = []domain.BankIdentifier{
	{Identifier: "HDFCBK", BankName: "HDFC Bank", Active: true},
}

func bankMessage() domain.Message {
	return domain.Message{
		ID:        "msg-1",
		Sender:    "VM-HDFCBK",
		Body:      "Rs. 500 To SWIGGY On 15-08",
		Timestamp: 1755246600000,
	}
}

func TestProcess_Success(t *testing.T) {
	sink := newMockSink()
	engine := &mockExtractor{
		extractFunc: func(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error) {
			return &domain.Transaction{
				ID:       "tx-1",
				Amount:   decimal.RequireFromString("500"),
				Merchant: "SWIGGY",
				BankName: bankName,
			}, nil
		},
	}
	p := NewProcessor(sink, engine, testDirectory, zerolog.Nop())

	tx, err := p.Process(context.Background(), bankMessage())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if tx == nil || tx.ID != "tx-1" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.BankName != "HDFC Bank" {
		t.Errorf("bank name = %q, want directory display name", tx.BankName)
	}
	if len(sink.saved) != 1 {
		t.Errorf("saved %d transactions, want 1", len(sink.saved))
	}
	if sink.parsed["msg-1"] != "tx-1" {
		t.Errorf("message not linked to transaction: %v", sink.parsed)
	}
}

func TestProcess_NonBankSenderSkipped(t *testing.T) {
	sink := newMockSink()
	engine := &mockExtractor{
		extractFunc: func(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error) {
			t.Fatal("engine must not run for non-bank senders")
			return nil, nil
		},
	}
	p := NewProcessor(sink, engine, testDirectory, zerolog.Nop())

	msg := bankMessage()
	msg.Sender = "RANDOMCORP"

	tx, err := p.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil transaction, got %+v", tx)
	}
	if len(sink.skipped) != 1 || sink.skipped[0] != "msg-1" {
		t.Errorf("message not marked skipped: %v", sink.skipped)
	}
}

func TestProcess_ExtractionFailureIsTerminal(t *testing.T) {
	sink := newMockSink()
	engine := &mockExtractor{
		extractFunc: func(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error) {
			return nil, extract.ErrFieldsNotFound
		},
	}
	p := NewProcessor(sink, engine, testDirectory, zerolog.Nop())

	tx, err := p.Process(context.Background(), bankMessage())
	if err != nil {
		t.Fatalf("terminal extraction failure must not be an error, got: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil transaction, got %+v", tx)
	}
	if reason := sink.failed["msg-1"]; reason != extract.ErrFieldsNotFound.Error() {
		t.Errorf("failure reason = %q, want the fixed reason", reason)
	}
}

func TestProcess_SinkErrorPropagates(t *testing.T) {
	sink := newMockSink()
	sink.saveTxErr = errors.New("disk full")
	engine := &mockExtractor{
		extractFunc: func(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error) {
			return &domain.Transaction{ID: "tx-1", Merchant: "SWIGGY"}, nil
		},
	}
	p := NewProcessor(sink, engine, testDirectory, zerolog.Nop())

	_, err := p.Process(context.Background(), bankMessage())
	if err == nil {
		t.Fatal("expected infrastructure error to propagate for retry")
	}
}

func TestCapture_ClassifiesSender(t *testing.T) {
	sink := newMockSink()
	p := NewProcessor(sink, &mockExtractor{}, testDirectory, zerolog.Nop())

	captured, err := p.Capture(context.Background(), "VM-HDFCBK", "Rs. 500 To SWIGGY", 1755246600000)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if !captured.FromBank || captured.BankName != "HDFC Bank" {
		t.Errorf("classification = (%v, %q), want (true, HDFC Bank)", captured.FromBank, captured.BankName)
	}
	if captured.Status != domain.ParseStatusPending {
		t.Errorf("status = %q, want pending", captured.Status)
	}

	captured, err = p.Capture(context.Background(), "PROMO-SPAM", "Sale today!", 1755246600000)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if captured.FromBank || captured.BankName != "" {
		t.Errorf("non-bank sender classified as bank: %+v", captured)
	}
}

func TestNewProcessor_SnapshotsDirectory(t *testing.T) {
	sink := newMockSink()
	directory := []domain.BankIdentifier{
		{Identifier: "HDFCBK", BankName: "HDFC Bank", Active: true},
	}
	engine := &mockExtractor{
		extractFunc: func(ctx context.Context, msg domain.Message, bankName string) (*domain.Transaction, error) {
			return &domain.Transaction{ID: "tx-1", Merchant: "SWIGGY", BankName: bankName}, nil
		},
	}
	p := NewProcessor(sink, engine, directory, zerolog.Nop())

	// A configuration change after construction must not affect
	// in-flight processing.
	directory[0] = domain.BankIdentifier{Identifier: "OTHER", BankName: "Other Bank", Active: true}

	tx, err := p.Process(context.Background(), bankMessage())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if tx == nil || tx.BankName != "HDFC Bank" {
		t.Errorf("directory snapshot not isolated from caller mutation")
	}
}
