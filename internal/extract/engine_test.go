package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-expense-tracker/internal/domain"
)

// mockGenerator is a test double for the inference backend.
type mockGenerator struct {
	generateFunc func(ctx context.Context, prompt string) (string, error)
	calls        int
	closed       bool
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls++
	if m.generateFunc != nil {
		return m.generateFunc(ctx, prompt)
	}
	return "", errors.New("no response configured")
}

func (m *mockGenerator) Close() error {
	m.closed = true
	return nil
}

func testMessage(body string) domain.Message {
	return domain.Message{
		ID:        "msg-1",
		Sender:    "VM-HDFCBK",
		Body:      body,
		Timestamp: time.Date(2026, 8, 15, 14, 30, 0, 0, time.Local).UnixMilli(),
	}
}

func TestExtract_GenerativeResultWins(t *testing.T) {
	// The pattern cascade would resolve SWIGGY; a valid generative result
	// must take precedence regardless.
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return `{"amount":"499.50","merchant":"Swiggy Instamart","reference":"REF42","account":"1234"}`, nil
		},
	}
	engine := NewEngine(gen, 0, zerolog.Nop())

	body := "Rs. 500.00 debited from A/C XX1234 To SWIGGY On 15-08 UPI Ref 123456789"
	tx, err := engine.Extract(context.Background(), testMessage(body), "HDFC Bank")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if tx.Merchant != "Swiggy Instamart" {
		t.Errorf("merchant = %q, want generative value", tx.Merchant)
	}
	if tx.Amount.String() != "499.5" {
		t.Errorf("amount = %s, want 499.5", tx.Amount.String())
	}
	if tx.ReferenceNumber != "REF42" {
		t.Errorf("reference = %q, want REF42", tx.ReferenceNumber)
	}
	if tx.BankName != "HDFC Bank" {
		t.Errorf("bank = %q, want HDFC Bank", tx.BankName)
	}
	if tx.RawText != body {
		t.Errorf("raw text not copied verbatim")
	}
	if tx.Currency != "INR" {
		t.Errorf("currency = %q, want INR", tx.Currency)
	}
}

func TestExtract_FallsBackOnBackendError(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("backend unreachable")
		},
	}
	engine := NewEngine(gen, 0, zerolog.Nop())

	tx, err := engine.Extract(context.Background(), testMessage("Rs. 500.00 To SWIGGY On 15-08"), "HDFC Bank")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if tx.Merchant != "SWIGGY" {
		t.Errorf("merchant = %q, want pattern value SWIGGY", tx.Merchant)
	}
	if gen.calls != 1 {
		t.Errorf("backend called %d times, want 1", gen.calls)
	}
}

func TestExtract_FallsBackOnMalformedResponse(t *testing.T) {
	responses := []string{
		"no json here at all",
		`{"amount":"nonsense","merchant":"SWIGGY"}`,
		`{"amount":"500","merchant":"null"}`,
		`{"amount":"500","merchant":""}`,
	}

	for _, resp := range responses {
		gen := &mockGenerator{
			generateFunc: func(ctx context.Context, prompt string) (string, error) {
				return resp, nil
			},
		}
		engine := NewEngine(gen, 0, zerolog.Nop())

		tx, err := engine.Extract(context.Background(), testMessage("Rs. 250 To KIRANA STORE On 01-01"), "HDFC Bank")
		if err != nil {
			t.Fatalf("response %q: Extract failed: %v", resp, err)
		}
		if tx.Merchant != "KIRANA STORE" {
			t.Errorf("response %q: merchant = %q, want pattern fallback KIRANA STORE", resp, tx.Merchant)
		}
	}
}

func TestExtract_NoBackendConfigured(t *testing.T) {
	engine := NewEngine(nil, 0, zerolog.Nop())

	tx, err := engine.Extract(context.Background(), testMessage("Rs. 100 To CHAI POINT On 02-02"), "ICICI Bank")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if tx.Merchant != "CHAI POINT" {
		t.Errorf("merchant = %q, want CHAI POINT", tx.Merchant)
	}
}

func TestExtract_BothStagesFail(t *testing.T) {
	engine := NewEngine(nil, 0, zerolog.Nop())

	tx, err := engine.Extract(context.Background(), testMessage("Your OTP is 4532"), "HDFC Bank")
	if !errors.Is(err, ErrFieldsNotFound) {
		t.Fatalf("err = %v, want ErrFieldsNotFound", err)
	}
	if tx != nil {
		t.Errorf("expected nil transaction on failure, got %+v", tx)
	}
}

func TestExtract_TimeoutDegradesToPatterns(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			// Simulate a hung backend that only returns on cancellation.
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	engine := NewEngine(gen, 10*time.Millisecond, zerolog.Nop())

	start := time.Now()
	tx, err := engine.Extract(context.Background(), testMessage("Rs. 75 To JUICE BAR On 03-03"), "HDFC Bank")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if tx.Merchant != "JUICE BAR" {
		t.Errorf("merchant = %q, want pattern value JUICE BAR", tx.Merchant)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("extraction blocked for %v, timeout not applied", elapsed)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return `{"amount":"123.45","merchant":"STABLE MART","reference":"R1","account":"A1"}`, nil
		},
	}
	engine := NewEngine(gen, 0, zerolog.Nop())
	msg := testMessage("Rs. 500 To SOMEWHERE On 01-01")

	first, err := engine.Extract(context.Background(), msg, "HDFC Bank")
	if err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}
	second, err := engine.Extract(context.Background(), msg, "HDFC Bank")
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}

	// IDs differ by construction; every derived field must not.
	if !first.Amount.Equal(second.Amount) ||
		first.Merchant != second.Merchant ||
		first.AccountNumber != second.AccountNumber ||
		first.ReferenceNumber != second.ReferenceNumber ||
		first.Date != second.Date ||
		first.Time != second.Time ||
		first.BankName != second.BankName ||
		first.RawText != second.RawText {
		t.Errorf("repeated extraction diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestExtract_DerivedDateTime(t *testing.T) {
	engine := NewEngine(nil, 0, zerolog.Nop())
	msg := testMessage("Rs. 10 To VENDOR On 01-01")

	tx, err := engine.Extract(context.Background(), msg, "HDFC Bank")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if tx.Date != "15/08/26" {
		t.Errorf("date = %q, want 15/08/26", tx.Date)
	}
	if tx.Time != "14:30" {
		t.Errorf("time = %q, want 14:30", tx.Time)
	}
	if tx.Timestamp != msg.Timestamp {
		t.Errorf("timestamp not copied from message")
	}
}

func TestEngine_CloseReleasesBackend(t *testing.T) {
	gen := &mockGenerator{}
	engine := NewEngine(gen, 0, zerolog.Nop())

	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !gen.closed {
		t.Error("backend not released on Close")
	}

	// No backend: Close is a no-op.
	if err := NewEngine(nil, 0, zerolog.Nop()).Close(); err != nil {
		t.Fatalf("Close without backend failed: %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	body := `Rs. 500 debited To SWIGGY`
	prompt := buildPrompt(body)

	if !strings.Contains(prompt, `SMS: "`+body+`"`) {
		t.Error("prompt does not embed the quoted message body")
	}
	for _, key := range []string{"amount", "merchant", "reference", "account"} {
		if !strings.Contains(prompt, key) {
			t.Errorf("prompt does not mention required key %q", key)
		}
	}
	if !strings.Contains(prompt, `{"amount":"[number]","merchant":"[name]","reference":"[ref]","account":"[digits]"}`) {
		t.Error("prompt does not constrain the response format")
	}
}
