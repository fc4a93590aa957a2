// Package sqlite is the persistence sink: extracted transactions plus the
// captured-message audit trail, in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/sms-expense-tracker/internal/domain"
)

// ErrNotFound reports a lookup for a row that does not exist. Callers
// distinguish it from infrastructure failures with errors.Is.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite handle. Safe for concurrent use; database/sql
// serializes access to the single writer connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id               TEXT PRIMARY KEY,
		amount           TEXT NOT NULL,
		currency         TEXT NOT NULL,
		merchant         TEXT NOT NULL,
		account_number   TEXT NOT NULL DEFAULT '',
		reference_number TEXT NOT NULL DEFAULT '',
		timestamp        INTEGER NOT NULL,
		date             TEXT NOT NULL,
		time             TEXT NOT NULL,
		bank_name        TEXT NOT NULL,
		category         TEXT NOT NULL DEFAULT '',
		raw_text         TEXT NOT NULL,
		is_expense       INTEGER NOT NULL DEFAULT 1,
		notes            TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);

	CREATE TABLE IF NOT EXISTS captured_messages (
		id             TEXT PRIMARY KEY,
		sender         TEXT NOT NULL,
		body           TEXT NOT NULL,
		timestamp      INTEGER NOT NULL,
		from_bank      INTEGER NOT NULL,
		bank_name      TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		parse_error    TEXT NOT NULL DEFAULT '',
		transaction_id TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_captured_timestamp ON captured_messages(timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveTransaction inserts one extracted transaction.
func (s *Store) SaveTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, amount, currency, merchant, account_number, reference_number,
			timestamp, date, time, bank_name, category, raw_text, is_expense, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Amount.String(), t.Currency, t.Merchant, t.AccountNumber, t.ReferenceNumber,
		t.Timestamp, t.Date, t.Time, t.BankName, t.Category, t.RawText, boolToInt(t.IsExpense), t.Notes,
	)
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}
	return nil
}

// ListTransactions returns stored transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, currency, merchant, account_number, reference_number,
		       timestamp, date, time, bank_name, category, raw_text, is_expense, notes
		FROM transactions
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var amount string
		var isExpense int
		if err := rows.Scan(
			&t.ID, &amount, &t.Currency, &t.Merchant, &t.AccountNumber, &t.ReferenceNumber,
			&t.Timestamp, &t.Date, &t.Time, &t.BankName, &t.Category, &t.RawText, &isExpense, &t.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: bad stored amount %q: %w", t.ID, amount, err)
		}
		t.IsExpense = isExpense != 0
		result = append(result, t)
	}
	return result, rows.Err()
}

// SaveCaptured records one inbound message in the audit trail.
func (s *Store) SaveCaptured(ctx context.Context, m *domain.CapturedMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO captured_messages (
			id, sender, body, timestamp, from_bank, bank_name, status, parse_error, transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Sender, m.Body, m.Timestamp, boolToInt(m.FromBank), m.BankName, m.Status, m.ParseError, m.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("save captured message %s: %w", m.ID, err)
	}
	return nil
}

// GetCaptured fetches a single captured message by ID.
func (s *Store) GetCaptured(ctx context.Context, id string) (*domain.CapturedMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender, body, timestamp, from_bank, bank_name, status, parse_error, transaction_id
		FROM captured_messages WHERE id = ?`, id)

	var m domain.CapturedMessage
	var fromBank int
	if err := row.Scan(&m.ID, &m.Sender, &m.Body, &m.Timestamp, &fromBank, &m.BankName, &m.Status, &m.ParseError, &m.TransactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("captured message %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get captured message %s: %w", id, err)
	}
	m.FromBank = fromBank != 0
	return &m, nil
}

// ListCaptured returns captured messages, newest first.
func (s *Store) ListCaptured(ctx context.Context, limit int) ([]domain.CapturedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, body, timestamp, from_bank, bank_name, status, parse_error, transaction_id
		FROM captured_messages
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list captured messages: %w", err)
	}
	defer rows.Close()

	var result []domain.CapturedMessage
	for rows.Next() {
		var m domain.CapturedMessage
		var fromBank int
		if err := rows.Scan(&m.ID, &m.Sender, &m.Body, &m.Timestamp, &fromBank, &m.BankName, &m.Status, &m.ParseError, &m.TransactionID); err != nil {
			return nil, fmt.Errorf("scan captured message: %w", err)
		}
		m.FromBank = fromBank != 0
		result = append(result, m)
	}
	return result, rows.Err()
}

// MarkParsed links a captured message to its extracted transaction.
func (s *Store) MarkParsed(ctx context.Context, messageID, transactionID string) error {
	return s.setStatus(ctx, messageID, domain.ParseStatusParsed, "", transactionID)
}

// MarkFailed records an extraction failure and its reason.
func (s *Store) MarkFailed(ctx context.Context, messageID, reason string) error {
	return s.setStatus(ctx, messageID, domain.ParseStatusFailed, reason, "")
}

// MarkSkipped records that the sender was not a configured bank.
func (s *Store) MarkSkipped(ctx context.Context, messageID string) error {
	return s.setStatus(ctx, messageID, domain.ParseStatusSkipped, "", "")
}

func (s *Store) setStatus(ctx context.Context, messageID string, status domain.ParseStatus, reason, transactionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE captured_messages
		SET status = ?, parse_error = ?, transaction_id = ?
		WHERE id = ?`,
		status, reason, transactionID, messageID,
	)
	if err != nil {
		return fmt.Errorf("update captured message %s: %w", messageID, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
