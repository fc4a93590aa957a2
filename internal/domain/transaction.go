package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Transaction represents one transaction extracted from a bank SMS.
// This is a domain struct, not a database row; the sqlite store maps it
// into the transactions table schema.
type Transaction struct {
	ID              string          // UUID assigned at creation
	Amount          decimal.Decimal // always >= 0
	Currency        string          // fixed "INR" for this deployment
	Merchant        string          // counterparty name, trimmed, never blank
	AccountNumber   string          // possibly masked (e.g. "XXXX1234"), may be empty
	ReferenceNumber string          // UPI/UTR/TXN reference, may be empty
	Timestamp       int64           // epoch millis, copied from the source message
	Date            string          // derived, dd/MM/yy in local time
	Time            string          // derived, HH:mm in local time
	BankName        string          // from the directory match
	Category        string          // empty at creation, assigned by the user later
	RawText         string          // verbatim message body, kept for audit
	IsExpense       bool            // true for debit, false for credit
	Notes           string
}

// FormattedAmount renders the amount with the rupee sign for display.
func (t *Transaction) FormattedAmount() string {
	return fmt.Sprintf("₹%s", t.Amount.StringFixed(2))
}

// FormattedDateTime renders the derived date and time strings together.
func (t *Transaction) FormattedDateTime() string {
	return t.Date + " " + t.Time
}
