package domain

// Message is one inbound SMS as delivered by the intake boundary.
// Immutable once created; the extraction engine only reads it.
type Message struct {
	ID        string // UUID assigned at intake
	Sender    string // originating address, e.g. "VM-HDFCBK"
	Body      string
	Timestamp int64 // epoch millis at receipt
}

// BankIdentifier maps a sender-substring pattern to a bank display name.
// The directory is an ordered list of these; order defines match precedence.
type BankIdentifier struct {
	Identifier string `mapstructure:"identifier"`
	BankName   string `mapstructure:"bank_name"`
	Active     bool   `mapstructure:"active"`
}

// ParseStatus tracks what happened to a captured message.
type ParseStatus string

const (
	ParseStatusPending ParseStatus = "pending" // stored, not yet processed
	ParseStatusSkipped ParseStatus = "skipped" // sender not in the bank directory
	ParseStatusParsed  ParseStatus = "parsed"  // extraction succeeded
	ParseStatusFailed  ParseStatus = "failed"  // extraction failed, see ParseError
)

// CapturedMessage is the audit record kept for every inbound message,
// bank or not. Extraction outcomes are written back onto it.
type CapturedMessage struct {
	ID            string
	Sender        string
	Body          string
	Timestamp     int64
	FromBank      bool
	BankName      string // empty when FromBank is false
	Status        ParseStatus
	ParseError    string // failure reason when Status is failed
	TransactionID string // link to the created transaction when parsed
}
