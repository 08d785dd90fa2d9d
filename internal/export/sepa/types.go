package sepa

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Party is the company or one counterpart of a payment. ID holds the
// creditor identifier, NIF or DNI depending on the role.
type Party struct {
	ID      string
	Name    string
	Address string
	IBAN    string
	BIC     string
}

// Transaction is a single collection or transfer. Reference doubles as the
// end-to-end id and is what readers key on.
type Transaction struct {
	Reference   string
	MandateID   string
	MandateDate time.Time
	Party       Party
	AmountCents int64
	Concept     string
	Purpose     string
}

// Batch is one payment file: the initiating company and its transactions,
// all due on DueDate.
type Batch struct {
	MessageID    string
	CreatedAt    time.Time
	DueDate      time.Time
	Initiator    Party
	Transactions []Transaction
}

func (b Batch) TotalCents() int64 {
	var total int64
	for _, tx := range b.Transactions {
		total += tx.AmountCents
	}
	return total
}

func (b Batch) validate() error {
	if len(b.Transactions) == 0 {
		return ErrEmptyBatch
	}
	for _, tx := range b.Transactions {
		if tx.AmountCents <= 0 {
			return fmt.Errorf("%s: %w", tx.Reference, ErrInvalidAmount)
		}
	}
	return nil
}

// Entry is what a reader recovers from one transaction record.
type Entry struct {
	Reference   string
	MandateID   string
	Name        string
	IBAN        string
	AmountCents int64
}

// FormatCents renders integer cents as a two-decimal amount string.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
