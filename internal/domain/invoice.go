package domain

import "fmt"

// InvoiceStatus classifies an invoice as receivable/payable or accrual.
type InvoiceStatus string

const (
	StatusARAP InvoiceStatus = "ARAP"
	StatusACCR InvoiceStatus = "ACCR"
)

// ParseInvoiceStatus validates a raw status value.
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	switch InvoiceStatus(raw) {
	case StatusARAP:
		return StatusARAP, nil
	case StatusACCR:
		return StatusACCR, nil
	default:
		return "", fmt.Errorf("unknown invoice status %q", raw)
	}
}

// Invoice is one row of the invoice input relation.
type Invoice struct {
	LegalEntity  string
	CounterParty string
	Rating       int64
	Status       InvoiceStatus
	Value        int64
}

// Party is one row of the side relation mapping a counter party to its tier.
// Uniqueness per counter party is assumed but not enforced; duplicates
// duplicate joined rows.
type Party struct {
	CounterParty string
	Tier         int64
}

// InvoiceFact is one row of the joined fact relation. The join is full
// outer, so either side may be absent: invoice-side fields are nil on a fact
// produced by an unmatched party row, and Tier is nil on a fact whose
// counter party has no side-relation entry. CounterParty is the join key and
// always present.
type InvoiceFact struct {
	LegalEntity  *string
	CounterParty string
	Rating       *int64
	Status       *InvoiceStatus
	Value        *int64
	Tier         *int64
}
