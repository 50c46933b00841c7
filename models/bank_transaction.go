package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is a statement line pulled from the external bank feed
type BankTransaction struct {
	ExternalID  string          `db:"external_id"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	Username    *string         `db:"username"`
	OccurredAt  time.Time       `db:"occurred_at"`
	ProcessedAt time.Time       `db:"processed_at"`
}

// IsDeposit reports whether the transaction adds funds
func (t *BankTransaction) IsDeposit() bool {
	return t.Amount.IsPositive()
}

// PayerName extracts the sender name from a transfer description of the
// form "<prefix> <last name> <first name>".
func (t *BankTransaction) PayerName() (firstName, lastName string, ok bool) {
	parts := strings.Fields(t.Description)
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[2], parts[1], true
}

// ReconcileReport summarizes one bank feed synchronization run
type ReconcileReport struct {
	Fetched    int
	Applied    int
	Duplicates int
	Unmatched  int
	Rejected   int
	Total      decimal.Decimal
}
