package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeStake        TransactionType = "stake"
	TransactionTypeEventWin     TransactionType = "event_win"
	TransactionTypeEventLoss    TransactionType = "event_loss"
	TransactionTypeBudgetHold   TransactionType = "budget_hold"
	TransactionTypeBudgetRefund TransactionType = "budget_refund"
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeEvent         RelatedType = "event"
	RelatedTypeParticipation RelatedType = "participation"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	Username            string          `db:"username"`
	BalanceBefore       decimal.Decimal `db:"balance_before"`
	BalanceAfter        decimal.Decimal `db:"balance_after"`
	ChangeAmount        decimal.Decimal `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *int64          `db:"related_id"`
	RelatedType         *RelatedType    `db:"related_type"`
	CreatedAt           time.Time       `db:"created_at"`
}
