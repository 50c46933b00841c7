package service

import (
	"context"
	"fmt"

	"betboard/events"
	"betboard/models"

	"github.com/shopspring/decimal"
)

// RecordBalanceChange records a balance history entry and emits appropriate events.
// This is the single entry point for all balance changes in the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed after the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		Username:        history.Username,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	return nil
}

// balanceChange describes one mutation of a user's balance
type balanceChange struct {
	delta       decimal.Decimal
	txType      models.TransactionType
	metadata    map[string]any
	relatedID   int64
	relatedType models.RelatedType
}

// applyBalanceChange updates the user's balance by delta and records the history
// entry. The user must already be locked in the unit of work; user.Balance is
// updated in place so subsequent changes in the same transaction chain correctly.
func applyBalanceChange(ctx context.Context, uow UnitOfWork, user *models.User, change balanceChange) error {
	before := user.Balance
	after := before.Add(change.delta)

	if err := uow.UserRepository().UpdateBalance(ctx, user.Username, after); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	history := &models.BalanceHistory{
		Username:            user.Username,
		BalanceBefore:       before,
		BalanceAfter:        after,
		ChangeAmount:        change.delta,
		TransactionType:     change.txType,
		TransactionMetadata: change.metadata,
	}
	if change.relatedType != "" {
		relatedID := change.relatedID
		relatedType := change.relatedType
		history.RelatedID = &relatedID
		history.RelatedType = &relatedType
	}
	if history.TransactionMetadata == nil {
		history.TransactionMetadata = map[string]any{}
	}

	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return err
	}

	user.Balance = after
	return nil
}
