package repository

import (
	"context"
	"fmt"

	"betboard/database"
	"betboard/models"
)

// BankTransactionRepository implements the BankTransactionRepository interface
type BankTransactionRepository struct {
	q queryable
}

// NewBankTransactionRepository creates a new bank transaction repository
func NewBankTransactionRepository(db *database.DB) *BankTransactionRepository {
	return &BankTransactionRepository{q: db.Pool}
}

// newBankTransactionRepositoryWithTx creates a new bank transaction repository with a transaction
func newBankTransactionRepositoryWithTx(tx queryable) *BankTransactionRepository {
	return &BankTransactionRepository{q: tx}
}

// Exists reports whether a statement item with the external ID was already applied
func (r *BankTransactionRepository) Exists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bank_transactions WHERE external_id = $1)`,
		externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bank transaction %s: %w", externalID, err)
	}
	return exists, nil
}

// Create records a processed statement item
func (r *BankTransactionRepository) Create(ctx context.Context, tx *models.BankTransaction) error {
	query := `
		INSERT INTO bank_transactions (external_id, amount, description, username, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING processed_at
	`

	err := r.q.QueryRow(ctx, query,
		tx.ExternalID,
		tx.Amount,
		tx.Description,
		tx.Username,
		tx.OccurredAt,
	).Scan(&tx.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to record bank transaction %s: %w", tx.ExternalID, err)
	}
	return nil
}
