package testutil

import (
	"context"
	"testing"
	"time"

	"betboard/database"
	"betboard/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(username string) *models.User {
	now := time.Now()
	return &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Balance:   decimal.NewFromInt(1000),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestUserWithBalance creates a test user with a specific balance
func CreateTestUserWithBalance(username string, balance string) *models.User {
	user := CreateTestUser(username)
	user.Balance = decimal.RequireFromString(balance)
	return user
}

// CreateTestEvent creates an open public event owned by creator
func CreateTestEvent(creator string, budget string) *models.Event {
	amount := decimal.RequireFromString(budget)
	return &models.Event{
		Title:         "Who wins the final?",
		Budget:        amount,
		InitialBudget: amount,
		StakeLimit:    decimal.NewFromInt(100),
		PlayerLimit:   10,
		IsOpen:        true,
		IsPublic:      true,
		Creator:       creator,
	}
}

// CreateTestActions creates actions with the given labels and coefficient 2.0
func CreateTestActions(labels ...string) []*models.Action {
	actions := make([]*models.Action, 0, len(labels))
	for _, label := range labels {
		actions = append(actions, &models.Action{Label: label, Coefficient: 2.0})
	}
	return actions
}

// CreateTestBalanceHistory creates a test balance history entry
func CreateTestBalanceHistory(username string, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		Username:        username,
		BalanceBefore:   decimal.NewFromInt(1000),
		BalanceAfter:    decimal.NewFromInt(900),
		ChangeAmount:    decimal.NewFromInt(-100),
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
		CreatedAt: time.Now(),
	}
}

// SeedUsers inserts users directly in a single transaction
func SeedUsers(t *testing.T, db *database.DB, users ...*models.User) {
	t.Helper()

	err := db.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		for _, user := range users {
			_, err := tx.Exec(context.Background(),
				`INSERT INTO users (username, email, balance, verified) VALUES ($1, $2, $3, $4)`,
				user.Username, user.Email, user.Balance, user.Verified,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}
