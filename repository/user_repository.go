package repository

import (
	"context"
	"errors"
	"fmt"

	"betboard/database"
	"betboard/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const userColumns = `u.username, u.email, u.password_hash, u.balance, u.verified, u.created_at, u.updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Balance,
		&user.Verified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.username = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return user, nil
}

// GetByUsernameForUpdate retrieves a user and locks the row until the transaction ends
func (r *UserRepository) GetByUsernameForUpdate(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.username = $1 FOR UPDATE`

	user, err := scanUser(r.q.QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", username, err)
	}
	return user, nil
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, balance, verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Balance,
		user.Verified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return nil
}

// UpdateBalance sets a user's balance
func (r *UserRepository) UpdateBalance(ctx context.Context, username string, newBalance decimal.Decimal) error {
	query := `
		UPDATE users
		SET balance = $1, updated_at = NOW()
		WHERE username = $2
	`

	result, err := r.q.Exec(ctx, query, newBalance, username)
	if err != nil {
		return fmt.Errorf("failed to update balance for user %s: %w", username, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", username)
	}
	return nil
}

// FindVerifiedByName returns the verified user whose verification record
// matches the name. An ambiguous name matches nobody.
func (r *UserRepository) FindVerifiedByName(ctx context.Context, firstName, lastName string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN verifications v ON v.username = u.username
		WHERE v.first_name = $1 AND v.last_name = $2 AND u.verified
		ORDER BY u.username
		LIMIT 2
	`

	rows, err := r.q.Query(ctx, query, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by name: %w", err)
	}
	defer rows.Close()

	var matches []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		matches = append(matches, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	if len(matches) != 1 {
		return nil, nil
	}
	return matches[0], nil
}

// SaveVerification stores the identity fields of a user and marks them verified
func (r *UserRepository) SaveVerification(ctx context.Context, verification *models.Verification) error {
	query := `
		INSERT INTO verifications (username, first_name, last_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		verification.Username,
		verification.FirstName,
		verification.LastName,
	).Scan(&verification.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save verification for %s: %w", verification.Username, err)
	}

	result, err := r.q.Exec(ctx, `UPDATE users SET verified = TRUE, updated_at = NOW() WHERE username = $1`, verification.Username)
	if err != nil {
		return fmt.Errorf("failed to mark user %s verified: %w", verification.Username, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", verification.Username)
	}
	return nil
}
