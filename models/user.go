package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a platform account with a monetary balance
type User struct {
	Username     string          `db:"username"`
	Email        string          `db:"email"`
	PasswordHash string          `db:"password_hash" json:"-"`
	Balance      decimal.Decimal `db:"balance"`
	Verified     bool            `db:"verified"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// CanAfford reports whether the user's balance covers amount
func (u *User) CanAfford(amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}

// Verification holds the identity fields used to match bank transfers to a user
type Verification struct {
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	CreatedAt time.Time `db:"created_at"`
}
