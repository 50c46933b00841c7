package service

import (
	"context"
	"time"

	"betboard/events"
	"betboard/models"

	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByUsername retrieves a user, returning nil when absent
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByUsernameForUpdate retrieves and row-locks a user for the current transaction
	GetByUsernameForUpdate(ctx context.Context, username string) (*models.User, error)

	// Create inserts a new user
	Create(ctx context.Context, user *models.User) error

	// UpdateBalance sets a user's balance
	UpdateBalance(ctx context.Context, username string, newBalance decimal.Decimal) error

	// FindVerifiedByName returns the verified user with the given first and last name
	FindVerifiedByName(ctx context.Context, firstName, lastName string) (*models.User, error)

	// SaveVerification stores the identity fields of a user and marks them verified
	SaveVerification(ctx context.Context, verification *models.Verification) error
}

// EventRepository defines the interface for event and action data access
type EventRepository interface {
	// Create persists an event with its actions, assigning identifiers
	Create(ctx context.Context, event *models.Event, actions []*models.Action) error

	// GetByID retrieves an event without its actions
	GetByID(ctx context.Context, id int64) (*models.Event, error)

	// GetByIDForUpdate retrieves and row-locks an event for the current transaction
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Event, error)

	// GetDetail retrieves an event with its actions in display order
	GetDetail(ctx context.Context, id int64) (*models.EventDetail, error)

	// ListDetails returns every event with actions, newest first
	ListDetails(ctx context.Context) ([]*models.EventDetail, error)

	// GetByCreator returns events created by a user
	GetByCreator(ctx context.Context, username string) ([]*models.Event, error)

	// GetAction retrieves a single action
	GetAction(ctx context.Context, actionID int64) (*models.Action, error)

	// UpdateBudget sets the event budget
	UpdateBudget(ctx context.Context, eventID int64, budget decimal.Decimal) error

	// SetOpen toggles whether the event accepts participations
	SetOpen(ctx context.Context, eventID int64, open bool) error

	// SetVisibility toggles public/private; password is cleared when public
	SetVisibility(ctx context.Context, eventID int64, public bool, password string) error

	// MarkFinished sets the terminal finished flag
	MarkFinished(ctx context.Context, eventID int64, finishedAt time.Time) error

	// UpdateCoefficient overwrites an action's coefficient
	UpdateCoefficient(ctx context.Context, actionID int64, coefficient float64) error
}

// ParticipationRepository defines the interface for participation data access
type ParticipationRepository interface {
	// Create inserts a participation, assigning its identifier
	Create(ctx context.Context, participation *models.Participation) error

	// GetByEvent returns all participations on an event's actions
	GetByEvent(ctx context.Context, eventID int64) ([]*models.Participation, error)

	// GetByUser returns all participations of a user, newest first
	GetByUser(ctx context.Context, username string) ([]*models.Participation, error)

	// StakeTotals returns the summed stake per action of an event
	StakeTotals(ctx context.Context, eventID int64) (map[int64]decimal.Decimal, error)

	// CountPlayers returns the number of distinct users staking on an event
	CountPlayers(ctx context.Context, eventID int64) (int, error)

	// HasParticipated reports whether a user already staked on an event
	HasParticipated(ctx context.Context, eventID int64, username string) (bool, error)

	// SetOutcomes marks participations on the winning action as won and the rest as lost
	SetOutcomes(ctx context.Context, eventID int64, winningActionID int64) error
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user
	GetByUser(ctx context.Context, username string, limit int) ([]*models.BalanceHistory, error)
}

// BankTransactionRepository tracks bank statement items already applied
type BankTransactionRepository interface {
	// Exists reports whether the bank transaction has been processed
	Exists(ctx context.Context, externalID string) (bool, error)

	// Create records a processed bank transaction
	Create(ctx context.Context, tx *models.BankTransaction) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	EventRepository() EventRepository
	ParticipationRepository() ParticipationRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	BankTransactionRepository() BankTransactionRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// OddsCache stores advisory coefficient suggestions per event
type OddsCache interface {
	Get(ctx context.Context, eventID int64) ([]models.SuggestedCoefficient, bool, error)
	Set(ctx context.Context, eventID int64, suggestions []models.SuggestedCoefficient) error
	Invalidate(ctx context.Context, eventID int64) error
}

// BankFeed lists bank statement items in a time window
type BankFeed interface {
	Statement(ctx context.Context, from, to time.Time) ([]*models.BankTransaction, error)
}

// CreateEventParams describes a new event and its actions
type CreateEventParams struct {
	Title       string          `validate:"required,max=255"`
	Creator     string          `validate:"required"`
	Budget      decimal.Decimal `validate:"-"`
	StakeLimit  decimal.Decimal `validate:"-"`
	PlayerLimit int             `validate:"gt=0"`
	IsPublic    bool
	Password    string
	Actions     []ActionParams `validate:"required,min=1,dive"`
}

// ActionParams describes one outcome of a new event
type ActionParams struct {
	Label       string  `validate:"required,max=255"`
	Coefficient float64 `validate:"gt=0"`
}

// AdmitParams describes a stake request
type AdmitParams struct {
	Username string          `validate:"required"`
	ActionID int64           `validate:"gt=0"`
	Stake    decimal.Decimal `validate:"-"`
}

// EventService orchestrates the event lifecycle
type EventService interface {
	// Create validates and persists a new event, holding the budget from the creator
	Create(ctx context.Context, params CreateEventParams) (*models.EventDetail, error)

	// GetEvent returns an event with its actions
	GetEvent(ctx context.Context, eventID int64) (*models.EventDetail, error)

	// ListEvents returns every event with its actions
	ListEvents(ctx context.Context) ([]*models.EventDetail, error)

	SetOpen(ctx context.Context, eventID int64) error
	SetClosed(ctx context.Context, eventID int64) error
	SetPublic(ctx context.Context, eventID int64) error
	SetPrivate(ctx context.Context, eventID int64, password string) error

	// SetFinished settles the event with the action carrying winningLabel
	SetFinished(ctx context.Context, eventID int64, winningLabel string) (*models.SettlementResult, error)

	// SetFinishedByAction settles the event with the given winning action
	SetFinishedByAction(ctx context.Context, eventID int64, actionID int64) (*models.SettlementResult, error)

	// UpdateCoefficient overwrites an action coefficient before the event finishes
	UpdateCoefficient(ctx context.Context, actionID int64, coefficient float64) error

	// SuggestCoefficients returns advisory coefficients from the current stake distribution
	SuggestCoefficients(ctx context.Context, eventID int64) ([]models.SuggestedCoefficient, error)
}

// ParticipationService admits stakes
type ParticipationService interface {
	Admit(ctx context.Context, params AdmitParams) (*models.Participation, error)
}

// SettlementService finalizes events
type SettlementService interface {
	Finalize(ctx context.Context, eventID int64, winningActionID int64) (*models.SettlementResult, error)
}

// StatsService defines the interface for statistics operations
type StatsService interface {
	// UserStats returns a user's participations and created events
	UserStats(ctx context.Context, username string) (*models.UserStats, error)

	// EventAnalysis returns an event with its participations and suggestions
	EventAnalysis(ctx context.Context, eventID int64) (*models.EventAnalysis, error)
}

// DepositService reconciles bank statement items with user balances
type DepositService interface {
	SyncDeposits(ctx context.Context) (*models.ReconcileReport, error)
	SyncWithdrawals(ctx context.Context) (*models.ReconcileReport, error)
}
