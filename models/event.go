package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventState is the lifecycle state derived from the open and finished flags
type EventState string

const (
	EventStateOpen     EventState = "open"
	EventStateClosed   EventState = "closed"
	EventStateFinished EventState = "finished"
)

// Event is a wagering event created by a user who escrows a budget to cover payouts
type Event struct {
	ID            int64           `db:"event_id"`
	Title         string          `db:"title"`
	Budget        decimal.Decimal `db:"budget"`
	InitialBudget decimal.Decimal `db:"initial_budget"`
	StakeLimit    decimal.Decimal `db:"stake_limit"`
	PlayerLimit   int             `db:"player_limit"`
	IsOpen        bool            `db:"is_open"`
	IsFinished    bool            `db:"is_finished"`
	IsPublic      bool            `db:"is_public"`
	Password      string          `db:"password" json:"-"`
	Creator       string          `db:"creator"`
	CreatedAt     time.Time       `db:"created_at"`
	FinishedAt    *time.Time      `db:"finished_at"`
}

// Action is a single wagerable outcome of an event
type Action struct {
	ID           int64     `db:"action_id"`
	EventID      int64     `db:"event_id"`
	Label        string    `db:"label"`
	Coefficient  float64   `db:"coefficient"`
	DisplayOrder int16     `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

// Participation is one user's stake on one action
type Participation struct {
	ID           int64           `db:"participation_id"`
	ActionID     int64           `db:"action_id"`
	EventID      int64           `db:"event_id"`
	Username     string          `db:"username"`
	Stake        decimal.Decimal `db:"stake"`
	PotentialWin decimal.Decimal `db:"potential_win"`
	HasWon       *bool           `db:"has_won"`
	CreatedAt    time.Time       `db:"created_at"`
}

// EventDetail combines an event with its ordered actions
type EventDetail struct {
	Event   *Event
	Actions []*Action
}

// SettlementResult represents the outcome of finishing an event
type SettlementResult struct {
	Event         *Event
	WinningAction *Action
	Winners       []*Participation
	Losers        []*Participation
	TotalPayout   decimal.Decimal
	Refund        decimal.Decimal
	RunID         string
}

// State returns the lifecycle state of the event
func (e *Event) State() EventState {
	if e.IsFinished {
		return EventStateFinished
	}
	if e.IsOpen {
		return EventStateOpen
	}
	return EventStateClosed
}

// CanAcceptStakes checks if the event is open and not finished
func (e *Event) CanAcceptStakes() bool {
	return e.IsOpen && !e.IsFinished
}

// Won reports whether the participation was settled as a win
func (p *Participation) Won() bool {
	return p.HasWon != nil && *p.HasWon
}

// IsSettled reports whether an outcome has been recorded
func (p *Participation) IsSettled() bool {
	return p.HasWon != nil
}

// PotentialWinFor computes stake multiplied by coefficient, rounded to cents
func PotentialWinFor(stake decimal.Decimal, coefficient float64) decimal.Decimal {
	return stake.Mul(decimal.NewFromFloat(coefficient)).Round(2)
}

// FindActionByLabel returns the action with the given label, or nil
func (d *EventDetail) FindActionByLabel(label string) *Action {
	for _, a := range d.Actions {
		if a.Label == label {
			return a
		}
	}
	return nil
}

// FindAction returns the action with the given ID, or nil
func (d *EventDetail) FindAction(actionID int64) *Action {
	for _, a := range d.Actions {
		if a.ID == actionID {
			return a
		}
	}
	return nil
}
