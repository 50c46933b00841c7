package models

import "github.com/shopspring/decimal"

// CreatedEventSummary pairs an event with its initial budget for reporting
type CreatedEventSummary struct {
	Event         *Event
	InitialBudget decimal.Decimal
}

// UserStats represents a user's profile view
type UserStats struct {
	User           *User
	Participations []*Participation
	CreatedEvents  []*CreatedEventSummary
	TotalStaked    decimal.Decimal
	TotalWon       decimal.Decimal
}

// SuggestedCoefficient is an action paired with the coefficient the odds engine proposes
type SuggestedCoefficient struct {
	ActionID  int64           `json:"action_id"`
	Label     string          `json:"label"`
	Current   float64         `json:"current"`
	Suggested float64         `json:"suggested"`
	Staked    decimal.Decimal `json:"staked"`
}

// EventAnalysis combines an event with its participations and odds suggestion
type EventAnalysis struct {
	Detail         *EventDetail
	Participations []*Participation
	Suggestions    []SuggestedCoefficient
	TotalStaked    decimal.Decimal
}
