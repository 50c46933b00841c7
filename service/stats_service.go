package service

import (
	"context"
	"errors"

	"betboard/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// statsService implements the StatsService interface
type statsService struct {
	uowFactory UnitOfWorkFactory
}

// NewStatsService creates a new stats service
func NewStatsService(uowFactory UnitOfWorkFactory) StatsService {
	return &statsService{
		uowFactory: uowFactory,
	}
}

// UserStats returns a user's participations and the events they created
func (s *statsService) UserStats(ctx context.Context, username string) (*models.UserStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin user stats", err, nil)
	}
	defer uow.Rollback()

	fields := log.Fields{"username": username}

	user, err := uow.UserRepository().GetByUsername(ctx, username)
	if err != nil {
		return nil, storeError("get user", err, fields)
	}
	if user == nil {
		return nil, notFound("user", username)
	}

	participations, err := uow.ParticipationRepository().GetByUser(ctx, username)
	if err != nil {
		return nil, storeError("get participations", err, fields)
	}

	created, err := uow.EventRepository().GetByCreator(ctx, username)
	if err != nil {
		return nil, storeError("get created events", err, fields)
	}

	stats := &models.UserStats{
		User:           user,
		Participations: participations,
		CreatedEvents:  make([]*models.CreatedEventSummary, 0, len(created)),
		TotalStaked:    decimal.Zero,
		TotalWon:       decimal.Zero,
	}
	for _, p := range participations {
		stats.TotalStaked = stats.TotalStaked.Add(p.Stake)
		if p.Won() {
			stats.TotalWon = stats.TotalWon.Add(p.PotentialWin)
		}
	}
	for _, e := range created {
		stats.CreatedEvents = append(stats.CreatedEvents, &models.CreatedEventSummary{
			Event:         e,
			InitialBudget: e.InitialBudget,
		})
	}

	return stats, nil
}

// EventAnalysis returns an event with its participations and, when stakes
// exist, the suggested coefficients
func (s *statsService) EventAnalysis(ctx context.Context, eventID int64) (*models.EventAnalysis, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin event analysis", err, nil)
	}
	defer uow.Rollback()

	fields := log.Fields{"event_id": eventID}

	detail, err := uow.EventRepository().GetDetail(ctx, eventID)
	if err != nil {
		return nil, storeError("get event detail", err, fields)
	}
	if detail == nil {
		return nil, notFound("event", eventID)
	}

	participations, err := uow.ParticipationRepository().GetByEvent(ctx, eventID)
	if err != nil {
		return nil, storeError("get participations", err, fields)
	}

	analysis := &models.EventAnalysis{
		Detail:         detail,
		Participations: participations,
		TotalStaked:    decimal.Zero,
	}

	totals := make(map[int64]decimal.Decimal)
	for _, p := range participations {
		analysis.TotalStaked = analysis.TotalStaked.Add(p.Stake)
		totals[p.ActionID] = totals[p.ActionID].Add(p.Stake)
	}

	suggestions, err := SuggestCoefficients(detail.Actions, totals)
	switch {
	case errors.Is(err, ErrNoStakes):
	case err != nil:
		return nil, err
	default:
		analysis.Suggestions = suggestions
	}

	return analysis, nil
}
