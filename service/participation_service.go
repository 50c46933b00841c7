package service

import (
	"context"
	"fmt"

	"betboard/events"
	"betboard/models"

	log "github.com/sirupsen/logrus"
)

// participationService implements the ParticipationService interface
type participationService struct {
	uowFactory UnitOfWorkFactory
	oddsCache  OddsCache
}

// NewParticipationService creates a new participation service. oddsCache may be nil.
func NewParticipationService(uowFactory UnitOfWorkFactory, oddsCache OddsCache) ParticipationService {
	return &participationService{
		uowFactory: uowFactory,
		oddsCache:  oddsCache,
	}
}

// Admit validates a stake and, when every check passes, persists the
// participation, debits the user and credits the event budget in one transaction.
func (s *participationService) Admit(ctx context.Context, params AdmitParams) (*models.Participation, error) {
	if !params.Stake.IsPositive() {
		return nil, fmt.Errorf("%w: stake must be greater than zero", ErrInvalidStake)
	}
	if !isWholeCents(params.Stake) {
		return nil, fmt.Errorf("%w: stake %s has more than two decimal places", ErrInvalidStake, params.Stake)
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin admit", err, nil)
	}
	defer uow.Rollback()

	fields := log.Fields{"username": params.Username, "action_id": params.ActionID}

	action, err := uow.EventRepository().GetAction(ctx, params.ActionID)
	if err != nil {
		return nil, storeError("get action", err, fields)
	}
	if action == nil {
		return nil, notFound("action", params.ActionID)
	}
	fields["event_id"] = action.EventID

	// Lock order is event then user, shared with settlement
	event, err := uow.EventRepository().GetByIDForUpdate(ctx, action.EventID)
	if err != nil {
		return nil, storeError("lock event", err, fields)
	}
	if event == nil {
		return nil, notFound("event", action.EventID)
	}

	user, err := uow.UserRepository().GetByUsernameForUpdate(ctx, params.Username)
	if err != nil {
		return nil, storeError("lock user", err, fields)
	}
	if user == nil {
		return nil, notFound("user", params.Username)
	}

	if event.IsFinished {
		return nil, ErrAlreadyFinished
	}
	if !event.IsOpen {
		return nil, ErrEventClosed
	}

	if err := s.checkPlayerLimit(ctx, uow, event, params.Username); err != nil {
		return nil, err
	}

	if !user.CanAfford(params.Stake) {
		return nil, fmt.Errorf("%w: balance %s, stake %s", ErrInsufficientBalance, user.Balance.StringFixed(2), params.Stake.StringFixed(2))
	}
	if params.Stake.GreaterThan(event.StakeLimit) {
		return nil, fmt.Errorf("%w: stake %s, limit %s", ErrStakeLimitExceeded, params.Stake.StringFixed(2), event.StakeLimit.StringFixed(2))
	}

	participation := &models.Participation{
		ActionID:     action.ID,
		EventID:      event.ID,
		Username:     user.Username,
		Stake:        params.Stake,
		PotentialWin: models.PotentialWinFor(params.Stake, action.Coefficient),
	}
	if err := uow.ParticipationRepository().Create(ctx, participation); err != nil {
		return nil, storeError("create participation", err, fields)
	}

	if err := applyBalanceChange(ctx, uow, user, balanceChange{
		delta:  params.Stake.Neg(),
		txType: models.TransactionTypeStake,
		metadata: map[string]any{
			"event_id":      event.ID,
			"action_id":     action.ID,
			"label":         action.Label,
			"coefficient":   action.Coefficient,
			"potential_win": participation.PotentialWin.StringFixed(2),
		},
		relatedID:   participation.ID,
		relatedType: models.RelatedTypeParticipation,
	}); err != nil {
		return nil, storeError("debit stake", err, fields)
	}

	newBudget := event.Budget.Add(params.Stake)
	if err := uow.EventRepository().UpdateBudget(ctx, event.ID, newBudget); err != nil {
		return nil, storeError("credit event budget", err, fields)
	}

	uow.EventBus().Publish(events.StakePlacedEvent{
		EventID:         event.ID,
		ActionID:        action.ID,
		ParticipationID: participation.ID,
		Username:        user.Username,
		Stake:           participation.Stake,
		PotentialWin:    participation.PotentialWin,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit admit", err, fields)
	}

	log.WithFields(fields).WithFields(log.Fields{
		"participation_id": participation.ID,
		"stake":            participation.Stake.StringFixed(2),
		"potential_win":    participation.PotentialWin.StringFixed(2),
	}).Info("Stake admitted")

	invalidateOdds(ctx, s.oddsCache, event.ID)
	return participation, nil
}

// checkPlayerLimit rejects a user who would become a new player beyond the event's limit
func (s *participationService) checkPlayerLimit(ctx context.Context, uow UnitOfWork, event *models.Event, username string) error {
	already, err := uow.ParticipationRepository().HasParticipated(ctx, event.ID, username)
	if err != nil {
		return storeError("check participation", err, log.Fields{"event_id": event.ID})
	}
	if already {
		return nil
	}

	players, err := uow.ParticipationRepository().CountPlayers(ctx, event.ID)
	if err != nil {
		return storeError("count players", err, log.Fields{"event_id": event.ID})
	}
	if players >= event.PlayerLimit {
		return fmt.Errorf("%w: %d of %d", ErrPlayerLimitReached, players, event.PlayerLimit)
	}
	return nil
}

// invalidateOdds drops cached suggestions for an event; failures are only logged
func invalidateOdds(ctx context.Context, cache OddsCache, eventID int64) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, eventID); err != nil {
		log.WithError(err).WithField("event_id", eventID).Warn("Failed to invalidate odds cache")
	}
}
