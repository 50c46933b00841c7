package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"betboard/events"
	"betboard/models"

	log "github.com/sirupsen/logrus"
)

// eventService implements the EventService interface
type eventService struct {
	uowFactory UnitOfWorkFactory
	settlement SettlementService
	oddsCache  OddsCache
}

// NewEventService creates a new event lifecycle service. oddsCache may be nil.
func NewEventService(uowFactory UnitOfWorkFactory, settlement SettlementService, oddsCache OddsCache) EventService {
	return &eventService{
		uowFactory: uowFactory,
		settlement: settlement,
		oddsCache:  oddsCache,
	}
}

// Create validates the event, debits the budget from the creator and persists
// the event open for participation together with its actions.
func (s *eventService) Create(ctx context.Context, params CreateEventParams) (*models.EventDetail, error) {
	if err := validateCreateParams(params); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin create event", err, nil)
	}
	defer uow.Rollback()

	fields := log.Fields{"creator": params.Creator, "title": params.Title}

	creator, err := uow.UserRepository().GetByUsernameForUpdate(ctx, params.Creator)
	if err != nil {
		return nil, storeError("lock creator", err, fields)
	}
	if creator == nil {
		return nil, notFound("user", params.Creator)
	}
	if !creator.CanAfford(params.Budget) {
		return nil, fmt.Errorf("%w: balance %s, budget %s", ErrInsufficientBalance, creator.Balance.StringFixed(2), params.Budget.StringFixed(2))
	}

	event := &models.Event{
		Title:         strings.TrimSpace(params.Title),
		Budget:        params.Budget,
		InitialBudget: params.Budget,
		StakeLimit:    params.StakeLimit,
		PlayerLimit:   params.PlayerLimit,
		IsOpen:        true,
		IsPublic:      params.IsPublic,
		Creator:       creator.Username,
	}
	if !params.IsPublic {
		event.Password = params.Password
	}

	actions := make([]*models.Action, 0, len(params.Actions))
	for i, a := range params.Actions {
		actions = append(actions, &models.Action{
			Label:        strings.TrimSpace(a.Label),
			Coefficient:  a.Coefficient,
			DisplayOrder: int16(i),
		})
	}

	if err := uow.EventRepository().Create(ctx, event, actions); err != nil {
		return nil, storeError("create event", err, fields)
	}

	if err := applyBalanceChange(ctx, uow, creator, balanceChange{
		delta:       params.Budget.Neg(),
		txType:      models.TransactionTypeBudgetHold,
		metadata:    map[string]any{"title": event.Title},
		relatedID:   event.ID,
		relatedType: models.RelatedTypeEvent,
	}); err != nil {
		return nil, storeError("hold event budget", err, fields)
	}

	uow.EventBus().Publish(events.EventCreatedEvent{
		EventID:     event.ID,
		Title:       event.Title,
		Creator:     event.Creator,
		Budget:      event.Budget,
		ActionCount: len(actions),
	})

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit create event", err, fields)
	}

	log.WithFields(fields).WithFields(log.Fields{
		"event_id": event.ID,
		"budget":   event.Budget.StringFixed(2),
		"actions":  len(actions),
	}).Info("Event created")

	return &models.EventDetail{Event: event, Actions: actions}, nil
}

func validateCreateParams(params CreateEventParams) error {
	if err := validateParams(params); err != nil {
		return err
	}
	if !params.Budget.IsPositive() {
		return validationError("budget must be greater than zero")
	}
	if !params.StakeLimit.IsPositive() {
		return validationError("stake limit must be greater than zero")
	}
	if !isWholeCents(params.Budget) {
		return validationError("budget %s has more than two decimal places", params.Budget)
	}
	if !isWholeCents(params.StakeLimit) {
		return validationError("stake limit %s has more than two decimal places", params.StakeLimit)
	}
	if !params.IsPublic && params.Password == "" {
		return validationError("private events require a password")
	}

	seen := make(map[string]bool, len(params.Actions))
	for _, a := range params.Actions {
		label := strings.TrimSpace(a.Label)
		if label == "" {
			return validationError("action label must not be empty")
		}
		if seen[label] {
			return validationError("duplicate action label %q", label)
		}
		seen[label] = true
		if math.IsNaN(a.Coefficient) || math.IsInf(a.Coefficient, 0) {
			return validationError("action %q has an invalid coefficient", label)
		}
	}
	return nil
}

// GetEvent returns an event with its actions
func (s *eventService) GetEvent(ctx context.Context, eventID int64) (*models.EventDetail, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin get event", err, nil)
	}
	defer uow.Rollback()

	detail, err := uow.EventRepository().GetDetail(ctx, eventID)
	if err != nil {
		return nil, storeError("get event detail", err, log.Fields{"event_id": eventID})
	}
	if detail == nil {
		return nil, notFound("event", eventID)
	}
	return detail, nil
}

// ListEvents returns every event with its actions
func (s *eventService) ListEvents(ctx context.Context) ([]*models.EventDetail, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin list events", err, nil)
	}
	defer uow.Rollback()

	details, err := uow.EventRepository().ListDetails(ctx)
	if err != nil {
		return nil, storeError("list events", err, nil)
	}
	return details, nil
}

// SetOpen allows participations again
func (s *eventService) SetOpen(ctx context.Context, eventID int64) error {
	return s.setOpenFlag(ctx, eventID, true)
}

// SetClosed stops accepting participations
func (s *eventService) SetClosed(ctx context.Context, eventID int64) error {
	return s.setOpenFlag(ctx, eventID, false)
}

func (s *eventService) setOpenFlag(ctx context.Context, eventID int64, open bool) error {
	return s.transition(ctx, eventID, func(uow UnitOfWork, event *models.Event) (string, string, error) {
		oldState := string(event.State())
		if event.IsOpen == open {
			return oldState, oldState, nil
		}
		if err := uow.EventRepository().SetOpen(ctx, eventID, open); err != nil {
			return "", "", err
		}
		event.IsOpen = open
		return oldState, string(event.State()), nil
	})
}

// SetPublic makes the event visible to everyone and clears its password
func (s *eventService) SetPublic(ctx context.Context, eventID int64) error {
	return s.transition(ctx, eventID, func(uow UnitOfWork, event *models.Event) (string, string, error) {
		oldState := visibilityState(event.IsPublic)
		if err := uow.EventRepository().SetVisibility(ctx, eventID, true, ""); err != nil {
			return "", "", err
		}
		return oldState, visibilityState(true), nil
	})
}

// SetPrivate hides the event behind a password
func (s *eventService) SetPrivate(ctx context.Context, eventID int64, password string) error {
	if password == "" {
		return validationError("private events require a password")
	}
	return s.transition(ctx, eventID, func(uow UnitOfWork, event *models.Event) (string, string, error) {
		oldState := visibilityState(event.IsPublic)
		if err := uow.EventRepository().SetVisibility(ctx, eventID, false, password); err != nil {
			return "", "", err
		}
		return oldState, visibilityState(false), nil
	})
}

func visibilityState(public bool) string {
	if public {
		return "public"
	}
	return "private"
}

// transition locks an unfinished event, applies fn and publishes a state
// change when the state actually moved.
func (s *eventService) transition(ctx context.Context, eventID int64, fn func(uow UnitOfWork, event *models.Event) (string, string, error)) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeError("begin event transition", err, nil)
	}
	defer uow.Rollback()

	fields := log.Fields{"event_id": eventID}

	event, err := uow.EventRepository().GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return storeError("lock event", err, fields)
	}
	if event == nil {
		return notFound("event", eventID)
	}
	if event.IsFinished {
		return ErrAlreadyFinished
	}

	oldState, newState, err := fn(uow, event)
	if err != nil {
		return storeError("update event", err, fields)
	}
	if oldState != newState {
		uow.EventBus().Publish(events.EventStateChangeEvent{
			EventID:  eventID,
			OldState: oldState,
			NewState: newState,
		})
	}

	if err := uow.Commit(); err != nil {
		return storeError("commit event transition", err, fields)
	}

	log.WithFields(fields).WithFields(log.Fields{
		"old_state": oldState,
		"new_state": newState,
	}).Info("Event state updated")
	return nil
}

// SetFinished resolves the winning label to an action and settles the event
func (s *eventService) SetFinished(ctx context.Context, eventID int64, winningLabel string) (*models.SettlementResult, error) {
	detail, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if detail.Event.IsFinished {
		return nil, ErrAlreadyFinished
	}

	action := detail.FindActionByLabel(strings.TrimSpace(winningLabel))
	if action == nil {
		return nil, fmt.Errorf("action labelled %q on event %d: %w", winningLabel, eventID, ErrNotFound)
	}
	return s.settlement.Finalize(ctx, eventID, action.ID)
}

// SetFinishedByAction settles the event with the given winning action
func (s *eventService) SetFinishedByAction(ctx context.Context, eventID int64, actionID int64) (*models.SettlementResult, error) {
	return s.settlement.Finalize(ctx, eventID, actionID)
}

// UpdateCoefficient overwrites an action coefficient while its event is unfinished
func (s *eventService) UpdateCoefficient(ctx context.Context, actionID int64, coefficient float64) error {
	if math.IsNaN(coefficient) || math.IsInf(coefficient, 0) || coefficient <= 0 {
		return validationError("coefficient must be a positive number")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeError("begin update coefficient", err, nil)
	}
	defer uow.Rollback()

	fields := log.Fields{"action_id": actionID}

	action, err := uow.EventRepository().GetAction(ctx, actionID)
	if err != nil {
		return storeError("get action", err, fields)
	}
	if action == nil {
		return notFound("action", actionID)
	}
	fields["event_id"] = action.EventID

	event, err := uow.EventRepository().GetByIDForUpdate(ctx, action.EventID)
	if err != nil {
		return storeError("lock event", err, fields)
	}
	if event == nil {
		return notFound("event", action.EventID)
	}
	if event.IsFinished {
		return ErrAlreadyFinished
	}

	if err := uow.EventRepository().UpdateCoefficient(ctx, actionID, coefficient); err != nil {
		return storeError("update coefficient", err, fields)
	}

	uow.EventBus().Publish(events.CoefficientChangedEvent{
		EventID:        action.EventID,
		ActionID:       actionID,
		OldCoefficient: action.Coefficient,
		NewCoefficient: coefficient,
	})

	if err := uow.Commit(); err != nil {
		return storeError("commit update coefficient", err, fields)
	}

	log.WithFields(fields).WithFields(log.Fields{
		"old": action.Coefficient,
		"new": coefficient,
	}).Info("Coefficient updated")

	invalidateOdds(ctx, s.oddsCache, action.EventID)
	return nil
}

// SuggestCoefficients returns cached suggestions when available, otherwise
// computes them from the current stake totals and caches the result.
func (s *eventService) SuggestCoefficients(ctx context.Context, eventID int64) ([]models.SuggestedCoefficient, error) {
	if s.oddsCache != nil {
		cached, ok, err := s.oddsCache.Get(ctx, eventID)
		if err != nil {
			log.WithError(err).WithField("event_id", eventID).Warn("Failed to read odds cache")
		} else if ok {
			return cached, nil
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin suggest coefficients", err, nil)
	}
	defer uow.Rollback()

	suggestions, err := suggestForEvent(ctx, uow, eventID)
	if err != nil {
		return nil, err
	}

	if s.oddsCache != nil {
		if err := s.oddsCache.Set(ctx, eventID, suggestions); err != nil {
			log.WithError(err).WithField("event_id", eventID).Warn("Failed to write odds cache")
		}
	}
	return suggestions, nil
}

// suggestForEvent loads actions and stake totals inside uow and runs the odds engine
func suggestForEvent(ctx context.Context, uow UnitOfWork, eventID int64) ([]models.SuggestedCoefficient, error) {
	fields := log.Fields{"event_id": eventID}

	detail, err := uow.EventRepository().GetDetail(ctx, eventID)
	if err != nil {
		return nil, storeError("get event detail", err, fields)
	}
	if detail == nil {
		return nil, notFound("event", eventID)
	}

	totals, err := uow.ParticipationRepository().StakeTotals(ctx, eventID)
	if err != nil {
		return nil, storeError("get stake totals", err, fields)
	}

	suggestions, err := SuggestCoefficients(detail.Actions, totals)
	if err != nil {
		if errors.Is(err, ErrNoStakes) {
			return nil, fmt.Errorf("event %d: %w", eventID, ErrNoStakes)
		}
		return nil, err
	}
	return suggestions, nil
}
