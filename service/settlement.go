package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"betboard/events"
	"betboard/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// settlementService implements the SettlementService interface
type settlementService struct {
	uowFactory UnitOfWorkFactory
	oddsCache  OddsCache
	now        func() time.Time
}

// NewSettlementService creates a new settlement service. oddsCache may be nil.
func NewSettlementService(uowFactory UnitOfWorkFactory, oddsCache OddsCache) SettlementService {
	return &settlementService{
		uowFactory: uowFactory,
		oddsCache:  oddsCache,
		now:        time.Now,
	}
}

// Finalize settles an event exactly once. Inside one transaction it marks the
// event finished, records every participation outcome, pays winners their
// potential win, charges losers their stake and returns unused budget to the
// creator. Any failure rolls the whole settlement back.
func (s *settlementService) Finalize(ctx context.Context, eventID int64, winningActionID int64) (*models.SettlementResult, error) {
	runID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"event_id":          eventID,
		"winning_action_id": winningActionID,
		"run_id":            runID,
	})

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin settlement", err, nil)
	}
	defer uow.Rollback()

	event, err := uow.EventRepository().GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return nil, storeError("lock event", err, log.Fields{"event_id": eventID})
	}
	if event == nil {
		return nil, notFound("event", eventID)
	}
	if event.IsFinished {
		return nil, ErrAlreadyFinished
	}

	detail, err := uow.EventRepository().GetDetail(ctx, eventID)
	if err != nil {
		return nil, storeError("get event detail", err, log.Fields{"event_id": eventID})
	}
	if detail == nil {
		return nil, notFound("event", eventID)
	}
	winningAction := detail.FindAction(winningActionID)
	if winningAction == nil {
		return nil, notFound("action", winningActionID)
	}

	// The event row lock keeps admissions out, so this is a stable snapshot
	participations, err := uow.ParticipationRepository().GetByEvent(ctx, eventID)
	if err != nil {
		return nil, storeError("get participations", err, log.Fields{"event_id": eventID})
	}

	// Users are locked up front in name order so concurrent settlements sharing
	// users acquire row locks in the same order
	users := newLockedUsers(uow)
	if err := users.lockAll(ctx, settlementUsernames(event, participations)); err != nil {
		return nil, err
	}

	finishedAt := s.now().UTC()
	if err := uow.EventRepository().MarkFinished(ctx, eventID, finishedAt); err != nil {
		return nil, storeError("mark event finished", err, log.Fields{"event_id": eventID})
	}
	if err := uow.ParticipationRepository().SetOutcomes(ctx, eventID, winningActionID); err != nil {
		return nil, storeError("set outcomes", err, log.Fields{"event_id": eventID})
	}

	result := &models.SettlementResult{
		Event:         event,
		WinningAction: winningAction,
		TotalPayout:   decimal.Zero,
		Refund:        decimal.Zero,
		RunID:         runID,
	}

	for _, p := range participations {
		won := p.ActionID == winningActionID
		p.HasWon = &won

		user, err := users.get(ctx, p.Username)
		if err != nil {
			return nil, err
		}

		if won {
			if err := s.payWinner(ctx, uow, user, p, runID); err != nil {
				return nil, storeError("pay winner", err, log.Fields{"participation_id": p.ID})
			}
			result.TotalPayout = result.TotalPayout.Add(p.PotentialWin)
			result.Winners = append(result.Winners, p)
			continue
		}

		if err := s.chargeLoser(ctx, uow, user, p, runID, logger); err != nil {
			return nil, storeError("charge loser", err, log.Fields{"participation_id": p.ID})
		}
		result.Losers = append(result.Losers, p)
	}

	refund := event.Budget.Sub(result.TotalPayout)
	switch {
	case refund.IsPositive():
		creator, err := users.get(ctx, event.Creator)
		if err != nil {
			return nil, err
		}
		if err := applyBalanceChange(ctx, uow, creator, balanceChange{
			delta:  refund,
			txType: models.TransactionTypeBudgetRefund,
			metadata: map[string]any{
				"budget":       event.Budget.StringFixed(2),
				"total_payout": result.TotalPayout.StringFixed(2),
				"run_id":       runID,
			},
			relatedID:   event.ID,
			relatedType: models.RelatedTypeEvent,
		}); err != nil {
			return nil, storeError("refund creator", err, log.Fields{"creator": event.Creator})
		}
		if err := uow.EventRepository().UpdateBudget(ctx, eventID, result.TotalPayout); err != nil {
			return nil, storeError("update event budget", err, log.Fields{"event_id": eventID})
		}
		result.Refund = refund
		event.Budget = result.TotalPayout
	case refund.IsNegative():
		logger.WithFields(log.Fields{
			"budget":       event.Budget.StringFixed(2),
			"total_payout": result.TotalPayout.StringFixed(2),
		}).Warn("Total payout exceeds event budget")
	}

	event.IsFinished = true
	event.FinishedAt = &finishedAt

	uow.EventBus().Publish(events.EventFinishedEvent{
		EventID:         event.ID,
		Title:           event.Title,
		Creator:         event.Creator,
		WinningActionID: winningAction.ID,
		WinningLabel:    winningAction.Label,
		WinnerCount:     len(result.Winners),
		LoserCount:      len(result.Losers),
		TotalPayout:     result.TotalPayout,
		Refund:          result.Refund,
		RunID:           runID,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit settlement", err, log.Fields{"event_id": eventID})
	}

	logger.WithFields(log.Fields{
		"winners":      len(result.Winners),
		"losers":       len(result.Losers),
		"total_payout": result.TotalPayout.StringFixed(2),
		"refund":       result.Refund.StringFixed(2),
	}).Info("Event settled")

	invalidateOdds(ctx, s.oddsCache, eventID)
	return result, nil
}

func (s *settlementService) payWinner(ctx context.Context, uow UnitOfWork, user *models.User, p *models.Participation, runID string) error {
	return applyBalanceChange(ctx, uow, user, balanceChange{
		delta:  p.PotentialWin,
		txType: models.TransactionTypeEventWin,
		metadata: map[string]any{
			"event_id":  p.EventID,
			"action_id": p.ActionID,
			"stake":     p.Stake.StringFixed(2),
			"run_id":    runID,
		},
		relatedID:   p.ID,
		relatedType: models.RelatedTypeParticipation,
	})
}

// chargeLoser debits the stake from a losing participant. The stake was
// already debited at admission, so this charge can exceed the balance. The
// users table rejects negative balances, so the charge is floored at the
// current balance and any shortfall is logged and kept in the history metadata.
func (s *settlementService) chargeLoser(ctx context.Context, uow UnitOfWork, user *models.User, p *models.Participation, runID string, logger *log.Entry) error {
	charge := p.Stake
	shortfall := decimal.Zero
	if user.Balance.LessThan(charge) {
		shortfall = charge.Sub(user.Balance)
		charge = user.Balance
		logger.WithFields(log.Fields{
			"username":         user.Username,
			"participation_id": p.ID,
			"shortfall":        shortfall.StringFixed(2),
		}).Warn("Loser balance does not cover stake charge")
	}

	metadata := map[string]any{
		"event_id":  p.EventID,
		"action_id": p.ActionID,
		"stake":     p.Stake.StringFixed(2),
		"run_id":    runID,
	}
	if shortfall.IsPositive() {
		metadata["shortfall"] = shortfall.StringFixed(2)
	}

	return applyBalanceChange(ctx, uow, user, balanceChange{
		delta:       charge.Neg(),
		txType:      models.TransactionTypeEventLoss,
		metadata:    metadata,
		relatedID:   p.ID,
		relatedType: models.RelatedTypeParticipation,
	})
}

// lockedUsers loads each user once per transaction with a row lock
type lockedUsers struct {
	uow   UnitOfWork
	users map[string]*models.User
}

func newLockedUsers(uow UnitOfWork) *lockedUsers {
	return &lockedUsers{uow: uow, users: make(map[string]*models.User)}
}

// lockAll locks every named user in sorted order
func (l *lockedUsers) lockAll(ctx context.Context, usernames []string) error {
	for _, username := range usernames {
		if _, err := l.get(ctx, username); err != nil {
			return err
		}
	}
	return nil
}

// settlementUsernames returns the distinct participants plus the creator, sorted
func settlementUsernames(event *models.Event, participations []*models.Participation) []string {
	seen := map[string]bool{event.Creator: true}
	names := []string{event.Creator}
	for _, p := range participations {
		if !seen[p.Username] {
			seen[p.Username] = true
			names = append(names, p.Username)
		}
	}
	sort.Strings(names)
	return names
}

func (l *lockedUsers) get(ctx context.Context, username string) (*models.User, error) {
	if user, ok := l.users[username]; ok {
		return user, nil
	}
	user, err := l.uow.UserRepository().GetByUsernameForUpdate(ctx, username)
	if err != nil {
		return nil, storeError("lock user", err, log.Fields{"username": username})
	}
	if user == nil {
		// Participations and events reference users by foreign key
		return nil, storeError("lock user", fmt.Errorf("user %q missing", username), nil)
	}
	l.users[username] = user
	return user, nil
}
