package service

import (
	"context"
	"errors"
	"testing"

	"betboard/events"
	"betboard/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// settlementFixture is the event from the worked example: budget 1000,
// action A at 2.5 with 300 staked and action B at 1.4 with 700 staked
type settlementFixture struct {
	event          *models.Event
	detail         *models.EventDetail
	participations []*models.Participation
	users          map[string]*models.User
}

func newSettlementFixture() *settlementFixture {
	event := newOpenEvent(7, "1000", "1000")
	actionA := &models.Action{ID: 1, EventID: 7, Label: "A", Coefficient: 2.5}
	actionB := &models.Action{ID: 2, EventID: 7, Label: "B", Coefficient: 1.4}

	participations := []*models.Participation{
		{ID: 101, ActionID: 1, EventID: 7, Username: "alice", Stake: dec("100"), PotentialWin: dec("250")},
		{ID: 102, ActionID: 1, EventID: 7, Username: "bob", Stake: dec("200"), PotentialWin: dec("500")},
		{ID: 103, ActionID: 2, EventID: 7, Username: "carol", Stake: dec("700"), PotentialWin: dec("980")},
	}

	return &settlementFixture{
		event:          event,
		detail:         &models.EventDetail{Event: event, Actions: []*models.Action{actionA, actionB}},
		participations: participations,
		users: map[string]*models.User{
			"alice": newUser("alice", "0"),
			"bob":   newUser("bob", "100"),
			"carol": newUser("carol", "1000"),
			"host":  newUser("host", "0"),
		},
	}
}

func (f *settlementFixture) expectLoads(ctx context.Context, m *serviceMocks) {
	m.events.On("GetByIDForUpdate", ctx, int64(7)).Return(f.event, nil)
	m.events.On("GetDetail", ctx, int64(7)).Return(f.detail, nil)
	m.participations.On("GetByEvent", ctx, int64(7)).Return(f.participations, nil)
}

func (f *settlementFixture) expectUserLocks(ctx context.Context, m *serviceMocks, usernames ...string) {
	for _, name := range usernames {
		m.users.On("GetByUsernameForUpdate", ctx, name).Return(f.users[name], nil).Once()
	}
}

func sumHistory(history []*models.BalanceHistory, txType models.TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, h := range history {
		if h.TransactionType == txType {
			total = total.Add(h.ChangeAmount)
		}
	}
	return total
}

func TestSettlementService_Finalize_Example(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	cache := new(MockOddsCache)
	svc := NewSettlementService(m.factory, cache)
	f := newSettlementFixture()

	m.expectTransaction(ctx)
	m.expectHistory(ctx)
	f.expectLoads(ctx, m)
	f.expectUserLocks(ctx, m, "alice", "bob", "carol", "host")
	m.events.On("MarkFinished", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.participations.On("SetOutcomes", ctx, int64(7), int64(1)).Return(nil)
	m.users.On("UpdateBalance", ctx, "alice", decEq("250")).Return(nil)
	m.users.On("UpdateBalance", ctx, "bob", decEq("600")).Return(nil)
	m.users.On("UpdateBalance", ctx, "carol", decEq("300")).Return(nil)
	m.users.On("UpdateBalance", ctx, "host", decEq("250")).Return(nil)
	m.events.On("UpdateBudget", ctx, int64(7), decEq("750")).Return(nil)
	cache.On("Invalidate", ctx, int64(7)).Return(nil)

	result, err := svc.Finalize(ctx, 7, 1)

	require.NoError(t, err)
	assert.Equal(t, "A", result.WinningAction.Label)
	assert.Len(t, result.Winners, 2)
	assert.Len(t, result.Losers, 1)
	assert.True(t, result.TotalPayout.Equal(dec("750")))
	assert.True(t, result.Refund.Equal(dec("250")))
	assert.NotEmpty(t, result.RunID)
	assert.True(t, result.Event.IsFinished)
	assert.NotNil(t, result.Event.FinishedAt)
	assert.True(t, result.Event.Budget.Equal(dec("750")))

	// Winner payouts plus creator refund equal the budget at finalize time
	assert.True(t, result.TotalPayout.Add(result.Refund).Equal(dec("1000")))

	for _, p := range f.participations {
		require.NotNil(t, p.HasWon)
		assert.Equal(t, p.ActionID == 1, *p.HasWon)
	}

	history := m.recordedHistory()
	assert.Len(t, history, 4)
	assert.True(t, sumHistory(history, models.TransactionTypeEventWin).Equal(dec("750")))
	assert.True(t, sumHistory(history, models.TransactionTypeEventLoss).Equal(dec("-700")))
	assert.True(t, sumHistory(history, models.TransactionTypeBudgetRefund).Equal(dec("250")))

	finished := m.uow.Publisher().OfType(events.EventTypeEventFinished)
	require.Len(t, finished, 1)
	ev := finished[0].(events.EventFinishedEvent)
	assert.Equal(t, "A", ev.WinningLabel)
	assert.Equal(t, 2, ev.WinnerCount)
	assert.Equal(t, 1, ev.LoserCount)
	assert.Equal(t, result.RunID, ev.RunID)

	m.assertAll(t)
	cache.AssertExpectations(t)
}

func TestSettlementService_Finalize_SecondCallFails(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)
	f := newSettlementFixture()

	m.expectTransaction(ctx)
	m.expectHistory(ctx)
	f.expectLoads(ctx, m)
	f.expectUserLocks(ctx, m, "alice", "bob", "carol", "host")
	m.events.On("MarkFinished", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.participations.On("SetOutcomes", ctx, int64(7), int64(1)).Return(nil)
	m.users.On("UpdateBalance", ctx, mock.Anything, mock.Anything).Return(nil)
	m.events.On("UpdateBudget", ctx, int64(7), mock.Anything).Return(nil)

	_, err := svc.Finalize(ctx, 7, 1)
	require.NoError(t, err)

	balanceUpdates := len(m.users.Calls)
	historyRecords := len(m.recordedHistory())

	_, err = svc.Finalize(ctx, 7, 1)

	assert.ErrorIs(t, err, ErrAlreadyFinished)
	m.uow.AssertNumberOfCalls(t, "Commit", 1)
	assert.Len(t, m.users.Calls, balanceUpdates)
	assert.Len(t, m.recordedHistory(), historyRecords)
}

func TestSettlementService_Finalize_AlreadyFinished(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)

	event := newOpenEvent(7, "1000", "100")
	event.IsFinished = true

	m.expectRollbackOnly(ctx)
	m.events.On("GetByIDForUpdate", ctx, int64(7)).Return(event, nil)

	_, err := svc.Finalize(ctx, 7, 1)

	assert.ErrorIs(t, err, ErrAlreadyFinished)
	m.users.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything)
	m.assertAll(t)
}

func TestSettlementService_Finalize_WinningActionWithoutStakes(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)
	f := newSettlementFixture()
	f.detail.Actions = append(f.detail.Actions, &models.Action{ID: 3, EventID: 7, Label: "Draw", Coefficient: 4})

	m.expectTransaction(ctx)
	m.expectHistory(ctx)
	f.expectLoads(ctx, m)
	f.expectUserLocks(ctx, m, "alice", "bob", "carol", "host")
	m.events.On("MarkFinished", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.participations.On("SetOutcomes", ctx, int64(7), int64(3)).Return(nil)
	// Losers are charged their stake, floored at their balance
	m.users.On("UpdateBalance", ctx, "alice", decEq("0")).Return(nil)
	m.users.On("UpdateBalance", ctx, "bob", decEq("0")).Return(nil)
	m.users.On("UpdateBalance", ctx, "carol", decEq("300")).Return(nil)
	m.users.On("UpdateBalance", ctx, "host", decEq("1000")).Return(nil)
	m.events.On("UpdateBudget", ctx, int64(7), decEq("0")).Return(nil)

	result, err := svc.Finalize(ctx, 7, 3)

	require.NoError(t, err)
	assert.Empty(t, result.Winners)
	assert.Len(t, result.Losers, 3)
	assert.True(t, result.TotalPayout.IsZero())
	assert.True(t, result.Refund.Equal(dec("1000")))
	m.assertAll(t)
}

func TestSettlementService_Finalize_LoserShortfallRecorded(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)
	f := newSettlementFixture()
	f.users["carol"] = newUser("carol", "200")

	m.expectTransaction(ctx)
	m.expectHistory(ctx)
	f.expectLoads(ctx, m)
	f.expectUserLocks(ctx, m, "alice", "bob", "carol", "host")
	m.events.On("MarkFinished", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.participations.On("SetOutcomes", ctx, int64(7), int64(1)).Return(nil)
	m.users.On("UpdateBalance", ctx, "alice", decEq("250")).Return(nil)
	m.users.On("UpdateBalance", ctx, "bob", decEq("600")).Return(nil)
	m.users.On("UpdateBalance", ctx, "carol", decEq("0")).Return(nil)
	m.users.On("UpdateBalance", ctx, "host", decEq("250")).Return(nil)
	m.events.On("UpdateBudget", ctx, int64(7), decEq("750")).Return(nil)

	_, err := svc.Finalize(ctx, 7, 1)
	require.NoError(t, err)

	var loss *models.BalanceHistory
	for _, h := range m.recordedHistory() {
		if h.TransactionType == models.TransactionTypeEventLoss {
			loss = h
		}
	}
	require.NotNil(t, loss)
	assert.True(t, loss.ChangeAmount.Equal(dec("-200")))
	assert.Equal(t, "500.00", loss.TransactionMetadata["shortfall"])
	m.assertAll(t)
}

func TestSettlementService_Finalize_PayoutExceedsBudget(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)
	f := newSettlementFixture()
	f.event.Budget = dec("600")

	m.expectTransaction(ctx)
	m.expectHistory(ctx)
	f.expectLoads(ctx, m)
	f.expectUserLocks(ctx, m, "alice", "bob", "carol", "host")
	m.events.On("MarkFinished", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.participations.On("SetOutcomes", ctx, int64(7), int64(1)).Return(nil)
	m.users.On("UpdateBalance", ctx, "alice", decEq("250")).Return(nil)
	m.users.On("UpdateBalance", ctx, "bob", decEq("600")).Return(nil)
	m.users.On("UpdateBalance", ctx, "carol", decEq("300")).Return(nil)

	result, err := svc.Finalize(ctx, 7, 1)

	require.NoError(t, err)
	assert.True(t, result.Refund.IsZero())
	assert.True(t, result.Event.Budget.Equal(dec("600")))
	m.events.AssertNotCalled(t, "UpdateBudget", mock.Anything, mock.Anything, mock.Anything)
	m.users.AssertNotCalled(t, "UpdateBalance", ctx, "host", mock.Anything)
	m.assertAll(t)
}

func TestSettlementService_Finalize_ActionNotOnEvent(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)
	f := newSettlementFixture()

	m.expectRollbackOnly(ctx)
	m.events.On("GetByIDForUpdate", ctx, int64(7)).Return(f.event, nil)
	m.events.On("GetDetail", ctx, int64(7)).Return(f.detail, nil)

	_, err := svc.Finalize(ctx, 7, 99)

	assert.ErrorIs(t, err, ErrNotFound)
	m.events.AssertNotCalled(t, "MarkFinished", mock.Anything, mock.Anything, mock.Anything)
	m.assertAll(t)
}

func TestSettlementService_Finalize_EventNotFound(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)

	m.expectRollbackOnly(ctx)
	m.events.On("GetByIDForUpdate", ctx, int64(7)).Return(nil, nil)

	_, err := svc.Finalize(ctx, 7, 1)

	assert.ErrorIs(t, err, ErrNotFound)
	m.assertAll(t)
}

func TestSettlementService_Finalize_StoreFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)
	f := newSettlementFixture()

	m.expectRollbackOnly(ctx)
	m.expectHistory(ctx)
	f.expectLoads(ctx, m)
	f.expectUserLocks(ctx, m, "alice", "bob", "carol", "host")
	m.events.On("MarkFinished", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.participations.On("SetOutcomes", ctx, int64(7), int64(1)).Return(nil)
	m.users.On("UpdateBalance", ctx, "alice", decEq("250")).Return(nil)
	m.users.On("UpdateBalance", ctx, "bob", mock.Anything).Return(errors.New("deadlock detected"))

	_, err := svc.Finalize(ctx, 7, 1)

	assert.ErrorIs(t, err, ErrStore)
	assert.NotContains(t, err.Error(), "deadlock")
	m.uow.AssertNotCalled(t, "Commit")
	m.assertAll(t)
}

func TestSettlementService_Finalize_SameUserOnBothSides(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)

	event := newOpenEvent(7, "300", "1000")
	detail := &models.EventDetail{Event: event, Actions: []*models.Action{
		{ID: 1, EventID: 7, Label: "A", Coefficient: 2},
		{ID: 2, EventID: 7, Label: "B", Coefficient: 2},
	}}
	dave := newUser("dave", "50")
	host := newUser("host", "0")

	m.expectTransaction(ctx)
	m.expectHistory(ctx)
	m.events.On("GetByIDForUpdate", ctx, int64(7)).Return(event, nil)
	m.events.On("GetDetail", ctx, int64(7)).Return(detail, nil)
	m.participations.On("GetByEvent", ctx, int64(7)).Return([]*models.Participation{
		{ID: 1, ActionID: 1, EventID: 7, Username: "dave", Stake: dec("50"), PotentialWin: dec("100")},
		{ID: 2, ActionID: 2, EventID: 7, Username: "dave", Stake: dec("50"), PotentialWin: dec("100")},
	}, nil)
	m.users.On("GetByUsernameForUpdate", ctx, "dave").Return(dave, nil).Once()
	m.users.On("GetByUsernameForUpdate", ctx, "host").Return(host, nil).Once()
	m.events.On("MarkFinished", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.participations.On("SetOutcomes", ctx, int64(7), int64(1)).Return(nil)
	m.users.On("UpdateBalance", ctx, "dave", decEq("150")).Return(nil).Once()
	m.users.On("UpdateBalance", ctx, "dave", decEq("100")).Return(nil).Once()
	m.users.On("UpdateBalance", ctx, "host", decEq("200")).Return(nil)
	m.events.On("UpdateBudget", ctx, int64(7), decEq("100")).Return(nil)

	result, err := svc.Finalize(ctx, 7, 1)

	require.NoError(t, err)
	assert.True(t, dave.Balance.Equal(dec("100")))
	assert.True(t, result.Refund.Equal(dec("200")))
	m.assertAll(t)
}

func TestSettlementService_Finalize_LocksUsersInNameOrder(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	svc := NewSettlementService(m.factory, nil)

	event := newOpenEvent(7, "100", "100")
	detail := &models.EventDetail{Event: event, Actions: []*models.Action{
		{ID: 1, EventID: 7, Label: "A", Coefficient: 2},
		{ID: 2, EventID: 7, Label: "B", Coefficient: 2},
	}}

	m.expectTransaction(ctx)
	m.expectHistory(ctx)
	m.events.On("GetByIDForUpdate", ctx, int64(7)).Return(event, nil)
	m.events.On("GetDetail", ctx, int64(7)).Return(detail, nil)
	m.participations.On("GetByEvent", ctx, int64(7)).Return([]*models.Participation{
		{ID: 1, ActionID: 1, EventID: 7, Username: "zed", Stake: dec("10"), PotentialWin: dec("20")},
		{ID: 2, ActionID: 2, EventID: 7, Username: "alice", Stake: dec("10"), PotentialWin: dec("20")},
		{ID: 3, ActionID: 1, EventID: 7, Username: "zed", Stake: dec("5"), PotentialWin: dec("10")},
	}, nil)
	for _, name := range []string{"alice", "host", "zed"} {
		m.users.On("GetByUsernameForUpdate", ctx, name).Return(newUser(name, "100"), nil).Once()
	}
	m.events.On("MarkFinished", ctx, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
	m.participations.On("SetOutcomes", ctx, int64(7), int64(1)).Return(nil)
	m.users.On("UpdateBalance", ctx, mock.Anything, mock.Anything).Return(nil)
	m.events.On("UpdateBudget", ctx, int64(7), decEq("30")).Return(nil)

	_, err := svc.Finalize(ctx, 7, 1)
	require.NoError(t, err)

	var locked []string
	for _, call := range m.users.Calls {
		if call.Method == "GetByUsernameForUpdate" {
			locked = append(locked, call.Arguments.String(1))
		}
	}
	assert.Equal(t, []string{"alice", "host", "zed"}, locked)

	firstWrite := -1
	for i, call := range m.users.Calls {
		if call.Method == "UpdateBalance" {
			firstWrite = i
			break
		}
	}
	assert.Equal(t, len(locked), firstWrite)
	m.assertAll(t)
}
