package service

import (
	"context"
	"testing"

	"betboard/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// serviceMocks bundles a unit of work factory that always hands out the same
// mocked unit of work and its repositories
type serviceMocks struct {
	factory        *MockUnitOfWorkFactory
	uow            *MockUnitOfWork
	users          *MockUserRepository
	events         *MockEventRepository
	participations *MockParticipationRepository
	history        *MockBalanceHistoryRepository
	bank           *MockBankTransactionRepository
}

func newServiceMocks() *serviceMocks {
	m := &serviceMocks{
		factory:        new(MockUnitOfWorkFactory),
		users:          new(MockUserRepository),
		events:         new(MockEventRepository),
		participations: new(MockParticipationRepository),
		history:        new(MockBalanceHistoryRepository),
		bank:           new(MockBankTransactionRepository),
	}
	m.uow = NewMockUnitOfWork(m.users, m.events, m.participations, m.history, m.bank)
	m.factory.On("Create").Return(m.uow)
	return m
}

// expectTransaction allows a committed unit of work
func (m *serviceMocks) expectTransaction(ctx context.Context) {
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)
}

// expectRollbackOnly allows a unit of work that must never commit
func (m *serviceMocks) expectRollbackOnly(ctx context.Context) {
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)
}

// expectHistory accepts any balance history record
func (m *serviceMocks) expectHistory(ctx context.Context) {
	m.history.On("Record", ctx, mock.Anything).Return(nil)
}

// recordedHistory returns the balance history entries passed to Record
func (m *serviceMocks) recordedHistory() []*models.BalanceHistory {
	var out []*models.BalanceHistory
	for _, call := range m.history.Calls {
		if call.Method == "Record" {
			out = append(out, call.Arguments.Get(1).(*models.BalanceHistory))
		}
	}
	return out
}

func (m *serviceMocks) assertAll(t *testing.T) {
	t.Helper()
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.users.AssertExpectations(t)
	m.events.AssertExpectations(t)
	m.participations.AssertExpectations(t)
	m.history.AssertExpectations(t)
	m.bank.AssertExpectations(t)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decEq matches a decimal argument by value rather than representation
func decEq(s string) interface{} {
	want := dec(s)
	return mock.MatchedBy(func(got decimal.Decimal) bool {
		return got.Equal(want)
	})
}

func newUser(username, balance string) *models.User {
	return &models.User{
		Username: username,
		Email:    username + "@example.com",
		Balance:  dec(balance),
		Verified: true,
	}
}

func newOpenEvent(id int64, budget, stakeLimit string) *models.Event {
	return &models.Event{
		ID:            id,
		Title:         "Derby",
		Budget:        dec(budget),
		InitialBudget: dec(budget),
		StakeLimit:    dec(stakeLimit),
		PlayerLimit:   10,
		IsOpen:        true,
		IsPublic:      true,
		Creator:       "host",
	}
}
