package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"betboard/events"
	"betboard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestDepositService(m *serviceMocks, feed BankFeed) DepositService {
	return NewDepositService(m.factory, feed, DepositConfig{
		DepositWindow:  60 * time.Second,
		WithdrawWindow: 600 * time.Second,
	}, func() time.Time { return fixedNow })
}

func bankItem(id, amount, description string) *models.BankTransaction {
	return &models.BankTransaction{
		ExternalID:  id,
		Amount:      dec(amount),
		Description: description,
		OccurredAt:  fixedNow.Add(-10 * time.Second),
	}
}

func TestDepositService_SyncDeposits_CreditsMatchedUser(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	feed := new(MockBankFeed)
	svc := newTestDepositService(m, feed)

	alice := newUser("alice", "10")

	feed.On("Statement", ctx, fixedNow.Add(-60*time.Second), fixedNow).Return([]*models.BankTransaction{
		bankItem("tx-1", "250.50", "Від: Shevchenko Alice"),
		bankItem("tx-out", "-40", "Від: Shevchenko Alice"),
	}, nil)
	m.expectTransaction(ctx)
	m.expectHistory(ctx)
	m.bank.On("Exists", ctx, "tx-1").Return(false, nil)
	m.users.On("FindVerifiedByName", ctx, "Alice", "Shevchenko").Return(alice, nil)
	m.users.On("GetByUsernameForUpdate", ctx, "alice").Return(alice, nil)
	m.bank.On("Create", ctx, mock.MatchedBy(func(tx *models.BankTransaction) bool {
		return tx.ExternalID == "tx-1" && tx.Username != nil && *tx.Username == "alice"
	})).Return(nil)
	m.users.On("UpdateBalance", ctx, "alice", decEq("260.50")).Return(nil)

	report, err := svc.SyncDeposits(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, report.Applied)
	assert.True(t, report.Total.Equal(dec("250.50")))

	history := m.recordedHistory()
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionTypeDeposit, history[0].TransactionType)
	assert.Len(t, m.uow.Publisher().OfType(events.EventTypeDepositReconciled), 1)

	m.assertAll(t)
	feed.AssertExpectations(t)
}

func TestDepositService_SyncDeposits_SkipsDuplicatesAndUnmatched(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	feed := new(MockBankFeed)
	svc := newTestDepositService(m, feed)

	feed.On("Statement", ctx, mock.Anything, mock.Anything).Return([]*models.BankTransaction{
		bankItem("tx-dup", "10", "Від: Shevchenko Alice"),
		bankItem("tx-unknown", "10", "Від: Nobody Known"),
		bankItem("tx-bad", "10", "cash"),
	}, nil)
	m.expectRollbackOnly(ctx)
	m.bank.On("Exists", ctx, "tx-dup").Return(true, nil)
	m.bank.On("Exists", ctx, "tx-unknown").Return(false, nil)
	m.users.On("FindVerifiedByName", ctx, "Known", "Nobody").Return(nil, nil)

	report, err := svc.SyncDeposits(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 0, report.Applied)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, report.Unmatched)
	m.users.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything)
	m.assertAll(t)
}

func TestDepositService_SyncDeposits_EmptyStatementIsNoop(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	feed := new(MockBankFeed)
	svc := newTestDepositService(m, feed)

	feed.On("Statement", ctx, mock.Anything, mock.Anything).Return([]*models.BankTransaction{}, nil)

	report, err := svc.SyncDeposits(ctx)

	require.NoError(t, err)
	assert.Zero(t, report.Fetched)
	m.factory.AssertNotCalled(t, "Create")
}

func TestDepositService_SyncWithdrawals(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	feed := new(MockBankFeed)
	svc := newTestDepositService(m, feed)

	alice := newUser("alice", "100")
	bob := newUser("bob", "5")

	feed.On("Statement", ctx, fixedNow.Add(-600*time.Second), fixedNow).Return([]*models.BankTransaction{
		bankItem("tx-in", "500", "Від: Shevchenko Alice"),
		bankItem("tx-a", "-40", "Від: Shevchenko Alice"),
		bankItem("tx-b", "-40", "Від: Franko Bob"),
	}, nil)
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)
	m.uow.On("Commit").Return(nil).Once()
	m.expectHistory(ctx)
	m.bank.On("Exists", ctx, "tx-a").Return(false, nil)
	m.bank.On("Exists", ctx, "tx-b").Return(false, nil)
	m.users.On("FindVerifiedByName", ctx, "Alice", "Shevchenko").Return(alice, nil)
	m.users.On("FindVerifiedByName", ctx, "Bob", "Franko").Return(bob, nil)
	m.users.On("GetByUsernameForUpdate", ctx, "alice").Return(alice, nil)
	m.users.On("GetByUsernameForUpdate", ctx, "bob").Return(bob, nil)
	m.bank.On("Create", ctx, mock.Anything).Return(nil)
	m.users.On("UpdateBalance", ctx, "alice", decEq("60")).Return(nil)

	report, err := svc.SyncWithdrawals(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Rejected)
	assert.True(t, report.Total.Equal(dec("40")))
	assert.True(t, bob.Balance.Equal(dec("5")))
	m.assertAll(t)
}

func TestDepositService_FeedError(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	feed := new(MockBankFeed)
	svc := newTestDepositService(m, feed)

	feed.On("Statement", ctx, mock.Anything, mock.Anything).Return(nil, errors.New("429 too many requests"))

	_, err := svc.SyncDeposits(ctx)

	assert.Error(t, err)
	m.factory.AssertNotCalled(t, "Create")
}
