package repository

import (
	"context"
	"testing"
	"time"

	"betboard/events"
	"betboard/models"
	"betboard/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	testutil.SeedUsers(t, testDB.DB, testutil.CreateTestUser("alice"))

	bus := events.NewBus()
	received := make(chan events.Event, 4)
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		received <- e
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	users := NewUserRepository(testDB.DB)

	t.Run("getters panic before begin", func(t *testing.T) {
		uow := factory.Create()
		assert.Panics(t, func() { uow.UserRepository() })
		assert.Panics(t, func() { uow.EventRepository() })
	})

	t.Run("commit persists and flushes events", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		require.NoError(t, uow.UserRepository().UpdateBalance(ctx, "alice", decimal.NewFromInt(900)))
		uow.EventBus().Publish(events.BalanceChangeEvent{Username: "alice"})
		require.NoError(t, uow.Commit())

		user, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, user.Balance.Equal(decimal.NewFromInt(900)))

		select {
		case e := <-received:
			assert.Equal(t, events.EventTypeBalanceChange, e.Type())
		case <-time.After(2 * time.Second):
			t.Fatal("expected balance change event after commit")
		}
	})

	t.Run("rollback discards writes and events", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))

		require.NoError(t, uow.UserRepository().UpdateBalance(ctx, "alice", decimal.NewFromInt(1)))
		require.NoError(t, uow.BalanceHistoryRepository().Record(ctx,
			testutil.CreateTestBalanceHistory("alice", models.TransactionTypeWithdrawal)))
		uow.EventBus().Publish(events.BalanceChangeEvent{Username: "alice"})
		require.NoError(t, uow.Rollback())

		user, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, user.Balance.Equal(decimal.NewFromInt(900)))

		select {
		case <-received:
			t.Fatal("no event expected after rollback")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("double begin fails", func(t *testing.T) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()
		assert.Error(t, uow.Begin(ctx))
	})

	t.Run("commit without begin fails", func(t *testing.T) {
		uow := factory.Create()
		assert.Error(t, uow.Commit())
		assert.NoError(t, uow.Rollback())
	})
}
