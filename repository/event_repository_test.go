package repository

import (
	"context"
	"testing"
	"time"

	"betboard/models"
	"betboard/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepository_CreateAndGetDetail(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewEventRepository(testDB.DB)
	ctx := context.Background()
	testutil.SeedUsers(t, testDB.DB, testutil.CreateTestUser("host"))

	event := testutil.CreateTestEvent("host", "500")
	actions := testutil.CreateTestActions("Team A", "Team B", "Draw")
	require.NoError(t, repo.Create(ctx, event, actions))

	t.Run("assigns identifiers", func(t *testing.T) {
		assert.NotZero(t, event.ID)
		assert.False(t, event.CreatedAt.IsZero())
		for i, action := range actions {
			assert.NotZero(t, action.ID)
			assert.Equal(t, event.ID, action.EventID)
			assert.Equal(t, int16(i), action.DisplayOrder)
		}
	})

	t.Run("detail keeps display order", func(t *testing.T) {
		detail, err := repo.GetDetail(ctx, event.ID)
		require.NoError(t, err)
		require.NotNil(t, detail)

		assert.Equal(t, "Who wins the final?", detail.Event.Title)
		assert.True(t, detail.Event.Budget.Equal(decimal.NewFromInt(500)))
		assert.Equal(t, models.EventStateOpen, detail.Event.State())
		require.Len(t, detail.Actions, 3)
		assert.Equal(t, "Team A", detail.Actions[0].Label)
		assert.Equal(t, "Team B", detail.Actions[1].Label)
		assert.Equal(t, "Draw", detail.Actions[2].Label)
		assert.Equal(t, 2.0, detail.Actions[0].Coefficient)
	})

	t.Run("missing event", func(t *testing.T) {
		detail, err := repo.GetDetail(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, detail)

		e, err := repo.GetByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("duplicate labels rejected", func(t *testing.T) {
		dup := testutil.CreateTestEvent("host", "100")
		err := repo.Create(ctx, dup, testutil.CreateTestActions("Yes", "Yes"))
		assert.Error(t, err)
	})
}

func TestEventRepository_ListDetails(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewEventRepository(testDB.DB)
	ctx := context.Background()
	testutil.SeedUsers(t, testDB.DB, testutil.CreateTestUser("host"), testutil.CreateTestUser("other"))

	first := testutil.CreateTestEvent("host", "100")
	require.NoError(t, repo.Create(ctx, first, testutil.CreateTestActions("Yes", "No")))
	second := testutil.CreateTestEvent("other", "200")
	require.NoError(t, repo.Create(ctx, second, testutil.CreateTestActions("Red", "Green", "Blue")))

	details, err := repo.ListDetails(ctx)
	require.NoError(t, err)
	require.Len(t, details, 2)

	byID := map[int64]*models.EventDetail{}
	for _, d := range details {
		byID[d.Event.ID] = d
	}
	assert.Len(t, byID[first.ID].Actions, 2)
	assert.Len(t, byID[second.ID].Actions, 3)

	created, err := repo.GetByCreator(ctx, "other")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, second.ID, created[0].ID)
}

func TestEventRepository_StateChanges(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewEventRepository(testDB.DB)
	ctx := context.Background()
	testutil.SeedUsers(t, testDB.DB, testutil.CreateTestUser("host"))

	event := testutil.CreateTestEvent("host", "300")
	actions := testutil.CreateTestActions("Yes", "No")
	require.NoError(t, repo.Create(ctx, event, actions))

	t.Run("close and reopen", func(t *testing.T) {
		require.NoError(t, repo.SetOpen(ctx, event.ID, false))
		e, err := repo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EventStateClosed, e.State())

		require.NoError(t, repo.SetOpen(ctx, event.ID, true))
		e, err = repo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EventStateOpen, e.State())
	})

	t.Run("visibility stores and clears password", func(t *testing.T) {
		require.NoError(t, repo.SetVisibility(ctx, event.ID, false, "s3cret"))
		e, err := repo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		assert.False(t, e.IsPublic)
		assert.Equal(t, "s3cret", e.Password)

		require.NoError(t, repo.SetVisibility(ctx, event.ID, true, "ignored"))
		e, err = repo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		assert.True(t, e.IsPublic)
		assert.Empty(t, e.Password)
	})

	t.Run("budget and coefficient", func(t *testing.T) {
		require.NoError(t, repo.UpdateBudget(ctx, event.ID, decimal.RequireFromString("123.45")))
		require.NoError(t, repo.UpdateCoefficient(ctx, actions[0].ID, 1.75))

		detail, err := repo.GetDetail(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, "123.45", detail.Event.Budget.StringFixed(2))
		assert.Equal(t, 1.75, detail.FindAction(actions[0].ID).Coefficient)

		action, err := repo.GetAction(ctx, actions[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "No", action.Label)
	})

	t.Run("mark finished closes the event", func(t *testing.T) {
		finishedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.MarkFinished(ctx, event.ID, finishedAt))

		e, err := repo.GetByIDForUpdate(ctx, event.ID)
		require.NoError(t, err)
		assert.True(t, e.IsFinished)
		assert.False(t, e.IsOpen)
		require.NotNil(t, e.FinishedAt)
		assert.True(t, e.FinishedAt.Equal(finishedAt))
	})

	t.Run("unknown ids", func(t *testing.T) {
		assert.Error(t, repo.SetOpen(ctx, 999999, true))
		assert.Error(t, repo.UpdateCoefficient(ctx, 999999, 2.0))

		action, err := repo.GetAction(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, action)
	})
}
