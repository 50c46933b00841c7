package service

import (
	"math/rand"
	"testing"

	"betboard/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoActions() []*models.Action {
	return []*models.Action{
		{ID: 1, EventID: 7, Label: "A", Coefficient: 2.5, DisplayOrder: 0},
		{ID: 2, EventID: 7, Label: "B", Coefficient: 1.4, DisplayOrder: 1},
	}
}

func TestSuggestCoefficients_Example(t *testing.T) {
	suggestions, err := SuggestCoefficients(twoActions(), map[int64]decimal.Decimal{
		1: dec("300"),
		2: dec("700"),
	})

	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, int64(1), suggestions[0].ActionID)
	assert.Equal(t, "A", suggestions[0].Label)
	assert.Equal(t, 2.5, suggestions[0].Current)
	assert.Equal(t, 3.33, suggestions[0].Suggested)
	assert.True(t, suggestions[0].Staked.Equal(dec("300")))

	assert.Equal(t, int64(2), suggestions[1].ActionID)
	assert.Equal(t, 1.43, suggestions[1].Suggested)
}

func TestSuggestCoefficients_ZeroStakeActionGetsCeiling(t *testing.T) {
	suggestions, err := SuggestCoefficients(twoActions(), map[int64]decimal.Decimal{
		1: dec("50"),
	})

	require.NoError(t, err)
	assert.Equal(t, MinCoefficient, suggestions[0].Suggested)
	assert.Equal(t, MaxCoefficient, suggestions[1].Suggested)
	assert.True(t, suggestions[1].Staked.IsZero())
}

func TestSuggestCoefficients_ThinShareClampedToCeiling(t *testing.T) {
	suggestions, err := SuggestCoefficients(twoActions(), map[int64]decimal.Decimal{
		1: dec("1"),
		2: dec("99"),
	})

	require.NoError(t, err)
	assert.Equal(t, MaxCoefficient, suggestions[0].Suggested)
	assert.Equal(t, 1.01, suggestions[1].Suggested)
}

func TestSuggestCoefficients_NoStakes(t *testing.T) {
	_, err := SuggestCoefficients(twoActions(), map[int64]decimal.Decimal{})
	assert.ErrorIs(t, err, ErrNoStakes)

	_, err = SuggestCoefficients(nil, map[int64]decimal.Decimal{1: dec("10")})
	assert.ErrorIs(t, err, ErrNoStakes)
}

func TestSuggestCoefficients_IgnoresStakesOnForeignActions(t *testing.T) {
	_, err := SuggestCoefficients(twoActions(), map[int64]decimal.Decimal{99: dec("10")})
	assert.ErrorIs(t, err, ErrNoStakes)
}

func TestSuggestCoefficients_PreservesActionOrder(t *testing.T) {
	actions := []*models.Action{
		{ID: 30, Label: "third"},
		{ID: 10, Label: "first"},
		{ID: 20, Label: "second"},
	}
	suggestions, err := SuggestCoefficients(actions, map[int64]decimal.Decimal{10: dec("5")})

	require.NoError(t, err)
	require.Len(t, suggestions, 3)
	assert.Equal(t, int64(30), suggestions[0].ActionID)
	assert.Equal(t, int64(10), suggestions[1].ActionID)
	assert.Equal(t, int64(20), suggestions[2].ActionID)
}

func TestSuggestCoefficients_DoesNotMutateActions(t *testing.T) {
	actions := twoActions()
	_, err := SuggestCoefficients(actions, map[int64]decimal.Decimal{1: dec("10"), 2: dec("10")})

	require.NoError(t, err)
	assert.Equal(t, 2.5, actions[0].Coefficient)
	assert.Equal(t, 1.4, actions[1].Coefficient)
}

func TestSuggestCoefficients_AlwaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	actions := []*models.Action{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	for i := 0; i < 500; i++ {
		totals := make(map[int64]decimal.Decimal)
		for _, a := range actions {
			if rng.Intn(4) == 0 {
				continue
			}
			totals[a.ID] = decimal.New(rng.Int63n(1_000_000)+1, -2)
		}
		if len(totals) == 0 {
			totals[1] = dec("1")
		}

		suggestions, err := SuggestCoefficients(actions, totals)
		require.NoError(t, err)
		for _, s := range suggestions {
			assert.GreaterOrEqual(t, s.Suggested, MinCoefficient)
			assert.LessOrEqual(t, s.Suggested, MaxCoefficient)
			if s.Staked.IsZero() {
				assert.Equal(t, MaxCoefficient, s.Suggested)
			}
		}
	}
}

func TestSuggestCoefficients_MonotonicInShare(t *testing.T) {
	actions := twoActions()
	previous := MaxCoefficient + 1

	for stake := int64(1); stake <= 2000; stake += 7 {
		suggestions, err := SuggestCoefficients(actions, map[int64]decimal.Decimal{
			1: decimal.NewFromInt(stake),
			2: dec("500"),
		})
		require.NoError(t, err)

		current := suggestions[0].Suggested
		assert.LessOrEqual(t, current, previous, "stake %d", stake)
		previous = current
	}
}
