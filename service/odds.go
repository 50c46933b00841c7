package service

import (
	"betboard/models"

	"github.com/shopspring/decimal"
)

// Bounds applied to suggested coefficients
const (
	MinCoefficient = 1.01
	MaxCoefficient = 5.0
)

var (
	minCoefficient = decimal.NewFromFloat(MinCoefficient)
	maxCoefficient = decimal.NewFromFloat(MaxCoefficient)
)

// SuggestCoefficients derives a coefficient per action from the share of the
// total stake placed on it. The inverse of the share is clamped to
// [MinCoefficient, MaxCoefficient]; an action without stakes gets the ceiling.
// Results follow the order of actions and stored coefficients are untouched.
func SuggestCoefficients(actions []*models.Action, stakeTotals map[int64]decimal.Decimal) ([]models.SuggestedCoefficient, error) {
	if len(actions) == 0 {
		return nil, ErrNoStakes
	}

	generalSum := decimal.Zero
	for _, action := range actions {
		generalSum = generalSum.Add(stakeTotals[action.ID])
	}
	if !generalSum.IsPositive() {
		return nil, ErrNoStakes
	}

	suggestions := make([]models.SuggestedCoefficient, 0, len(actions))
	for _, action := range actions {
		staked := stakeTotals[action.ID]
		suggestions = append(suggestions, models.SuggestedCoefficient{
			ActionID:  action.ID,
			Label:     action.Label,
			Current:   action.Coefficient,
			Suggested: coefficientForShare(staked, generalSum),
			Staked:    staked,
		})
	}
	return suggestions, nil
}

// coefficientForShare returns clamp(total/staked) rounded to two decimals
func coefficientForShare(staked, total decimal.Decimal) float64 {
	if !staked.IsPositive() || !total.IsPositive() {
		return MaxCoefficient
	}

	coefficient := total.DivRound(staked, 8)
	if coefficient.LessThan(minCoefficient) {
		coefficient = minCoefficient
	}
	if coefficient.GreaterThan(maxCoefficient) {
		coefficient = maxCoefficient
	}
	return coefficient.Round(2).InexactFloat64()
}
