package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finpick/finpick-server/pkg/models"
)

func TestNormalizeScores(t *testing.T) {
	t.Run("rescales to unit interval", func(t *testing.T) {
		scores := TypeScores{
			models.ProductDeposit:    0.8,
			models.ProductSavings:    0.5,
			models.ProductLoan:       0.3,
			models.ProductInvestment: 0.4,
		}

		normalized := normalizeScores(scores)

		assert.InDelta(t, 1.0, normalized[models.ProductDeposit], 1e-9)
		assert.InDelta(t, 0.0, normalized[models.ProductLoan], 1e-9)
		for _, v := range normalized {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})

	t.Run("preserves relative order", func(t *testing.T) {
		scores := TypeScores{
			models.ProductDeposit:    0.9,
			models.ProductSavings:    0.6,
			models.ProductLoan:       0.1,
			models.ProductInvestment: 0.4,
		}

		normalized := normalizeScores(scores)

		assert.Greater(t, normalized[models.ProductDeposit], normalized[models.ProductSavings])
		assert.Greater(t, normalized[models.ProductSavings], normalized[models.ProductInvestment])
		assert.Greater(t, normalized[models.ProductInvestment], normalized[models.ProductLoan])
	})

	t.Run("flat input is returned unchanged", func(t *testing.T) {
		scores := TypeScores{
			models.ProductDeposit:    0.5,
			models.ProductSavings:    0.5,
			models.ProductLoan:       0.5,
			models.ProductInvestment: 0.5,
		}

		normalized := normalizeScores(scores)

		for _, v := range normalized {
			assert.InDelta(t, 0.5, v, 1e-9)
		}
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		scores := TypeScores{
			models.ProductDeposit:    0.8,
			models.ProductSavings:    0.2,
			models.ProductLoan:       0.2,
			models.ProductInvestment: 0.2,
		}

		_ = normalizeScores(scores)

		assert.InDelta(t, 0.8, scores[models.ProductDeposit], 1e-9)
		assert.InDelta(t, 0.2, scores[models.ProductSavings], 1e-9)
	})
}

func TestNormalizeProfile(t *testing.T) {
	t.Run("nil profile degrades to neutral", func(t *testing.T) {
		f := normalizeProfile(nil)

		assert.Equal(t, models.RiskLevel(models.RiskNeutral), f.RiskLevel)
		assert.False(t, f.Goal.IsSet())
		assert.False(t, f.Income.IsSet())
		assert.False(t, f.AgeGroup.IsSet())
	})

	t.Run("missing risk assessment defaults to neutral", func(t *testing.T) {
		f := normalizeProfile(&models.UserProfile{
			UserID:      "user-1",
			PrimaryGoal: models.GoalSafeSavings,
		})

		assert.Equal(t, models.RiskLevel(models.RiskNeutral), f.RiskLevel)
		assert.Equal(t, models.GoalSafeSavings, f.Goal)
	})

	t.Run("out of range stored risk is clamped", func(t *testing.T) {
		level := models.RiskLevel(9)
		f := normalizeProfile(&models.UserProfile{UserID: "user-1", RiskLevel: &level})

		assert.Equal(t, models.RiskLevel(models.RiskNeutral), f.RiskLevel)
	})

	t.Run("complete profile maps through", func(t *testing.T) {
		level := models.RiskLevel(2)
		f := normalizeProfile(&models.UserProfile{
			UserID:        "user-1",
			RiskLevel:     &level,
			PrimaryGoal:   models.GoalInvestmentReturn,
			IncomeBracket: models.IncomeHigh,
			AgeGroup:      models.AgeGroup30s,
		})

		assert.Equal(t, models.RiskLevel(2), f.RiskLevel)
		assert.Equal(t, models.GoalInvestmentReturn, f.Goal)
		assert.Equal(t, models.IncomeHigh, f.Income)
		assert.Equal(t, models.AgeGroup30s, f.AgeGroup)
	})
}
