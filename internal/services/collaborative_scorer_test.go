package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/finpick/finpick-server/pkg/models"
)

func peerWithHistory(riskLevel int, actions ...models.RecommendationInteraction) models.PeerProfile {
	level := models.RiskLevel(riskLevel)
	return models.PeerProfile{
		UserID:        uuid.NewString(),
		RiskLevel:     &level,
		PrimaryGoal:   models.GoalSafeSavings,
		IncomeBracket: models.IncomeMiddle,
		AgeGroup:      models.AgeGroup30s,
		History:       actions,
	}
}

func interaction(action string, productType models.ProductType) models.RecommendationInteraction {
	return models.RecommendationInteraction{
		ID:               uuid.New(),
		RecommendationID: uuid.New(),
		Action:           action,
		Products:         []models.ProductRef{{ID: "p-1", Type: productType, Name: "상품"}},
	}
}

func TestCollaborativeScorer_Score(t *testing.T) {
	scorer := NewCollaborativeScorer(logrus.New())

	user := ProfileFeatures{
		RiskLevel: 3,
		Goal:      models.GoalSafeSavings,
		Income:    models.IncomeMiddle,
		AgeGroup:  models.AgeGroup30s,
	}

	t.Run("empty cohort yields the neutral base mapping", func(t *testing.T) {
		scores := scorer.Score(user, nil)

		assert.Equal(t, baseScores(), scores)
	})

	t.Run("identical peer's converted product dominates", func(t *testing.T) {
		peer := peerWithHistory(3, interaction(models.ActionConvert, models.ProductInvestment))

		scores := scorer.Score(user, []models.PeerProfile{peer})

		assert.InDelta(t, 1.0, scores[models.ProductInvestment], 1e-9)
		assert.Greater(t, scores[models.ProductInvestment], scores[models.ProductDeposit])
	})

	t.Run("view interactions do not count", func(t *testing.T) {
		peer := peerWithHistory(3, interaction(models.ActionView, models.ProductInvestment))

		scores := scorer.Score(user, []models.PeerProfile{peer})

		// The peer contributes weight but no positive interactions, so the
		// base mapping survives normalization with its order intact.
		assert.Greater(t, scores[models.ProductDeposit], scores[models.ProductInvestment])
	})

	t.Run("dissimilar cohort falls back to the base mapping", func(t *testing.T) {
		level := models.RiskLevel(1)
		stranger := models.PeerProfile{
			UserID:        uuid.NewString(),
			RiskLevel:     &level,
			PrimaryGoal:   models.GoalHomePurchase,
			IncomeBracket: models.IncomeHigh,
			AgeGroup:      models.AgeGroup60Plus,
			History:       []models.RecommendationInteraction{interaction(models.ActionClick, models.ProductLoan)},
		}

		scores := scorer.Score(user, []models.PeerProfile{stranger})

		assert.Equal(t, baseScores(), scores)
	})

	t.Run("closer peers weigh more", func(t *testing.T) {
		twin := peerWithHistory(3, interaction(models.ActionClick, models.ProductSavings))

		levelOther := models.RiskLevel(5)
		distant := models.PeerProfile{
			UserID:        uuid.NewString(),
			RiskLevel:     &levelOther,
			PrimaryGoal:   models.GoalSafeSavings, // only the goal matches
			IncomeBracket: models.IncomeHigh,
			AgeGroup:      models.AgeGroup50s,
			History:       []models.RecommendationInteraction{interaction(models.ActionClick, models.ProductLoan)},
		}

		scores := scorer.Score(user, []models.PeerProfile{twin, distant})

		assert.Greater(t, scores[models.ProductSavings], scores[models.ProductLoan])
	})
}

func TestSimilarityWeight(t *testing.T) {
	base := ProfileFeatures{
		RiskLevel: 3,
		Goal:      models.GoalSafeSavings,
		Income:    models.IncomeMiddle,
		AgeGroup:  models.AgeGroup30s,
	}

	t.Run("full match sums to one", func(t *testing.T) {
		assert.InDelta(t, 1.0, similarityWeight(base, base), 1e-9)
	})

	t.Run("partial matches sum their terms", func(t *testing.T) {
		peer := base
		peer.RiskLevel = 5
		peer.Income = models.IncomeHigh

		// age 0.3 + goal 0.2
		assert.InDelta(t, 0.5, similarityWeight(base, peer), 1e-9)
	})

	t.Run("no match is zero", func(t *testing.T) {
		peer := ProfileFeatures{
			RiskLevel: 1,
			Goal:      models.GoalRetirement,
			Income:    models.IncomeHigh,
			AgeGroup:  models.AgeGroup60Plus,
		}

		assert.Zero(t, similarityWeight(base, peer))
	})
}
