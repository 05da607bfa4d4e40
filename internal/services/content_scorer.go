package services

import (
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/pkg/models"
)

// ContentScorer produces per-product-type affinities purely from the user's
// own declared profile, optionally seeded by their stored preference state.
type ContentScorer struct {
	logger *logrus.Logger
}

func NewContentScorer(logger *logrus.Logger) *ContentScorer {
	return &ContentScorer{logger: logger}
}

// Score returns the min-max normalized content affinities. Pure function of
// its inputs.
func (s *ContentScorer) Score(f ProfileFeatures, prefs map[models.ProductType]float64) TypeScores {
	return normalizeScores(s.rawScore(f, prefs))
}

// rawScore applies the fixed base values and additive profile adjustments
// before normalization. Stored preference values, when present for a type,
// replace that type's base so feedback reinforcement carries into future
// content scoring.
func (s *ContentScorer) rawScore(f ProfileFeatures, prefs map[models.ProductType]float64) TypeScores {
	scores := baseScores()
	for t, v := range prefs {
		if t.Valid() {
			scores[t] = v
		}
	}

	switch {
	case f.RiskLevel <= 2:
		scores[models.ProductDeposit] += 0.3
		scores[models.ProductSavings] += 0.3
		scores[models.ProductInvestment] -= 0.2
	case f.RiskLevel >= 4:
		scores[models.ProductInvestment] += 0.3
		scores[models.ProductDeposit] -= 0.1
	}

	switch f.Goal {
	case models.GoalSafeSavings:
		scores[models.ProductDeposit] += 0.2
		scores[models.ProductSavings] += 0.2
	case models.GoalInvestmentReturn:
		scores[models.ProductInvestment] += 0.3
	}

	switch f.Income {
	case models.IncomeHigh:
		scores[models.ProductInvestment] += 0.1
		scores[models.ProductLoan] -= 0.1
	case models.IncomeLow:
		scores[models.ProductDeposit] += 0.1
		scores[models.ProductLoan] += 0.1
	}

	return scores
}
