package services

import (
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/pkg/models"
)

// Similarity term weights for peer attribute matches. Each term contributes
// only on an exact match, so a peer's weight lies in [0,1].
const (
	similarityAgeWeight    = 0.3
	similarityRiskWeight   = 0.3
	similarityIncomeWeight = 0.2
	similarityGoalWeight   = 0.2
)

// qualifying interaction actions for peer preference aggregation
var positiveActions = map[string]bool{
	models.ActionClick:   true,
	models.ActionSave:    true,
	models.ActionConvert: true,
}

// CollaborativeScorer aggregates weighted preferences of a similarity-ranked
// peer cohort into per-product-type affinities.
type CollaborativeScorer struct {
	logger *logrus.Logger
}

func NewCollaborativeScorer(logger *logrus.Logger) *CollaborativeScorer {
	return &CollaborativeScorer{logger: logger}
}

// Score aggregates the cohort's positive interactions, weighted by each
// peer's attribute similarity to the requesting user.
//
// An empty cohort, or one whose similarity weights sum to zero, yields the
// neutral base mapping as-is. That fallback is intentionally returned
// unnormalized: the base values already carry the intended relative order.
func (s *CollaborativeScorer) Score(f ProfileFeatures, peers []models.PeerProfile) TypeScores {
	if len(peers) == 0 {
		return baseScores()
	}

	prefs := make(TypeScores)
	totalWeight := 0.0

	for i := range peers {
		weight := similarityWeight(f, peerFeatures(&peers[i]))
		totalWeight += weight
		if weight == 0 {
			continue
		}

		for _, entry := range peers[i].History {
			if !positiveActions[entry.Action] {
				continue
			}
			for _, ref := range entry.Products {
				if ref.Type.Valid() {
					prefs[ref.Type] += weight
				}
			}
		}
	}

	if totalWeight == 0 {
		return baseScores()
	}

	scores := baseScores()
	for t, sum := range prefs {
		scores[t] = sum / totalWeight
	}

	return normalizeScores(scores)
}

// similarityWeight sums the exact-match attribute terms between the
// requesting user and one peer.
func similarityWeight(user, peer ProfileFeatures) float64 {
	weight := 0.0
	if user.AgeGroup == peer.AgeGroup {
		weight += similarityAgeWeight
	}
	if user.RiskLevel == peer.RiskLevel {
		weight += similarityRiskWeight
	}
	if user.Income == peer.Income {
		weight += similarityIncomeWeight
	}
	if user.Goal == peer.Goal {
		weight += similarityGoalWeight
	}
	return weight
}
