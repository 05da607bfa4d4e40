package services

import (
	"github.com/finpick/finpick-server/pkg/models"
)

// TypeScores maps each of the four product types to an affinity score.
// Scorer outputs are min-max rescaled per invocation, so the hybrid weights
// always combine three independently rescaled inputs.
type TypeScores map[models.ProductType]float64

// baseScores returns the fixed starting affinities shared by the scorers and
// by the no-peer collaborative fallback.
func baseScores() TypeScores {
	return TypeScores{
		models.ProductDeposit:    0.5,
		models.ProductSavings:    0.5,
		models.ProductLoan:       0.3,
		models.ProductInvestment: 0.4,
	}
}

// clone returns an independent copy of s.
func (s TypeScores) clone() TypeScores {
	out := make(TypeScores, len(s))
	for t, v := range s {
		out[t] = v
	}
	return out
}

// normalizeScores min-max rescales the mapping to [0,1]. When all values are
// equal the mapping is returned unchanged; rescaling a flat mapping would
// erase the relative order the base values encode.
func normalizeScores(scores TypeScores) TypeScores {
	var min, max float64
	first := true
	for _, v := range scores {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if max == min {
		return scores.clone()
	}

	out := make(TypeScores, len(scores))
	for t, v := range scores {
		out[t] = (v - min) / (max - min)
	}
	return out
}

// ProfileFeatures is the normalized scoring view of a profile. Every field
// is defined: absent profile data is substituted with neutral defaults so
// downstream scorers never branch on missing values.
type ProfileFeatures struct {
	RiskLevel models.RiskLevel
	Goal      models.Goal
	Income    models.IncomeBracket
	AgeGroup  models.AgeGroup
}

// normalizeProfile maps a stored profile to its scoring features without
// mutating it. Missing fields degrade toward neutral, never error.
func normalizeProfile(profile *models.UserProfile) ProfileFeatures {
	f := ProfileFeatures{RiskLevel: models.RiskNeutral}
	if profile == nil {
		return f
	}

	if profile.RiskLevel != nil {
		f.RiskLevel = profile.RiskLevel.Clamped()
	}
	f.Goal = profile.PrimaryGoal
	f.Income = profile.IncomeBracket
	f.AgeGroup = profile.AgeGroup
	return f
}

// peerFeatures projects a peer onto the same feature space as the
// requesting user so similarity terms compare like with like.
func peerFeatures(peer *models.PeerProfile) ProfileFeatures {
	f := ProfileFeatures{RiskLevel: models.RiskNeutral}
	if peer == nil {
		return f
	}

	if peer.RiskLevel != nil {
		f.RiskLevel = peer.RiskLevel.Clamped()
	}
	f.Goal = peer.PrimaryGoal
	f.Income = peer.IncomeBracket
	f.AgeGroup = peer.AgeGroup
	return f
}
