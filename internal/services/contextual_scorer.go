package services

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/finpick/finpick-server/pkg/models"
)

// ContextualScorer adjusts per-type affinities using transient signals:
// calendar seasonality, free-text query keywords and products already held.
type ContextualScorer struct {
	logger *logrus.Logger
	now    func() time.Time
}

func NewContextualScorer(logger *logrus.Logger) *ContextualScorer {
	return &ContextualScorer{logger: logger, now: time.Now}
}

// Score applies the contextual adjustments and min-max normalizes.
func (s *ContextualScorer) Score(f ProfileFeatures, reqCtx *models.RequestContext) TypeScores {
	scores := baseScores()

	// year-end / new-year savings seasonality
	month := s.now().Month()
	if month == time.December || month == time.January {
		scores[models.ProductSavings] += 0.1
	}

	if reqCtx != nil {
		s.applyQuerySignals(scores, reqCtx.SearchQuery)
		s.applyHeldProducts(scores, reqCtx.CurrentProducts)
	}

	return normalizeScores(scores)
}

// applyQuerySignals scans the free-text query for intent keywords. The query
// is NFC-normalized first so decomposed Hangul input matches the keyword
// literals.
func (s *ContextualScorer) applyQuerySignals(scores TypeScores, query string) {
	if query == "" {
		return
	}
	q := norm.NFC.String(query)

	if strings.Contains(q, "안전") || strings.Contains(q, "보장") {
		scores[models.ProductDeposit] += 0.2
		scores[models.ProductSavings] += 0.2
	}
	if strings.Contains(q, "수익") || strings.Contains(q, "투자") {
		scores[models.ProductInvestment] += 0.2
	}
	if strings.Contains(q, "대출") || strings.Contains(q, "융자") {
		scores[models.ProductLoan] += 0.3
	}
}

// applyHeldProducts nudges the next risk tier up for products the user
// already holds: deposit holders toward savings, savings holders toward
// investment.
func (s *ContextualScorer) applyHeldProducts(scores TypeScores, held []models.ProductRef) {
	for _, ref := range held {
		switch ref.Type {
		case models.ProductDeposit:
			scores[models.ProductSavings] += 0.1
		case models.ProductSavings:
			scores[models.ProductInvestment] += 0.1
		}
	}
}
