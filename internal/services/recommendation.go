package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/finpick/finpick-server/internal/metrics"
	"github.com/finpick/finpick-server/pkg/models"
)

// Hybrid combination weights. They sum to 1.0, so a final score stays in
// [0,1] whenever the three scorer outputs do.
const (
	contentWeight       = 0.4
	collaborativeWeight = 0.3
	contextualWeight    = 0.3
)

const (
	peerCohortLimit   = 20
	topProductCount   = 5
	highInterestRate  = 3.5
	affordabilityRate = 0.3
)

// RecommendationService is the hybrid ranker: it turns a user profile, a
// peer cohort and situational context into a ranked, explained product list.
type RecommendationService struct {
	profiles      UserProfileServiceInterface
	catalog       CatalogServiceInterface
	content       *ContentScorer
	collaborative *CollaborativeScorer
	contextual    *ContextualScorer
	logger        *logrus.Logger
}

func NewRecommendationService(
	profiles UserProfileServiceInterface,
	catalog CatalogServiceInterface,
	content *ContentScorer,
	collaborative *CollaborativeScorer,
	contextual *ContextualScorer,
	logger *logrus.Logger,
) *RecommendationService {
	return &RecommendationService{
		profiles:      profiles,
		catalog:       catalog,
		content:       content,
		collaborative: collaborative,
		contextual:    contextual,
		logger:        logger,
	}
}

// GeneratePersonalizedRecommendations runs the full ranking pipeline for one
// user. Any collaborator failure aborts the whole call; there is no partial
// or degraded ranking path.
func (s *RecommendationService) GeneratePersonalizedRecommendations(
	ctx context.Context,
	userID string,
	reqCtx *models.RequestContext,
) (*models.RecommendationResult, error) {
	start := time.Now()

	profile, err := s.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		metrics.RecommendationFailures.WithLabelValues("profile").Inc()
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	peers, err := s.profiles.GetPeerCohort(ctx, userID, peerCohortLimit)
	if err != nil {
		metrics.RecommendationFailures.WithLabelValues("cohort").Inc()
		return nil, fmt.Errorf("fetch peer cohort: %w", err)
	}

	prefState, err := s.profiles.GetPreferenceState(ctx, userID)
	if err != nil {
		metrics.RecommendationFailures.WithLabelValues("preferences").Inc()
		return nil, fmt.Errorf("fetch preference state: %w", err)
	}

	candidates, err := s.catalog.ActiveProducts(ctx)
	if err != nil {
		metrics.RecommendationFailures.WithLabelValues("catalog").Inc()
		return nil, fmt.Errorf("fetch candidate products: %w", err)
	}

	features := normalizeProfile(profile)
	contentScores := s.content.Score(features, prefState.ProductTypePrefs)
	collaborativeScores := s.collaborative.Score(features, peers)
	contextualScores := s.contextual.Score(features, reqCtx)

	finalScores := combineScores(contentScores, collaborativeScores, contextualScores)
	ranked := s.rankCandidates(candidates, features, finalScores, contentScores, collaborativeScores)

	confidence := s.calculateConfidence(profile, ranked)

	result := &models.RecommendationResult{
		ID:          uuid.New(),
		UserID:      userID,
		Timestamp:   time.Now(),
		Products:    ranked,
		Confidence:  confidence,
		Explanation: s.buildExplanation(features, ranked, confidence),
		NextActions: s.buildNextActions(features, profile, ranked),
	}

	// The view interaction is fire-and-forget: the ranking result never
	// depends on this write, so failures are logged and counted only.
	s.recordView(ctx, userID, result)

	metrics.RecommendationsGenerated.Inc()
	metrics.RecommendationLatency.Observe(time.Since(start).Seconds())

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"products":   len(ranked),
		"peers":      len(peers),
		"confidence": confidence,
		"latency":    time.Since(start),
	}).Info("Recommendations generated")

	return result, nil
}

// combineScores applies the fixed hybrid weights per product type.
func combineScores(content, collaborative, contextual TypeScores) TypeScores {
	combined := make(TypeScores, len(models.ProductTypes))
	for _, t := range models.ProductTypes {
		combined[t] = content[t]*contentWeight +
			collaborative[t]*collaborativeWeight +
			contextual[t]*contextualWeight
	}
	return combined
}

// rankCandidates scores every candidate, attaches reasoning and returns the
// top products. The sort is stable: candidates with equal scores keep the
// catalog's natural order, as no secondary key is defined.
func (s *RecommendationService) rankCandidates(
	candidates []models.Product,
	features ProfileFeatures,
	finalScores, contentScores, collaborativeScores TypeScores,
) []models.ScoredProduct {
	scored := make([]models.ScoredProduct, 0, len(candidates))
	for _, p := range candidates {
		scored = append(scored, models.ScoredProduct{
			Product:    p,
			FinalScore: finalScores[p.Type],
			Reasoning:  s.buildReasoning(p, features, contentScores, collaborativeScores),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})

	if len(scored) > topProductCount {
		scored = scored[:topProductCount]
	}
	return scored
}

// buildReasoning tests the reasoning conditions in their fixed order; any
// subset, including none, may apply.
func (s *RecommendationService) buildReasoning(
	p models.Product,
	features ProfileFeatures,
	contentScores, collaborativeScores TypeScores,
) []string {
	var reasons []string

	if models.RiskLevel(p.RiskLevel) <= features.RiskLevel+1 {
		reasons = append(reasons, models.ReasonRiskAppropriate)
	}
	if float64(p.MinimumAmount) <= affordabilityRate*float64(features.Income.Floor()) {
		reasons = append(reasons, models.ReasonIncomeAppropriate)
	}
	if contentScores[p.Type] > 0.6 {
		reasons = append(reasons, models.ReasonHighPreference)
	}
	if collaborativeScores[p.Type] > 0.6 {
		reasons = append(reasons, models.ReasonPeerPreferred)
	}
	if p.InterestRate > highInterestRate {
		reasons = append(reasons, models.ReasonHighInterestRate)
	}

	return reasons
}

// calculateConfidence accumulates evidence bonuses onto the 0.5 baseline and
// clamps at 1.0.
func (s *RecommendationService) calculateConfidence(profile *models.UserProfile, ranked []models.ScoredProduct) float64 {
	confidence := 0.5

	if profile.OnboardingCompleted {
		confidence += 0.2
	}
	if len(profile.History) > 10 {
		confidence += 0.1
	}
	if profile.AverageRating > 3.5 {
		confidence += 0.1
	}

	if len(ranked) > 0 {
		scores := make([]float64, len(ranked))
		for i, p := range ranked {
			scores[i] = p.FinalScore
		}
		if stat.Mean(scores, nil) > 0.7 {
			confidence += 0.1
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func (s *RecommendationService) buildExplanation(
	features ProfileFeatures,
	ranked []models.ScoredProduct,
	confidence float64,
) models.Explanation {
	riskName := features.RiskLevel.Name()

	var summary string
	switch {
	case len(ranked) == 0:
		summary = "조건에 맞는 추천 상품을 찾지 못했어요."
	case features.Goal.IsSet():
		summary = fmt.Sprintf("'%s' 목표와 %s 성향을 고려해 '%s'을(를) 추천드려요.",
			features.Goal.Label(), riskName, ranked[0].Name)
	default:
		summary = fmt.Sprintf("%s 성향의 고객님께 '%s'을(를) 추천드려요.", riskName, ranked[0].Name)
	}

	factors := []string{fmt.Sprintf("투자 성향: %s", riskName)}
	if features.Goal.IsSet() {
		factors = append(factors, fmt.Sprintf("주요 목표: %s", features.Goal.Label()))
	}
	factors = append(factors, fmt.Sprintf("추천 신뢰도: %.0f%%", confidence*100))

	return models.Explanation{Summary: summary, KeyFactors: factors}
}

func (s *RecommendationService) buildNextActions(
	features ProfileFeatures,
	profile *models.UserProfile,
	ranked []models.ScoredProduct,
) []models.NextAction {
	var actions []models.NextAction

	if len(ranked) >= 2 {
		actions = append(actions, models.NextAction{Type: models.NextActionCompare, Title: "상품 비교하기"})
	}
	if len(profile.Feedback) < 3 {
		actions = append(actions, models.NextAction{Type: models.NextActionFeedback, Title: "추천 평가하기"})
	}
	actions = append(actions, models.NextAction{Type: models.NextActionSimulate, Title: "수익 시뮬레이션"})
	if features.Goal.IsSet() {
		actions = append(actions, models.NextAction{Type: models.NextActionExplore, Title: "목표 상품 더보기"})
	}

	return actions
}

// recordView appends the view interaction to the user's capped history.
func (s *RecommendationService) recordView(ctx context.Context, userID string, result *models.RecommendationResult) {
	refs := make([]models.ProductRef, 0, len(result.Products))
	for _, p := range result.Products {
		refs = append(refs, models.ProductRef{ID: p.ID, Type: p.Type, Name: p.Name})
	}

	interaction := models.RecommendationInteraction{
		ID:               uuid.New(),
		RecommendationID: result.ID,
		Action:           models.ActionView,
		Products:         refs,
		Metadata:         map[string]any{"confidence": result.Confidence},
		Timestamp:        result.Timestamp,
	}

	if err := s.profiles.AppendRecommendationInteraction(ctx, userID, interaction); err != nil {
		metrics.InteractionPublishFailures.Inc()
		s.logger.WithError(err).WithField("user_id", userID).
			Warn("Failed to record recommendation interaction")
	}
}
