package services

import (
	"context"

	"github.com/finpick/finpick-server/pkg/models"
)

// UserProfileServiceInterface defines the profile, cohort and preference
// collaborators consumed by the ranking and feedback paths.
type UserProfileServiceInterface interface {
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpsertUserProfile(ctx context.Context, profile *models.UserProfile) error
	GetPeerCohort(ctx context.Context, userID string, limit int) ([]models.PeerProfile, error)
	GetPreferenceState(ctx context.Context, userID string) (*models.PreferenceState, error)
	AppendRecommendationInteraction(ctx context.Context, userID string, interaction models.RecommendationInteraction) error
	GetInteractions(ctx context.Context, userID string, limit int) ([]models.RecommendationInteraction, error)
}

// CatalogServiceInterface supplies the candidate product pool. The ranker
// treats the full returned set as candidates; no filtering contract.
type CatalogServiceInterface interface {
	ActiveProducts(ctx context.Context) ([]models.Product, error)
}

// RecommendationServiceInterface is the public ranking operation.
type RecommendationServiceInterface interface {
	GeneratePersonalizedRecommendations(ctx context.Context, userID string, reqCtx *models.RequestContext) (*models.RecommendationResult, error)
}

// FeedbackServiceInterface is the public feedback operation.
type FeedbackServiceInterface interface {
	RecordUserFeedback(ctx context.Context, req *models.FeedbackRequest) error
}
