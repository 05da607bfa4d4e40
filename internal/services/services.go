package services

import (
	"github.com/finpick/finpick-server/internal/config"
	"github.com/finpick/finpick-server/internal/database"
	"github.com/finpick/finpick-server/internal/messaging"

	"github.com/sirupsen/logrus"
)

type Services struct {
	Auth           *AuthService
	Health         *HealthService
	RateLimit      *RateLimitService
	MessageBus     *messaging.MessageBus
	Profile        *ProfileService
	Catalog        *CatalogService
	Recommendation *RecommendationService
	Feedback       *FeedbackService
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	authService := NewAuthService(cfg, logger, db.Redis.Hot)
	rateLimitService := NewRateLimitService(cfg, logger, db.Redis.Hot)

	messageBus, err := messaging.NewMessageBus(cfg, logger)
	if err != nil {
		return nil, err
	}
	healthService := NewHealthService(cfg, logger, db, messageBus)

	contentScorer := NewContentScorer(logger)
	collaborativeScorer := NewCollaborativeScorer(logger)
	contextualScorer := NewContextualScorer(logger)

	profileService := NewProfileService(db.PG, db.Neo4j, db.Redis.Hot, &cfg.Engine.Caching, messageBus, logger)
	catalogService := NewCatalogService(db.PG, db.Redis.Warm, &cfg.Engine.Caching, logger)

	recommendationService := NewRecommendationService(
		profileService, catalogService,
		contentScorer, collaborativeScorer, contextualScorer,
		logger,
	)

	feedbackService := NewFeedbackService(db.PG, db.Redis.Hot, messageBus, logger)

	return &Services{
		Auth:           authService,
		Health:         healthService,
		RateLimit:      rateLimitService,
		MessageBus:     messageBus,
		Profile:        profileService,
		Catalog:        catalogService,
		Recommendation: recommendationService,
		Feedback:       feedbackService,
	}, nil
}
