package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	User           *UserHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, services.Health),
		Recommendation: NewRecommendationHandler(services.Recommendation, services.Feedback, logger),
		User:           NewUserHandler(logger, services.Profile),
	}
}
