package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/internal/config"
	"github.com/finpick/finpick-server/internal/database"
	"github.com/finpick/finpick-server/internal/handlers"
	"github.com/finpick/finpick-server/internal/messaging"
	"github.com/finpick/finpick-server/internal/middleware"
	"github.com/finpick/finpick-server/internal/services"
	"github.com/finpick/finpick-server/internal/validation"
)

type App struct {
	config       *config.Config
	logger       *logrus.Logger
	db           *database.Database
	services     *services.Services
	handlers     *handlers.Handlers
	router       *gin.Engine
	stopConsumer context.CancelFunc
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	services, err := services.New(cfg, app.logger, db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	app.handlers = handlers.New(app.logger, services)

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}

	app.startInteractionConsumer()

	return app, nil
}

// startInteractionConsumer drains the interaction stream in the background,
// folding events into the Neo4j similarity graph. It runs until Shutdown
// cancels its context.
func (a *App) startInteractionConsumer() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopConsumer = cancel

	go func() {
		err := a.services.MessageBus.ConsumeEvents(ctx, func(event messaging.InteractionEvent) error {
			return a.services.Profile.ApplyInteractionEvent(ctx, event)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).Error("Interaction consumer exited")
		}
	}()
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.stopConsumer != nil {
		a.stopConsumer()
	}

	if err := a.services.MessageBus.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing message bus")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() error {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	schemaValidator, err := validation.NewSchemaValidator()
	if err != nil {
		return err
	}
	validationMW := middleware.NewValidationMiddleware(schemaValidator)

	router := gin.New()

	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	// Health check endpoint (no auth required)
	router.GET("/health", a.handlers.Health.Check)

	// Prometheus metrics endpoint (no auth required)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.Use(middleware.Auth(a.services.Auth, a.logger))
		api.Use(middleware.RateLimit(a.services.RateLimit, a.logger))

		api.GET("/recommendations/:userId", a.handlers.Recommendation.Get)
		api.POST("/feedback", validationMW.ValidateFeedback(), a.handlers.Recommendation.RecordFeedback)

		users := api.Group("/users")
		{
			users.GET("/:userId/profile", a.handlers.User.GetProfile)
			users.PUT("/:userId/profile", validationMW.ValidateUserProfile(), a.handlers.User.UpdateProfile)
			users.GET("/:userId/history", a.handlers.User.GetHistory)
		}
	}

	a.router = router
	return nil
}
