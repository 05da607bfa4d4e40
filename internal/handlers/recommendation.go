package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/internal/services"
	"github.com/finpick/finpick-server/pkg/models"
)

type RecommendationHandler struct {
	recommendations services.RecommendationServiceInterface
	feedback        services.FeedbackServiceInterface
	logger          *logrus.Logger
}

func NewRecommendationHandler(
	recommendations services.RecommendationServiceInterface,
	feedback services.FeedbackServiceInterface,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		recommendations: recommendations,
		feedback:        feedback,
		logger:          logger,
	}
}

// Get serves GET /api/v1/recommendations/:userId. The optional q parameter
// carries the user's free-text intent; holding lists product types the user
// already owns, comma separated.
func (h *RecommendationHandler) Get(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "User ID is required",
			},
		})
		return
	}

	reqCtx := &models.RequestContext{
		SearchQuery: c.Query("q"),
	}

	if holdingStr := c.Query("holding"); holdingStr != "" {
		for _, typeStr := range strings.Split(holdingStr, ",") {
			productType := models.ProductType(strings.TrimSpace(typeStr))
			if !productType.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": gin.H{
						"code":    "INVALID_PRODUCT_TYPE",
						"message": "Unknown product type in holding parameter",
					},
				})
				return
			}
			reqCtx.CurrentProducts = append(reqCtx.CurrentProducts, models.ProductRef{Type: productType})
		}
	}

	result, err := h.recommendations.GeneratePersonalizedRecommendations(c.Request.Context(), userID, reqCtx)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "User profile not found",
				},
			})
			return
		}

		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to generate recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECOMMENDATION_GENERATION_FAILED",
				"message": "Failed to generate recommendations",
			},
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecordFeedback serves POST /api/v1/feedback.
func (h *RecommendationHandler) RecordFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST_BODY",
				"message": "Invalid feedback format",
			},
		})
		return
	}

	if err := h.feedback.RecordUserFeedback(c.Request.Context(), &req); err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "User profile not found",
				},
			})
			return
		}

		h.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":           req.UserID,
			"recommendation_id": req.RecommendationID,
		}).Error("Failed to process feedback")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "FEEDBACK_PROCESSING_FAILED",
				"message": "Failed to process feedback",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "Feedback recorded successfully",
		"recommendation_id": req.RecommendationID,
	})
}
