package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/internal/services"
	"github.com/finpick/finpick-server/pkg/models"
)

type UserHandler struct {
	logger   *logrus.Logger
	profiles services.UserProfileServiceInterface
}

func NewUserHandler(logger *logrus.Logger, profiles services.UserProfileServiceInterface) *UserHandler {
	return &UserHandler{
		logger:   logger,
		profiles: profiles,
	}
}

// profileUpdateRequest carries the partial profile update; absent fields keep
// their stored values. The body is schema-validated by the middleware before
// binding.
type profileUpdateRequest struct {
	RiskLevel           *int    `json:"risk_level"`
	PrimaryGoal         *string `json:"primary_goal"`
	IncomeBracket       *string `json:"income_bracket"`
	AgeGroup            *string `json:"age_group"`
	OnboardingCompleted *bool   `json:"onboarding_completed"`
}

func (h *UserHandler) GetProfile(c *gin.Context) {
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

	profile, err := h.profiles.GetUserProfile(c.Request.Context(), userID)
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

		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to get user profile")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "QUERY_FAILED",
				"message": "Failed to retrieve user profile",
			},
		})
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
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

	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST_BODY",
				"message": "Invalid profile format",
			},
		})
		return
	}

	profile, err := h.profiles.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			// First onboarding write creates the profile.
			profile = &models.UserProfile{UserID: userID}
		} else {
			h.logger.WithError(err).WithField("user_id", userID).Error("Failed to load profile for update")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "QUERY_FAILED",
					"message": "Failed to retrieve user profile",
				},
			})
			return
		}
	}

	if req.RiskLevel != nil {
		level := models.RiskLevel(*req.RiskLevel).Clamped()
		profile.RiskLevel = &level
	}
	if req.PrimaryGoal != nil {
		profile.PrimaryGoal = models.ParseGoal(*req.PrimaryGoal)
	}
	if req.IncomeBracket != nil {
		profile.IncomeBracket = models.ParseIncomeBracket(*req.IncomeBracket)
	}
	if req.AgeGroup != nil {
		profile.AgeGroup = models.AgeGroup(*req.AgeGroup)
	}
	if req.OnboardingCompleted != nil {
		profile.OnboardingCompleted = *req.OnboardingCompleted
	}

	if err := h.profiles.UpsertUserProfile(c.Request.Context(), profile); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to update user profile")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "UPDATE_FAILED",
				"message": "Failed to update user profile",
			},
		})
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) GetHistory(c *gin.Context) {
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

	limit := models.RecommendationHistoryCap
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= models.RecommendationHistoryCap {
			limit = parsed
		}
	}

	interactions, err := h.profiles.GetInteractions(c.Request.Context(), userID, limit)
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

		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to get recommendation history")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "QUERY_FAILED",
				"message": "Failed to retrieve recommendation history",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"history": interactions,
	})
}
