package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finpick/finpick-server/internal/services"
	"github.com/finpick/finpick-server/pkg/models"
)

type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) GeneratePersonalizedRecommendations(ctx context.Context, userID string, reqCtx *models.RequestContext) (*models.RecommendationResult, error) {
	args := m.Called(ctx, userID, reqCtx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecommendationResult), args.Error(1)
}

type MockFeedbackService struct {
	mock.Mock
}

func (m *MockFeedbackService) RecordUserFeedback(ctx context.Context, req *models.FeedbackRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func sampleResult(userID string) *models.RecommendationResult {
	return &models.RecommendationResult{
		ID:        uuid.New(),
		UserID:    userID,
		Timestamp: time.Now(),
		Products: []models.ScoredProduct{
			{
				Product: models.Product{
					ID: "dep-1", Name: "안심 정기예금", Type: models.ProductDeposit,
					Bank: "한빛은행", InterestRate: 3.2, RiskLevel: 1, Active: true,
				},
				FinalScore: 0.85,
				Reasoning:  []string{models.ReasonRiskAppropriate},
			},
		},
		Confidence: 0.7,
		Explanation: models.Explanation{
			Summary:    "안정형 성향의 고객님께 '안심 정기예금'을(를) 추천드려요.",
			KeyFactors: []string{"투자 성향: 안정형"},
		},
	}
}

func TestRecommendationHandler_Get(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(svc services.RecommendationServiceInterface) *gin.Engine {
		handler := NewRecommendationHandler(svc, nil, testLogger())
		router := gin.New()
		router.GET("/api/v1/recommendations/:userId", handler.Get)
		return router
	}

	t.Run("returns ranked products", func(t *testing.T) {
		mockSvc := new(MockRecommendationService)
		mockSvc.On("GeneratePersonalizedRecommendations", mock.Anything, "user-1", mock.Anything).
			Return(sampleResult("user-1"), nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/recommendations/user-1", nil)
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var body models.RecommendationResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "user-1", body.UserID)
		assert.Len(t, body.Products, 1)
		mockSvc.AssertExpectations(t)
	})

	t.Run("query and holding parameters feed the request context", func(t *testing.T) {
		mockSvc := new(MockRecommendationService)
		mockSvc.On("GeneratePersonalizedRecommendations", mock.Anything, "user-1",
			mock.MatchedBy(func(reqCtx *models.RequestContext) bool {
				return reqCtx.SearchQuery == "안전한 상품" &&
					len(reqCtx.CurrentProducts) == 2 &&
					reqCtx.CurrentProducts[0].Type == models.ProductDeposit &&
					reqCtx.CurrentProducts[1].Type == models.ProductSavings
			})).
			Return(sampleResult("user-1"), nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET",
			"/api/v1/recommendations/user-1?q=%EC%95%88%EC%A0%84%ED%95%9C%20%EC%83%81%ED%92%88&holding=deposit,savings", nil)
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown holding type is rejected", func(t *testing.T) {
		mockSvc := new(MockRecommendationService)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/recommendations/user-1?holding=pension", nil)
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_PRODUCT_TYPE")
		mockSvc.AssertNotCalled(t, "GeneratePersonalizedRecommendations")
	})

	t.Run("unknown user yields 404", func(t *testing.T) {
		mockSvc := new(MockRecommendationService)
		mockSvc.On("GeneratePersonalizedRecommendations", mock.Anything, "ghost", mock.Anything).
			Return(nil, services.ErrProfileNotFound)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/recommendations/ghost", nil)
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "USER_NOT_FOUND")
	})

	t.Run("pipeline failure yields 500", func(t *testing.T) {
		mockSvc := new(MockRecommendationService)
		mockSvc.On("GeneratePersonalizedRecommendations", mock.Anything, "user-1", mock.Anything).
			Return(nil, errors.New("catalog unavailable"))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/recommendations/user-1", nil)
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "RECOMMENDATION_GENERATION_FAILED")
	})
}

func TestRecommendationHandler_RecordFeedback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(svc services.FeedbackServiceInterface) *gin.Engine {
		handler := NewRecommendationHandler(nil, svc, testLogger())
		router := gin.New()
		router.POST("/api/v1/feedback", handler.RecordFeedback)
		return router
	}

	validBody := func() []byte {
		body, _ := json.Marshal(models.FeedbackRequest{
			UserID:           "user-1",
			RecommendationID: uuid.New(),
			Rating:           5,
			Feedback:         "추천이 마음에 들어요",
		})
		return body
	}

	t.Run("records valid feedback", func(t *testing.T) {
		mockSvc := new(MockFeedbackService)
		mockSvc.On("RecordUserFeedback", mock.Anything,
			mock.MatchedBy(func(req *models.FeedbackRequest) bool {
				return req.UserID == "user-1" && req.Rating == 5
			})).
			Return(nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/feedback", bytes.NewReader(validBody()))
		req.Header.Set("Content-Type", "application/json")
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "recommendation_id")
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		mockSvc := new(MockFeedbackService)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/feedback", bytes.NewReader([]byte(`{"rating":`)))
		req.Header.Set("Content-Type", "application/json")
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "RecordUserFeedback")
	})

	t.Run("unknown user yields 404", func(t *testing.T) {
		mockSvc := new(MockFeedbackService)
		mockSvc.On("RecordUserFeedback", mock.Anything, mock.Anything).
			Return(services.ErrProfileNotFound)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/feedback", bytes.NewReader(validBody()))
		req.Header.Set("Content-Type", "application/json")
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "USER_NOT_FOUND")
	})

	t.Run("processing failure yields 500", func(t *testing.T) {
		mockSvc := new(MockFeedbackService)
		mockSvc.On("RecordUserFeedback", mock.Anything, mock.Anything).
			Return(errors.New("database unavailable"))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/feedback", bytes.NewReader(validBody()))
		req.Header.Set("Content-Type", "application/json")
		newRouter(mockSvc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "FEEDBACK_PROCESSING_FAILED")
	})
}
