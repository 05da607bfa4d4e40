package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/stat"

	"github.com/finpick/finpick-server/internal/metrics"
	"github.com/finpick/finpick-server/pkg/models"
)

const (
	reinforcementStep = 0.05
	riskReturnStep    = 0.1
	preferenceCeiling = 1.0
)

// FeedbackService consumes satisfaction ratings and nudges the stored
// preference state used by future content scoring.
//
// The whole adaptation runs inside one transaction with the profile and
// preference rows locked, so concurrent feedback for the same user is
// serialized and read-modify-write increments are never lost. Nothing is
// considered applied unless the transaction commits.
type FeedbackService struct {
	db        DatabasePool
	cache     *redis.Client
	publisher FeedbackPublisher
	validate  *validator.Validate
	logger    *logrus.Logger
}

// FeedbackPublisher emits feedback events to the interaction stream.
// Publication is fire-and-forget.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, userID string, record models.FeedbackRecord) error
}

func NewFeedbackService(db DatabasePool, cache *redis.Client, publisher FeedbackPublisher, logger *logrus.Logger) *FeedbackService {
	return &FeedbackService{
		db:        db,
		cache:     cache,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
	}
}

// RecordUserFeedback appends the feedback record, recomputes the running
// average and applies the rating-dependent preference adaptation. A rating
// of exactly 3 is neutral and adapts nothing.
func (s *FeedbackService) RecordUserFeedback(ctx context.Context, req *models.FeedbackRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid feedback: %w", err)
	}

	record := models.FeedbackRecord{
		ID:               uuid.New(),
		RecommendationID: req.RecommendationID,
		Rating:           req.Rating,
		Feedback:         req.Feedback,
		Timestamp:        time.Now(),
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin feedback transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.appendFeedback(ctx, tx, req.UserID, record); err != nil {
		return err
	}

	adaptation := "none"
	switch {
	case req.Rating >= 4:
		adaptation = "reinforce"
		if err := s.reinforcePreferences(ctx, tx, req.UserID); err != nil {
			return err
		}
	case req.Rating <= 2:
		adaptation = "risk_return"
		if err := s.adjustRiskReturnWeights(ctx, tx, req.UserID, req.Feedback); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit feedback transaction: %w", err)
	}

	metrics.FeedbackProcessed.WithLabelValues(adaptation).Inc()
	s.invalidateProfileCache(ctx, req.UserID)
	s.publishFeedback(ctx, req.UserID, record)

	s.logger.WithFields(logrus.Fields{
		"user_id":           req.UserID,
		"recommendation_id": req.RecommendationID,
		"rating":            req.Rating,
		"adaptation":        adaptation,
	}).Info("Feedback recorded")

	return nil
}

// appendFeedback prepends the record to the capped feedback log and
// recomputes the running average rating over the capped set.
func (s *FeedbackService) appendFeedback(ctx context.Context, tx pgx.Tx, userID string, record models.FeedbackRecord) error {
	var historyJSON []byte
	err := tx.QueryRow(ctx,
		`SELECT feedback_history FROM user_profiles WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&historyJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %s: %w", userID, ErrProfileNotFound)
		}
		return fmt.Errorf("lock profile row: %w", err)
	}

	var history []models.FeedbackRecord
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &history); err != nil {
			return fmt.Errorf("decode feedback history: %w", err)
		}
	}

	history = prependCapped(history, record, models.FeedbackHistoryCap)

	ratings := make([]float64, len(history))
	for i, f := range history {
		ratings[i] = float64(f.Rating)
	}
	average := stat.Mean(ratings, nil)

	updated, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode feedback history: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE user_profiles SET feedback_history = $2, average_rating = $3, updated_at = $4 WHERE user_id = $1`,
		userID, updated, average, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("persist feedback history: %w", err)
	}
	return nil
}

// reinforcePreferences raises every key in the user's current inferred
// product-type preference mapping, clamped at the ceiling. An empty mapping
// reinforces nothing.
func (s *FeedbackService) reinforcePreferences(ctx context.Context, tx pgx.Tx, userID string) error {
	state, err := lockPreferenceState(ctx, tx, userID)
	if err != nil {
		return err
	}

	for t, v := range state.ProductTypePrefs {
		state.ProductTypePrefs[t] = clampCeiling(v + reinforcementStep)
	}

	return savePreferenceState(ctx, tx, state)
}

// adjustRiskReturnWeights inspects the free text of a negative rating. The
// two keyword checks are independent and may both fire.
func (s *FeedbackService) adjustRiskReturnWeights(ctx context.Context, tx pgx.Tx, userID, feedback string) error {
	state, err := lockPreferenceState(ctx, tx, userID)
	if err != nil {
		return err
	}

	text := norm.NFC.String(feedback)
	changed := false

	if strings.Contains(text, "위험") || strings.Contains(text, "안전") {
		state.RiskReturnWeight.Safety = clampCeiling(state.RiskReturnWeight.Safety + riskReturnStep)
		changed = true
	}
	if strings.Contains(text, "금리") || strings.Contains(text, "수익") {
		state.RiskReturnWeight.Profitability = clampCeiling(state.RiskReturnWeight.Profitability + riskReturnStep)
		changed = true
	}

	if !changed {
		return nil
	}
	return savePreferenceState(ctx, tx, state)
}

// lockPreferenceState reads the per-user preference document under a row
// lock, initializing an empty document for first-time users.
func lockPreferenceState(ctx context.Context, tx pgx.Tx, userID string) (*models.PreferenceState, error) {
	state := &models.PreferenceState{
		UserID:           userID,
		ProductTypePrefs: make(map[models.ProductType]float64),
	}

	var prefsJSON, weightJSON []byte
	err := tx.QueryRow(ctx,
		`SELECT product_type_prefs, risk_return_weight FROM preference_state WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&prefsJSON, &weightJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state, nil
		}
		return nil, fmt.Errorf("lock preference state: %w", err)
	}

	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &state.ProductTypePrefs); err != nil {
			return nil, fmt.Errorf("decode product type prefs: %w", err)
		}
	}
	if len(weightJSON) > 0 {
		if err := json.Unmarshal(weightJSON, &state.RiskReturnWeight); err != nil {
			return nil, fmt.Errorf("decode risk return weight: %w", err)
		}
	}

	return state, nil
}

func savePreferenceState(ctx context.Context, tx pgx.Tx, state *models.PreferenceState) error {
	prefsJSON, err := json.Marshal(state.ProductTypePrefs)
	if err != nil {
		return fmt.Errorf("encode product type prefs: %w", err)
	}
	weightJSON, err := json.Marshal(state.RiskReturnWeight)
	if err != nil {
		return fmt.Errorf("encode risk return weight: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO preference_state (user_id, product_type_prefs, risk_return_weight, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET product_type_prefs = EXCLUDED.product_type_prefs,
		     risk_return_weight = EXCLUDED.risk_return_weight,
		     updated_at = EXCLUDED.updated_at`,
		state.UserID, prefsJSON, weightJSON, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("persist preference state: %w", err)
	}
	return nil
}

func (s *FeedbackService) invalidateProfileCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	key := fmt.Sprintf("user_profile:%s", userID)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate profile cache")
	}
}

func (s *FeedbackService) publishFeedback(ctx context.Context, userID string, record models.FeedbackRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishFeedback(ctx, userID, record); err != nil {
		metrics.InteractionPublishFailures.Inc()
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to publish feedback event")
	}
}

// prependCapped inserts the newest entry at the head and evicts the oldest
// entries beyond the cap.
func prependCapped[T any](history []T, entry T, limit int) []T {
	history = append([]T{entry}, history...)
	if len(history) > limit {
		history = history[:limit]
	}
	return history
}

func clampCeiling(v float64) float64 {
	if v > preferenceCeiling {
		return preferenceCeiling
	}
	return v
}
