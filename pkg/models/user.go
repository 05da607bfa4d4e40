package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// RecommendationHistoryCap bounds the per-user interaction log.
	RecommendationHistoryCap = 50
	// FeedbackHistoryCap bounds the per-user feedback log.
	FeedbackHistoryCap = 100
)

// UserProfile is one end user's elicited financial profile. User ids are
// opaque stable identifiers issued by the external identity provider.
//
// Optional onboarding fields use explicit zero/nil sentinels: a nil RiskLevel
// means the risk assessment was never completed, GoalUnknown means no goal was
// stated. Scoring degrades such fields to neutral defaults, never errors.
type UserProfile struct {
	UserID              string                      `json:"user_id" db:"user_id"`
	RiskLevel           *RiskLevel                  `json:"risk_level,omitempty" db:"risk_level"`
	PrimaryGoal         Goal                        `json:"primary_goal" db:"primary_goal"`
	IncomeBracket       IncomeBracket               `json:"income_bracket" db:"income_bracket"`
	AgeGroup            AgeGroup                    `json:"age_group" db:"age_group"`
	OnboardingCompleted bool                        `json:"onboarding_completed" db:"onboarding_completed"`
	History             []RecommendationInteraction `json:"recommendation_history" db:"recommendation_history"`
	Feedback            []FeedbackRecord            `json:"feedback_history" db:"feedback_history"`
	AverageRating       float64                     `json:"average_rating" db:"average_rating"`
	CreatedAt           time.Time                   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at" db:"updated_at"`
}

// Interaction actions recorded against a recommendation.
const (
	ActionView    = "view"
	ActionClick   = "click"
	ActionSave    = "save"
	ActionConvert = "convert"
)

// RecommendationInteraction is one entry of the capped, newest-first
// per-user interaction log.
type RecommendationInteraction struct {
	ID               uuid.UUID      `json:"id"`
	RecommendationID uuid.UUID      `json:"recommendation_id"`
	Action           string         `json:"action"`
	Products         []ProductRef   `json:"products,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// FeedbackRecord is one satisfaction rating with optional free text,
// appended newest-first to the capped feedback log.
type FeedbackRecord struct {
	ID               uuid.UUID `json:"id"`
	RecommendationID uuid.UUID `json:"recommendation_id"`
	Rating           int       `json:"rating"` // 1-5
	Feedback         string    `json:"feedback,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// PeerProfile is a read-only projection of another user's profile plus their
// interaction history, used only as collaborative scoring input.
type PeerProfile struct {
	UserID        string                      `json:"user_id"`
	RiskLevel     *RiskLevel                  `json:"risk_level,omitempty"`
	PrimaryGoal   Goal                        `json:"primary_goal"`
	IncomeBracket IncomeBracket               `json:"income_bracket"`
	AgeGroup      AgeGroup                    `json:"age_group"`
	History       []RecommendationInteraction `json:"history,omitempty"`
}

// RiskReturnWeight carries the two adaptable emphasis weights nudged by
// negative feedback.
type RiskReturnWeight struct {
	Safety        float64 `json:"safety"`
	Profitability float64 `json:"profitability"`
}

// PreferenceState is the per-user preference document mutated by the feedback
// adapter and consumed by future content scoring. Updates are read-modify-
// write and must be serialized per user by the storage layer.
type PreferenceState struct {
	UserID           string                  `json:"user_id" db:"user_id"`
	ProductTypePrefs map[ProductType]float64 `json:"product_type_prefs" db:"product_type_prefs"`
	RiskReturnWeight RiskReturnWeight        `json:"risk_return_weight" db:"risk_return_weight"`
	UpdatedAt        time.Time               `json:"updated_at" db:"updated_at"`
}
