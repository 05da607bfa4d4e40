package models

import (
	"time"

	"github.com/google/uuid"
)

// Reasoning labels attached to scored products, tested in order.
const (
	ReasonRiskAppropriate   = "risk-appropriate"
	ReasonIncomeAppropriate = "income-appropriate"
	ReasonHighPreference    = "high personal preference"
	ReasonPeerPreferred     = "preferred by similar customers"
	ReasonHighInterestRate  = "high interest rate"
)

// ScoredProduct is one ranked candidate with its hybrid score and the
// ordered reasoning labels that applied.
type ScoredProduct struct {
	Product
	FinalScore float64  `json:"final_score"`
	Reasoning  []string `json:"reasoning"`
}

// Explanation is the human-readable summary of one ranking result.
type Explanation struct {
	Summary    string   `json:"summary"`
	KeyFactors []string `json:"key_factors"`
}

// Next-action types suggested alongside a ranking result.
const (
	NextActionCompare  = "compare"
	NextActionFeedback = "feedback"
	NextActionSimulate = "simulate"
	NextActionExplore  = "explore"
)

// NextAction is one suggested follow-up, conditionally included.
type NextAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// RecommendationResult is the immutable output of one ranking invocation.
type RecommendationResult struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"user_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Products    []ScoredProduct `json:"products"`
	Confidence  float64         `json:"confidence"`
	Explanation Explanation     `json:"explanation"`
	NextActions []NextAction    `json:"next_actions"`
}

// RequestContext carries the transient situational signals of one ranking
// request. All fields are optional.
type RequestContext struct {
	SearchQuery     string       `json:"search_query,omitempty"`
	CurrentProducts []ProductRef `json:"current_products,omitempty"`
}

// FeedbackRequest is the payload of a feedback submission.
type FeedbackRequest struct {
	UserID           string    `json:"user_id" binding:"required" validate:"required"`
	RecommendationID uuid.UUID `json:"recommendation_id" binding:"required" validate:"required"`
	Rating           int       `json:"rating" binding:"required,min=1,max=5" validate:"required,min=1,max=5"`
	Feedback         string    `json:"feedback,omitempty" validate:"max=2000"`
}
