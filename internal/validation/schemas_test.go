package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidator_ValidateUserProfile(t *testing.T) {
	sv, err := NewSchemaValidator()
	require.NoError(t, err)

	t.Run("complete onboarding payload passes", func(t *testing.T) {
		result := sv.ValidateUserProfile(map[string]interface{}{
			"risk_level":           3,
			"primary_goal":         "안전한 저축",
			"income_bracket":       "middle",
			"age_group":            "30대",
			"onboarding_completed": true,
		})

		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("partial payload passes", func(t *testing.T) {
		result := sv.ValidateUserProfile(map[string]interface{}{
			"risk_level": 1,
		})

		assert.True(t, result.Valid)
	})

	t.Run("risk level outside range fails", func(t *testing.T) {
		result := sv.ValidateUserProfile(map[string]interface{}{
			"risk_level": 6,
		})

		assert.False(t, result.Valid)
		require.NotEmpty(t, result.Errors)
		assert.Equal(t, "risk_level", result.Errors[0].Field)
	})

	t.Run("unknown goal fails", func(t *testing.T) {
		result := sv.ValidateUserProfile(map[string]interface{}{
			"primary_goal": "세계 정복",
		})

		assert.False(t, result.Valid)
	})

	t.Run("unexpected fields fail", func(t *testing.T) {
		result := sv.ValidateUserProfile(map[string]interface{}{
			"risk_level": 3,
			"is_admin":   true,
		})

		assert.False(t, result.Valid)
	})
}

func TestSchemaValidator_ValidateFeedback(t *testing.T) {
	sv, err := NewSchemaValidator()
	require.NoError(t, err)

	t.Run("rating with free text passes", func(t *testing.T) {
		result := sv.ValidateFeedback(map[string]interface{}{
			"user_id":           "user-1",
			"recommendation_id": "550e8400-e29b-41d4-a716-446655440000",
			"rating":            4,
			"feedback":          "금리가 마음에 들어요",
		})

		assert.True(t, result.Valid)
	})

	t.Run("missing rating fails", func(t *testing.T) {
		result := sv.ValidateFeedback(map[string]interface{}{
			"user_id":           "user-1",
			"recommendation_id": "550e8400-e29b-41d4-a716-446655440000",
		})

		assert.False(t, result.Valid)
	})

	t.Run("zero rating fails", func(t *testing.T) {
		result := sv.ValidateFeedback(map[string]interface{}{
			"user_id":           "user-1",
			"recommendation_id": "550e8400-e29b-41d4-a716-446655440000",
			"rating":            0,
		})

		assert.False(t, result.Valid)
	})

	t.Run("raw JSON string is accepted as input", func(t *testing.T) {
		result := sv.ValidateJSONString("feedback",
			`{"user_id":"user-1","recommendation_id":"550e8400-e29b-41d4-a716-446655440000","rating":5}`)

		assert.True(t, result.Valid)
	})

	t.Run("unknown schema name is reported", func(t *testing.T) {
		result := sv.ValidateJSONString("missing", `{}`)

		assert.False(t, result.Valid)
		require.NotEmpty(t, result.Errors)
		assert.Equal(t, "SCHEMA_NOT_FOUND", result.Errors[0].Code)
	})
}

func TestValidationResult_ToAPIError(t *testing.T) {
	t.Run("valid result has no error envelope", func(t *testing.T) {
		result := &ValidationResult{Valid: true}

		assert.Nil(t, result.ToAPIError())
	})

	t.Run("errors are grouped per field", func(t *testing.T) {
		result := &ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: "rating", Message: "Must be less than or equal to 5", Code: "VALIDATION_ERROR"},
			},
		}

		envelope := result.ToAPIError()
		require.NotNil(t, envelope)

		errObj := envelope["error"].(map[string]interface{})
		assert.Equal(t, "VALIDATION_ERROR", errObj["code"])

		details := errObj["details"].(map[string]interface{})
		fieldErrors := details["fieldErrors"].(map[string][]string)
		assert.Contains(t, fieldErrors, "rating")
	})
}
