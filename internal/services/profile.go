package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/internal/config"
	"github.com/finpick/finpick-server/internal/messaging"
	"github.com/finpick/finpick-server/pkg/models"
)

const defaultProfileCacheTTL = time.Hour

// InteractionPublisher emits recommendation interactions to the event
// stream. Publication is fire-and-forget and at-least-once.
type InteractionPublisher interface {
	PublishInteraction(ctx context.Context, userID string, interaction models.RecommendationInteraction) error
}

// ProfileService owns user profiles, their capped interaction history, the
// peer-similarity cohort and the per-user preference state.
type ProfileService struct {
	db        DatabasePool
	neo4j     neo4j.DriverWithContext
	cache     *redis.Client
	cacheTTL  time.Duration
	publisher InteractionPublisher
	logger    *logrus.Logger
}

func NewProfileService(
	db DatabasePool,
	neo4jDriver neo4j.DriverWithContext,
	cache *redis.Client,
	caching *config.CachingConfig,
	publisher InteractionPublisher,
	logger *logrus.Logger,
) *ProfileService {
	cacheTTL := defaultProfileCacheTTL
	if caching != nil && caching.ProfileTTL > 0 {
		cacheTTL = caching.ProfileTTL
	}
	return &ProfileService{
		db:        db,
		neo4j:     neo4jDriver,
		cache:     cache,
		cacheTTL:  cacheTTL,
		publisher: publisher,
		logger:    logger,
	}
}

// GetUserProfile resolves a stored profile, trying the hot cache first.
// A missing row yields ErrProfileNotFound; profiles are never fabricated.
func (s *ProfileService) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	cacheKey := profileCacheKey(userID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var profile models.UserProfile
			if json.Unmarshal([]byte(cached), &profile) == nil {
				return &profile, nil
			}
		}
	}

	row := s.db.QueryRow(ctx, `
		SELECT user_id, risk_level, primary_goal, income_bracket, age_group,
		       onboarding_completed, recommendation_history, feedback_history,
		       average_rating, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1`, userID)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrProfileNotFound)
		}
		return nil, fmt.Errorf("query user profile: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(profile); err == nil {
			s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return profile, nil
}

// UpsertUserProfile persists an onboarding profile and seeds the preference
// state for first-time users with the neutral base affinities, so feedback
// reinforcement has keys to act on. The seed carries no profile adjustments;
// content scoring applies those itself on every call.
func (s *ProfileService) UpsertUserProfile(ctx context.Context, profile *models.UserProfile) error {
	historyJSON, err := json.Marshal(profile.History)
	if err != nil {
		return fmt.Errorf("encode recommendation history: %w", err)
	}
	feedbackJSON, err := json.Marshal(profile.Feedback)
	if err != nil {
		return fmt.Errorf("encode feedback history: %w", err)
	}

	var riskLevel *int
	if profile.RiskLevel != nil {
		level := int(*profile.RiskLevel)
		riskLevel = &level
	}

	now := time.Now()
	_, err = s.db.Exec(ctx, `
		INSERT INTO user_profiles (
			user_id, risk_level, primary_goal, income_bracket, age_group,
			onboarding_completed, recommendation_history, feedback_history,
			average_rating, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			risk_level = EXCLUDED.risk_level,
			primary_goal = EXCLUDED.primary_goal,
			income_bracket = EXCLUDED.income_bracket,
			age_group = EXCLUDED.age_group,
			onboarding_completed = EXCLUDED.onboarding_completed,
			updated_at = EXCLUDED.updated_at`,
		profile.UserID, riskLevel, profile.PrimaryGoal.Label(),
		profile.IncomeBracket.Category(), string(profile.AgeGroup),
		profile.OnboardingCompleted, historyJSON, feedbackJSON,
		profile.AverageRating, now,
	)
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}

	if err := s.seedPreferenceState(ctx, profile); err != nil {
		return err
	}

	s.invalidateCache(ctx, profile.UserID)
	return nil
}

func (s *ProfileService) seedPreferenceState(ctx context.Context, profile *models.UserProfile) error {
	prefsJSON, err := json.Marshal(baseScores())
	if err != nil {
		return fmt.Errorf("encode preference seed: %w", err)
	}
	weightJSON, err := json.Marshal(models.RiskReturnWeight{})
	if err != nil {
		return fmt.Errorf("encode risk return seed: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO preference_state (user_id, product_type_prefs, risk_return_weight, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`,
		profile.UserID, prefsJSON, weightJSON, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("seed preference state: %w", err)
	}
	return nil
}

// GetPeerCohort returns up to limit similarity-ranked peers: ids and scores
// from the Neo4j SIMILAR_TO graph, profile features and histories from
// Postgres. An empty cohort is a valid, non-error outcome.
func (s *ProfileService) GetPeerCohort(ctx context.Context, userID string, limit int) ([]models.PeerProfile, error) {
	peerIDs, err := s.similarUserIDs(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity lookup: %w", err)
	}
	if len(peerIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT user_id, risk_level, primary_goal, income_bracket, age_group, recommendation_history
		FROM user_profiles
		WHERE user_id = ANY($1)`, peerIDs)
	if err != nil {
		return nil, fmt.Errorf("load peer profiles: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.PeerProfile, len(peerIDs))
	for rows.Next() {
		var (
			peer        models.PeerProfile
			riskLevel   *int
			goalLabel   *string
			incomeCat   *string
			ageGroup    *string
			historyJSON []byte
		)
		if err := rows.Scan(&peer.UserID, &riskLevel, &goalLabel, &incomeCat, &ageGroup, &historyJSON); err != nil {
			return nil, fmt.Errorf("scan peer profile: %w", err)
		}
		if riskLevel != nil {
			level := models.RiskLevel(*riskLevel)
			peer.RiskLevel = &level
		}
		if goalLabel != nil {
			peer.PrimaryGoal = models.ParseGoal(*goalLabel)
		}
		if incomeCat != nil {
			peer.IncomeBracket = models.ParseIncomeBracket(*incomeCat)
		}
		if ageGroup != nil {
			peer.AgeGroup = models.AgeGroup(*ageGroup)
		}
		if len(historyJSON) > 0 {
			if err := json.Unmarshal(historyJSON, &peer.History); err != nil {
				return nil, fmt.Errorf("decode peer history: %w", err)
			}
		}
		byID[peer.UserID] = peer
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peer profiles: %w", err)
	}

	// preserve the similarity ranking from the graph lookup
	cohort := make([]models.PeerProfile, 0, len(byID))
	for _, id := range peerIDs {
		if peer, ok := byID[id]; ok {
			cohort = append(cohort, peer)
		}
	}
	return cohort, nil
}

func (s *ProfileService) similarUserIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	session := s.neo4j.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `
		MATCH (u:User {id: $user_id})-[s:SIMILAR_TO]-(peer:User)
		RETURN peer.id AS user_id
		ORDER BY s.score DESC
		LIMIT $limit`

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"user_id": userID,
			"limit":   limit,
		})
		if err != nil {
			return nil, err
		}

		var ids []string
		for res.Next(ctx) {
			if id, ok := res.Record().Values[0].(string); ok {
				ids = append(ids, id)
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// GetPreferenceState reads the preference document without locking. A
// missing document is an empty state, not an error.
func (s *ProfileService) GetPreferenceState(ctx context.Context, userID string) (*models.PreferenceState, error) {
	state := &models.PreferenceState{
		UserID:           userID,
		ProductTypePrefs: make(map[models.ProductType]float64),
	}

	var prefsJSON, weightJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT product_type_prefs, risk_return_weight FROM preference_state WHERE user_id = $1`,
		userID,
	).Scan(&prefsJSON, &weightJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state, nil
		}
		return nil, fmt.Errorf("query preference state: %w", err)
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

// AppendRecommendationInteraction prepends the interaction to the capped
// newest-first history inside a row-locked transaction, then publishes the
// event to the interaction stream.
func (s *ProfileService) AppendRecommendationInteraction(ctx context.Context, userID string, interaction models.RecommendationInteraction) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin interaction transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var historyJSON []byte
	err = tx.QueryRow(ctx,
		`SELECT recommendation_history FROM user_profiles WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&historyJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %s: %w", userID, ErrProfileNotFound)
		}
		return fmt.Errorf("lock profile row: %w", err)
	}

	var history []models.RecommendationInteraction
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &history); err != nil {
			return fmt.Errorf("decode recommendation history: %w", err)
		}
	}

	history = prependCapped(history, interaction, models.RecommendationHistoryCap)

	updated, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode recommendation history: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE user_profiles SET recommendation_history = $2, updated_at = $3 WHERE user_id = $1`,
		userID, updated, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("persist recommendation history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit interaction transaction: %w", err)
	}

	s.invalidateCache(ctx, userID)

	if s.publisher != nil {
		if err := s.publisher.PublishInteraction(ctx, userID, interaction); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).
				Warn("Failed to publish interaction event")
		}
	}

	return nil
}

// GetInteractions returns the newest-first interaction log, truncated to
// limit when limit > 0.
func (s *ProfileService) GetInteractions(ctx context.Context, userID string, limit int) ([]models.RecommendationInteraction, error) {
	profile, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	history := profile.History
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// Graph weights per interaction action. Views carry no similarity signal;
// the collaborative scorer only counts positive actions.
var graphActionWeights = map[string]float64{
	models.ActionClick:   0.3,
	models.ActionSave:    0.5,
	models.ActionConvert: 1.0,
}

// ApplyInteractionEvent folds a consumed interaction event into the Neo4j
// similarity graph: the user's INTERACTED edges accumulate action weight, and
// SIMILAR_TO edges grow between users who touched the same products. Feedback
// events and view interactions are skipped.
func (s *ProfileService) ApplyInteractionEvent(ctx context.Context, event messaging.InteractionEvent) error {
	if event.Kind != messaging.EventKindInteraction || event.Interaction == nil {
		return nil
	}
	weight, ok := graphActionWeights[event.Interaction.Action]
	if !ok {
		return nil
	}

	productIDs := make([]string, 0, len(event.Interaction.Products))
	for _, ref := range event.Interaction.Products {
		if ref.ID != "" {
			productIDs = append(productIDs, ref.ID)
		}
	}
	if len(productIDs) == 0 {
		return nil
	}

	session := s.neo4j.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	cypher := `
		MERGE (u:User {id: $user_id})
		WITH u
		UNWIND $product_ids AS pid
		MERGE (p:Product {id: pid})
		MERGE (u)-[i:INTERACTED]->(p)
		ON CREATE SET i.weight = $weight
		ON MATCH SET i.weight = i.weight + $weight
		WITH u, p
		MATCH (peer:User)-[:INTERACTED]->(p)
		WHERE peer.id <> u.id
		MERGE (u)-[s:SIMILAR_TO]-(peer)
		ON CREATE SET s.score = $weight
		ON MATCH SET s.score = s.score + $weight`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, cypher, map[string]any{
			"user_id":     event.UserID,
			"product_ids": productIDs,
			"weight":      weight,
		})
	})
	if err != nil {
		return fmt.Errorf("refresh similarity graph: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  event.UserID,
		"action":   event.Interaction.Action,
		"products": len(productIDs),
	}).Debug("Similarity graph refreshed")

	return nil
}

func (s *ProfileService) invalidateCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, profileCacheKey(userID)).Err(); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate profile cache")
	}
}

func profileCacheKey(userID string) string {
	return fmt.Sprintf("user_profile:%s", userID)
}

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var (
		profile      models.UserProfile
		riskLevel    *int
		goalLabel    *string
		incomeCat    *string
		ageGroup     *string
		historyJSON  []byte
		feedbackJSON []byte
	)

	err := row.Scan(
		&profile.UserID, &riskLevel, &goalLabel, &incomeCat, &ageGroup,
		&profile.OnboardingCompleted, &historyJSON, &feedbackJSON,
		&profile.AverageRating, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if riskLevel != nil {
		level := models.RiskLevel(*riskLevel)
		profile.RiskLevel = &level
	}
	if goalLabel != nil {
		profile.PrimaryGoal = models.ParseGoal(*goalLabel)
	}
	if incomeCat != nil {
		profile.IncomeBracket = models.ParseIncomeBracket(*incomeCat)
	}
	if ageGroup != nil {
		profile.AgeGroup = models.AgeGroup(*ageGroup)
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &profile.History); err != nil {
			return nil, fmt.Errorf("decode recommendation history: %w", err)
		}
	}
	if len(feedbackJSON) > 0 {
		if err := json.Unmarshal(feedbackJSON, &profile.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback history: %w", err)
		}
	}

	return &profile, nil
}
