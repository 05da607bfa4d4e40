package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/internal/config"
	"github.com/finpick/finpick-server/pkg/models"
)

const (
	catalogCacheKey        = "catalog:active_products"
	defaultCatalogCacheTTL = 15 * time.Minute
)

// CatalogService supplies the candidate product pool from the external
// product catalog, with a warm cache in front. The pool is small (tens of
// products), so the whole active set is fetched per request.
type CatalogService struct {
	db       DatabasePool
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *logrus.Logger
}

func NewCatalogService(db DatabasePool, cache *redis.Client, caching *config.CachingConfig, logger *logrus.Logger) *CatalogService {
	cacheTTL := defaultCatalogCacheTTL
	if caching != nil && caching.CatalogTTL > 0 {
		cacheTTL = caching.CatalogTTL
	}
	return &CatalogService{db: db, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ActiveProducts returns all active catalog entries in catalog order. The
// ranker treats the full returned set as candidates.
func (s *CatalogService) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, catalogCacheKey).Result(); err == nil {
			var products []models.Product
			if json.Unmarshal([]byte(cached), &products) == nil {
				return products, nil
			}
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, name, type, bank, interest_rate, risk_level, minimum_amount, active
		FROM products
		WHERE active = true
		ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query product catalog: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Bank, &p.InterestRate, &p.RiskLevel, &p.MinimumAmount, &p.Active); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product catalog: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(products); err == nil {
			s.cache.Set(ctx, catalogCacheKey, data, s.cacheTTL)
		}
	}

	return products, nil
}
