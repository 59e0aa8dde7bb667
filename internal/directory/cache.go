package directory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/redis"
)

const organizationKeyPrefix = "directory:org:tax:"

// RedisOrganizationCache is a cache-aside OrganizationCache. Redis errors degrade to misses.
type RedisOrganizationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisOrganizationCache creates a cache with entries expiring after ttl.
func NewRedisOrganizationCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisOrganizationCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisOrganizationCache{client: client, ttl: ttl, logger: logger}
}

// Get implements OrganizationCache.
func (c *RedisOrganizationCache) Get(ctx context.Context, taxID string) (*models.Organization, bool) {
	var org models.Organization
	ok, err := c.client.GetJSON(ctx, organizationKeyPrefix+taxID, &org)
	if err != nil {
		c.logger.Warn("organization cache read failed", zap.String("tax_id", taxID), zap.Error(err))
		return nil, false
	}
	if !ok || org.TaxID != taxID {
		return nil, false
	}
	return &org, true
}

// Set implements OrganizationCache.
func (c *RedisOrganizationCache) Set(ctx context.Context, org *models.Organization) {
	if err := c.client.SetJSON(ctx, organizationKeyPrefix+org.TaxID, org, c.ttl); err != nil {
		c.logger.Warn("organization cache write failed", zap.String("tax_id", org.TaxID), zap.Error(err))
	}
}

// Invalidate implements OrganizationCache.
func (c *RedisOrganizationCache) Invalidate(ctx context.Context, taxIDs ...string) {
	keys := make([]string, 0, len(taxIDs))
	for _, id := range taxIDs {
		if id != "" {
			keys = append(keys, organizationKeyPrefix+id)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("organization cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
