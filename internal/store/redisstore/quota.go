// Package redisstore keeps short-lived assistant state in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"

	"github.com/redis/go-redis/v9"
)

// QuotaCache caches plan snapshots in front of a QuotaStatus. Upgrade options are not cached.
type QuotaCache struct {
	base  store.QuotaStatus
	redis *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

var _ store.QuotaStatus = (*QuotaCache)(nil)

func NewQuotaCache(base store.QuotaStatus, client *redis.Client, ttl time.Duration, log logger.Logger) *QuotaCache {
	return &QuotaCache{
		base:  base,
		redis: client,
		ttl:   ttl,
		log:   log.WithFields(map[string]interface{}{"component": "quota-cache"}),
	}
}

func quotaKey(tenantID string) string {
	return "quota:" + tenantID
}

func (c *QuotaCache) Plan(ctx context.Context, tenantID string) (*models.PlanStatus, error) {
	key := quotaKey(tenantID)
	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var ps models.PlanStatus
		if err := json.Unmarshal([]byte(val), &ps); err == nil {
			return &ps, nil
		}
	}

	ps, err := c.base.Plan(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(ps)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("failed to cache plan status", map[string]interface{}{"tenantId": tenantID, "error": err.Error()})
	}
	return ps, nil
}

func (c *QuotaCache) UpgradeOptions(ctx context.Context, planID string) ([]models.UpgradeOption, error) {
	return c.base.UpgradeOptions(ctx, planID)
}

// Invalidate drops the cached snapshot after an emission so the next check sees the new count.
func (c *QuotaCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.redis.Del(ctx, quotaKey(tenantID)).Err()
}
