// internal/store/redisstore/pending.go
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"

	"github.com/redis/go-redis/v9"
)

// Pending stores the plan awaiting confirmation per user; entries expire after ttl.
type Pending struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ store.PendingActions = (*Pending)(nil)

func NewPending(client *redis.Client, ttl time.Duration) *Pending {
	return &Pending{redis: client, ttl: ttl}
}

func pendingKey(userID string) string {
	return "pending:" + userID
}

func (p *Pending) Put(ctx context.Context, userID string, plan *models.ActionPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal pending plan: %w", err)
	}
	return p.redis.Set(ctx, pendingKey(userID), data, p.ttl).Err()
}

// Take reads and deletes atomically so a plan is confirmed at most once.
func (p *Pending) Take(ctx context.Context, userID string) (*models.ActionPlan, error) {
	val, err := p.redis.GetDel(ctx, pendingKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("take pending plan: %w", err)
	}
	var plan models.ActionPlan
	if err := json.Unmarshal([]byte(val), &plan); err != nil {
		return nil, fmt.Errorf("decode pending plan: %w", err)
	}
	return &plan, nil
}

func (p *Pending) Discard(ctx context.Context, userID string) error {
	return p.redis.Del(ctx, pendingKey(userID)).Err()
}
