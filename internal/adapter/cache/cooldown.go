// Package cache holds Redis-backed short-lived coordination state.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore throttles repeat OTP sends per identifier.
type CooldownStore interface {
	Reserve(ctx context.Context, identifier string, ttl time.Duration) (bool, error)
}

// RedisCooldownStore implements CooldownStore on a shared Redis instance so
// the throttle holds across replicas.
type RedisCooldownStore struct {
	client *redis.Client
}

func NewRedisCooldownStore(client *redis.Client) *RedisCooldownStore {
	return &RedisCooldownStore{client: client}
}

// Reserve claims the send slot for identifier. It returns false when a send
// was already reserved inside the cooldown window.
func (s *RedisCooldownStore) Reserve(ctx context.Context, identifier string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, cooldownKey(identifier), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve otp cooldown: %w", err)
	}
	return ok, nil
}

func cooldownKey(identifier string) string {
	return "otp:cooldown:" + identifier
}

// NoopCooldownStore disables throttling. Used when Redis is not configured.
type NoopCooldownStore struct{}

func (NoopCooldownStore) Reserve(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
