package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
)

const keyPrefix = "notif:"

// Store is the subset of *redis.Client the dedup sink needs.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// DedupSink wraps another sink and drops notifications whose idempotency key was already
// delivered within the TTL window. Redelivered webhooks therefore reach donors once.
type DedupSink struct {
	store  Store
	next   ports.NotificationSink
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.NotificationSink = (*DedupSink)(nil)

func NewDedupSink(store Store, next ports.NotificationSink, ttl time.Duration, logger *slog.Logger) *DedupSink {
	return &DedupSink{store: store, next: next, ttl: ttl, logger: logger}
}

func (s *DedupSink) Publish(ctx context.Context, n domain.Notification) error {
	if n.IdempotencyKey == "" {
		return s.next.Publish(ctx, n)
	}
	key := keyPrefix + n.IdempotencyKey

	// Atomically claim the key; only the first delivery wins.
	claimed, err := s.store.SetNX(ctx, key, time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis SETNX failed: %w", err)
	}
	if !claimed {
		s.logger.Info("duplicate notification suppressed", "kind", n.Kind, "idempotency_key", n.IdempotencyKey)
		return nil
	}

	if err := s.next.Publish(ctx, n); err != nil {
		// Release the claim so the provider's redelivery can try again.
		if delErr := s.store.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			s.logger.Error("failed to release notification claim", "key", key, "error", delErr)
		}
		return err
	}
	return nil
}
