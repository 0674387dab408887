package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"checkout-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore backs the intent slot with Redis so it survives service and
// browser restarts. No TTL: staleness is the reconciler's concern, not the
// store's.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		logger: logger,
	}
}

func slotKey(key string) string {
	return fmt.Sprintf("payment_intent:%s", key)
}

func (s *RedisStore) Save(ctx context.Context, key, orderID, authSnapshot string) error {
	return s.write(ctx, key, newIntent(orderID, authSnapshot))
}

func (s *RedisStore) write(ctx context.Context, key string, in models.PaymentIntent) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	if err := s.rdb.Set(ctx, slotKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save intent: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*models.PaymentIntent, error) {
	data, err := s.rdb.Get(ctx, slotKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load intent: %w", err)
	}

	var in models.PaymentIntent
	if err := json.Unmarshal(data, &in); err != nil {
		// An unreadable slot is treated as absent; keeping it around
		// would wedge every later visit on the same garbage.
		s.logger.Warn("Discarding unreadable payment intent", zap.String("key", key), zap.Error(err))
		if delErr := s.rdb.Del(ctx, slotKey(key)).Err(); delErr != nil {
			return nil, fmt.Errorf("failed to discard unreadable intent: %w", delErr)
		}
		return nil, nil
	}
	return &in, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, slotKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear intent: %w", err)
	}
	return nil
}

func (s *RedisStore) RestoreAuthIfDropped(ctx context.Context, key, currentAuth string) (string, bool, error) {
	in, err := s.Load(ctx, key)
	if err != nil {
		return currentAuth, false, err
	}
	if in == nil || in.AuthSnapshot == "" {
		return currentAuth, false, nil
	}

	snapshot := in.AuthSnapshot
	in.AuthSnapshot = ""
	if err := s.write(ctx, key, *in); err != nil {
		return currentAuth, false, err
	}

	if currentAuth != "" {
		return currentAuth, false, nil
	}
	return snapshot, true, nil
}
