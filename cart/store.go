// Package cart exposes the session cart to the checkout flow. Reconciliation
// only ever reads it or clears it; mutation belongs to the storefront.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"checkout-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Store interface {
	Items(ctx context.Context, sessionKey string) ([]models.OrderItem, error)
	Clear(ctx context.Context, sessionKey string) error
}

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

func cartKey(sessionKey string) string {
	return fmt.Sprintf("cart:%s", sessionKey)
}

func (s *RedisStore) Items(ctx context.Context, sessionKey string) ([]models.OrderItem, error) {
	data, err := s.rdb.Get(ctx, cartKey(sessionKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.OrderItem{}, nil
		}
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	var items []models.OrderItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return items, nil
}

// Clear is idempotent; clearing an already-empty cart is a no-op.
func (s *RedisStore) Clear(ctx context.Context, sessionKey string) error {
	if err := s.rdb.Del(ctx, cartKey(sessionKey)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.logger.Info("Cart cleared", zap.String("session_key", sessionKey))
	return nil
}
