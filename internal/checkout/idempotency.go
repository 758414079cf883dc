package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type TokenState int

const (
	// TokenReserved means the caller now owns the token and must Complete
	// or Release it.
	TokenReserved TokenState = iota
	TokenInFlight
	TokenCompleted
)

// TokenStore guards order placement against duplicate submission.
type TokenStore interface {
	Reserve(ctx context.Context, accountID, token string) (TokenState, *Receipt, error)
	Complete(ctx context.Context, accountID, token string, r *Receipt) error
	Release(ctx context.Context, accountID, token string) error
}

const pendingMarker = "pending"

type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenStore(client *redis.Client, ttl time.Duration) *RedisTokenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisTokenStore{client: client, ttl: ttl}
}

var _ TokenStore = (*RedisTokenStore)(nil)

func (s *RedisTokenStore) Reserve(ctx context.Context, accountID, token string) (TokenState, *Receipt, error) {
	key := tokenKey(accountID, token)
	// Two rounds cover a key that expires between SETNX and GET.
	for i := 0; i < 2; i++ {
		ok, err := s.client.SetNX(ctx, key, pendingMarker, s.ttl).Result()
		if err != nil {
			return 0, nil, fmt.Errorf("redis setnx failed: %w", err)
		}
		if ok {
			return TokenReserved, nil, nil
		}

		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return 0, nil, fmt.Errorf("redis get failed: %w", err)
		}
		if val == pendingMarker {
			return TokenInFlight, nil, nil
		}
		var r Receipt
		if err := json.Unmarshal([]byte(val), &r); err != nil {
			return 0, nil, fmt.Errorf("unmarshal receipt failed: %w", err)
		}
		return TokenCompleted, &r, nil
	}
	return TokenInFlight, nil, nil
}

func (s *RedisTokenStore) Complete(ctx context.Context, accountID, token string, r *Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt failed: %w", err)
	}
	if err := s.client.Set(ctx, tokenKey(accountID, token), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Release(ctx context.Context, accountID, token string) error {
	if err := s.client.Del(ctx, tokenKey(accountID, token)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func tokenKey(accountID, token string) string {
	return fmt.Sprintf("checkout:idem:%s:%s", accountID, token)
}
