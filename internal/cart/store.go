package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
	pkgredis "github.com/hazelbrook/storefront-backend/pkg/redis"
)

// Store persists session carts.
type Store interface {
	Load(ctx context.Context, sessionID string) (Cart, error)
	Save(ctx context.Context, sessionID string, cart Cart) error
	Clear(ctx context.Context, sessionID string) error
}

type cartKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

type redisStore struct {
	kv   cartKV
	ttl  time.Duration
	logg *logger.Logger
}

// NewRedisStore builds a Redis-backed cart store with the given session TTL.
func NewRedisStore(kv *pkgredis.Client, ttl time.Duration, logg *logger.Logger) (Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisStore{kv: kv, ttl: ttl, logg: logg}, nil
}

// Load reads the cart for the session. A missing or unreadable payload
// yields an empty cart rather than an error.
func (s *redisStore) Load(ctx context.Context, sessionID string) (Cart, error) {
	raw, err := s.kv.Get(ctx, s.kv.CartKey(sessionID))
	if err != nil {
		if pkgredis.IsNil(err) {
			return Cart{}, nil
		}
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "discarding unreadable cart payload")
		}
		return Cart{}, nil
	}
	return Cart{Lines: lines}, nil
}

// Save writes the cart back with the configured TTL.
func (s *redisStore) Save(ctx context.Context, sessionID string, cart Cart) error {
	payload, err := json.Marshal(cart.Lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.kv.Set(ctx, s.kv.CartKey(sessionID), string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

// Clear removes the session's cart entirely.
func (s *redisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.kv.Del(ctx, s.kv.CartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
