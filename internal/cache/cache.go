// Package cache stores computed values such as masonry layouts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/munichweekly/internal/config"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// New builds the cache selected by settings.Provider.
func New(ctx context.Context, settings config.CacheSettings) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(settings.Provider)) {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, settings.RedisAddr)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", settings.Provider)
	}
}
