package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/databunker/price-checker/internal/domain"
)

// Backend names accepted in Config.Type
const (
	TypeNone   = "none"
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Config selects and configures a cache backend
type Config struct {
	Type            string
	RedisURL        string
	KeyPrefix       string
	CleanupInterval time.Duration
}

// Store is a cache backend that holds resources until closed
type Store interface {
	domain.CacheRepository
	Ping(ctx context.Context) error
	Close() error
}

// New builds the configured backend. TypeNone returns a nil Store.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", TypeNone:
		return nil, nil
	case TypeMemory:
		return NewMemoryCache(cfg.CleanupInterval), nil
	case TypeRedis:
		return NewRedisCache(ctx, cfg.RedisURL, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported cache type %q", cfg.Type)
	}
}
