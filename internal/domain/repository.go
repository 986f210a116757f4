package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SearchProvider issues searches against the scraping provider
type SearchProvider interface {
	Search(ctx context.Context, query string, mode SearchMode) ([]RawResult, error)
	Configured() bool
}

// LanguageModel generates a JSON document from a prompt
type LanguageModel interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	Configured() bool
	Name() string
}
