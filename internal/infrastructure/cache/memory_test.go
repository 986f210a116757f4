package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/databunker/price-checker/internal/domain"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	defer cache.Close()
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value interface{}
		want  string
	}{
		{
			name:  "string value",
			key:   "key-1",
			value: "hello",
			want:  `"hello"`,
		},
		{
			name: "struct value",
			key:  "key-2",
			value: struct {
				Title string `json:"title"`
				Total int    `json:"total_offers"`
			}{Title: "Coca Cola", Total: 3},
			want: `{"title":"Coca Cola","total_offers":3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cache.Set(ctx, tt.key, tt.value, time.Minute); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := cache.Get(ctx, tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Get() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "short", "v", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := cache.Get(ctx, "short"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}

	cache.removeExpired(time.Now())
	if cache.Size() != 0 {
		t.Errorf("Size() = %d after sweep, want 0", cache.Size())
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()

	_, err := cache.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()
	ctx := context.Background()

	_ = cache.Set(ctx, "key", "value", time.Minute)
	if _, err := cache.Get(ctx, "key"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := cache.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := cache.Get(ctx, "key"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := cache.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestMemoryCache_SetRejectsUnserializable(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()

	if err := cache.Set(context.Background(), "key", make(chan int), time.Minute); err == nil {
		t.Error("expected error for value that cannot be serialized")
	}
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache(time.Millisecond)
	if err := cache.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(time.Millisecond)
	defer cache.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%5)
			for j := 0; j < 50; j++ {
				_ = cache.Set(ctx, key, j, time.Minute)
				_, _ = cache.Get(ctx, key)
				_ = cache.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Size() != 5 {
		t.Errorf("Size() = %d, want 5", cache.Size())
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("none returns nil store", func(t *testing.T) {
		store, err := New(ctx, Config{Type: TypeNone})
		if err != nil || store != nil {
			t.Errorf("New(none) = %v, %v", store, err)
		}
	})

	t.Run("memory", func(t *testing.T) {
		store, err := New(ctx, Config{Type: TypeMemory})
		if err != nil {
			t.Fatalf("New(memory) error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*MemoryCache); !ok {
			t.Errorf("New(memory) = %T", store)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := New(ctx, Config{Type: "memcached"}); err == nil {
			t.Error("expected error for unknown type")
		}
	})
}
