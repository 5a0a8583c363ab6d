// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := &RedisCache{
		client: client,
		logger: zerolog.Nop(),
	}
	t.Cleanup(func() { _ = cache.Close() })

	return mr, cache
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "test-key", []byte("test-value"), 5*time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, found := cache.Get(ctx, "test-key")
	if !found {
		t.Fatal("expected value to be found")
	}
	if string(val) != "test-value" {
		t.Errorf("expected 'test-value', got %q", val)
	}

	stats := cache.Stats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Sets != 1 {
		t.Errorf("expected 1 set, got %d", stats.Sets)
	}
	if stats.CurrentSize != 1 {
		t.Errorf("expected size 1, got %d", stats.CurrentSize)
	}
}

func TestRedisCache_GetMissing(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	if _, found := cache.Get(context.Background(), "nonexistent"); found {
		t.Error("expected value not to be found")
	}
	if cache.Stats().Misses != 1 {
		t.Errorf("expected 1 miss, got %d", cache.Stats().Misses)
	}
}

func TestRedisCache_TTL(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	ctx := context.Background()

	_ = cache.Set(ctx, "ttl-key", []byte("v"), 1*time.Second)
	if _, found := cache.Get(ctx, "ttl-key"); !found {
		t.Fatal("expected value to be found before expiry")
	}

	mr.FastForward(2 * time.Second)

	if _, found := cache.Get(ctx, "ttl-key"); found {
		t.Error("expected value to expire")
	}
}

func TestRedisCache_ZeroTTLPersists(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	ctx := context.Background()

	_ = cache.Set(ctx, "lms:snapshot:books", []byte("{}"), 0)
	mr.FastForward(24 * time.Hour)

	if _, found := cache.Get(ctx, "lms:snapshot:books"); !found {
		t.Error("expected zero-ttl value to persist")
	}
	if ttl := mr.TTL("lms:snapshot:books"); ttl != 0 {
		t.Errorf("expected no TTL, got %v", ttl)
	}
}

func TestRedisCache_Delete(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	ctx := context.Background()

	_ = cache.Set(ctx, "del-key", []byte("v"), time.Minute)
	if err := cache.Delete(ctx, "del-key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if mr.Exists("del-key") {
		t.Error("expected key to be deleted")
	}
}

func TestRedisCache_ServerDown(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	ctx := context.Background()
	mr.Close()

	if err := cache.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Error("expected set to fail with server down")
	}
	if _, found := cache.Get(ctx, "k"); found {
		t.Error("expected miss with server down")
	}
	if err := cache.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail")
	}
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	if err := cache.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy redis, got %v", err)
	}
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("expected connection, got %v", err)
	}
	defer func() { _ = cache.Close() }()

	if _, err := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop()); err == nil {
		t.Error("expected connection error for closed port")
	}
}

func TestRedisCache_ConcurrentAccess(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				_ = cache.Set(ctx, key, []byte("v"), time.Minute)
				cache.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if got := cache.Stats().Sets; got != 200 {
		t.Errorf("expected 200 sets, got %d", got)
	}
}
