package service

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*PolicyCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewPolicyCache(rdb, 5*time.Minute), mr
}

func TestPolicyCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	policy := domain.DefaultPolicy(uuid.New())
	policy.Mode = domain.ModeAuto
	policy.MaxCallAttempts = 5

	if _, ok := cache.Get(ctx, policy.TenantID); ok {
		t.Fatal("expected a miss before Set")
	}

	cache.Set(ctx, policy)
	got, ok := cache.Get(ctx, policy.TenantID)
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if got.Mode != domain.ModeAuto || got.MaxCallAttempts != 5 {
		t.Fatalf("cached policy mismatch: %+v", got)
	}
}

func TestPolicyCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	policy := domain.DefaultPolicy(uuid.New())
	cache.Set(ctx, policy)

	if err := cache.Invalidate(ctx, policy.TenantID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := cache.Get(ctx, policy.TenantID); ok {
		t.Fatal("expected a miss after invalidation")
	}
}

func TestPolicyCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	policy := domain.DefaultPolicy(uuid.New())
	cache.Set(ctx, policy)

	mr.FastForward(6 * time.Minute)
	if _, ok := cache.Get(ctx, policy.TenantID); ok {
		t.Fatal("expected the entry to expire")
	}
}

func TestPolicyCacheNilClientDegrades(t *testing.T) {
	cache := NewPolicyCache(nil, time.Minute)
	ctx := context.Background()

	policy := domain.DefaultPolicy(uuid.New())
	cache.Set(ctx, policy)
	if _, ok := cache.Get(ctx, policy.TenantID); ok {
		t.Fatal("nil-client cache must always miss")
	}
	if err := cache.Invalidate(ctx, policy.TenantID); err != nil {
		t.Fatalf("invalidate on nil client: %v", err)
	}
}
