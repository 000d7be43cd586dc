package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PolicyCache holds per-tenant assignment policies in Redis so the scheduler
// tick and every call-outcome submission avoid a policy read per request.
// Writes to the settings endpoint invalidate the entry; entries also expire
// on their own after the TTL.
type PolicyCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewPolicyCache(rdb redis.UniversalClient, ttl time.Duration) *PolicyCache {
	return &PolicyCache{rdb: rdb, ttl: ttl}
}

func policyKey(tenantID uuid.UUID) string {
	return "assignment:policy:" + tenantID.String()
}

// Get returns the cached policy. The second return is false on a miss; cache
// errors are treated as misses so Redis outages degrade to database reads.
func (c *PolicyCache) Get(ctx context.Context, tenantID uuid.UUID) (domain.AssignmentPolicy, bool) {
	if c == nil || c.rdb == nil {
		return domain.AssignmentPolicy{}, false
	}
	raw, err := c.rdb.Get(ctx, policyKey(tenantID)).Bytes()
	if err != nil {
		return domain.AssignmentPolicy{}, false
	}
	var p domain.AssignmentPolicy
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.AssignmentPolicy{}, false
	}
	return p, true
}

// Set stores the policy. Failures are ignored; the cache is best effort.
func (c *PolicyCache) Set(ctx context.Context, p domain.AssignmentPolicy) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, policyKey(p.TenantID), raw, c.ttl)
}

// Invalidate drops the tenant's cached policy after a settings write.
func (c *PolicyCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	err := c.rdb.Del(ctx, policyKey(tenantID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
