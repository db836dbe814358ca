// Package limiter gates outbound sends per contact and per tenant.
//
// Both gates run against the shared cache so concurrent dispatchers see
// the same permits. When the process falls back to the in-memory cache,
// the same keys apply but only within this process.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/imovelbot/wa-messaging-service/internal/cache"
)

type Limiter struct {
	cache cache.Cache
	now   func() time.Time
}

func New(c cache.Cache) *Limiter {
	return &Limiter{cache: c, now: time.Now}
}

// Allow consumes one permit for (tenant, recipient). Two independent
// gates must both pass: a per-contact minimum interval held as a SETNX
// key with a TTL, and a per-tenant counter bucketed by the current UTC
// minute. The increment is atomic; never read-then-write.
func (l *Limiter) Allow(ctx context.Context, tenantID int, waID string, perContactSeconds, globalPerMinute int) (bool, error) {
	contactKey := fmt.Sprintf("rl:%d:%s", tenantID, waID)
	won, err := l.cache.SetNX(ctx, contactKey, "1", time.Duration(perContactSeconds)*time.Second)
	if err != nil {
		return false, fmt.Errorf("per-contact gate: %w", err)
	}
	if !won {
		return false, nil
	}

	bucket := l.now().UTC().Unix() / 60
	globalKey := fmt.Sprintf("rlg:%d:%d", tenantID, bucket)
	count, err := l.cache.Incr(ctx, globalKey)
	if err != nil {
		return false, fmt.Errorf("global gate: %w", err)
	}
	if count == 1 {
		if err := l.cache.Expire(ctx, globalKey, time.Minute); err != nil {
			return false, fmt.Errorf("global gate: %w", err)
		}
	}
	return count <= int64(globalPerMinute), nil
}
