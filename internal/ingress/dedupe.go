package ingress

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/database"
	"github.com/commentpilot/commentpilot/pkg/logger"
)

const (
	memoryDedupCap   = 1000
	memoryDedupPrune = 500
)

// EventKey derives a stable identity for a webhook delivery from its entry
// IDs and the first entry's timestamp. Meta retries deliveries with the same
// entries, so an identical key means an already-processed event.
func EventKey(payload *models.WebhookPayload) string {
	ids := make([]string, 0, len(payload.Entry))
	for _, entry := range payload.Entry {
		ids = append(ids, entry.ID)
	}
	sort.Strings(ids)

	var ts int64
	if len(payload.Entry) > 0 {
		ts = payload.Entry[0].Time
	}

	return fmt.Sprintf("webhook:dedup:%s:%d", strings.Join(ids, ","), ts)
}

// Deduper claims webhook event keys. Claim returns true the first time a key
// is seen within the retention window and false on every retry after that.
type Deduper interface {
	Claim(ctx context.Context, key string) bool
}

// RedisDeduper claims keys with SETNX so retries landing on a different
// instance are still recognized. Redis unavailability degrades to processing
// the event; a duplicate reply beats a dropped one.
type RedisDeduper struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisDeduper(redis *database.RedisClient, ttl time.Duration, log *logger.Logger) *RedisDeduper {
	return &RedisDeduper{redis: redis, ttl: ttl, logger: log}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) bool {
	claimed, err := d.redis.SetNX(ctx, key, 1, d.ttl)
	if err != nil {
		d.logger.Warn("dedup claim failed, processing anyway",
			logger.String("key", key),
			logger.Err(err),
		)
		return true
	}
	return claimed
}

// MemoryDeduper is the single-instance fallback used when Redis is not
// configured. The set is bounded: at capacity the oldest half is pruned.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: ttl}
}

func (d *MemoryDeduper) Claim(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return false
	}

	if len(d.seen) >= memoryDedupCap {
		d.prune()
	}
	d.seen[key] = now
	return true
}

// prune drops the oldest entries until only memoryDedupPrune remain.
// Caller holds the lock.
func (d *MemoryDeduper) prune() {
	type claim struct {
		key string
		at  time.Time
	}
	claims := make([]claim, 0, len(d.seen))
	for k, at := range d.seen {
		claims = append(claims, claim{k, at})
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].at.Before(claims[j].at) })

	for _, c := range claims[:len(claims)-memoryDedupPrune] {
		delete(d.seen, c.key)
	}
}
