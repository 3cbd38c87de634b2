package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"github.com/callvista/cdr-analytics-service/pkg/redis"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// StatsCache caches computed queue statistics. It layers a process-local map
// over Redis: the local layer absorbs bursts of identical dashboard requests,
// Redis shares results between instances. Either layer may be absent.
type StatsCache struct {
	redis redis.RedisServiceInterface
	ttl   time.Duration

	mutex sync.RWMutex
	local map[string]localEntry
}

type localEntry struct {
	kpis      *domain.QueueKPIs
	expiresAt time.Time
}

// NewStatsCache creates a stats cache. redisSvc may be nil, leaving only the
// local layer active.
func NewStatsCache(redisSvc redis.RedisServiceInterface, ttl time.Duration) *StatsCache {
	return &StatsCache{
		redis: redisSvc,
		ttl:   ttl,
		local: make(map[string]localEntry),
	}
}

func statsKey(queueNumber string, start, end time.Time) string {
	return fmt.Sprintf("%s:%d:%d", queueNumber, start.Unix(), end.Unix())
}

// GetQueueKPIs returns cached KPIs for the queue and period, or nil on a miss.
func (c *StatsCache) GetQueueKPIs(ctx context.Context, queueNumber string, start, end time.Time) *domain.QueueKPIs {
	key := statsKey(queueNumber, start, end)

	c.mutex.RLock()
	entry, ok := c.local[key]
	c.mutex.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return copyKPIs(entry.kpis)
	}

	if c.redis == nil {
		return nil
	}

	var kpis domain.QueueKPIs
	found, err := c.redis.GetJSON(ctx, c.redis.GenerateKey(redis.QUEUE_STATS, key), &kpis)
	if err != nil {
		logger.Base().Warn("Stats cache read failed", zap.String("queue", queueNumber), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}

	c.storeLocal(key, &kpis)
	return copyKPIs(&kpis)
}

// SetQueueKPIs stores KPIs in both layers. Redis failures are logged and
// swallowed; the cache is never allowed to fail a stats request.
func (c *StatsCache) SetQueueKPIs(ctx context.Context, queueNumber string, start, end time.Time, kpis *domain.QueueKPIs) {
	if kpis == nil {
		return
	}
	key := statsKey(queueNumber, start, end)
	c.storeLocal(key, copyKPIs(kpis))

	if c.redis == nil {
		return
	}
	if err := c.redis.SetJSON(ctx, c.redis.GenerateKey(redis.QUEUE_STATS, key), kpis, c.ttl); err != nil {
		logger.Base().Warn("Stats cache write failed", zap.String("queue", queueNumber), zap.Error(err))
	}
}

// InvalidateQueue drops every cached period of one queue, e.g. after a CDR
// backfill.
func (c *StatsCache) InvalidateQueue(ctx context.Context, queueNumber string) {
	prefix := queueNumber + ":"
	c.mutex.Lock()
	for key := range c.local {
		if strings.HasPrefix(key, prefix) {
			delete(c.local, key)
		}
	}
	c.mutex.Unlock()

	if c.redis == nil {
		return
	}
	pattern := c.redis.GenerateKey(redis.QUEUE_STATS, queueNumber+":*")
	if err := c.redis.DeleteByPattern(ctx, pattern); err != nil {
		logger.Base().Warn("Stats cache invalidation failed", zap.String("queue", queueNumber), zap.Error(err))
	}
}

func (c *StatsCache) storeLocal(key string, kpis *domain.QueueKPIs) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Opportunistic sweep keeps the map from growing unbounded.
	now := time.Now()
	for k, e := range c.local {
		if now.After(e.expiresAt) {
			delete(c.local, k)
		}
	}

	c.local[key] = localEntry{kpis: kpis, expiresAt: now.Add(c.ttl)}
}

// copyKPIs deep-copies so callers can't mutate the cached value through the
// destination slices.
func copyKPIs(original *domain.QueueKPIs) *domain.QueueKPIs {
	if original == nil {
		return nil
	}
	var dup domain.QueueKPIs
	if err := copier.CopyWithOption(&dup, original, copier.Option{DeepCopy: true}); err != nil {
		logger.Base().Warn("Failed to copy queue KPIs", zap.Error(err))
		return original
	}
	return &dup
}
