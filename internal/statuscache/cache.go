// Package statuscache keeps the derived status of each request in Redis, with
// an in-process layer in front so hot reads never leave the process. Entries
// never outlive the instant their status is next due to change with time, so
// a timer firing in another process cannot leave a stale copy behind.
package statuscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/platform/config"
	"sfr_ops_backend/platform/logger"
	"sfr_ops_backend/platform/metrics"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix = "sfr:status:"
	// Other instances only invalidate Redis, so the local layer must expire quickly.
	localTTL = 30 * time.Second
)

// Cache is safe for concurrent use. A nil Redis client keeps everything in process.
type Cache struct {
	redis    *redis.Client
	local    *gocache.Cache
	localTTL time.Duration
	ttl      time.Duration
	group    singleflight.Group
	metrics  *metrics.Registry
	log      *logger.Logger
	now      func() time.Time
}

// NewRedisClient connects to REDIS_URL. It returns nil without error when no URL is configured.
func NewRedisClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	url := cfg.GetRedisURL()
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New creates a cache. ttl bounds how long Redis keeps a status.
func New(client *redis.Client, ttl time.Duration, m *metrics.Registry, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	local := localTTL
	if client == nil || ttl < local {
		local = ttl
	}
	return &Cache{
		redis:    client,
		local:    gocache.New(local, 2*local),
		localTTL: local,
		ttl:      ttl,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// lifetime caps d at validUntil. A zero validUntil leaves d alone; ok is false
// once validUntil has passed.
func (c *Cache) lifetime(d time.Duration, validUntil time.Time) (time.Duration, bool) {
	if validUntil.IsZero() {
		return d, true
	}
	left := validUntil.Sub(c.now())
	if left <= 0 {
		return 0, false
	}
	return min(d, left), true
}

func key(requestID int64) string {
	return keyPrefix + strconv.FormatInt(requestID, 10)
}

// Get returns the cached status or calls load once, even under concurrent
// misses for the same request, and caches its result until the instant load
// reports.
func (c *Cache) Get(ctx context.Context, requestID int64, load func(context.Context) (domain.Status, time.Time, error)) (domain.Status, error) {
	k := key(requestID)
	if v, ok := c.local.Get(k); ok {
		c.metrics.ObserveCacheHit("local")
		return v.(domain.Status), nil
	}

	if c.redis != nil {
		status, left, err := c.readRedis(ctx, k)
		switch {
		case err == nil:
			c.metrics.ObserveCacheHit("redis")
			c.local.Set(k, status, min(c.localTTL, left))
			return status, nil
		case !errors.Is(err, redis.Nil):
			c.log.WithContext(ctx).Warn("status cache read failed", "sfr_id", requestID, "error", err)
		}
	}

	c.metrics.ObserveCacheMiss()
	v, err, _ := c.group.Do(k, func() (any, error) {
		status, validUntil, err := load(ctx)
		if err != nil {
			return domain.StatusError, err
		}
		if err := c.Set(ctx, requestID, status, validUntil); err != nil {
			c.log.WithContext(ctx).Warn("status cache write failed", "sfr_id", requestID, "error", err)
		}
		return status, nil
	})
	if err != nil {
		return domain.StatusError, err
	}
	return v.(domain.Status), nil
}

// readRedis returns the stored status with the time its key has left to live.
func (c *Cache) readRedis(ctx context.Context, k string) (domain.Status, time.Duration, error) {
	pipe := c.redis.Pipeline()
	get := pipe.Get(ctx, k)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.StatusError, 0, err
	}
	code, err := get.Int()
	if err != nil {
		return domain.StatusError, 0, err
	}
	left := pttl.Val()
	if left <= 0 {
		left = c.localTTL
	}
	return domain.Status(code), left, nil
}

// Set stores status in both layers until validUntil at the latest. A status
// already past validUntil is dropped instead. The local layer is written even
// when Redis fails.
func (c *Cache) Set(ctx context.Context, requestID int64, status domain.Status, validUntil time.Time) error {
	k := key(requestID)
	local, ok := c.lifetime(c.localTTL, validUntil)
	if !ok {
		return c.Invalidate(ctx, requestID)
	}
	c.local.Set(k, status, local)
	if c.redis == nil {
		return nil
	}
	shared, _ := c.lifetime(c.ttl, validUntil)
	return c.redis.Set(ctx, k, int(status), shared).Err()
}

// Invalidate drops the status from both layers.
func (c *Cache) Invalidate(ctx context.Context, requestID int64) error {
	k := key(requestID)
	c.local.Delete(k)
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, k).Err()
}
