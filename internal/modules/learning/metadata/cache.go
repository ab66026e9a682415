package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/neurobridge-pathopt/internal/observability"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

var errCacheMiss = errors.New("cache miss")

// KV is the slice of a key/value store the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisKV struct {
	rdb *goredis.Client
}

// NewRedisKV adapts a go-redis client to KV.
func NewRedisKV(rdb *goredis.Client) KV { return &redisKV{rdb: rdb} }

func (r *redisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", errCacheMiss
	}
	return v, err
}

func (r *redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// CachedProvider is a read-through cache in front of a slower provider.
// Only hits are cached; cache failures fall back to the inner provider.
// Concurrent misses for the same id share one inner lookup.
type CachedProvider struct {
	inner  Provider
	kv     KV
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	log    *logger.Logger
}

func NewCachedProvider(inner Provider, kv KV, prefix string, ttl time.Duration, log *logger.Logger) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		log:    logger.OrNop(log).With("service", "CachedMetadataProvider"),
	}
}

func (c *CachedProvider) Get(ctx context.Context, id string) (Record, error) {
	key := c.prefix + id
	m := observability.Current()
	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var rec Record
		if jerr := json.Unmarshal([]byte(raw), &rec); jerr == nil {
			m.IncCacheLookup("hit")
			return rec, nil
		}
		m.IncCacheLookup("error")
		c.log.Warn("discarding undecodable cache entry", "key", key)
	case errors.Is(err, errCacheMiss):
		m.IncCacheLookup("miss")
	default:
		m.IncCacheLookup("error")
		c.log.Warn("cache read failed (continuing)", "key", key, "error", err)
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		rec, err := c.inner.Get(ctx, id)
		if err != nil {
			return Record{}, err
		}
		if b, merr := json.Marshal(rec); merr == nil {
			if serr := c.kv.Set(ctx, key, string(b), c.ttl); serr != nil {
				c.log.Warn("cache write failed (continuing)", "key", key, "error", serr)
			}
		}
		return rec, nil
	})
	if err != nil {
		return Record{}, err
	}
	rec, ok := v.(Record)
	if !ok {
		return Record{}, fmt.Errorf("cached provider: unexpected value %T", v)
	}
	return rec, nil
}

// List bypasses the cache; full scans are rare and should see fresh data.
func (c *CachedProvider) List(ctx context.Context, fn func(Record) error) error {
	return c.inner.List(ctx, fn)
}
