package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"monster-quiz-engine/internal/storage"
)

// CachedKV fronts a remote storage.KV with a TTL cache so repeated reads of
// the same blob skip the round trip. Writes go through to the backing store
// first and only update the cache when they succeed.
type CachedKV struct {
	backing storage.KV
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedValue
}

type cachedValue struct {
	value     string
	found     bool
	expiresAt time.Time
}

type lookup struct {
	value string
	found bool
}

func NewCachedKV(backing storage.KV, ttl time.Duration) *CachedKV {
	return &CachedKV{
		backing: backing,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedValue),
	}
}

func (c *CachedKV) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := c.fresh(key); ok {
		return v.value, v.found, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if v, ok := c.fresh(key); ok {
			return lookup{value: v.value, found: v.found}, nil
		}

		value, found, err := c.backing.Get(ctx, key)
		if err != nil {
			return lookup{}, err
		}
		c.store(key, value, found)
		return lookup{value: value, found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	l := result.(lookup)
	return l.value, l.found, nil
}

func (c *CachedKV) Set(ctx context.Context, key, value string) error {
	if err := c.backing.Set(ctx, key, value); err != nil {
		c.mu.Lock()
		delete(c.cache, key)
		c.mu.Unlock()
		return err
	}
	c.store(key, value, true)
	return nil
}

func (c *CachedKV) fresh(key string) (cachedValue, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return cachedValue{}, false
	}
	return entry, true
}

func (c *CachedKV) store(key, value string, found bool) {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[key] = cachedValue{value: value, found: found, expiresAt: c.clock().Add(ttl)}
	c.mu.Unlock()
}

func (c *CachedKV) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
