// Package cache holds the request-level response cache and the seen-id
// registry that deduplicates results across fetches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultJanitorInterval is how often expired in-process entries are swept.
const DefaultJanitorInterval = 5 * time.Minute

type entry struct {
	data      []byte
	expiresAt time.Time
}

// envelope is the wire form stored in Redis. Carrying the expiry inside the
// value lets a warmed L1 entry expire at the same instant as its L2 source.
type envelope struct {
	ExpiresAt time.Time       `json:"expiresAt"`
	Payload   json.RawMessage `json:"payload"`
}

// ResponseCache is a two-tier cache for marshaled responses: an in-process
// map in front of an optional Redis tier. Values are stored as JSON bytes, so
// every Get hands the caller an independent copy. When Redis is absent or
// unreachable the cache degrades to in-process only.
type ResponseCache struct {
	mu   sync.RWMutex
	l1   map[string]entry
	rdb  *redis.Client
	stop chan struct{}
	once sync.Once

	now func() time.Time
}

// NewResponseCache creates the cache and starts the expiry janitor. redisURL
// may be empty to run in-process only; an unreachable Redis is logged and
// skipped rather than treated as fatal.
func NewResponseCache(redisURL string, janitorInterval time.Duration) *ResponseCache {
	c := &ResponseCache{
		l1:   make(map[string]entry),
		stop: make(chan struct{}),
		now:  time.Now,
	}

	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Invalid Redis URL, continuing with in-process cache only")
		} else {
			rdb := redis.NewClient(opt)
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				log.Warn().Err(err).Msg("Redis unreachable, continuing with in-process cache only")
			} else {
				c.rdb = rdb
				log.Info().Msg("Response cache connected to Redis")
			}
			cancel()
		}
	}

	if janitorInterval <= 0 {
		janitorInterval = DefaultJanitorInterval
	}
	go c.janitor(janitorInterval)

	return c
}

// Get looks the key up in L1 then L2, unmarshaling the stored payload into
// dst on a hit. An L2 hit warms L1 with the same expiry.
func (c *ResponseCache) Get(ctx context.Context, key string, dst any) bool {
	c.mu.RLock()
	e, ok := c.l1[key]
	c.mu.RUnlock()

	if ok {
		if c.now().Before(e.expiresAt) {
			if err := json.Unmarshal(e.data, dst); err == nil {
				return true
			}
			log.Warn().Str("key", key).Msg("Corrupt in-process cache entry dropped")
		}
		// Expired or corrupt either way; drop the entry unless a writer
		// replaced it in the meantime.
		c.mu.Lock()
		if cur, found := c.l1[key]; found && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.l1, key)
		}
		c.mu.Unlock()
	}

	if c.rdb == nil {
		return false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Err(err).Msg("Redis cache read failed")
		}
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Corrupt Redis cache entry ignored")
		return false
	}
	if !c.now().Before(env.ExpiresAt) {
		return false
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Redis cache payload does not match destination type")
		return false
	}

	c.mu.Lock()
	c.l1[key] = entry{data: env.Payload, expiresAt: env.ExpiresAt}
	c.mu.Unlock()
	return true
}

// Set stores val under key for ttl in both tiers. Redis writes are
// best-effort.
func (c *ResponseCache) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(val)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal cache value")
		return
	}
	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	c.l1[key] = entry{data: data, expiresAt: expiresAt}
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(envelope{ExpiresAt: expiresAt, Payload: data})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Redis cache write failed")
	}
}

// Len reports the number of live in-process entries.
func (c *ResponseCache) Len() int {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.l1 {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the janitor and releases the Redis connection.
func (c *ResponseCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

func (c *ResponseCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := c.now()
			c.mu.Lock()
			for key, e := range c.l1 {
				if !now.Before(e.expiresAt) {
					delete(c.l1, key)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
