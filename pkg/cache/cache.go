// Package cache provides a time-bounded, size-bounded response cache for
// assistant replies.
//
// Entries are keyed by the normalized user query combined with the session
// type, so that the same question asked with different casing or spacing hits
// the same entry. Expiry bookkeeping is delegated to go-cache; capacity
// eviction (oldest-by-creation) is layered on top.
package cache

import (
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Default tuning values for the response cache.
const (
	// DefaultTTL is how long a cached reply remains valid.
	DefaultTTL = 30 * time.Minute

	// DefaultCapacity is the maximum number of entries held.
	DefaultCapacity = 1000

	// DefaultCleanupInterval is how often the background janitor runs.
	DefaultCleanupInterval = 10 * time.Minute

	// evictionHighWater and evictionLowWater bound the occupancy band used by
	// Cleanup: eviction starts above the high water mark and stops once
	// occupancy drops below the low water mark.
	evictionHighWater = 0.8
	evictionLowWater  = 0.7
)

// Entry is a single cached reply.
type Entry struct {
	// Key is the normalized "sessionType:query" cache key.
	Key string

	// Value is the cached reply text.
	Value string

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time

	// HitCount is the number of times the entry has been served.
	HitCount int
}

// Stats reports the current state of the cache.
type Stats struct {
	// TotalEntries counts all stored entries, including expired ones that
	// have not been swept yet.
	TotalEntries int

	// ActiveEntries counts entries that have not expired.
	ActiveEntries int

	// TotalHits is the sum of hit counts across active entries.
	TotalHits int

	// HitRate is TotalHits divided by ActiveEntries (0 when empty).
	HitRate float64
}

// Cache is a process-wide response cache.
//
// Reads and writes are last-writer-wins; entries are idempotently
// reconstructible from a fresh backend call, so no stricter coordination is
// needed. The background janitor runs on its own goroutine and never blocks
// a request.
type Cache struct {
	store    *gocache.Cache
	ttl      time.Duration
	capacity int

	stop chan struct{}
	log  *logrus.Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the default time-to-live for new entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithCapacity sets the maximum number of entries.
func WithCapacity(capacity int) Option {
	return func(c *Cache) {
		c.capacity = capacity
	}
}

// New creates a response cache and starts its background janitor.
//
// The janitor sweeps expired entries and enforces the capacity band every
// cleanupInterval; pass 0 to use DefaultCleanupInterval. Call Stop to end
// the janitor goroutine.
func New(cleanupInterval time.Duration, opts ...Option) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	c := &Cache{
		// Expiry is tracked by go-cache; sweeping is driven by our own
		// janitor so that capacity eviction and expiry run together.
		store:    gocache.New(DefaultTTL, 0),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		stop:     make(chan struct{}),
		log:      logrus.WithField("component", "cache"),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.janitor(cleanupInterval)

	return c
}

// Get returns the cached reply for the query and session type, or false if
// no live entry exists. A hit increments the entry's hit count.
func (c *Cache) Get(query, sessionType string) (string, bool) {
	v, found := c.store.Get(Key(query, sessionType))
	if !found {
		return "", false
	}

	entry := v.(*Entry)
	entry.HitCount++
	return entry.Value, true
}

// Set stores a reply under the normalized key with the default TTL.
//
// When the store is already at capacity, Cleanup runs first so the new entry
// never pushes occupancy past the configured limit.
func (c *Cache) Set(query, reply, sessionType string) {
	c.SetWithTTL(query, reply, sessionType, c.ttl)
}

// SetWithTTL stores a reply with an explicit TTL.
func (c *Cache) SetWithTTL(query, reply, sessionType string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	if c.store.ItemCount() >= c.capacity {
		c.Cleanup()
	}

	now := time.Now()
	key := Key(query, sessionType)
	c.store.Set(key, &Entry{
		Key:       key,
		Value:     reply,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		HitCount:  0,
	}, ttl)
}

// Cleanup removes expired entries, then evicts oldest-by-creation entries if
// occupancy still exceeds the high water mark, stopping once it drops below
// the low water mark.
func (c *Cache) Cleanup() {
	c.store.DeleteExpired()

	items := c.store.Items()
	if len(items) <= int(float64(c.capacity)*evictionHighWater) {
		return
	}

	entries := make([]*Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, item.Object.(*Entry))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	target := int(float64(c.capacity) * evictionLowWater)
	evicted := 0
	for _, entry := range entries {
		if len(items)-evicted <= target {
			break
		}
		c.store.Delete(entry.Key)
		evicted++
	}

	if evicted > 0 {
		c.log.WithField("evicted", evicted).Debug("cache eviction pass finished")
	}
}

// Stats returns entry and hit counters for monitoring.
func (c *Cache) Stats() Stats {
	active := c.store.Items()

	stats := Stats{
		TotalEntries:  c.store.ItemCount(),
		ActiveEntries: len(active),
	}
	for _, item := range active {
		stats.TotalHits += item.Object.(*Entry).HitCount
	}
	if stats.ActiveEntries > 0 {
		stats.HitRate = float64(stats.TotalHits) / float64(stats.ActiveEntries)
	}
	return stats
}

// Stop ends the background janitor. The cache remains usable afterwards.
func (c *Cache) Stop() {
	close(c.stop)
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}

// Key builds the normalized cache key: the session type joined with the
// lower-cased, trimmed query whose internal whitespace is collapsed to
// single spaces.
func Key(query, sessionType string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return sessionType + ":" + normalized
}
