// Package cache stores finished search results in memory with
// optional disk spill, keyed by the search parameters. A crawl costs
// minutes of browser time, so results are worth keeping across
// process restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

// entry holds one cached result set.
type entry struct {
	records     []models.JobRecord
	createdAt   time.Time
	expiresAt   time.Time
	lastAccess  time.Time
	accessCount int

	keyword  string
	location string
	limit    int
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	DiskLoads int64 `json:"disk_loads"`
}

// Cache is safe for concurrent use; readers never block each other.
type Cache struct {
	log        *slog.Logger
	maxEntries int
	ttl        time.Duration
	disk       *diskStore // nil when disk persistence is disabled

	mu    sync.RWMutex
	store map[string]*entry
	stats Stats

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Cache. dir == "" disables disk persistence. A
// background goroutine sweeps expired entries every 10 minutes until
// Stop is called.
func New(log *slog.Logger, dir string, maxEntries int, ttl time.Duration) (*Cache, error) {
	if log == nil {
		log = slog.Default()
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	c := &Cache{
		log:        log,
		maxEntries: maxEntries,
		ttl:        ttl,
		store:      make(map[string]*entry),
		done:       make(chan struct{}),
	}
	if dir != "" {
		disk, err := newDiskStore(log, dir)
		if err != nil {
			return nil, err
		}
		c.disk = disk
	}

	go c.cleanupLoop()
	return c, nil
}

// Key derives the cache key from the search parameters.
func Key(keyword, location string, limit int) string {
	h := sha256.New()
	h.Write([]byte(keyword))
	h.Write([]byte("|"))
	h.Write([]byte(location))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(limit)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a fresh cached result set. Memory is checked first,
// then disk; disk hits are promoted back into memory.
func (c *Cache) Get(key string) ([]models.JobRecord, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if ok {
		if now.After(e.expiresAt) {
			c.mu.Lock()
			delete(c.store, key)
			c.stats.Misses++
			c.mu.Unlock()
			return nil, false
		}
		c.mu.Lock()
		e.lastAccess = now
		e.accessCount++
		c.stats.Hits++
		c.mu.Unlock()
		return cloneRecords(e.records), true
	}

	if c.disk != nil {
		if f, err := c.disk.load(key); err == nil && f != nil {
			if now.After(f.ExpiresAt) {
				c.disk.remove(key)
			} else {
				c.mu.Lock()
				c.store[key] = &entry{
					records:     f.Records,
					createdAt:   f.CreatedAt,
					expiresAt:   f.ExpiresAt,
					lastAccess:  now,
					accessCount: 1,
					keyword:     f.Keyword,
					location:    f.Location,
					limit:       f.Limit,
				}
				c.stats.Hits++
				c.stats.DiskLoads++
				c.mu.Unlock()
				return cloneRecords(f.Records), true
			}
		}
	}

	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	return nil, false
}

// Set stores a result set under the search parameters. Empty result
// sets are refused: caching a transient failure would pin it for the
// whole TTL.
func (c *Cache) Set(keyword, location string, limit int, records []models.JobRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("refusing to cache empty result set for %q", keyword)
	}
	key := Key(keyword, location, limit)
	now := time.Now()
	e := &entry{
		records:    cloneRecords(records),
		createdAt:  now,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
		keyword:    keyword,
		location:   location,
		limit:      limit,
	}

	c.mu.Lock()
	c.store[key] = e
	if len(c.store) > c.maxEntries {
		c.evictLocked()
	}
	c.mu.Unlock()

	if c.disk != nil {
		if err := c.disk.save(key, e); err != nil {
			c.log.Warn("cache disk write failed", "key", key, "error", err)
		}
	}
	return nil
}

// evictLocked drops the oldest-accessed quarter of entries. Evicting
// in batches keeps a hot cache from thrashing on every Set.
func (c *Cache) evictLocked() {
	type aged struct {
		key        string
		lastAccess time.Time
	}
	all := make([]aged, 0, len(c.store))
	for k, e := range c.store {
		all = append(all, aged{k, e.lastAccess})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lastAccess.Before(all[j].lastAccess) })

	n := len(all) / 4
	if n < 1 {
		n = 1
	}
	for _, a := range all[:n] {
		delete(c.store, a.key)
		if c.disk != nil {
			c.disk.remove(a.key)
		}
		c.stats.Evictions++
	}
	c.log.Info("cache evicted oldest entries", "evicted", n, "remaining", len(c.store))
}

// Stats returns a copy of the current counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = len(c.store)
	return s
}

// Stop ends the background sweeper.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.store {
				if now.After(e.expiresAt) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
			if c.disk != nil {
				c.disk.sweep(now)
			}
		}
	}
}

func cloneRecords(in []models.JobRecord) []models.JobRecord {
	out := make([]models.JobRecord, len(in))
	copy(out, in)
	return out
}
