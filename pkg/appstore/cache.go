package appstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

const (
	cacheFileName = ".app-store-cache"

	// DefaultCacheDuration is how long a lookup result is reused.
	DefaultCacheDuration = time.Hour
)

// CacheEntry stores one lookup result.
type CacheEntry struct {
	CheckedAt time.Time           `json:"checked_at"`
	BundleID  string              `json:"bundle_id"`
	Country   string              `json:"country"`
	Info      update.AppStoreInfo `json:"info"`
}

// Cache keeps lookup results per (bundle ID, country) for a fixed window.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[uint64]CacheEntry
}

// NewCache creates a cache. ttl <= 0 uses DefaultCacheDuration.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheDuration
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, entries: make(map[uint64]CacheEntry)}
}

func cacheKey(bundleID, country string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(bundleID)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strings.ToLower(country))
	return d.Sum64()
}

// Get returns a copy of the cached record if it is still fresh.
func (c *Cache) Get(bundleID, country string) (*update.AppStoreInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(bundleID, country)]
	if !ok || !IsCacheValid(&e, c.ttl, c.now()) {
		return nil, false
	}
	info := e.Info
	return &info, true
}

// Put stores info, replacing any previous entry for the same key.
func (c *Cache) Put(bundleID, country string, info *update.AppStoreInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(bundleID, country)] = CacheEntry{
		CheckedAt: c.now(),
		BundleID:  bundleID,
		Country:   country,
		Info:      *info,
	}
}

// Entries returns the fresh entries, for persisting between processes.
func (c *Cache) Entries() []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if IsCacheValid(&e, c.ttl, now) {
			out = append(out, e)
		}
	}
	return out
}

// Restore loads previously persisted entries. Stale entries are skipped.
func (c *Cache) Restore(entries []CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, e := range entries {
		if IsCacheValid(&e, c.ttl, now) {
			c.entries[cacheKey(e.BundleID, e.Country)] = e
		}
	}
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IsCacheValid returns true if entry is younger than ttl at now.
func IsCacheValid(entry *CacheEntry, ttl time.Duration, now time.Time) bool {
	return now.Sub(entry.CheckedAt) < ttl
}

// GetCachePath returns the path of the persisted cache inside dir.
func GetCachePath(dir string) string {
	return filepath.Join(dir, cacheFileName)
}

// LoadCache reads persisted entries from dir.
func LoadCache(dir string) ([]CacheEntry, error) {
	data, err := os.ReadFile(GetCachePath(dir))
	if err != nil {
		return nil, err
	}

	var entries []CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveCache writes entries to dir.
func SaveCache(dir string, entries []CacheEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(GetCachePath(dir), data, 0644)
}
