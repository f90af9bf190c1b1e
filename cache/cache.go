// Package cache keeps recent comparison responses in an expiring LRU.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/use-agent/pricecompare/metrics"
	"github.com/use-agent/pricecompare/models"
)

// Cache status values reported on responses.
const (
	StatusHit    = "hit"
	StatusMiss   = "miss"
	StatusBypass = "bypass"
)

// Cache is safe for concurrent use.
type Cache struct {
	lru     *expirable.LRU[string, *models.CompareResponse]
	metrics *metrics.Metrics
}

// New creates a Cache holding at most maxEntries responses for ttl each.
// m may be nil.
func New(maxEntries int, ttl time.Duration, m *metrics.Metrics) *Cache {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{lru: expirable.NewLRU[string, *models.CompareResponse](maxEntries, nil, ttl), metrics: m}
}

// Key derives the cache key from the normalized query, ranking mode and
// the requested marketplaces (order-insensitive).
func Key(query string, mode models.RankingMode, sites []string, maxPerSite int) string {
	s := slices.Clone(sites)
	slices.Sort(s)
	h := sha256.New()
	h.Write([]byte(strings.Join(strings.Fields(strings.ToLower(query)), " ")))
	h.Write([]byte("|"))
	h.Write([]byte(mode))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(s, ",")))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(maxPerSite)))
	return hex.EncodeToString(h.Sum(nil))
}

// KeyFor is Key applied to a request.
func KeyFor(req models.CompareRequest) string {
	return Key(req.Query, models.ParseMode(req.Mode), req.AllowedMarketplaces, req.MaxPerSite)
}

// Get returns a copy of the cached response marked as a hit.
func (c *Cache) Get(key string) (*models.CompareResponse, bool) {
	resp, ok := c.lru.Get(key)
	c.metrics.CacheLookup(ok)
	if !ok {
		return nil, false
	}
	out := *resp
	out.CacheStatus = StatusHit
	return &out, true
}

// Set stores resp. Runs that failed or ranked nothing are not cached so a
// transient outage is not served for the whole TTL.
func (c *Cache) Set(key string, resp *models.CompareResponse) bool {
	if resp == nil || !resp.Success || len(resp.Offers) == 0 {
		return false
	}
	stored := *resp
	stored.CacheStatus = ""
	c.lru.Add(key, &stored)
	return true
}

// Len reports the number of live entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Purge drops every entry, e.g. after a marketplace reload.
func (c *Cache) Purge() { c.lru.Purge() }
