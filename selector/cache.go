package selector

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/use-agent/pricecompare/simhash"
)

// Cache remembers, per domain and field, the selector that last worked.
// It is shared by concurrent scrapers; the orchestrator guarantees a
// single writer per domain.
type Cache struct {
	selectors sync.Map // "domain::field" -> string
	layouts   sync.Map // domain -> uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

func cacheKey(domain, field string) string {
	return domain + "::" + field
}

// Get returns the cached selector for domain and field.
func (c *Cache) Get(domain, field string) (string, bool) {
	v, ok := c.selectors.Load(cacheKey(domain, field))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Set stores sel unless an entry already exists. It reports whether sel
// was stored.
func (c *Cache) Set(domain, field, sel string) bool {
	_, loaded := c.selectors.LoadOrStore(cacheKey(domain, field), sel)
	if !loaded {
		slog.Info("selector: discovered", "domain", domain, "field", field, "selector", sel)
	}
	return !loaded
}

// Delete evicts one entry.
func (c *Cache) Delete(domain, field string) {
	c.selectors.Delete(cacheKey(domain, field))
}

// EvictDomain drops every cached selector for domain.
func (c *Cache) EvictDomain(domain string) int {
	prefix := domain + "::"
	n := 0
	c.selectors.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			c.selectors.Delete(k)
			n++
		}
		return true
	})
	return n
}

// Snapshot copies the cache contents for diagnostics.
func (c *Cache) Snapshot() map[string]string {
	out := map[string]string{}
	c.selectors.Range(func(k, v any) bool {
		out[k.(string)] = v.(string)
		return true
	})
	return out
}

// ObserveLayout records the layout fingerprint of a domain's result page.
// When it has moved more than threshold bits since the last capture the
// domain's selectors are evicted and true is returned. A threshold of 0
// disables the check.
func (c *Cache) ObserveLayout(domain string, fp uint64, threshold int) bool {
	if threshold <= 0 || fp == 0 {
		return false
	}
	prev, loaded := c.layouts.Swap(domain, fp)
	if !loaded {
		return false
	}
	dist := simhash.Distance(prev.(uint64), fp)
	if dist <= threshold {
		return false
	}
	n := c.EvictDomain(domain)
	slog.Warn("selector: layout drift, cache evicted", "domain", domain, "distance", dist, "evicted", n)
	return true
}
