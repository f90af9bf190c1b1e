package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engine  string
	wins    int
	expires time.Time
}

// DomainMemory remembers which engine last won the race for a domain so
// the next fetch can skip straight to it. Entries expire after ttl.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewDomainMemory creates a DomainMemory with the given TTL.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		entries: map[string]*memoryEntry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine for domain, or "" if absent or expired.
func (dm *DomainMemory) Get(domain string) string {
	if dm == nil {
		return ""
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	e, ok := dm.entries[domain]
	if !ok {
		return ""
	}
	if dm.now().After(e.expires) {
		delete(dm.entries, domain)
		return ""
	}
	return e.engine
}

// Set records a win for engine on domain and refreshes the TTL.
// A different engine replaces the previous one.
func (dm *DomainMemory) Set(domain, engine string) {
	if dm == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	e, ok := dm.entries[domain]
	if !ok || e.engine != engine {
		e = &memoryEntry{engine: engine}
		dm.entries[domain] = e
	}
	e.wins++
	e.expires = dm.now().Add(dm.ttl)
	dm.prune()
}

// Delete forgets domain (after the remembered engine failed).
func (dm *DomainMemory) Delete(domain string) {
	if dm == nil {
		return
	}
	dm.mu.Lock()
	delete(dm.entries, domain)
	dm.mu.Unlock()
}

// Snapshot returns domain -> engine for unexpired entries.
func (dm *DomainMemory) Snapshot() map[string]string {
	out := map[string]string{}
	if dm == nil {
		return out
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	now := dm.now()
	for d, e := range dm.entries {
		if !now.After(e.expires) {
			out[d] = e.engine
		}
	}
	return out
}

// prune drops expired entries. The marketplace set is small, so a sweep
// on every write replaces a background goroutine. Caller holds mu.
func (dm *DomainMemory) prune() {
	now := dm.now()
	for d, e := range dm.entries {
		if now.After(e.expires) {
			delete(dm.entries, d)
		}
	}
}
