// Package registry loads marketplace definitions from YAML files and
// serves them read-only to the rest of the system.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry is a reloadable, concurrency-safe table of marketplaces.
type Registry struct {
	dir string

	mu      sync.RWMutex
	configs map[string]*MarketplaceConfig
	order   []string
}

// New creates a registry over dir and performs the first load.
// A missing directory yields an empty registry, not an error.
func New(dir string) (*Registry, error) {
	r := &Registry{dir: dir, configs: map[string]*MarketplaceConfig{}}
	if _, err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// FromConfigs builds a registry from in-memory configs, used by tests and
// embedders that do not keep YAML on disk.
func FromConfigs(cfgs ...*MarketplaceConfig) (*Registry, error) {
	r := &Registry{configs: map[string]*MarketplaceConfig{}}
	for _, c := range cfgs {
		if err := c.normalize(); err != nil {
			return nil, err
		}
		r.configs[c.Key] = c
		r.order = append(r.order, c.Key)
	}
	return r, nil
}

// Reload re-reads every *.yaml file in sorted order. Invalid files are
// logged and skipped. It returns the number of marketplaces loaded.
func (r *Registry) Reload() (int, error) {
	if r.dir == "" {
		return r.Len(), nil
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("registry: marketplaces dir not found", "dir", r.dir)
			r.swap(map[string]*MarketplaceConfig{}, nil)
			return 0, nil
		}
		return 0, fmt.Errorf("registry: read %s: %w", r.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	configs := make(map[string]*MarketplaceConfig, len(names))
	order := make([]string, 0, len(names))
	for _, name := range names {
		cfg, err := loadFile(filepath.Join(r.dir, name))
		if err != nil {
			slog.Error("registry: skipping marketplace file", "file", name, "error", err)
			continue
		}
		if _, dup := configs[cfg.Key]; !dup {
			order = append(order, cfg.Key)
		}
		configs[cfg.Key] = cfg
		slog.Debug("registry: loaded marketplace", "key", cfg.Key, "name", cfg.Name)
	}

	r.swap(configs, order)
	slog.Info("registry: marketplaces loaded", "count", len(configs))
	return len(configs), nil
}

func loadFile(path string) (*MarketplaceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg MarketplaceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Registry) swap(configs map[string]*MarketplaceConfig, order []string) {
	r.mu.Lock()
	r.configs = configs
	r.order = order
	r.mu.Unlock()
}

// Len returns the number of loaded marketplaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}

// All returns every marketplace in load order.
func (r *Registry) All() []*MarketplaceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*MarketplaceConfig, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.configs[k])
	}
	return out
}

// AllEnabled returns the enabled marketplaces in load order.
func (r *Registry) AllEnabled() []*MarketplaceConfig {
	all := r.All()
	out := all[:0]
	for _, c := range all {
		if c.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}

// Get looks up a marketplace by key.
func (r *Registry) Get(key string) (*MarketplaceConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[key]
	return c, ok
}

// FilterByKeys returns the enabled marketplaces among keys, in key order.
// Unknown and disabled keys are skipped.
func (r *Registry) FilterByKeys(keys []string) []*MarketplaceConfig {
	out := make([]*MarketplaceConfig, 0, len(keys))
	for _, k := range keys {
		if c, ok := r.Get(k); ok && c.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}
