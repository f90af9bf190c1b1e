// Package service wraps the comparison pipeline with the response cache
// and webhook delivery. The HTTP API, the MCP server and the CLI all go
// through it.
package service

import (
	"context"
	"time"

	"github.com/use-agent/pricecompare/cache"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/pipeline"
	"github.com/use-agent/pricecompare/webhook"
)

// Runner is the comparison pipeline.
type Runner interface {
	Run(ctx context.Context, req models.CompareRequest, opts ...pipeline.RunOption) *models.CompareResponse
	RunDebug(ctx context.Context, req models.CompareRequest, opts ...pipeline.RunOption) *models.DebugResponse
}

// Notifier delivers completion events.
type Notifier interface {
	DeliverAsync(url string, event *webhook.Event)
}

// Service runs comparisons. Cache and Webhooks may be nil.
type Service struct {
	runner   Runner
	cache    *cache.Cache
	webhooks Notifier
}

// New creates a Service.
func New(runner Runner, cc *cache.Cache, webhooks Notifier) *Service {
	return &Service{runner: runner, cache: cc, webhooks: webhooks}
}

// Compare serves req from the cache when possible, otherwise runs the
// pipeline and caches the result. obs, when non-nil, receives progress
// events; a cache hit produces only final_result.
func (s *Service) Compare(ctx context.Context, req models.CompareRequest, obs pipeline.Observer) *models.CompareResponse {
	start := time.Now()
	req.Defaults()

	// ── 1. Cache lookup ──
	var key string
	if s.cache != nil && !req.NoCache {
		key = cache.KeyFor(req)
		if cached, hit := s.cache.Get(key); hit {
			cached.QueryTimeSeconds = time.Since(start).Seconds()
			if obs != nil {
				obs(pipeline.Event{Type: pipeline.EventFinalResult, Data: cached})
			}
			s.notify(req, cached)
			return cached
		}
	}

	// ── 2. Run ──
	var opts []pipeline.RunOption
	if obs != nil {
		opts = append(opts, pipeline.WithObserver(obs))
	}
	resp := s.runner.Run(ctx, req, opts...)

	// ── 3. Cache store ──
	switch {
	case key == "":
		resp.CacheStatus = cache.StatusBypass
	default:
		s.cache.Set(key, resp)
		resp.CacheStatus = cache.StatusMiss
	}

	s.notify(req, resp)
	return resp
}

// Debug runs the pipeline uncached and returns every intermediate stage.
func (s *Service) Debug(ctx context.Context, req models.CompareRequest) *models.DebugResponse {
	resp := s.runner.RunDebug(ctx, req)
	resp.CacheStatus = cache.StatusBypass
	return resp
}

// Purge empties the response cache.
func (s *Service) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Service) notify(req models.CompareRequest, resp *models.CompareResponse) {
	if s.webhooks == nil || req.WebhookURL == "" {
		return
	}
	s.webhooks.DeliverAsync(req.WebhookURL, webhook.CompareCompleted(resp))
}
