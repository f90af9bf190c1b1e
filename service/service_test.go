package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecompare/cache"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/pipeline"
	"github.com/use-agent/pricecompare/webhook"
)

type fakeRunner struct {
	runs     int
	observed bool
	offers   int
}

func (f *fakeRunner) Run(_ context.Context, req models.CompareRequest, opts ...pipeline.RunOption) *models.CompareResponse {
	f.runs++
	f.observed = len(opts) > 0
	resp := &models.CompareResponse{Success: true, RunID: "run", Query: req.Query, Mode: models.ParseMode(req.Mode)}
	for i := 0; i < f.offers; i++ {
		resp.Offers = append(resp.Offers, &models.NormalizedOffer{Platform: "croma"})
	}
	return resp
}

func (f *fakeRunner) RunDebug(ctx context.Context, req models.CompareRequest, opts ...pipeline.RunOption) *models.DebugResponse {
	return &models.DebugResponse{CompareResponse: *f.Run(ctx, req, opts...)}
}

type fakeNotifier struct {
	mu     sync.Mutex
	urls   []string
	events []*webhook.Event
}

func (f *fakeNotifier) DeliverAsync(url string, ev *webhook.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	f.events = append(f.events, ev)
}

func TestCompare_CacheFlow(t *testing.T) {
	runner := &fakeRunner{offers: 2}
	s := New(runner, cache.New(10, time.Minute, nil), nil)
	req := models.CompareRequest{Query: "galaxy s24"}

	first := s.Compare(context.Background(), req, nil)
	assert.Equal(t, cache.StatusMiss, first.CacheStatus)

	second := s.Compare(context.Background(), req, nil)
	assert.Equal(t, cache.StatusHit, second.CacheStatus)
	assert.Equal(t, 1, runner.runs)

	req.NoCache = true
	third := s.Compare(context.Background(), req, nil)
	assert.Equal(t, cache.StatusBypass, third.CacheStatus)
	assert.Equal(t, 2, runner.runs)
}

func TestCompare_EmptyResultsNotCached(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, cache.New(10, time.Minute, nil), nil)

	s.Compare(context.Background(), models.CompareRequest{Query: "nothing"}, nil)
	s.Compare(context.Background(), models.CompareRequest{Query: "nothing"}, nil)
	assert.Equal(t, 2, runner.runs)
}

func TestCompare_ObserverAndWebhook(t *testing.T) {
	runner := &fakeRunner{offers: 1}
	hooks := &fakeNotifier{}
	s := New(runner, cache.New(10, time.Minute, nil), hooks)
	req := models.CompareRequest{Query: "galaxy s24", WebhookURL: "https://hooks.example.in/x"}

	var events []string
	obs := func(e pipeline.Event) { events = append(events, e.Type) }

	s.Compare(context.Background(), req, obs)
	assert.True(t, runner.observed)

	s.Compare(context.Background(), req, obs)
	assert.Equal(t, []string{pipeline.EventFinalResult}, events, "a cache hit emits only the final result")

	require.Len(t, hooks.events, 2)
	assert.Equal(t, webhook.EventCompareCompleted, hooks.events[0].Type)
	assert.Equal(t, "https://hooks.example.in/x", hooks.urls[1])
}

func TestDebug(t *testing.T) {
	s := New(&fakeRunner{offers: 1}, nil, nil)
	resp := s.Debug(context.Background(), models.CompareRequest{Query: "s24"})
	assert.Equal(t, cache.StatusBypass, resp.CacheStatus)
	assert.Len(t, resp.Offers, 1)
}
