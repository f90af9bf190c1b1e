package engine

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecompare/models"
)

type fakeEngine struct {
	name  string
	delay time.Duration
	html  string
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: f.html, EngineName: f.name, FinalURL: req.URL}, nil
}

func TestDispatcher_FirstEngineWins(t *testing.T) {
	fast := &fakeEngine{name: "http", html: "<p>fast</p>"}
	slow := &fakeEngine{name: "browser", html: "<p>slow</p>"}
	mem := NewDomainMemory(time.Hour)
	d := NewDispatcher([]Engine{fast, slow}, []time.Duration{0, time.Second}, mem)

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://www.amazon.in/s?k=x"})
	require.NoError(t, err)
	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, int32(0), slow.calls.Load(), "escalation cancelled once the fast engine won")
	assert.Equal(t, "http", mem.Get("www.amazon.in"))
}

func TestDispatcher_EscalatesOnFailure(t *testing.T) {
	fast := &fakeEngine{name: "http", err: errors.New("403")}
	slow := &fakeEngine{name: "browser", html: "<p>ok</p>"}
	d := NewDispatcher([]Engine{fast, slow}, []time.Duration{0, 10 * time.Millisecond}, NewDomainMemory(time.Hour))

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://shop.in/s"})
	require.NoError(t, err)
	assert.Equal(t, "browser", res.EngineName)
}

func TestDispatcher_ChallengeErrorPreferred(t *testing.T) {
	challenge := models.NewScrapeError(models.ErrCodeBotChallenge, "captcha", ErrChallenge)
	a := &fakeEngine{name: "http", err: challenge}
	b := &fakeEngine{name: "browser", delay: 5 * time.Millisecond, err: errors.New("navigation failed")}
	d := NewDispatcher([]Engine{a, b}, nil, NewDomainMemory(time.Hour))

	_, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://shop.in/s"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallenge)
	assert.True(t, models.HasCode(err, models.ErrCodeBotChallenge))
}

func TestDispatcher_MemoryShortCircuits(t *testing.T) {
	httpEng := &fakeEngine{name: "http", html: "x"}
	browser := &fakeEngine{name: "browser", html: "y"}
	mem := NewDomainMemory(time.Hour)
	mem.Set("shop.in", "browser")
	d := NewDispatcher([]Engine{httpEng, browser}, []time.Duration{0, time.Second}, mem)

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://shop.in/s"})
	require.NoError(t, err)
	assert.Equal(t, "browser", res.EngineName)
	assert.Zero(t, httpEng.calls.Load())
}

func TestDispatcher_StaleMemoryFallsBackToRace(t *testing.T) {
	httpEng := &fakeEngine{name: "http", html: "x"}
	browser := &fakeEngine{name: "browser", err: errors.New("crashed")}
	mem := NewDomainMemory(time.Hour)
	mem.Set("shop.in", "browser")
	d := NewDispatcher([]Engine{httpEng, browser}, []time.Duration{0, time.Second}, mem)

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://shop.in/s"})
	require.NoError(t, err)
	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, "http", mem.Get("shop.in"))
}

func TestDomainMemory_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := NewDomainMemory(time.Minute)
	mem.now = func() time.Time { return now }

	mem.Set("a.in", "http")
	assert.Equal(t, "http", mem.Get("a.in"))
	assert.Equal(t, map[string]string{"a.in": "http"}, mem.Snapshot())

	now = now.Add(2 * time.Minute)
	assert.Empty(t, mem.Get("a.in"))
	assert.Empty(t, mem.Snapshot())

	var nilMem *DomainMemory
	assert.Empty(t, nilMem.Get("a.in"))
	nilMem.Set("a.in", "http")
}

func TestHTTPEngine_Fetch(t *testing.T) {
	eng := NewHTTPEngine(5 * time.Second)
	httpmock.ActivateNonDefault(eng.Client())
	t.Cleanup(httpmock.DeactivateAndReset)

	page := `<html><head><title>Results</title></head><body><div class="card">Galaxy S24</div></body></html>`
	captcha := `<html><body><h4>Enter the characters you see below</h4></body></html>`

	httpmock.RegisterResponder(http.MethodGet, "https://www.shop.in/s",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "en-IN,en;q=0.9", req.Header.Get("Accept-Language"))
			assert.Equal(t, "yes", req.Header.Get("X-Test"))
			resp := httpmock.NewStringResponse(http.StatusOK, page)
			resp.Header.Set("Content-Type", "text/html; charset=utf-8")
			return resp, nil
		})
	httpmock.RegisterResponder(http.MethodGet, "https://www.shop.in/captcha",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, captcha))
	httpmock.RegisterResponder(http.MethodGet, "https://www.shop.in/json",
		httpmock.NewStringResponder(http.StatusOK, `{"a":1}`))

	t.Run("html page", func(t *testing.T) {
		res, err := eng.Fetch(context.Background(), &FetchRequest{
			URL:        "https://www.shop.in/s",
			Headers:    map[string]string{"X-Test": "yes"},
			BotPhrases: []string{"enter the characters you see below"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Results", res.Title)
		assert.Equal(t, "http", res.EngineName)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("challenge page", func(t *testing.T) {
		_, err := eng.Fetch(context.Background(), &FetchRequest{
			URL:        "https://www.shop.in/captcha",
			BotPhrases: []string{"enter the characters you see below"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrChallenge)
	})

	t.Run("non html", func(t *testing.T) {
		_, err := eng.Fetch(context.Background(), &FetchRequest{URL: "https://www.shop.in/json"})
		require.Error(t, err)
		assert.True(t, models.HasCode(err, models.ErrCodeFetch))
	})
}

func TestBrowserEngine(t *testing.T) {
	t.Run("success renamed", func(t *testing.T) {
		e := NewBrowserEngine(func(_ context.Context, req *FetchRequest) (*FetchResult, error) {
			return &FetchResult{HTML: "<body>ok</body>", FinalURL: req.URL}, nil
		})
		res, err := e.Fetch(context.Background(), &FetchRequest{URL: "https://a.in"})
		require.NoError(t, err)
		assert.Equal(t, "browser", res.EngineName)
	})

	t.Run("challenge", func(t *testing.T) {
		e := NewBrowserEngine(func(context.Context, *FetchRequest) (*FetchResult, error) {
			return &FetchResult{HTML: "<body>Unusual traffic from your network</body>"}, nil
		})
		_, err := e.Fetch(context.Background(), &FetchRequest{URL: "https://a.in", BotPhrases: []string{"unusual traffic"}})
		assert.ErrorIs(t, err, ErrChallenge)
	})

	t.Run("unconfigured", func(t *testing.T) {
		_, err := NewBrowserEngine(nil).Fetch(context.Background(), &FetchRequest{})
		assert.Error(t, err)
	})
}
