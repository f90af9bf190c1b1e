package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecompare/engine"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
	"github.com/use-agent/pricecompare/selector"
)

// fakeTab serves pages in order, one per navigation.
type fakeTab struct {
	mu       sync.Mutex
	pages    []string
	current  string
	navErr   error
	navs     int
	scrolled int
	closed   bool
}

func (f *fakeTab) Navigate(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.navErr != nil {
		return f.navErr
	}
	if f.navs < len(f.pages) {
		f.current = f.pages[f.navs]
	}
	f.navs++
	return nil
}

func (f *fakeTab) WaitReady(context.Context, string) {}
func (f *fakeTab) DismissOverlays(context.Context)   {}
func (f *fakeTab) Scroll(context.Context)            { f.scrolled++ }

func (f *fakeTab) Content(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeTab) Root(context.Context) (selector.Node, error) {
	return selector.ParseDocument(f.current)
}

func (f *fakeTab) Close() error {
	f.closed = true
	return nil
}

// fakeOpener hands out tabs built by newTab and remembers them.
type fakeOpener struct {
	mu     sync.Mutex
	newTab func(n int) *fakeTab
	opened []*fakeTab
	err    error
}

func (o *fakeOpener) Open(context.Context, string) (Tab, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	t := o.newTab(len(o.opened))
	o.opened = append(o.opened, t)
	return t, nil
}

func noSleep(context.Context, time.Duration) {}

const filler = `<p>Showing results for your search across phones, accessories, laptops, televisions and more categories on this store today. Prices include GST.</p>`

const shopPage = `<html><body>` + filler + `
<div class="grid">
  <div class="tile"><a class="name" href="/p/1">Samsung Galaxy S24 (128 GB)</a><span class="amt">₹64,999</span><div class="delivery-info">Get it by tomorrow</div></div>
  <div class="tile"><a class="name" href="/p/2">Samsung Galaxy S24 (256 GB)</a><span class="amt">₹68,500</span></div>
  <div class="tile"><a class="name" href="/p/3">Samsung Galaxy S24 Ultra</a><span class="amt">N/A</span></div>
</div></body></html>`

const challengePage = `<html><body>` + filler + `<h4>Enter the characters you see below</h4></body></html>`

func shopConfig() *registry.MarketplaceConfig {
	return &registry.MarketplaceConfig{
		Key:              "shop",
		Name:             "Shop",
		BaseURL:          "https://www.shop.in",
		SearchURLPattern: "https://www.shop.in/s?q={query}",
		MaxResults:       5,
		BotPhrases:       []string{"enter the characters you see below"},
		Selectors: registry.Selectors{
			Container: registry.SelectorHint{Primary: "div.tile"},
			Title:     registry.SelectorHint{Primary: "a.name"},
			Price:     registry.SelectorHint{Primary: "span.amt"},
			ListingURL: registry.SelectorHint{Primary: "a.name"},
		},
	}
}

func newTestBrowserScraper(opener *fakeOpener, opts ...BrowserOption) (*BrowserScraper, *SessionPool) {
	pool := NewSessionPool(opener, 2)
	s := NewBrowserScraper(pool, selector.NewEngine(selector.NewCache()), opts...)
	s.sleep = noSleep
	return s, pool
}

func TestBrowserScraper_OK(t *testing.T) {
	opener := &fakeOpener{newTab: func(int) *fakeTab { return &fakeTab{pages: []string{shopPage}} }}
	s, pool := newTestBrowserScraper(opener, WithCardHTML(true))

	res := s.Scrape(context.Background(), shopConfig(), "galaxy s24", 2)
	assert.Equal(t, models.StatusOK, res.Status.Status)
	assert.Equal(t, 2, res.Status.ListingsFound)
	require.Len(t, res.Listings, 2)

	first := res.Listings[0]
	assert.Equal(t, "shop", first.Platform)
	assert.Equal(t, "Samsung Galaxy S24 (128 GB)", first.Title)
	assert.Equal(t, "₹64,999", first.Price)
	assert.Equal(t, "/p/1", first.ListingURL)
	assert.Equal(t, "Get it by tomorrow", first.Delivery)
	assert.Contains(t, first.CardHTML, "tile")
	assert.Greater(t, res.PageSize, 0)

	assert.Equal(t, 1, opener.opened[0].scrolled)
	assert.Zero(t, pool.Active())
}

func TestBrowserScraper_ChallengeRecyclesAndRetries(t *testing.T) {
	opener := &fakeOpener{newTab: func(n int) *fakeTab {
		if n == 0 {
			return &fakeTab{pages: []string{challengePage}}
		}
		return &fakeTab{pages: []string{shopPage}}
	}}
	s, _ := newTestBrowserScraper(opener)

	res := s.Scrape(context.Background(), shopConfig(), "galaxy s24", 5)
	assert.Equal(t, models.StatusOK, res.Status.Status)
	assert.Len(t, res.Listings, 3)
	require.Len(t, opener.opened, 2)
	assert.True(t, opener.opened[0].closed, "challenged session must be discarded")
	assert.False(t, opener.opened[1].closed)
}

func TestBrowserScraper_ChallengeTwice(t *testing.T) {
	opener := &fakeOpener{newTab: func(int) *fakeTab { return &fakeTab{pages: []string{challengePage}} }}
	s, _ := newTestBrowserScraper(opener)

	res := s.Scrape(context.Background(), shopConfig(), "galaxy s24", 5)
	assert.Equal(t, models.StatusBotChallenge, res.Status.Status)
	assert.Contains(t, res.Status.Message, "enter the characters")
	assert.Empty(t, res.Listings)
	assert.Len(t, opener.opened, 2)
}

func TestBrowserScraper_StatusMapping(t *testing.T) {
	noContainer := `<html><body>` + filler + `<div class="x">nothing to see</div></body></html>`
	untitled := `<html><body>` + filler + `<div class="tile"><span class="amt">₹1,000</span></div><div class="tile"><span class="amt">₹2,000</span></div></body></html>`

	tests := []struct {
		name string
		tab  func() *fakeTab
		want models.SiteStatusCode
	}{
		{"no container", func() *fakeTab { return &fakeTab{pages: []string{noContainer}} }, models.StatusSelectorError},
		{"zero cards", func() *fakeTab { return &fakeTab{pages: []string{untitled}} }, models.StatusNoResults},
		{"empty page", func() *fakeTab { return &fakeTab{pages: []string{"<html></html>", "<html></html>"}} }, models.StatusNoResults},
		{"timeout", func() *fakeTab {
			return &fakeTab{navErr: categorizeError(context.DeadlineExceeded, "navigation to search page failed")}
		}, models.StatusTimeout},
		{"navigation error", func() *fakeTab {
			return &fakeTab{navErr: categorizeError(errors.New("net::ERR_NAME_NOT_RESOLVED"), "navigation to search page failed")}
		}, models.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &fakeOpener{newTab: func(int) *fakeTab { return tt.tab() }}
			s, _ := newTestBrowserScraper(opener)
			res := s.Scrape(context.Background(), shopConfig(), "q", 5)
			assert.Equal(t, tt.want, res.Status.Status)
			assert.Empty(t, res.Listings)
			assert.LessOrEqual(t, len([]rune(res.Status.Message)), maxMessageRunes)
		})
	}
}

func TestBrowserScraper_LayoutDriftEvicts(t *testing.T) {
	opener := &fakeOpener{newTab: func(int) *fakeTab {
		return &fakeTab{pages: []string{shopPage, strings.Repeat(`<section><article class="other"><ul><li>x</li></ul></article></section>`, 10) + filler}}
	}}
	s, _ := newTestBrowserScraper(opener, WithLayoutDrift(1))
	cfg := shopConfig()

	res := s.Scrape(context.Background(), cfg, "q", 5)
	require.Equal(t, models.StatusOK, res.Status.Status)
	_, cached := s.selectors.Cache().Get(cfg.Domain(), selector.FieldContainer)
	require.True(t, cached)

	res = s.Scrape(context.Background(), cfg, "q", 5)
	assert.Equal(t, models.StatusSelectorError, res.Status.Status)
	_, cached = s.selectors.Cache().Get(cfg.Domain(), selector.FieldContainer)
	assert.False(t, cached)
}

func TestSessionPool_Health(t *testing.T) {
	opener := &fakeOpener{newTab: func(int) *fakeTab { return &fakeTab{} }}
	pool := NewSessionPool(opener, 1)
	ctx := context.Background()

	// Three straight failures retire the session.
	for i := 0; i < 3; i++ {
		lease, err := pool.Acquire(ctx, "a.in")
		require.NoError(t, err)
		lease.Release(false)
		lease.Release(true) // second release is ignored
	}
	require.Len(t, opener.opened, 1)
	assert.True(t, opener.opened[0].closed)

	lease, err := pool.Acquire(ctx, "a.in")
	require.NoError(t, err)
	lease.Release(true)
	assert.Len(t, opener.opened, 2)
	assert.False(t, opener.opened[1].closed)
}

func TestSessionPool_Age(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opener := &fakeOpener{newTab: func(int) *fakeTab { return &fakeTab{} }}
	pool := NewSessionPool(opener, 1)
	pool.now = func() time.Time { return now }

	lease, err := pool.Acquire(context.Background(), "a.in")
	require.NoError(t, err)
	now = now.Add(maxSessionAge)
	lease.Release(true)
	assert.True(t, opener.opened[0].closed)
}

func TestSessionPool_CapBlocks(t *testing.T) {
	opener := &fakeOpener{newTab: func(int) *fakeTab { return &fakeTab{} }}
	pool := NewSessionPool(opener, 1)

	lease, err := pool.Acquire(context.Background(), "a.in")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Active())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx, "b.in")
	require.Error(t, err)
	assert.Equal(t, models.StatusTimeout, StatusFromError(err))

	lease.Release(true)
	lease, err = pool.Acquire(context.Background(), "b.in")
	require.NoError(t, err)
	lease.Release(true)
	assert.Zero(t, pool.Active())
}

func TestSessionPool_RecycleWhileLeased(t *testing.T) {
	opener := &fakeOpener{newTab: func(int) *fakeTab { return &fakeTab{} }}
	pool := NewSessionPool(opener, 2)

	lease, err := pool.Acquire(context.Background(), "a.in")
	require.NoError(t, err)
	pool.Recycle("a.in")
	assert.False(t, opener.opened[0].closed)
	lease.Release(true)
	assert.True(t, opener.opened[0].closed)
}

func TestSessionPool_OpenError(t *testing.T) {
	pool := NewSessionPool(&fakeOpener{err: errors.New("boom")}, 1)
	_, err := pool.Acquire(context.Background(), "a.in")
	require.Error(t, err)
	assert.Zero(t, pool.Active())
}

func TestSessionPool_Fetch(t *testing.T) {
	opener := &fakeOpener{newTab: func(int) *fakeTab {
		return &fakeTab{pages: []string{`<html><head><title>Results</title></head><body>ok</body></html>`}}
	}}
	pool := NewSessionPool(opener, 1)

	res, err := pool.Fetch(context.Background(), &engine.FetchRequest{URL: "https://www.amazon.in/s?k=x", Scroll: true})
	require.NoError(t, err)
	assert.Equal(t, "Results", res.Title)
	assert.Equal(t, 1, opener.opened[0].scrolled)
	assert.Equal(t, "amazon.in", hostDomain("https://www.amazon.in/s?k=x"))
}

type fakeFetcher struct {
	results []*engine.FetchResult
	errs    []error
	calls   int
}

func (f *fakeFetcher) Dispatch(_ context.Context, _ *engine.FetchRequest) (*engine.FetchResult, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return &engine.FetchResult{HTML: "<html></html>"}, nil
}

const amazonPage = `<html><body>
<div data-component-type="s-search-result" data-asin="B0CS5XW6TN">
  <h2><a href="/Samsung-Galaxy-S24/dp/B0CS5XW6TN/ref=sr_1_1"><span class="a-text-normal">Samsung Galaxy S24 5G (Onyx Black, 8GB, 128GB)</span></a></h2>
  <span class="a-price"><span class="a-offscreen">₹64,999</span></span>
  <span class="a-text-price"><span class="a-offscreen">₹79,999</span></span>
  <i class="a-icon-star-small"><span class="a-icon-alt">4.3 out of 5 stars</span></i>
  <span aria-label="1,234 ratings">1,234</span>
  <i class="a-icon-prime"></i>
</div>
<div data-component-type="s-search-result" data-asin="B0SPONSOR1">
  <span class="puis-sponsored-label-text">Sponsored</span>
  <h2><a href="/dp/B0SPONSOR1"><span class="a-text-normal">Phone Case for Galaxy S24</span></a></h2>
</div>
<div data-component-type="s-search-result" data-asin="B0CS5ABCDE">
  <h2><a href="/Samsung-Galaxy-S24-Marble-Grey/dp/B0CS5ABCDE/ref=sr_1_2"></a></h2>
  <span class="a-price-whole">68,500.</span><span class="a-price-fraction">00</span>
</div>
</body></html>`

func TestParseAmazon(t *testing.T) {
	cfg := &registry.MarketplaceConfig{Key: "amazon", Name: "Amazon", BaseURL: "https://www.amazon.in", MaxResults: 5, Parser: registry.ParserAmazon}
	fetcher := &fakeFetcher{results: []*engine.FetchResult{{HTML: amazonPage, EngineName: "http"}}}
	s := NewParserScraper(fetcher, time.Second)
	s.sleep = noSleep

	res := s.Scrape(context.Background(), cfg, "galaxy s24", 5)
	require.Equal(t, models.StatusOK, res.Status.Status)
	require.Len(t, res.Listings, 2)

	a := res.Listings[0]
	assert.Equal(t, "amazon", a.Platform)
	assert.Equal(t, "Samsung Galaxy S24 5G (Onyx Black, 8GB, 128GB)", a.Title)
	assert.Equal(t, "https://www.amazon.in/Samsung-Galaxy-S24/dp/B0CS5XW6TN", a.ListingURL)
	assert.Equal(t, "₹64,999", a.Price)
	assert.Equal(t, "₹79,999", a.OriginalPrice)
	assert.Equal(t, "4.3", a.Rating)
	assert.Equal(t, "1,234", a.ReviewCount)
	assert.Equal(t, "Prime delivery in 2 days", a.Delivery)
	assert.Equal(t, "Free (Prime)", a.Shipping)
	assert.Equal(t, "Amazon.in", a.Seller)

	b := res.Listings[1]
	assert.Equal(t, "Samsung Galaxy S24 Marble Grey", b.Title)
	assert.Equal(t, "68,500.", b.Price)
	assert.Equal(t, "Free delivery", b.Shipping)
	assert.Equal(t, "Delivery in 5 days (estimated)", b.Delivery)
}

const vijayPage = `<html><body>
<div class="product-card__inner">
  <a class="product-card__link" href="/p/samsung-s24-128">
    <div class="product-name">Samsung Galaxy S24 128GB</div>
  </a>
  <span class="discountedPrice">₹64,499</span>
  <span class="mrp">₹79,999</span>
  <span class="rating-stars">4.5</span>
</div>
<div class="product-card__inner">
  <a title="Samsung Galaxy S24 256GB" href="/p/samsung-s24-256"></a>
  <p>Offer ₹ 69,999 only</p>
</div>
</body></html>`

func TestParseVijaySales(t *testing.T) {
	cfg := &registry.MarketplaceConfig{Key: "vijay_sales", Name: "Vijay Sales", BaseURL: "https://www.vijaysales.com", MaxResults: 5, Parser: registry.ParserVijaySale}
	fetcher := &fakeFetcher{results: []*engine.FetchResult{{HTML: vijayPage}}}
	s := NewParserScraper(fetcher, time.Second)
	s.sleep = noSleep

	res := s.Scrape(context.Background(), cfg, "galaxy s24", 5)
	require.Equal(t, models.StatusOK, res.Status.Status)
	require.Len(t, res.Listings, 2)
	assert.Equal(t, "Samsung Galaxy S24 128GB", res.Listings[0].Title)
	assert.Equal(t, "https://www.vijaysales.com/p/samsung-s24-128", res.Listings[0].ListingURL)
	assert.Equal(t, "₹64,499", res.Listings[0].Price)
	assert.Equal(t, "₹79,999", res.Listings[0].OriginalPrice)
	assert.Equal(t, "4.5", res.Listings[0].Rating)
	assert.Equal(t, "Samsung Galaxy S24 256GB", res.Listings[1].Title)
	assert.Equal(t, "₹ 69,999", res.Listings[1].Price)
	assert.Equal(t, "Vijay Sales", res.Listings[1].Seller)
}

func TestParserScraper_Failures(t *testing.T) {
	cfg := &registry.MarketplaceConfig{Key: "amazon", Name: "Amazon", BaseURL: "https://www.amazon.in", MaxResults: 5, Parser: registry.ParserAmazon}
	challenge := models.NewScrapeError(models.ErrCodeBotChallenge, "captcha", engine.ErrChallenge)

	t.Run("challenge then success", func(t *testing.T) {
		f := &fakeFetcher{errs: []error{challenge}, results: []*engine.FetchResult{nil, {HTML: amazonPage}}}
		s := NewParserScraper(f, time.Second)
		s.sleep = noSleep
		res := s.Scrape(context.Background(), cfg, "q", 5)
		assert.Equal(t, models.StatusOK, res.Status.Status)
		assert.Equal(t, 2, f.calls)
	})

	t.Run("challenge twice", func(t *testing.T) {
		f := &fakeFetcher{errs: []error{challenge, challenge}}
		s := NewParserScraper(f, time.Second)
		s.sleep = noSleep
		res := s.Scrape(context.Background(), cfg, "q", 5)
		assert.Equal(t, models.StatusBotChallenge, res.Status.Status)
	})

	t.Run("empty twice", func(t *testing.T) {
		f := &fakeFetcher{}
		s := NewParserScraper(f, time.Second)
		s.sleep = noSleep
		res := s.Scrape(context.Background(), cfg, "q", 5)
		assert.Equal(t, models.StatusNoResults, res.Status.Status)
		assert.Equal(t, 2, f.calls)
	})

	t.Run("transport error", func(t *testing.T) {
		f := &fakeFetcher{errs: []error{errors.New("connection reset")}}
		s := NewParserScraper(f, time.Second)
		s.sleep = noSleep
		res := s.Scrape(context.Background(), cfg, "q", 5)
		assert.Equal(t, models.StatusError, res.Status.Status)
		assert.Equal(t, 1, f.calls)
	})
}

type panicScraper struct{}

func (panicScraper) Scrape(context.Context, *registry.MarketplaceConfig, string, int) Result {
	panic("selector blew up")
}

func TestScraper_Routing(t *testing.T) {
	generic := &registry.MarketplaceConfig{Key: "shop", Name: "Shop"}
	special := &registry.MarketplaceConfig{Key: "amazon", Name: "Amazon", Parser: registry.ParserAmazon}

	res := New(panicScraper{}, nil).Scrape(context.Background(), generic, "q", 5)
	assert.Equal(t, models.StatusError, res.Status.Status)
	assert.Contains(t, res.Status.Message, "selector blew up")

	res = New(nil, nil).Scrape(context.Background(), special, "q", 5)
	assert.Equal(t, models.StatusError, res.Status.Status)
	assert.Equal(t, "amazon", res.Status.Key)
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want models.SiteStatusCode
	}{
		{nil, models.StatusOK},
		{context.DeadlineExceeded, models.StatusTimeout},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), models.StatusTimeout},
		{models.NewScrapeError(models.ErrCodeTimeout, "x", nil), models.StatusTimeout},
		{engine.ErrChallenge, models.StatusBotChallenge},
		{models.NewScrapeError(models.ErrCodeSelectorMiss, "x", nil), models.StatusSelectorError},
		{models.NewScrapeError(models.ErrCodeNoResults, "x", nil), models.StatusNoResults},
		{errors.New("boom"), models.StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFromError(tt.err))
	}

	st := newStatus("a", "A")
	fail(&st, errors.New(strings.Repeat("x", 300)))
	assert.Len(t, []rune(st.Message), maxMessageRunes)
}

func TestCleanField(t *testing.T) {
	assert.Equal(t, "Galaxy S24", cleanField("  Galaxy \n  S24 "))
	assert.Empty(t, cleanField("N/A"))
	assert.Empty(t, cleanField(" not available "))
	assert.Equal(t, "Samsung Galaxy S24", titleFromSlug("https://www.amazon.in/Samsung-Galaxy-S24/dp/B0CS5XW6TN"))
}
