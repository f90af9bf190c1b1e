package selector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="s-grid">
  <div class="tile-x1" data-product-id="1">
    <h3 class="nm"><a href="/p/one">Samsung Galaxy S24 (128 GB)</a></h3>
    <span class="amt">₹64,999</span>
    <del>₹74,999</del>
    <div class="delivery-info">Get it by tomorrow</div>
  </div>
  <div class="tile-x1" data-product-id="2">
    <h3 class="nm"><a href="/p/two">Samsung Galaxy S24 (256 GB)</a></h3>
    <div><span>Rs. 68,500</span></div>
  </div>
</div>
</body></html>`

type fakeRecorder struct {
	mu    sync.Mutex
	tiers map[string][]string
}

func (f *fakeRecorder) SelectorResolution(field, tier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tiers == nil {
		f.tiers = map[string][]string{}
	}
	f.tiers[field] = append(f.tiers[field], tier)
}

type fakeDiscoverer struct {
	proposal *Proposal
	err      error
	calls    int
	sample   string
}

func (f *fakeDiscoverer) DiscoverSelectors(_ context.Context, sample, _ string) (*Proposal, error) {
	f.calls++
	f.sample = sample
	return f.proposal, f.err
}

func parse(t *testing.T, s string) *DocNode {
	t.Helper()
	root, err := ParseDocument(s)
	require.NoError(t, err)
	return root
}

func TestContainer_HintThenCache(t *testing.T) {
	root := parse(t, resultsPage)
	rec := &fakeRecorder{}
	e := NewEngine(NewCache(), WithRecorder(rec))

	sel, nodes := e.Container(context.Background(), root, "shop.in", "shop", "div.missing", "div.tile-x1")
	assert.Equal(t, "div.tile-x1", sel)
	assert.Len(t, nodes, 2)

	cached, ok := e.Cache().Get("shop.in", FieldContainer)
	require.True(t, ok)
	assert.Equal(t, "div.tile-x1", cached)

	sel, _ = e.Container(context.Background(), root, "shop.in", "shop", "", "")
	assert.Equal(t, "div.tile-x1", sel)
	assert.Equal(t, []string{TierHint, TierCache}, rec.tiers[FieldContainer])
}

func TestContainer_StaleCacheEvicted(t *testing.T) {
	root := parse(t, resultsPage)
	cache := NewCache()
	cache.Set("shop.in", FieldContainer, "li.gone")
	e := NewEngine(cache)

	sel, nodes := e.Container(context.Background(), root, "shop.in", "shop", "", "")
	assert.Equal(t, "[data-product-id]", sel, "falls through to universal list")
	assert.Len(t, nodes, 2)

	cached, _ := cache.Get("shop.in", FieldContainer)
	assert.Equal(t, "[data-product-id]", cached)
}

func TestContainer_SingleMatchIsNotAContainer(t *testing.T) {
	root := parse(t, `<html><body><div class="only">x</div></body></html>`)
	e := NewEngine(NewCache())

	sel, nodes := e.Container(context.Background(), root, "d", "k", "div.only", "")
	assert.Empty(t, sel)
	assert.Nil(t, nodes)
}

func TestContainer_Discovery(t *testing.T) {
	page := `<html><body><section>
<div class="zz9"><b class="t">One</b><i class="p">₹1,000</i><a class="u" href="/x/1">go</a></div>
<div class="zz9"><b class="t">Two</b><i class="p">₹2,000</i><a class="u" href="/x/2">go</a></div>
</section></body></html>`

	t.Run("accepted when it matches live", func(t *testing.T) {
		d := &fakeDiscoverer{proposal: &Proposal{Container: "div.zz9", Title: "b.t", Price: "i.p", ListingURL: "a.u", OriginalPrice: "[[bad"}}
		e := NewEngine(NewCache(), WithDiscoverer(d))

		sel, nodes := e.Container(context.Background(), parse(t, page), "z.in", "z", "", "")
		require.Equal(t, "div.zz9", sel)
		assert.Len(t, nodes, 2)
		assert.Equal(t, 1, d.calls)
		assert.Contains(t, d.sample, "zz9")

		snap := e.Cache().Snapshot()
		assert.Equal(t, "b.t", snap["z.in::title"])
		assert.Equal(t, "a.u", snap["z.in::listing_url:href"])
		assert.NotContains(t, snap, "z.in::original_price")

		assert.Equal(t, "Two", e.Text(nodes[1], "z.in", FieldTitle, "", ""))
		assert.Equal(t, "/x/1", e.Attr(nodes[0], "z.in", FieldListingURL, "href", "", ""))
	})

	t.Run("rejected when it matches fewer than two", func(t *testing.T) {
		d := &fakeDiscoverer{proposal: &Proposal{Container: "section"}}
		e := NewEngine(NewCache(), WithDiscoverer(d))
		sel, _ := e.Container(context.Background(), parse(t, page), "z.in", "z", "", "")
		assert.Empty(t, sel)
		assert.Empty(t, e.Cache().Snapshot())
	})

	t.Run("rejected when not css", func(t *testing.T) {
		d := &fakeDiscoverer{proposal: &Proposal{Container: "div[[["}}
		e := NewEngine(NewCache(), WithDiscoverer(d))
		sel, _ := e.Container(context.Background(), parse(t, page), "z.in", "z", "", "")
		assert.Empty(t, sel)
	})

	t.Run("collaborator error", func(t *testing.T) {
		d := &fakeDiscoverer{err: errors.New("unavailable")}
		e := NewEngine(NewCache(), WithDiscoverer(d))
		sel, _ := e.Container(context.Background(), parse(t, page), "z.in", "z", "", "")
		assert.Empty(t, sel)
	})
}

func TestText(t *testing.T) {
	root := parse(t, resultsPage)
	e := NewEngine(NewCache())
	_, cards := e.Container(context.Background(), root, "shop.in", "shop", "div.tile-x1", "")
	require.Len(t, cards, 2)

	t.Run("hint wins and is not cached", func(t *testing.T) {
		assert.Equal(t, "Samsung Galaxy S24 (128 GB)", e.Text(cards[0], "shop.in", FieldTitle, "h3.nm a", ""))
		_, ok := e.Cache().Get("shop.in", FieldTitle)
		assert.False(t, ok)
	})

	t.Run("universal winner cached", func(t *testing.T) {
		assert.Equal(t, "Samsung Galaxy S24 (256 GB)", e.Text(cards[1], "shop.in", FieldTitle, "", ""))
		cached, ok := e.Cache().Get("shop.in", FieldTitle)
		require.True(t, ok)
		assert.Equal(t, "h3 a", cached)
	})

	t.Run("original price via del", func(t *testing.T) {
		assert.Equal(t, "₹74,999", e.Text(cards[0], "shop.in", FieldOriginalPrice, "", ""))
	})

	t.Run("price falls back to text scan", func(t *testing.T) {
		assert.Equal(t, "Rs. 68,500", e.Text(cards[1], "other.in", FieldPrice, "", ""))
	})

	t.Run("missing field", func(t *testing.T) {
		assert.Empty(t, e.Text(cards[1], "shop.in", FieldSeller, "", ""))
	})
}

func TestAttr(t *testing.T) {
	root := parse(t, resultsPage)
	e := NewEngine(NewCache())
	_, cards := e.Container(context.Background(), root, "shop.in", "shop", "div.tile-x1", "")

	assert.Equal(t, "/p/one", e.Attr(cards[0], "shop.in", FieldListingURL, "href", "", ""))
	cached, ok := e.Cache().Get("shop.in", "listing_url:href")
	require.True(t, ok)
	assert.Equal(t, "a[href*='/p/']", cached)
}

func TestScanPrice(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"rupee text node", `<div><span>Deal</span><span>Now ₹1,299 only</span></div>`, "Now ₹1,299 only"},
		{"bare leaf after short rupee text", `<div><span>₹ 99 off</span><em>2,499</em></div>`, "2,499"},
		{"bare leaf too long ignored", `<div><em>1234567890123456789012</em></div>`, ""},
		{"nothing", `<div><em>free</em></div>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := parse(t, "<html><body>"+tt.html+"</body></html>")
			n, err := root.Query("div")
			require.NoError(t, err)
			require.NotNil(t, n)
			assert.Equal(t, tt.want, n.FindPriceText())
		})
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	assert.True(t, c.Set("a.in", "title", "h2"))
	assert.False(t, c.Set("a.in", "title", "h3"), "first writer wins")
	c.Set("a.in", "price", ".p")
	c.Set("b.in", "price", ".q")

	v, _ := c.Get("a.in", "title")
	assert.Equal(t, "h2", v)

	assert.Equal(t, 2, c.EvictDomain("a.in"))
	assert.Equal(t, map[string]string{"b.in::price": ".q"}, c.Snapshot())
}

func TestObserveLayout(t *testing.T) {
	c := NewCache()
	c.Set("a.in", "container", "div.card")

	assert.False(t, c.ObserveLayout("a.in", 0xFF, 4), "first capture only records")
	assert.False(t, c.ObserveLayout("a.in", 0xFE, 4))
	_, ok := c.Get("a.in", "container")
	assert.True(t, ok)

	assert.True(t, c.ObserveLayout("a.in", 0xFFFF_0000, 4))
	_, ok = c.Get("a.in", "container")
	assert.False(t, ok)

	assert.False(t, c.ObserveLayout("a.in", 0x1, 0), "disabled")
}
