package simhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle_Normalization(t *testing.T) {
	a := Title("Apple iPhone 15 (128 GB) - Black")
	b := Title("apple IPHONE 15 128 gb, black")
	assert.Equal(t, a, b)
	assert.Zero(t, Distance(a, b))
}

func TestTitle_DifferentProducts(t *testing.T) {
	a := Title("Samsung Galaxy S24 Ultra 5G Titanium Gray 12GB RAM 256GB Storage")
	b := Title("boAt Airdopes 141 Bluetooth Truly Wireless In Ear Earbuds Bold Black")
	assert.Greater(t, Distance(a, b), 3)
	assert.False(t, Near(a, b, 3))
}

func TestTitle_Empty(t *testing.T) {
	assert.Zero(t, Title(""))
	assert.Zero(t, Title("  --  "))
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b uint64
		want int
	}{
		{0, 0, 0},
		{0b1011, 0b0001, 2},
		{^uint64(0), 0, 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Distance(tt.a, tt.b))
	}
}

func TestLayout(t *testing.T) {
	page := `<html><body><div class="grid x"><div class="card"><h2>A</h2><span class="price">1</span></div>
<div class="card"><h2>B</h2><span class="price">2</span></div></div><script>var a = "<div>";</script></body></html>`
	sameStructure := `<html><body><div class="grid y"><div class="card"><h2>C</h2><span class="price">9</span></div>
<div class="card"><h2>D</h2><span class="price">8</span></div></div></body></html>`

	assert.Equal(t, Layout(page), Layout(sameStructure), "text and script changes must not move the fingerprint")
	assert.Zero(t, Layout(""))
	assert.Equal(t, []string{"html", "body", "div.grid", "div.card", "h2", "span.price", "div.card", "h2", "span.price"}, extractTags(page))
}
