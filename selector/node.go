// Package selector resolves CSS selectors for product-card fields with a
// layered strategy and a per-domain cache of what worked last time.
package selector

import "regexp"

// Node is a queryable element, either a live browser element or a parsed
// document node.
type Node interface {
	// QueryAll returns every descendant matching sel.
	QueryAll(sel string) ([]Node, error)
	// Query returns the first descendant matching sel, or nil when absent.
	Query(sel string) (Node, error)
	// Text returns the rendered text of the node.
	Text() string
	// TextContent returns the raw text, including visually hidden nodes.
	TextContent() string
	// Attr returns the named attribute.
	Attr(name string) (string, bool)
	// HTML returns the outer HTML.
	HTML() (string, error)
	// FindPriceText scans the node's text for something that looks like
	// a price and returns it, or "".
	FindPriceText() string
}

var (
	digitsRe    = regexp.MustCompile(`\d{3,}`)
	barePriceRe = regexp.MustCompile(`^[₹Rs.\s]*[\d,]+(\.\d+)?$`)
)

// findPriceJS mirrors scanPrice for live elements.
const findPriceJS = `() => {
	const walker = document.createTreeWalker(this, NodeFilter.SHOW_TEXT, null);
	while (walker.nextNode()) {
		const t = walker.currentNode.textContent.trim();
		if (t.includes('₹') && /\d{3,}/.test(t)) return t;
	}
	for (const node of this.querySelectorAll('*')) {
		if (node.childNodes.length === 1 && node.childNodes[0].nodeType === 3) {
			const t = node.textContent.trim();
			if (/^[₹Rs.\s]*[\d,]+(\.\d+)?$/.test(t) && t.length < 20) return t;
		}
	}
	return '';
}`
