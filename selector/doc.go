package selector

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// DocNode adapts a goquery selection to Node.
type DocNode struct {
	sel *goquery.Selection
}

// NewDocNode wraps the first node of s.
func NewDocNode(s *goquery.Selection) *DocNode {
	return &DocNode{sel: s.First()}
}

// ParseDocument parses raw HTML into a root DocNode.
func ParseDocument(htmlStr string) (*DocNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, err
	}
	return &DocNode{sel: doc.Selection}, nil
}

// Selection exposes the underlying goquery selection.
func (d *DocNode) Selection() *goquery.Selection { return d.sel }

func (d *DocNode) QueryAll(sel string) ([]Node, error) {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, err
	}
	found := d.sel.FindMatcher(m)
	out := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &DocNode{sel: s})
	})
	return out, nil
}

func (d *DocNode) Query(sel string) (Node, error) {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, err
	}
	found := d.sel.FindMatcher(m)
	if found.Length() == 0 {
		return nil, nil
	}
	return &DocNode{sel: found.First()}, nil
}

// Text collapses whitespace; a parsed document has no layout, so rendered
// and raw text differ only in spacing.
func (d *DocNode) Text() string {
	return strings.Join(strings.Fields(d.sel.Text()), " ")
}

func (d *DocNode) TextContent() string {
	return strings.TrimSpace(d.sel.Text())
}

func (d *DocNode) Attr(name string) (string, bool) {
	return d.sel.Attr(name)
}

func (d *DocNode) HTML() (string, error) {
	return goquery.OuterHtml(d.sel)
}

func (d *DocNode) FindPriceText() string {
	if d.sel.Length() == 0 {
		return ""
	}
	return scanPrice(d.sel.Get(0))
}

// scanPrice returns the first text node containing ₹ and at least three
// digits; failing that, the first element whose only child is a short
// text node shaped like a bare price.
func scanPrice(root *html.Node) string {
	var walk func(n *html.Node) string
	walk = func(n *html.Node) string {
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if strings.Contains(t, "₹") && digitsRe.MatchString(t) {
				return t
			}
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return ""
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := walk(c); t != "" {
				return t
			}
		}
		return ""
	}
	if t := walk(root); t != "" {
		return t
	}

	var leaf func(n *html.Node) string
	leaf = func(n *html.Node) string {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if only := c.FirstChild; only != nil && only.NextSibling == nil && only.Type == html.TextNode {
				t := strings.TrimSpace(only.Data)
				if utf8.RuneCountInString(t) < 20 && barePriceRe.MatchString(t) {
					return t
				}
			}
			if t := leaf(c); t != "" {
				return t
			}
		}
		return ""
	}
	return leaf(root)
}
