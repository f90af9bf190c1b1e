package selector

import (
	"strings"

	"github.com/go-rod/rod"
)

// RodNode adapts a live rod element to Node. Queries never wait: the
// scraper has already waited for the page before resolution starts.
type RodNode struct {
	el *rod.Element
}

// NewRodNode wraps el.
func NewRodNode(el *rod.Element) *RodNode {
	return &RodNode{el: el}
}

func (r *RodNode) QueryAll(sel string) ([]Node, error) {
	els, err := r.el.Elements(sel)
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(els))
	for _, el := range els {
		out = append(out, &RodNode{el: el})
	}
	return out, nil
}

func (r *RodNode) Query(sel string) (Node, error) {
	ok, el, err := r.el.Has(sel)
	if err != nil || !ok {
		return nil, err
	}
	return &RodNode{el: el}, nil
}

func (r *RodNode) Text() string {
	t, err := r.el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}

// TextContent reads textContent, which includes off-screen price spans
// that innerText skips.
func (r *RodNode) TextContent() string {
	res, err := r.el.Eval(`() => this.textContent || ''`)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Value.Str())
}

func (r *RodNode) Attr(name string) (string, bool) {
	v, err := r.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (r *RodNode) HTML() (string, error) {
	return r.el.HTML()
}

func (r *RodNode) FindPriceText() string {
	res, err := r.el.Eval(findPriceJS)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Value.Str())
}
