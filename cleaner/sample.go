package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DiscoverySample returns the slice of page HTML shown to the selector
// discovery collaborator: markup with scripts, styles and inline SVG
// removed, windowed to skip the head and navigation chrome.
func DiscoverySample(pageHTML string) string {
	const lo, hi = 2000, 7000

	cleaned := pageHTML
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML)); err == nil {
		doc.Find("script, style, noscript, svg, link, meta, iframe").Remove()
		if body := doc.Find("body"); body.Length() > 0 {
			if h, err := body.Html(); err == nil {
				cleaned = h
			}
		}
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if len(cleaned) > hi {
		return strings.ToValidUTF8(cleaned[lo:hi], "")
	}
	return cleaned
}
