package cleaner

import (
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// MaxCardText caps the card text handed to the enrichment collaborator.
const MaxCardText = 500

// cardConverter is goroutine-safe and shared by every scraper.
var cardConverter = newMarkdownConverter()

// newMarkdownConverter creates a Converter for compact card text:
//
//   - base plugin: strips script, style, iframe, noscript and comments.
//   - commonmark plugin: keeps links so the card's product URL survives.
//   - table plugin: spec tables on some cards, minimal padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// CardText converts a product card's HTML into Markdown, resolving
// relative links against domain, collapsing blank lines and truncating to
// MaxCardText runes. Empty output means the card is not worth sending.
func CardText(cardHTML, domain string) string {
	if strings.TrimSpace(cardHTML) == "" {
		return ""
	}
	md, err := cardConverter.ConvertString(cardHTML, converter.WithDomain(domain))
	if err != nil {
		md = VisibleText(cardHTML)
	}

	lines := strings.Split(md, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return truncateRunes(strings.Join(kept, "\n"), MaxCardText)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
