package simhash

import (
	"strings"

	"golang.org/x/net/html"
)

// Layout fingerprints the tag structure of a result page.
// Text, attribute values and scripts are ignored except for the first
// class name of each element, which is where marketplace redesigns show
// up first.
func Layout(htmlStr string) uint64 {
	tags := extractTags(htmlStr)
	if len(tags) == 0 {
		return 0
	}

	shingles := makeShingles(tags, 3)
	if len(shingles) == 0 {
		return Fingerprint(tags)
	}
	return Fingerprint(shingles)
}

// extractTags walks HTML with the tokenizer and collects open tags in order,
// each suffixed with its first class name when present.
func extractTags(htmlStr string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string
	skip := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			name := string(tn)
			if name == "script" || name == "style" {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = tokenizer.TagAttr()
				if string(key) == "class" {
					if f := strings.Fields(string(val)); len(f) > 0 {
						name += "." + f[0]
					}
					break
				}
			}
			tags = append(tags, name)
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if n := string(tn); (n == "script" || n == "style") && skip > 0 {
				skip--
			}
		}
	}
}
