package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/use-agent/pricecompare/registry"
)

var asinRe = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)

// trackingParams are dropped from listing URLs. Keys are lower-case.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_content": {}, "utm_term": {},
	"ref": {}, "ref_": {}, "tag": {}, "campaign": {}, "crid": {}, "sprefix": {}, "qid": {},
	"sr": {}, "linkcode": {}, "camp": {}, "creative": {}, "creativesin": {}, "th": {},
	"psc": {}, "s": {}, "otracker": {}, "searchclick": {}, "marketplace": {}, "store": {},
	"srno": {}, "lid": {}, "ssid": {}, "qh": {}, "affid": {}, "dclid": {}, "gclid": {},
	"fbclid": {}, "affiliate_id": {}, "offer_id": {}, "_referer": {}, "fm": {}, "iid": {},
	"ppt": {}, "ppn": {},
}

// CleanURL resolves raw against the marketplace base URL and reduces it
// to a canonical form: Amazon collapses to /dp/{ASIN}, Flipkart keeps the
// path and pid, everything else loses tracking parameters. It returns ""
// when no usable absolute URL remains.
func CleanURL(raw string, cfg *registry.MarketplaceConfig) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "javascript:") || raw == "#" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		if cfg == nil || cfg.BaseURL == "" {
			return ""
		}
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return ""
		}
		u = base.ResolveReference(u)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	u.Fragment = ""

	host := strings.ToLower(u.Host)
	switch {
	case isSite(cfg, "amazon", host):
		if m := asinRe.FindStringSubmatch(u.Path); m != nil {
			return "https://www.amazon.in/dp/" + m[1]
		}
		if i := strings.Index(u.Path, "/ref="); i >= 0 {
			u.Path = u.Path[:i]
		}
		u.RawQuery = ""
		return u.String()
	case isSite(cfg, "flipkart", host):
		pid := u.Query().Get("pid")
		u.RawQuery = ""
		if pid != "" {
			u.RawQuery = url.Values{"pid": {pid}}.Encode()
		}
		return u.String()
	}

	q := u.Query()
	for k := range q {
		if _, drop := trackingParams[strings.ToLower(k)]; drop {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func isSite(cfg *registry.MarketplaceConfig, name, host string) bool {
	return (cfg != nil && cfg.Key == name) || strings.Contains(host, name)
}

// FallbackURL is a marketplace search link for title, used when a card
// had no usable product link.
func FallbackURL(title string, cfg *registry.MarketplaceConfig) string {
	if cfg == nil || cfg.SearchURLPattern == "" {
		return ""
	}
	term := []rune(strings.TrimSpace(title))
	if len(term) > 60 {
		term = term[:60]
	}
	return cfg.SearchURL(strings.TrimSpace(string(term)))
}
