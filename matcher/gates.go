package matcher

import (
	"regexp"
	"strings"

	"github.com/use-agent/pricecompare/models"
)

// Gate names, reported in rejections and metrics.
const (
	GateAccessory  = "accessory"
	GateBrand      = "brand"
	GateModel      = "model"
	GateVariant    = "variant"
	GateStorage    = "storage"
	GateGeneration = "generation"
	GateNoPrice    = "no_price"
	GateThreshold  = "threshold"
	GateSemantic   = "semantic"
)

// accessoryKeywords mark a title as an accessory rather than the device.
var accessoryKeywords = []string{
	"case", "cover", "charger", "cable", "strap", "screen guard",
	"protector", "earphone", "adapter", "stand", "holder", "band",
	"skin", "pouch", "tempered glass",
}

var accessoryRe = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(accessoryKeywords))
	for _, kw := range accessoryKeywords {
		m[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `(?:e?s)?\b`)
	}
	return m
}()

// knownBrands are brands whose presence in a title identifies the maker.
var knownBrands = map[string]struct{}{
	"apple": {}, "oneplus": {}, "xiaomi": {}, "realme": {}, "oppo": {},
	"vivo": {}, "nokia": {}, "motorola": {}, "google": {}, "samsung": {},
	"redmi": {}, "poco": {}, "asus": {}, "lenovo": {}, "hp": {},
	"dell": {}, "acer": {}, "sony": {}, "lg": {}, "iqoo": {},
}

// brandFamily folds sub-brands into their maker.
var brandFamily = map[string]string{
	"redmi": "xiaomi",
	"poco":  "xiaomi",
	"mi":    "xiaomi",
	"iqoo":  "vivo",
}

// stopwords are ignored when measuring query coverage.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "for": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "of": {}, "with": {}, "by": {}, "is": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "from": {}, "up": {},
	"new": {}, "best": {}, "buy": {}, "price": {}, "online": {}, "india": {},
	"shop": {}, "store": {}, "rs": {}, "inr": {}, "rupees": {}, "product": {},
	"mobile": {}, "phone": {}, "smartphone": {},
}

var (
	tokenRe   = regexp.MustCompile(`[a-z0-9]+`)
	storageRe = regexp.MustCompile(`(\d+)\s*(gb|tb)\b(\s*ram)?`)
	seriesRe  = regexp.MustCompile(`[a-z]\s?(\d{1,3})\b`)
)

type tokenSet map[string]struct{}

func tokenize(s string) tokenSet {
	out := tokenSet{}
	for _, t := range tokenRe.FindAllString(strings.ToLower(s), -1) {
		out[t] = struct{}{}
	}
	return out
}

func (s tokenSet) has(t string) bool {
	_, ok := s[t]
	return ok
}

// overlap returns how many tokens of s appear in other.
func (s tokenSet) overlap(other tokenSet) int {
	n := 0
	for t := range s {
		if other.has(t) {
			n++
		}
	}
	return n
}

func normBrand(b string) string {
	b = strings.ToLower(strings.TrimSpace(b))
	if f, ok := brandFamily[b]; ok {
		return f
	}
	return b
}

// variants returns the variant tokens present in s.
func variants(s tokenSet) tokenSet {
	out := tokenSet{}
	for _, v := range models.VariantTokens {
		if s.has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

func sameSet(a, b tokenSet) bool {
	if len(a) != len(b) {
		return false
	}
	return a.overlap(b) == len(a)
}

// storageFigures lists capacities in text such as "128gb" or "1tb".
// Figures labelled as RAM are skipped.
func storageFigures(text string) []string {
	var out []string
	for _, m := range storageRe.FindAllStringSubmatch(strings.ToLower(text), -1) {
		if m[3] != "" {
			continue
		}
		out = append(out, m[1]+m[2])
	}
	return out
}

func normStorage(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

func series(s string) string {
	if m := seriesRe.FindStringSubmatch(strings.ToLower(s)); m != nil {
		return m[1]
	}
	return ""
}

// target is the pre-tokenized form of a TargetProduct.
type target struct {
	brand      string
	model      tokenSet
	storage    string
	query      tokenSet
	variants   tokenSet
	series     string
	queryLower string
}

func newTarget(t models.TargetProduct) target {
	model := tokenize(t.Model)
	query := tokenize(t.SearchQuery)
	for w := range query {
		if _, stop := stopwords[w]; stop {
			delete(query, w)
		}
	}
	scope := tokenize(t.Model + " " + t.Variant + " " + t.SearchQuery)
	return target{
		brand:      normBrand(t.Brand),
		model:      model,
		storage:    normStorage(t.Storage),
		query:      query,
		variants:   variants(scope),
		series:     series(t.Model),
		queryLower: strings.ToLower(t.RawQuery + " " + t.Model),
	}
}

// gate runs the six hard-reject gates in order and returns the first one
// that fails, or "".
func (t target) gate(titleLower string, title tokenSet) string {
	// ── 1. Accessory ─────────────────────────────────────────────────
	for kw, re := range accessoryRe {
		if re.MatchString(titleLower) && !strings.Contains(t.queryLower, kw) {
			return GateAccessory
		}
	}

	// ── 2. Brand ─────────────────────────────────────────────────────
	if t.brand != "" {
		for b := range knownBrands {
			if title.has(b) && normBrand(b) != t.brand {
				return GateBrand
			}
		}
	}

	// ── 3. Model token coverage ──────────────────────────────────────
	if n := len(t.model); n > 0 {
		allowed := 0
		if n >= 3 {
			allowed = 1
		}
		if n-t.model.overlap(title) > allowed {
			return GateModel
		}
	}

	// ── 4. Variant consistency ───────────────────────────────────────
	if !sameSet(t.variants, variants(title)) {
		return GateVariant
	}

	// ── 5. Storage ───────────────────────────────────────────────────
	if t.storage != "" {
		figs := storageFigures(titleLower)
		if len(figs) > 0 && !contains(figs, t.storage) {
			return GateStorage
		}
	}

	// ── 6. Generation ────────────────────────────────────────────────
	if t.series != "" {
		if s := series(titleLower); s != "" && s != t.series {
			return GateGeneration
		}
	}
	return ""
}

// score is the weighted match score for a title that passed every gate.
func (t target) score(title string, titleLower string, tokens tokenSet) float64 {
	var s float64

	if t.brand == "" || strings.Contains(titleLower, t.brand) || brandInTitle(t.brand, tokens) {
		s += 0.20
	}

	if n := len(t.model); n > 0 {
		s += 0.40 * float64(t.model.overlap(tokens)) / float64(n)
	} else {
		s += 0.40
	}

	if t.storage == "" || strings.Contains(strings.ReplaceAll(titleLower, " ", ""), t.storage) {
		s += 0.20
	}

	if n := len(t.query); n > 0 {
		s += 0.15 * float64(t.query.overlap(tokens)) / float64(n)
	} else {
		s += 0.15
	}

	if words := len(strings.Fields(title)); words >= 4 && words <= 20 {
		s += 0.05
	}
	return round3(min(s, 1.0))
}

// brandInTitle accepts a sub-brand of the target maker ("Redmi" for Xiaomi).
func brandInTitle(brand string, tokens tokenSet) bool {
	for sub, family := range brandFamily {
		if family == brand && tokens.has(sub) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
