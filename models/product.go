package models

import (
	"regexp"
	"strings"
)

// VariantTokens are the model-line qualifiers that distinguish otherwise
// identical model names ("S24" vs "S24 Ultra").
var VariantTokens = []string{"fe", "plus", "ultra", "lite", "mini", "pro", "max", "edge", "neo"}

var variantRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(VariantTokens, "|") + `)\b`)

// TargetProduct is the structured form of a user query.
// Every attribute is optional; empty means "not constrained".
type TargetProduct struct {
	Brand       string `json:"brand,omitempty"`
	Model       string `json:"model,omitempty"`
	Storage     string `json:"storage,omitempty"`
	RAM         string `json:"ram,omitempty"`
	Color       string `json:"color,omitempty"`
	Variant     string `json:"variant,omitempty"`
	Category    string `json:"category,omitempty"`
	RawQuery    string `json:"raw_query"`
	SearchQuery string `json:"search_query"`
}

// Relax returns a copy of t with constraints loosened for retry attempt.
// Attempt 1 drops storage; attempt 2 and later also strip variant words
// from the model.
func (t TargetProduct) Relax(attempt int) TargetProduct {
	if attempt < 1 {
		return t
	}
	r := t
	r.Storage = ""
	if attempt >= 2 {
		r.Model = strings.Join(strings.Fields(variantRe.ReplaceAllString(r.Model, " ")), " ")
		r.Variant = ""
	}
	r.SearchQuery = joinNonEmpty(r.Brand, r.Model)
	if r.SearchQuery == "" {
		r.SearchQuery = t.RawQuery
	}
	return r
}

// BuildSearchQuery derives the marketplace search string from brand,
// model and storage, falling back to the raw query.
func (t TargetProduct) BuildSearchQuery() string {
	if q := joinNonEmpty(t.Brand, t.Model, t.Storage); q != "" {
		return q
	}
	return strings.TrimSpace(t.RawQuery)
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
