package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/selector"
)

const parseSystem = `You are a product query parser for Indian e-commerce.
Return ONLY this JSON (no markdown):
{"brand":"","model":"","storage":null,"ram":null,"color":null,
 "variant":null,"category":"smartphone","optimized_search_query":""}

Rules:
- brand: capitalize first letter (Apple, Samsung)
- model: full model name without brand (iPhone 15, Galaxy S24 Ultra)
- storage: capacity like 128GB, 256GB, 1TB, or null
- category: smartphone|laptop|tablet|audio|wearable|tv|other
- optimized_search_query: best string for e-commerce search (brand+model+storage)`

type parseReply struct {
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Storage     string `json:"storage"`
	RAM         string `json:"ram"`
	Color       string `json:"color"`
	Variant     string `json:"variant"`
	Category    string `json:"category"`
	SearchQuery string `json:"optimized_search_query"`
}

// ParseQuery turns a free-text query into a TargetProduct.
func (c *Client) ParseQuery(ctx context.Context, query string) (*models.TargetProduct, error) {
	var r parseReply
	if err := c.completeJSON(ctx, completion{op: "parse_query", system: parseSystem, user: "Query: " + query}, &r); err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Brand) == "" && strings.TrimSpace(r.Model) == "" {
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "LLM parse returned neither brand nor model", nil)
	}

	t := &models.TargetProduct{
		Brand:    strings.TrimSpace(r.Brand),
		Model:    strings.TrimSpace(r.Model),
		Storage:  strings.ToUpper(strings.ReplaceAll(r.Storage, " ", "")),
		RAM:      strings.ToUpper(strings.ReplaceAll(r.RAM, " ", "")),
		Color:    strings.TrimSpace(r.Color),
		Variant:  strings.TrimSpace(r.Variant),
		Category: strings.ToLower(strings.TrimSpace(r.Category)),
		RawQuery: query,
	}
	if t.Category == "" {
		t.Category = "smartphone"
	}
	t.SearchQuery = strings.TrimSpace(r.SearchQuery)
	if t.SearchQuery == "" {
		t.SearchQuery = t.BuildSearchQuery()
	}
	return t, nil
}

const cardSystem = `You are an Indian e-commerce product data extractor. Given raw text from a single product card, extract fields as JSON.

RULES:
- price: current selling price as float in INR (strip ₹ Rs commas). null if absent.
- original_price: MRP/strikethrough price as float. null if absent.
- delivery_days_max: max delivery days as int ("3-5 days"→5, "tomorrow"→1, "today"→0). null if absent.
- seller_rating: rating out of 5 as float. null if absent.
- review_count: number of ratings/reviews as int. null if absent.
- title: clean product name (brand+model+storage+color). Remove: "Add to Compare" "Coming Soon" "Sponsored".
- is_accessory: true ONLY for case/cover/screen protector/charger/cable/earphone, NOT the device itself.

Return ONLY this JSON (no markdown, no explanation):
{"title":"","price":null,"original_price":null,"delivery_days_max":null,"seller_rating":null,"review_count":null,"is_accessory":false}`

// maxCardText bounds the card text sent for extraction.
const maxCardText = 500

// number decodes a JSON number or a numeric string such as "₹49,999".
type number struct {
	v  float64
	ok bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.v, n.ok = f, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", ",", "", " ", "").Replace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n.v, n.ok = f, true
	}
	return nil
}

func (n number) asFloat() *float64 {
	if !n.ok {
		return nil
	}
	return models.Float(n.v)
}

func (n number) asInt() *int {
	if !n.ok || n.v < 0 {
		return nil
	}
	return models.Int(int(math.Round(n.v)))
}

type cardReply struct {
	Title           string `json:"title"`
	Price           number `json:"price"`
	OriginalPrice   number `json:"original_price"`
	DeliveryDaysMax number `json:"delivery_days_max"`
	Rating          number `json:"seller_rating"`
	ReviewCount     number `json:"review_count"`
	IsAccessory     bool   `json:"is_accessory"`
}

// ExtractCard reads listing fields from one card's text with the fast
// model. Text shorter than five characters yields nil, nil.
func (c *Client) ExtractCard(ctx context.Context, cardText, siteKey string) (*models.CardFields, error) {
	cardText = strings.TrimSpace(cardText)
	if len([]rune(cardText)) < 5 {
		return nil, nil
	}
	var r cardReply
	err := c.completeJSON(ctx, completion{
		op:     "extract_card",
		system: cardSystem,
		user:   fmt.Sprintf("Platform: %s\nCard:\n%s", siteKey, truncate(cardText, maxCardText)),
		fast:   true,
	}, &r)
	if err != nil {
		return nil, err
	}

	f := &models.CardFields{
		Title:           strings.TrimSpace(r.Title),
		Price:           r.Price.asFloat(),
		OriginalPrice:   r.OriginalPrice.asFloat(),
		DeliveryDaysMax: r.DeliveryDaysMax.asInt(),
		ReviewCount:     r.ReviewCount.asInt(),
		IsAccessory:     r.IsAccessory,
	}
	if rt := r.Rating.asFloat(); rt != nil && *rt >= 0 && *rt <= 5 {
		f.Rating = rt
	}
	slog.Debug("llm: card extracted", "site", siteKey, "title", truncate(f.Title, 40), "has_price", f.Price != nil)
	return f, nil
}

const matchSystem = `You are a product matching expert for Indian e-commerce.

match_score guide:
1.00 = Perfect: brand + model + storage + color all match
0.85 = Good: brand + model + storage match; color differs
0.70 = OK: brand + model match; storage differs
0.50 = Weak: same product family but different variant (iPhone 15 Pro is not iPhone 15)
0.20 = Poor: same brand, different model generation (iPhone 13 is not iPhone 15)
0.00 = No match: completely different product OR is an accessory

CRITICAL: is_correct_model = false when model numbers differ (13 vs 15, S23 vs S24).
is_accessory = true for cases/covers/chargers/cables/earphones/screen protectors.

Return ONLY this JSON:
{"match_score":0.0,"is_correct_model":true,"is_correct_storage":true,"is_accessory":false,"reason":""}`

// ScoreMatch judges whether title is the target product.
func (c *Client) ScoreMatch(ctx context.Context, title string, target models.TargetProduct) (*models.MatchVerdict, error) {
	user := fmt.Sprintf("Target: brand=%s, model=%s, storage=%s, color=%s\nListing: %q",
		orAny(target.Brand), orAny(target.Model), orAny(target.Storage), orAny(target.Color), title)

	var v models.MatchVerdict
	if err := c.completeJSON(ctx, completion{op: "match", system: matchSystem, user: user}, &v); err != nil {
		return nil, err
	}
	v.Score = math.Max(0, math.Min(1, v.Score))
	slog.Debug("llm: match verdict", "score", v.Score, "correct_model", v.CorrectModel, "reason", truncate(v.Reason, 50))
	return &v, nil
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

const explainSystem = `You are a friendly Indian e-commerce shopping assistant.
Write a 3-5 sentence recommendation paragraph for the user.

RULES:
- Explain which offer is best and WHY for the user's preference mode.
- Mention the EXACT price difference between the top 2 offers (in ₹).
- Include delivery speed and seller trust context.
- Mode-aware reasoning:
  - cheapest: emphasize price savings and value.
  - fastest: emphasize delivery speed and convenience.
  - reliable: emphasize rating and seller trust.
  - balanced: balanced commentary across all factors.
- Use ₹ for prices (e.g. ₹49,999). Be conversational, no bullet points.
- Max 120 words. No markdown. No extra formatting.`

// Explain writes a short recommendation for the ranked offers.
func (c *Client) Explain(ctx context.Context, offers []*models.NormalizedOffer, mode models.RankingMode, query string) (string, error) {
	if len(offers) == 0 {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "nothing to explain", nil)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\nPreference: %s\n\nRanked offers:\n", query, mode)
	for _, o := range offers[:min(5, len(offers))] {
		fmt.Fprintf(&b, "- %s: %s | delivery:%s | rating:%s/5 | match:%d%%",
			offerName(o), priceText(o.EffectivePrice), daysText(o.DeliveryDaysMax),
			ratingText(o.Rating), int(o.MatchScore*100))
		if len(o.Badges) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(o.Badges, ", "))
		}
		b.WriteByte('\n')
	}
	if len(offers) >= 2 && offers[0].EffectivePrice != nil && offers[1].EffectivePrice != nil {
		diff := math.Abs(*offers[1].EffectivePrice - *offers[0].EffectivePrice)
		fmt.Fprintf(&b, "\nPrice difference between top 2: %s.", models.FormatRupees(diff))
	}
	fmt.Fprintf(&b, "\nRecommend %s at %s. Write 3-5 sentences.", offerName(offers[0]), priceText(offers[0].EffectivePrice))

	text, err := c.complete(ctx, completion{op: "explain", system: explainSystem, user: b.String(), maxTokens: 200})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "empty explanation", nil)
	}
	return text, nil
}

func offerName(o *models.NormalizedOffer) string {
	if o.PlatformName != "" {
		return o.PlatformName
	}
	return o.Platform
}

func priceText(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return models.FormatRupees(*p)
}

func daysText(d *int) string {
	if d == nil {
		return "?"
	}
	return strconv.Itoa(*d) + "d"
}

func ratingText(r *float64) string {
	if r == nil {
		return "?"
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}

const discoverSystem = `You are a web scraping expert for Indian e-commerce. Analyze the HTML and find stable CSS selectors for product listings.

RULES:
- Prefer [data-*] attributes over class names (most stable)
- Prefer [class*="keyword"] patterns over exact hash-based classes
- container: selector matching each individual product card (must match 2+ elements)
- title: selector for product name (relative to container)
- price: selector for current/discounted price (relative to container)
- original_price: selector for MRP/was-price (relative to container), null if none
- listing_url: selector for the product <a> link (relative to container)

Return ONLY this JSON:
{"container":"","title":"","price":"","original_price":null,"listing_url":""}`

// DiscoverSelectors proposes card selectors from a page sample. The
// selector engine validates the proposal against the live page.
func (c *Client) DiscoverSelectors(ctx context.Context, htmlSample, siteKey string) (*selector.Proposal, error) {
	if strings.TrimSpace(htmlSample) == "" {
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "empty page sample", nil)
	}
	var p selector.Proposal
	err := c.completeJSON(ctx, completion{
		op:     "discover_selectors",
		system: discoverSystem,
		user:   fmt.Sprintf("Site: %s\nHTML:\n%s", siteKey, htmlSample),
	}, &p)
	if err != nil {
		return nil, err
	}
	p.Container = strings.TrimSpace(p.Container)
	p.Title = strings.TrimSpace(p.Title)
	p.Price = strings.TrimSpace(p.Price)
	p.OriginalPrice = strings.TrimSpace(p.OriginalPrice)
	p.ListingURL = strings.TrimSpace(p.ListingURL)
	if p.Container == "" {
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "no container proposed", nil)
	}
	slog.Info("llm: selectors proposed", "site", siteKey, "container", p.Container)
	return &p, nil
}
