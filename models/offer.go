package models

import (
	"math"
	"strconv"
	"strings"
)

// Badge labels assigned by the ranker.
const (
	BadgeRecommended = "Recommended"
	BadgeBestPrice   = "Best Price"
	BadgeFastest     = "Fastest Delivery"
	BadgeTrusted     = "Most Trusted"
)

// Weights is the price/delivery/trust weighting for one ranking mode.
type Weights struct {
	Price    float64 `json:"price"`
	Delivery float64 `json:"delivery"`
	Trust    float64 `json:"trust"`
}

// ScoreBreakdown explains how an offer's composite score was formed.
type ScoreBreakdown struct {
	Price    float64 `json:"price"`
	Delivery float64 `json:"delivery"`
	Trust    float64 `json:"trust"`
	Final    float64 `json:"final"`
	Weights  Weights `json:"weights"`
}

// NormalizedOffer is the typed counterpart of a RawListing.
//
// It is created by the extractor and then mutated in place: the matcher
// sets MatchScore, the ranker sets Score, Rank and Badges.
type NormalizedOffer struct {
	Platform     string `json:"platform"`
	PlatformName string `json:"platform_name,omitempty"`
	Title        string `json:"title"`
	ListingURL   string `json:"listing_url"`
	ImageURL     string `json:"image_url,omitempty"`
	// SearchLink marks a ListingURL synthesized from the title because the
	// card had no usable product link.
	SearchLink   bool   `json:"search_link,omitempty"`

	BasePrice       *float64 `json:"base_price"`
	DiscountedPrice *float64 `json:"discounted_price"`
	// EffectivePrice is nil only when no selling price parsed.
	EffectivePrice *float64 `json:"effective_price"`

	DeliveryDaysMin *int     `json:"delivery_days_min"`
	DeliveryDaysMax *int     `json:"delivery_days_max"`
	Rating          *float64 `json:"rating"`
	ReviewCount     *int     `json:"review_count"`

	Shipping     string `json:"shipping,omitempty"`
	Seller       string `json:"seller,omitempty"`
	ReturnPolicy string `json:"return_policy,omitempty"`

	MatchScore float64        `json:"match_score"`
	Score      ScoreBreakdown `json:"score"`
	Rank       int            `json:"rank,omitempty"`
	Badges     []string       `json:"badges,omitempty"`

	// Seq is the arrival order, used as the stable tie-break.
	Seq int `json:"-"`
}

// HasBadge reports whether the offer carries badge.
func (o *NormalizedOffer) HasBadge(badge string) bool {
	for _, b := range o.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

// Rejection records why the matcher dropped an offer.
type Rejection struct {
	Platform string  `json:"platform"`
	Title    string  `json:"title"`
	Gate     string  `json:"gate"`
	Score    float64 `json:"score"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// MatchVerdict is the semantic match-scoring collaborator's answer for a
// title in the uncertain band.
type MatchVerdict struct {
	Score          float64 `json:"match_score"`
	CorrectModel   bool    `json:"is_correct_model"`
	CorrectStorage bool    `json:"is_correct_storage"`
	IsAccessory    bool    `json:"is_accessory"`
	Reason         string  `json:"reason"`
}

// FormatRupees renders v as a whole-rupee amount with thousands
// separators, e.g. ₹49,999.
func FormatRupees(v float64) string {
	n := int64(math.Round(v))
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-₹" + b.String()
	}
	return "₹" + b.String()
}
