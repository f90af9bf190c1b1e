// Package extractor turns raw listing text into typed offers: prices,
// ratings, review counts and delivery estimates, canonical URLs and a
// de-duplicated offer list.
package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// Accepted price bounds; numbers outside are page noise (EMI amounts,
// model numbers, pin codes).
const (
	MinPrice = 50.0
	MaxPrice = 500000.0
)

var (
	// Longest markers first so "Rs." is not left as ".".
	currencyMarkers = strings.NewReplacer(
		"₹", " ", "Rs.", " ", "Rs", " ", "INR", " ", "MRP", " ",
		",", "", "\u00a0", " ",
	)
	priceRe = regexp.MustCompile(`\d+(?:\.\d{1,2})?`)

	outOfFiveRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:out of|/)\s*5\b`)
	floatRe     = regexp.MustCompile(`\d+(?:\.\d+)?`)

	reviewRe = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(k|l|lakh|lac|m)?\b`)
)

// ParsePrice returns the first price in text and whether it is within
// [MinPrice, MaxPrice].
func ParsePrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	m := priceRe.FindString(currencyMarkers.Replace(text))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v < MinPrice || v > MaxPrice {
		return 0, false
	}
	return v, true
}

// ParseRating reads "4.3 out of 5 stars", "4.3/5" or a bare "4.3".
// Values outside [0,5] are rejected.
func ParseRating(text string) (float64, bool) {
	var raw string
	if m := outOfFiveRe.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else {
		raw = floatRe.FindString(text)
	}
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// ParseReviewCount reads the first count, expanding "1.2k", "3L" and
// "2 lakh" style suffixes.
func ParseReviewCount(text string) (int, bool) {
	m := reviewRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		v *= 1_000
	case "l", "lakh", "lac":
		v *= 100_000
	case "m":
		v *= 1_000_000
	}
	return int(v + 0.5), true
}

var (
	dayRangeRe = regexp.MustCompile(`(\d+)\s*(?:-|–|to)\s*(\d+)\s*days?`)
	inDaysRe   = regexp.MustCompile(`in\s+(\d+)\s+days?`)
	monthDayRe = regexp.MustCompile(`\b(\d{1,2})\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`)
)

// deliveryKeywords is checked in order; the first keyword found wins.
var deliveryKeywords = []struct {
	word     string
	min, max int
}{
	{"today", 0, 0},
	{"tonight", 0, 0},
	{"tomorrow", 1, 1},
	{"monday", 1, 3},
	{"tuesday", 1, 3},
	{"wednesday", 1, 3},
	{"thursday", 1, 3},
	{"friday", 1, 3},
	{"saturday", 1, 4},
	{"sunday", 1, 4},
}

// ParseDelivery estimates (min, max) delivery days. Both are nil when
// nothing in text is recognised.
func ParseDelivery(text string) (min, max *int) {
	if text == "" {
		return nil, nil
	}
	t := strings.ToLower(text)

	if m := dayRangeRe.FindStringSubmatch(t); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if hi < lo {
			lo, hi = hi, lo
		}
		return &lo, &hi
	}
	if m := inDaysRe.FindStringSubmatch(t); m != nil {
		d, _ := strconv.Atoi(m[1])
		return &d, intPtr(d)
	}
	for _, k := range deliveryKeywords {
		if strings.Contains(t, k.word) {
			return intPtr(k.min), intPtr(k.max)
		}
	}
	if monthDayRe.MatchString(t) {
		return intPtr(1), intPtr(7)
	}
	return nil, nil
}

func intPtr(v int) *int { return &v }
