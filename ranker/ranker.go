// Package ranker scores matched offers for a ranking mode, caps them per
// marketplace, orders them and hands out badges.
package ranker

import (
	"log/slog"
	"math"
	"sort"

	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
)

// Lookup resolves a marketplace key to its config, for the trust prior.
type Lookup interface {
	Get(key string) (*registry.MarketplaceConfig, bool)
}

// defaultTrustPrior is used for sites missing from the lookup.
const defaultTrustPrior = 0.7

// trustSpread is the minimum max-min trust difference for Most Trusted.
const trustSpread = 0.01

// Options holds ranking thresholds and the weight table.
type Options struct {
	MinComposite float64
	MaxPerSite   int
	Weights      map[models.RankingMode]models.Weights
}

// Ranker produces the final ordered offer list.
type Ranker struct {
	opts   Options
	lookup Lookup
}

// New creates a Ranker. lookup may be nil.
func New(opts Options, lookup Lookup) *Ranker {
	return &Ranker{opts: opts, lookup: lookup}
}

// Weights returns the weight table entry for mode, falling back to balanced.
func (r *Ranker) Weights(mode models.RankingMode) models.Weights {
	if w, ok := r.opts.Weights[mode]; ok {
		return w
	}
	if w, ok := r.opts.Weights[models.ModeBalanced]; ok {
		return w
	}
	return models.Weights{Price: 0.40, Delivery: 0.25, Trust: 0.35}
}

// Rank scores offers in place and returns the ranked list. Offers without
// a price are skipped.
func (r *Ranker) Rank(offers []*models.NormalizedOffer, mode models.RankingMode) []*models.NormalizedOffer {
	w := r.Weights(mode)

	lowest := math.Inf(1)
	for _, o := range offers {
		if o.EffectivePrice != nil && *o.EffectivePrice > 0 {
			lowest = math.Min(lowest, *o.EffectivePrice)
		}
	}
	if math.IsInf(lowest, 1) {
		return nil
	}

	// ── 1. Score ─────────────────────────────────────────────────────
	scored := make([]*models.NormalizedOffer, 0, len(offers))
	for _, o := range offers {
		if o.EffectivePrice == nil || *o.EffectivePrice <= 0 {
			continue
		}
		ps := PriceScore(*o.EffectivePrice, lowest)
		ds := DeliveryScore(o.DeliveryDaysMax)
		ts := TrustScore(r.prior(o.Platform), o.Rating, o.ReviewCount)
		o.Score = models.ScoreBreakdown{
			Price:    round3(ps),
			Delivery: round3(ds),
			Trust:    round3(ts),
			Final:    round3(w.Price*ps + w.Delivery*ds + w.Trust*ts),
			Weights:  w,
		}
		if o.Score.Final < r.opts.MinComposite {
			slog.Debug("ranker: below minimum composite", "site", o.Platform, "score", o.Score.Final)
			continue
		}
		scored = append(scored, o)
	}

	// ── 2. Order ─────────────────────────────────────────────────────
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score.Final != scored[j].Score.Final {
			return scored[i].Score.Final > scored[j].Score.Final
		}
		return scored[i].Seq < scored[j].Seq
	})

	// ── 3. Cap per site ──────────────────────────────────────────────
	if r.opts.MaxPerSite > 0 {
		perSite := make(map[string]int)
		capped := scored[:0]
		for _, o := range scored {
			if perSite[o.Platform] >= r.opts.MaxPerSite {
				continue
			}
			perSite[o.Platform]++
			capped = append(capped, o)
		}
		scored = capped
	}

	// ── 4. Rank and badge ────────────────────────────────────────────
	for i, o := range scored {
		o.Rank = i + 1
		o.Badges = nil
	}
	assignBadges(scored)

	if len(scored) > 0 {
		slog.Info("ranker: ranked", "mode", mode, "offers", len(scored),
			"top", scored[0].Platform, "score", scored[0].Score.Final)
	}
	return scored
}

func (r *Ranker) prior(site string) float64 {
	if r.lookup != nil {
		if cfg, ok := r.lookup.Get(site); ok {
			return cfg.Trust()
		}
	}
	return defaultTrustPrior
}

// assignBadges badges the extremes of a ranked list. The first offer in
// rank order wins ties.
func assignBadges(ranked []*models.NormalizedOffer) {
	if len(ranked) == 0 {
		return
	}
	ranked[0].Badges = append(ranked[0].Badges, models.BadgeRecommended)

	cheapest := ranked[0]
	var fastest *models.NormalizedOffer
	trusted := ranked[0]
	minTrust := ranked[0].Score.Trust
	for _, o := range ranked {
		if *o.EffectivePrice < *cheapest.EffectivePrice {
			cheapest = o
		}
		if o.DeliveryDaysMax != nil && (fastest == nil || *o.DeliveryDaysMax < *fastest.DeliveryDaysMax) {
			fastest = o
		}
		if o.Score.Trust > trusted.Score.Trust {
			trusted = o
		}
		minTrust = math.Min(minTrust, o.Score.Trust)
	}

	cheapest.Badges = append(cheapest.Badges, models.BadgeBestPrice)
	if fastest != nil {
		fastest.Badges = append(fastest.Badges, models.BadgeFastest)
	}
	if trusted.Score.Trust-minTrust > trustSpread {
		trusted.Badges = append(trusted.Badges, models.BadgeTrusted)
	}
}

// PriceScore is lowest/price, capped at 1.
func PriceScore(price, lowest float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Min(lowest/price, 1)
}

// DeliveryScore steps down with the maximum delivery days. Unknown
// delivery scores a neutral 0.3.
func DeliveryScore(days *int) float64 {
	if days == nil {
		return 0.3
	}
	switch d := *days; {
	case d <= 0:
		return 1.0
	case d == 1:
		return 0.9
	case d == 2:
		return 0.8
	case d <= 3:
		return 0.7
	case d <= 5:
		return 0.5
	case d <= 7:
		return 0.35
	default:
		return 0.2
	}
}

// TrustScore blends the site prior, the rating and a log-scaled review
// count. An unknown rating counts as 3 out of 5.
func TrustScore(prior float64, rating *float64, reviews *int) float64 {
	r := 0.6
	if rating != nil {
		r = math.Max(0, math.Min(*rating/5, 1))
	}
	var rv float64
	if reviews != nil && *reviews > 0 {
		rv = math.Min(math.Log10(1+float64(*reviews))/4, 1)
	}
	return 0.4*prior + 0.4*r + 0.2*rv
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
