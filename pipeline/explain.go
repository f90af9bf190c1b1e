package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/use-agent/pricecompare/models"
)

// noMatchMessage is the explanation for a run that ranked nothing.
const noMatchMessage = "No matching products found for your query. Try a broader search term."

// templateExplanation is used when the explainer collaborator is absent
// or fails: top pick, price gap to the runner-up, one trade-off.
func templateExplanation(ranked []*models.NormalizedOffer, mode models.RankingMode) string {
	if len(ranked) == 0 {
		return noMatchMessage
	}
	top := ranked[0]

	var b strings.Builder
	fmt.Fprintf(&b, "Top pick for %s: %s on %s", mode, top.Title, siteName(top))
	if top.EffectivePrice != nil {
		fmt.Fprintf(&b, " at %s", models.FormatRupees(*top.EffectivePrice))
	}
	b.WriteString(".")

	if len(ranked) == 1 {
		b.WriteString(" It was the only matching offer found.")
		return b.String()
	}

	next := ranked[1]
	if top.EffectivePrice != nil && next.EffectivePrice != nil {
		gap := *next.EffectivePrice - *top.EffectivePrice
		switch {
		case math.Abs(gap) < 1:
			fmt.Fprintf(&b, " %s has it at the same price.", siteName(next))
		case gap > 0:
			fmt.Fprintf(&b, " That is %s less than %s.", models.FormatRupees(gap), siteName(next))
		default:
			fmt.Fprintf(&b, " %s is %s cheaper.", siteName(next), models.FormatRupees(-gap))
		}
	}

	if s := tradeOff(ranked); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	return b.String()
}

// tradeOff names one reason to pick something other than the top offer.
func tradeOff(ranked []*models.NormalizedOffer) string {
	top := ranked[0]
	for _, o := range ranked[1:] {
		if o.HasBadge(models.BadgeBestPrice) && o.EffectivePrice != nil {
			return fmt.Sprintf("If price matters most, %s has the lowest price at %s.", siteName(o), models.FormatRupees(*o.EffectivePrice))
		}
	}
	for _, o := range ranked[1:] {
		if o.HasBadge(models.BadgeFastest) && o.DeliveryDaysMax != nil {
			return fmt.Sprintf("For faster delivery, %s ships in about %d days.", siteName(o), *o.DeliveryDaysMax)
		}
	}
	for _, o := range ranked[1:] {
		if o.HasBadge(models.BadgeTrusted) {
			return fmt.Sprintf("%s scores higher on seller trust.", siteName(o))
		}
	}
	if top.DeliveryDaysMax == nil {
		return "Delivery time for the top pick was not listed."
	}
	return ""
}

func siteName(o *models.NormalizedOffer) string {
	if o.PlatformName != "" {
		return o.PlatformName
	}
	return o.Platform
}
