package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/use-agent/pricecompare/models"
)

func renderResponse(w io.Writer, resp *models.CompareResponse) {
	p := resp.Product
	fmt.Fprintf(w, "\nProduct: %s\n", strings.Join(strings.Fields(strings.Join([]string{p.Brand, p.Model, p.Variant, p.Storage}, " ")), " "))
	fmt.Fprintf(w, "Mode: %s  Attempts: %d  Time: %.2fs\n\n", resp.Mode, resp.Attempts, resp.QueryTimeSeconds)

	renderStatuses(w, resp.Statuses)
	if len(resp.Offers) > 0 {
		fmt.Fprintln(w)
		renderOffers(w, resp.Offers)
	}
	fmt.Fprintf(w, "\n%s\n", resp.Explanation)
	for _, e := range resp.Errors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
}

func renderOffers(w io.Writer, offers []*models.NormalizedOffer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Site", "Title", "Price", "Delivery", "Rating", "Score", "Badges"})
	for _, o := range offers {
		t.AppendRow(table.Row{
			o.Rank,
			siteLabel(o.PlatformName, o.Platform),
			truncate(o.Title, 60),
			price(o.EffectivePrice),
			delivery(o.DeliveryDaysMin, o.DeliveryDaysMax),
			rating(o.Rating, o.ReviewCount),
			fmt.Sprintf("%.3f", o.Score.Final),
			strings.Join(o.Badges, ", "),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func renderStatuses(w io.Writer, statuses []models.SiteStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Site", "Status", "Listings", "Message"})
	for _, s := range statuses {
		t.AppendRow(table.Row{siteLabel(s.Name, s.Key), s.Status, s.ListingsFound, truncate(s.Message, 60)})
	}
	t.Render()
}

func renderSites(w io.Writer, infos []models.MarketplaceInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Key", "Name", "Enabled", "Base URL", "Parser", "Trust", "Brands"})
	for _, m := range infos {
		parser := m.Parser
		if parser == "" {
			parser = "browser"
		}
		t.AppendRow(table.Row{m.Key, m.Name, m.Enabled, m.BaseURL, parser, fmt.Sprintf("%.2f", m.TrustPrior), strings.Join(m.Brands, ", ")})
	}
	t.Render()
}

func siteLabel(name, key string) string {
	if name != "" {
		return name
	}
	return key
}

func price(v *float64) string {
	if v == nil {
		return "-"
	}
	return models.FormatRupees(*v)
}

func delivery(lo, hi *int) string {
	switch {
	case hi == nil:
		return "unknown"
	case *hi == 0:
		return "today"
	case lo != nil && *lo != *hi:
		return fmt.Sprintf("%d-%d days", *lo, *hi)
	case *hi == 1:
		return "1 day"
	}
	return fmt.Sprintf("%d days", *hi)
}

func rating(r *float64, n *int) string {
	if r == nil {
		return "-"
	}
	if n == nil {
		return fmt.Sprintf("%.1f", *r)
	}
	return fmt.Sprintf("%.1f (%d)", *r, *n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
