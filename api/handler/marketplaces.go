package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
)

// Marketplaces is the registry view the handlers need.
type Marketplaces interface {
	All() []*registry.MarketplaceConfig
	Reload() (int, error)
	Len() int
}

// Purger drops cached responses.
type Purger interface {
	Purge()
}

// ListMarketplaces returns a handler for GET /api/v1/marketplaces.
func ListMarketplaces(reg Marketplaces) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"marketplaces": MarketplaceInfos(reg.All())})
	}
}

// ReloadMarketplaces returns a handler for POST /api/v1/marketplaces/reload.
// The response cache is purged because cached runs used the old configs.
func ReloadMarketplaces(reg Marketplaces, cc Purger) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reg.Reload()
		if err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInternal, "marketplace reload failed: "+err.Error(), err))
			return
		}
		if cc != nil {
			cc.Purge()
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "loaded": n})
	}
}

// MarketplaceInfos converts registry entries to their public view.
func MarketplaceInfos(cfgs []*registry.MarketplaceConfig) []models.MarketplaceInfo {
	out := make([]models.MarketplaceInfo, 0, len(cfgs))
	for _, m := range cfgs {
		out = append(out, models.MarketplaceInfo{
			Key:        m.Key,
			Name:       m.Name,
			Enabled:    m.IsEnabled(),
			BaseURL:    m.BaseURL,
			Parser:     m.Parser,
			TrustPrior: m.Trust(),
			Brands:     m.BrandAffinity,
		})
	}
	return out
}
