// Package api wires the HTTP routes.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/use-agent/pricecompare/api/handler"
	"github.com/use-agent/pricecompare/api/middleware"
	"github.com/use-agent/pricecompare/config"
	"github.com/use-agent/pricecompare/metrics"
)

// Deps are the components behind the routes. Metrics may be nil.
type Deps struct {
	Service      handler.Comparer
	Cache        handler.Purger
	Marketplaces handler.Marketplaces
	Health       handler.HealthDeps
	Metrics      *metrics.Metrics
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so monitoring probes always work.
func NewRouter(d Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Health))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Comparison
	protected.POST("/compare", handler.Compare(d.Service))
	protected.POST("/compare/stream", handler.Stream(d.Service))
	protected.POST("/compare/debug", handler.Debug(d.Service))

	// Marketplaces
	protected.GET("/marketplaces", handler.ListMarketplaces(d.Marketplaces))
	protected.POST("/marketplaces/reload", handler.ReloadMarketplaces(d.Marketplaces, d.Cache))

	return r
}
