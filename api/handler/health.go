package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pricecompare/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Sessions reports browser session pool usage.
type Sessions interface {
	Active() int
	Max() int
}

// HealthDeps are the components the health endpoint inspects.
type HealthDeps struct {
	Sessions     Sessions
	BrowserPID   int
	Marketplaces Marketplaces
	LLMEnabled   bool
	Start        time.Time
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when > 80% of browser sessions are active or no
// marketplace is loaded.
func Health(d HealthDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.SessionStats
		if d.Sessions != nil {
			stats = models.SessionStats{MaxSessions: d.Sessions.Max(), ActiveSessions: d.Sessions.Active(), BrowserPID: d.BrowserPID}
		}
		n := 0
		if d.Marketplaces != nil {
			n = d.Marketplaces.Len()
		}

		status := "healthy"
		if n == 0 || (stats.MaxSessions > 0 && stats.ActiveSessions > int(float64(stats.MaxSessions)*0.8)) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(d.Start).Round(time.Second).String(),
			Sessions:     stats,
			Marketplaces: n,
			LLMEnabled:   d.LLMEnabled,
			Version:      Version,
		})
	}
}
