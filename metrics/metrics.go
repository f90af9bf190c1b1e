// Package metrics holds the Prometheus collectors for price comparison.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	SiteStatusTotal    *prometheus.CounterVec
	ScrapeDuration     *prometheus.HistogramVec
	PipelineRunsTotal  *prometheus.CounterVec
	PipelineRetries    prometheus.Counter
	NullPriceTotal     prometheus.Counter
	RejectionsTotal    *prometheus.CounterVec
	LLMCallsTotal      *prometheus.CounterVec
	SelectorsTotal     *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	siteStatus := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_site_status_total",
			Help: "Site scrape outcomes by marketplace and status.",
		},
		[]string{"site", "status"},
	)
	scrapeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricecompare_scrape_duration_seconds",
			Help:    "Wall time of one marketplace scrape, retries included.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"site"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_pipeline_runs_total",
			Help: "Comparison runs by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricecompare_pipeline_retries_total",
			Help: "Re-plans triggered by an empty match set.",
		},
	)
	nullPrice := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricecompare_null_price_offers_total",
			Help: "Offers whose selling price could not be parsed.",
		},
	)
	rejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_matcher_rejections_total",
			Help: "Offers rejected by the matcher, by gate.",
		},
		[]string{"gate"},
	)
	llmCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_llm_calls_total",
			Help: "LLM collaborator calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	selectors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_selector_resolutions_total",
			Help: "Selector resolutions by field and winning tier.",
		},
		[]string{"field", "tier"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricecompare_cache_lookups_total",
			Help: "Response cache lookups by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(siteStatus, scrapeDuration, runs, retries, nullPrice,
		rejections, llmCalls, selectors, cacheLookups)

	return &Metrics{
		Registry:           registry,
		SiteStatusTotal:    siteStatus,
		ScrapeDuration:     scrapeDuration,
		PipelineRunsTotal:  runs,
		PipelineRetries:    retries,
		NullPriceTotal:     nullPrice,
		RejectionsTotal:    rejections,
		LLMCallsTotal:      llmCalls,
		SelectorsTotal:     selectors,
		CacheLookups:       cacheLookups,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// SiteStatus counts one site outcome.
func (m *Metrics) SiteStatus(site, status string) {
	if m == nil {
		return
	}
	m.SiteStatusTotal.WithLabelValues(site, status).Inc()
}

// ObserveScrape records a site scrape duration.
func (m *Metrics) ObserveScrape(site string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScrapeDuration.WithLabelValues(site).Observe(d.Seconds())
}

// PipelineRun counts a finished run.
func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(outcome).Inc()
}

// PipelineRetry counts a re-plan.
func (m *Metrics) PipelineRetry() {
	if m == nil {
		return
	}
	m.PipelineRetries.Inc()
}

// NullPrice adds n null-price offers.
func (m *Metrics) NullPrice(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NullPriceTotal.Add(float64(n))
}

// Rejection counts a matcher rejection at gate.
func (m *Metrics) Rejection(gate string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(gate).Inc()
}

// LLMCall counts a collaborator call.
func (m *Metrics) LLMCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.LLMCallsTotal.WithLabelValues(operation, outcome).Inc()
}

// SelectorResolution counts which tier resolved a field.
func (m *Metrics) SelectorResolution(field, tier string) {
	if m == nil {
		return
	}
	m.SelectorsTotal.WithLabelValues(field, tier).Inc()
}

// CacheLookup counts a response cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
