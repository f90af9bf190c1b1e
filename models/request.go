package models

// CompareRequest is the payload for POST /api/v1/compare and its
// stream and debug variants.
type CompareRequest struct {
	// Query is the free-text product query. Required.
	Query string `json:"query" binding:"required,min=2,max=200"`

	// Mode selects the ranking weights.
	// One of "cheapest", "fastest", "reliable", "balanced". Default: "balanced".
	Mode string `json:"mode,omitempty" binding:"omitempty,oneof=cheapest fastest reliable balanced"`

	// AllowedMarketplaces restricts the run to these registry keys.
	// Empty means the planner picks from every enabled marketplace.
	AllowedMarketplaces []string `json:"allowed_marketplaces,omitempty" binding:"omitempty,max=20"`

	// MaxPerSite caps listings scraped from each marketplace.
	// Default: 0 (use the orchestrator setting). Max: 20.
	MaxPerSite int `json:"max_per_site,omitempty" binding:"omitempty,min=1,max=20"`

	// NoCache bypasses the response cache.
	NoCache bool `json:"no_cache,omitempty"`

	// WebhookURL receives a signed compare.completed event when set.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults fills zero-valued optional fields.
func (r *CompareRequest) Defaults() {
	r.Mode = string(ParseMode(r.Mode))
}
