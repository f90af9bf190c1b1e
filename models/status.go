package models

// SiteStatusCode is the outcome of one marketplace scrape.
type SiteStatusCode string

const (
	StatusPending       SiteStatusCode = "pending"
	StatusOK            SiteStatusCode = "ok"
	StatusNoResults     SiteStatusCode = "no_results"
	StatusBotChallenge  SiteStatusCode = "bot_challenge"
	StatusTimeout       SiteStatusCode = "timeout"
	StatusSelectorError SiteStatusCode = "selector_error"
	StatusError         SiteStatusCode = "error"
)

// SiteStatus reports what happened on a single marketplace during a run.
// Exactly one is produced per requested marketplace key.
type SiteStatus struct {
	Key           string         `json:"key"`
	Name          string         `json:"name"`
	Status        SiteStatusCode `json:"status"`
	Message       string         `json:"message,omitempty"`
	ListingsFound int            `json:"listings_found"`
}
