package pipeline

import "github.com/use-agent/pricecompare/models"

// Event types emitted to an Observer, in run order.
const (
	EventScrapingStarted = "scraping_started"
	EventSiteDone        = "site_done"
	EventMatchingDone    = "matching_done"
	EventRankingDone     = "ranking_done"
	EventFinalResult     = "final_result"
	EventError           = "error"
)

// Event is one progress notification.
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

// Observer receives progress events. It is called from the pipeline's
// goroutine, never concurrently.
type Observer func(Event)

// ScrapingStarted is the data of a scraping_started event.
type ScrapingStarted struct {
	RunID   string               `json:"run_id"`
	Attempt int                  `json:"attempt"`
	Sites   []string             `json:"sites"`
	Product models.TargetProduct `json:"normalized_product"`
}

// MatchingDone is the data of a matching_done event.
type MatchingDone struct {
	Attempt  int `json:"attempt"`
	Offers   int `json:"offers"`
	Matched  int `json:"matched"`
	Rejected int `json:"rejected"`
}

// RankingDone is the data of a ranking_done event.
type RankingDone struct {
	Ranked int                     `json:"ranked"`
	Best   *models.NormalizedOffer `json:"best_deal,omitempty"`
}

// ErrorData is the data of an error event.
type ErrorData struct {
	Message string `json:"message"`
}
