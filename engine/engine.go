// Package engine fetches marketplace result pages for the specialized
// parsers, racing a fingerprinted HTTP client against a browser.
package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/use-agent/pricecompare/cleaner"
	"github.com/use-agent/pricecompare/models"
)

// ErrChallenge marks a fetched page that is a bot challenge, not results.
var ErrChallenge = errors.New("bot challenge page")

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http", "browser").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Cookies []http.Cookie
	Timeout time.Duration

	// BotPhrases are lower-cased phrases whose presence in the visible
	// text marks the page as a challenge.
	BotPhrases []string

	// ReadySelector, when set, is awaited by browser engines.
	ReadySelector string

	// Scroll asks browser engines to scroll for lazy-loaded cards.
	Scroll bool
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}

// CheckChallenge returns a BOT_CHALLENGE error wrapping ErrChallenge when
// the page matches one of phrases.
func CheckChallenge(html string, phrases []string) error {
	if p := cleaner.MatchPhrase(html, phrases); p != "" {
		return models.NewScrapeError(models.ErrCodeBotChallenge, "challenge phrase: "+p, ErrChallenge)
	}
	return nil
}
