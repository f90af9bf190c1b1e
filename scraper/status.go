package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/use-agent/pricecompare/engine"
	"github.com/use-agent/pricecompare/models"
)

// maxMessageRunes caps error messages carried in a SiteStatus.
const maxMessageRunes = 100

// StatusFromError maps a scrape error to a site status code.
func StatusFromError(err error) models.SiteStatusCode {
	switch {
	case err == nil:
		return models.StatusOK
	case errors.Is(err, context.DeadlineExceeded), models.HasCode(err, models.ErrCodeTimeout):
		return models.StatusTimeout
	case errors.Is(err, engine.ErrChallenge), models.HasCode(err, models.ErrCodeBotChallenge):
		return models.StatusBotChallenge
	case models.HasCode(err, models.ErrCodeSelectorMiss):
		return models.StatusSelectorError
	case models.HasCode(err, models.ErrCodeNoResults):
		return models.StatusNoResults
	default:
		return models.StatusError
	}
}

// newStatus starts a pending status for cfg.
func newStatus(key, name string) models.SiteStatus {
	return models.SiteStatus{Key: key, Name: name, Status: models.StatusPending, Message: "Starting"}
}

// fail fills st from err.
func fail(st *models.SiteStatus, err error) {
	st.Status = StatusFromError(err)
	st.ListingsFound = 0
	msg := err.Error()
	var se *models.ScrapeError
	if errors.As(err, &se) {
		msg = se.Message
	}
	switch st.Status {
	case models.StatusTimeout:
		st.Message = "Timed out loading " + st.Name
	case models.StatusBotChallenge:
		st.Message = Truncate("Bot challenge detected: "+msg, maxMessageRunes)
	case models.StatusSelectorError, models.StatusNoResults:
		st.Message = Truncate(msg, maxMessageRunes)
	default:
		st.Message = Truncate("Error: "+err.Error(), maxMessageRunes)
	}
}

// succeed fills st for n scraped listings.
func succeed(st *models.SiteStatus, n int) {
	if n == 0 {
		st.Status = models.StatusNoResults
		st.Message = fmt.Sprintf("0 products found on %s", st.Name)
		return
	}
	st.Status = models.StatusOK
	st.ListingsFound = n
	st.Message = fmt.Sprintf("%d listings scraped", n)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
