package engine

import (
	"context"
	"fmt"
)

// BrowserFetchFunc captures a page through the scraper's browser sessions.
// It is injected from main to avoid an import cycle (engine -> scraper).
type BrowserFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// BrowserEngine renders pages in a stealth browser session.
type BrowserEngine struct {
	fetchFunc BrowserFetchFunc
}

// NewBrowserEngine creates a BrowserEngine backed by fetchFunc.
func NewBrowserEngine(fetchFunc BrowserFetchFunc) *BrowserEngine {
	return &BrowserEngine{fetchFunc: fetchFunc}
}

func (e *BrowserEngine) Name() string { return "browser" }

func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("browser: fetchFunc not configured")
	}

	result, err := e.fetchFunc(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("browser: %w", err)
	}
	if err := CheckChallenge(result.HTML, req.BotPhrases); err != nil {
		return nil, fmt.Errorf("browser: %w", err)
	}

	result.EngineName = e.Name()
	return result, nil
}
