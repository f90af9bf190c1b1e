// Command pricecompare-mcp exposes the comparison API as MCP tools over
// stdio for agent clients.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/pricecompare/models"
)

func main() {
	apiURL := os.Getenv("PC_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	api := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("PC_API_KEY"),
		http:    &http.Client{Timeout: 180 * time.Second},
	}

	s := server.NewMCPServer(
		"pricecompare",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	compareTool := mcp.NewTool("compare_prices",
		mcp.WithDescription("Compare a product's price, delivery time and seller trust across Indian marketplaces (Amazon, Flipkart, Croma, ...). Returns ranked offers with badges and a short recommendation."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Product to search for, e.g. 'Samsung Galaxy S24 128GB'"),
		),
		mcp.WithString("mode",
			mcp.Description("Ranking mode (default: 'balanced')"),
			mcp.Enum("cheapest", "fastest", "reliable", "balanced"),
		),
		mcp.WithString("marketplaces",
			mcp.Description("Comma-separated marketplace keys to restrict the search, e.g. 'amazon,croma'. Empty searches every enabled marketplace."),
		),
		mcp.WithNumber("max_per_site",
			mcp.Description("Maximum listings per marketplace (1-20)"),
		),
	)
	s.AddTool(compareTool, handleCompare(api))

	listTool := mcp.NewTool("list_marketplaces",
		mcp.WithDescription("List the marketplaces the comparison service can search."),
	)
	s.AddTool(listTool, handleListMarketplaces(api))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiClient calls the pricecompare HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func (a *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var e models.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != nil {
			return fmt.Errorf("[%s] %s", e.Error.Code, e.Error.Message)
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func handleCompare(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		req := models.CompareRequest{
			Query:      query,
			Mode:       request.GetString("mode", ""),
			MaxPerSite: request.GetInt("max_per_site", 0),
		}
		for _, k := range strings.Split(request.GetString("marketplaces", ""), ",") {
			if k = strings.TrimSpace(k); k != "" {
				req.AllowedMarketplaces = append(req.AllowedMarketplaces, k)
			}
		}

		var resp models.CompareResponse
		if err := api.do(ctx, http.MethodPost, "/api/v1/compare", req, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError("comparison failed: " + strings.Join(resp.Errors, "; ")), nil
		}
		return mcp.NewToolResultText(formatComparison(&resp)), nil
	}
}

func handleListMarketplaces(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var list struct {
			Marketplaces []models.MarketplaceInfo `json:"marketplaces"`
		}
		if err := api.do(ctx, http.MethodGet, "/api/v1/marketplaces", nil, &list); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var b strings.Builder
		for _, m := range list.Marketplaces {
			state := "enabled"
			if !m.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(&b, "- %s (%s): %s, trust %.2f\n", m.Key, m.Name, state, m.TrustPrior)
		}
		if b.Len() == 0 {
			return mcp.NewToolResultText("No marketplaces configured."), nil
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// formatComparison renders a response as compact text for a model.
func formatComparison(resp *models.CompareResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s (mode: %s)\n", resp.Query, resp.Mode)
	if len(resp.Offers) == 0 {
		b.WriteString(resp.Explanation)
		b.WriteString("\n")
	} else {
		b.WriteString("\nRanked offers:\n")
		for _, o := range resp.Offers {
			price := "n/a"
			if o.EffectivePrice != nil {
				price = models.FormatRupees(*o.EffectivePrice)
			}
			delivery := "unknown"
			if o.DeliveryDaysMax != nil {
				delivery = fmt.Sprintf("%dd", *o.DeliveryDaysMax)
			}
			fmt.Fprintf(&b, "%d. %s | %s | %s | delivery %s | score %.3f", o.Rank, o.PlatformName, o.Title, price, delivery, o.Score.Final)
			if len(o.Badges) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(o.Badges, ", "))
			}
			fmt.Fprintf(&b, "\n   %s\n", o.ListingURL)
		}
		fmt.Fprintf(&b, "\n%s\n", resp.Explanation)
	}

	b.WriteString("\nSites:")
	for _, st := range resp.Statuses {
		fmt.Fprintf(&b, " %s=%s", st.Key, st.Status)
	}
	b.WriteString("\n")
	return b.String()
}
