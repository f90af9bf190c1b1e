// Command benchmark times /api/v1/compare against a running server for a
// fixed set of queries and writes a JSON report.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/use-agent/pricecompare/models"
)

var (
	apiURL = flag.String("api-url", "http://localhost:8080", "pricecompare API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per query for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Queries covering the product categories the matcher handles.
var testQueries = []struct {
	Label string
	Query string
	Mode  string
}{
	{"Phone", "Samsung Galaxy S24 128GB", "balanced"},
	{"Phone/variant", "iPhone 15 Pro Max 256GB", "cheapest"},
	{"Laptop", "HP Pavilion 15 laptop", "reliable"},
	{"Audio", "Sony WH-1000XM5", "fastest"},
	{"Appliance", "LG 7kg front load washing machine", "balanced"},
}

type runResult struct {
	Run        int     `json:"run"`
	LatencyMs  int64   `json:"latency_ms"`
	QuerySecs  float64 `json:"query_time_seconds"`
	Attempts   int     `json:"attempts"`
	Raw        int     `json:"raw_listings"`
	Ranked     int     `json:"ranked_offers"`
	SitesOK    int     `json:"sites_ok"`
	Sites      int     `json:"sites"`
	BestPrice  float64 `json:"best_price,omitempty"`
	Cache      string  `json:"cache_status,omitempty"`
	StatusCode int     `json:"status_code"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

type queryAverages struct {
	LatencyMs float64 `json:"latency_ms"`
	Attempts  float64 `json:"attempts"`
	Ranked    float64 `json:"ranked_offers"`
	SiteYield float64 `json:"site_yield"`
}

type queryResult struct {
	Query    string         `json:"query"`
	Label    string         `json:"label"`
	Mode     string         `json:"mode"`
	Runs     []runResult    `json:"runs"`
	Averages *queryAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp    string        `json:"timestamp"`
	APIURL       string        `json:"api_url"`
	RunsPerQuery int           `json:"runs_per_query"`
	Results      []queryResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== pricecompare benchmark ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Runs/query: %d\n", *runs)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		APIURL:       *apiURL,
		RunsPerQuery: *runs,
	}

	client := &http.Client{Timeout: 3 * time.Minute}
	for _, q := range testQueries {
		fmt.Printf("Benchmarking [%s] %q ...\n", q.Label, q.Query)
		qr := queryResult{Query: q.Query, Label: q.Label, Mode: q.Mode}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkQuery(client, q.Query, q.Mode, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d offers  %d/%d sites\n", rr.LatencyMs, rr.Ranked, rr.SitesOK, rr.Sites)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			qr.Runs = append(qr.Runs, rr)
		}

		qr.Averages = computeAverages(qr.Runs)
		report.Results = append(report.Results, qr)
		fmt.Println()
	}

	printTable(os.Stdout, report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkQuery(client *http.Client, query, mode string, run int) runResult {
	rr := runResult{Run: run}

	// Every run bypasses the cache so latency reflects a full scrape.
	body, err := json.Marshal(models.CompareRequest{Query: query, Mode: mode, NoCache: true})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/compare", bytes.NewReader(body))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.LatencyMs = time.Since(start).Milliseconds()
	rr.StatusCode = resp.StatusCode

	return decodeRun(rr, resp.Body)
}

// decodeRun fills rr from a compare or error response body.
func decodeRun(rr runResult, body io.Reader) runResult {
	raw, err := io.ReadAll(body)
	if err != nil {
		rr.Error = fmt.Sprintf("read error: %v", err)
		return rr
	}
	if rr.StatusCode >= 400 {
		var er models.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != nil {
			rr.Error = er.Error.Message
		} else {
			rr.Error = fmt.Sprintf("HTTP %d", rr.StatusCode)
		}
		return rr
	}

	var cr models.CompareResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	rr.Success = cr.Success
	rr.QuerySecs = cr.QueryTimeSeconds
	rr.Attempts = cr.Attempts
	rr.Raw = cr.Counts.RawListings
	rr.Ranked = cr.Counts.RankedOffers
	rr.Cache = cr.CacheStatus
	rr.Sites = len(cr.Statuses)
	for _, s := range cr.Statuses {
		if s.Status == models.StatusOK {
			rr.SitesOK++
		}
	}
	if cr.BestDeal != nil && cr.BestDeal.EffectivePrice != nil {
		rr.BestPrice = *cr.BestDeal.EffectivePrice
	}
	if !cr.Success && len(cr.Errors) > 0 {
		rr.Error = cr.Errors[0]
	}
	return rr
}

func computeAverages(runs []runResult) *queryAverages {
	var n int
	var avg queryAverages
	for _, r := range runs {
		if !r.Success {
			continue
		}
		n++
		avg.LatencyMs += float64(r.LatencyMs)
		avg.Attempts += float64(r.Attempts)
		avg.Ranked += float64(r.Ranked)
		if r.Sites > 0 {
			avg.SiteYield += float64(r.SitesOK) / float64(r.Sites)
		}
	}
	if n == 0 {
		return nil
	}
	f := float64(n)
	avg.LatencyMs /= f
	avg.Attempts /= f
	avg.Ranked /= f
	avg.SiteYield /= f
	return &avg
}

func printTable(w io.Writer, results []queryResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Query", "Mode", "Avg Latency", "Attempts", "Offers", "Site Yield"})
	for _, r := range results {
		if r.Averages == nil {
			t.AppendRow(table.Row{r.Query, r.Mode, "FAILED", "-", "-", "-"})
			continue
		}
		t.AppendRow(table.Row{
			r.Query,
			r.Mode,
			fmt.Sprintf("%dms", int64(r.Averages.LatencyMs)),
			fmt.Sprintf("%.1f", r.Averages.Attempts),
			fmt.Sprintf("%.1f", r.Averages.Ranked),
			fmt.Sprintf("%.0f%%", r.Averages.SiteYield*100),
		})
	}
	t.Render()
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
