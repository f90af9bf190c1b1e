// Command compare runs one price comparison from the terminal and prints
// the ranked offers as a table.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/pricecompare/api/handler"
	"github.com/use-agent/pricecompare/app"
	"github.com/use-agent/pricecompare/config"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/pipeline"
	"github.com/use-agent/pricecompare/registry"
)

var (
	mode       string
	sites      []string
	maxPerSite int
	asJSON     bool
	debug      bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <query>",
		Short: "Compare prices for a product across Indian marketplaces",
		Long: `Compare scrapes the selected marketplaces for the query, keeps the
listings that are the same product, and ranks them by the chosen mode.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "balanced", "ranking mode: cheapest, fastest, reliable or balanced")
	cmd.Flags().StringSliceVarP(&sites, "sites", "s", nil, "restrict to these marketplace keys")
	cmd.Flags().IntVar(&maxPerSite, "max-per-site", 0, "cap listings scraped per marketplace")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(sitesCmd())
	return cmd
}

func sitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List configured marketplaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			initLogger(cfg)
			reg, err := registry.New(cfg.Registry.Dir)
			if err != nil {
				return fmt.Errorf("load marketplaces: %w", err)
			}
			if reg.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No marketplaces configured in", cfg.Registry.Dir)
				return nil
			}
			renderSites(cmd.OutOrStdout(), handler.MarketplaceInfos(reg.All()))
			return nil
		},
	}
}

func runCompare(ctx context.Context, query string) error {
	cfg := config.Load()
	initLogger(cfg)

	req := models.CompareRequest{
		Query:               query,
		Mode:                mode,
		AllowedMarketplaces: sites,
		MaxPerSite:          maxPerSite,
		NoCache:             true,
	}
	if err := validate(req); err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := os.Stdout
	var obs pipeline.Observer
	if !asJSON {
		obs = func(e pipeline.Event) {
			if st, ok := e.Data.(models.SiteStatus); ok && e.Type == pipeline.EventSiteDone {
				fmt.Fprintf(os.Stderr, "  %-14s %-14s %d listings\n", st.Key, st.Status, st.ListingsFound)
			}
		}
	}

	resp := a.Service.Compare(ctx, req, obs)
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	renderResponse(out, resp)
	if !resp.Success {
		return fmt.Errorf("comparison failed: %s", strings.Join(resp.Errors, "; "))
	}
	return nil
}

// validate mirrors the API binding rules for flags.
func validate(req models.CompareRequest) error {
	q := strings.TrimSpace(req.Query)
	switch {
	case len(q) < 2 || len(q) > 200:
		return fmt.Errorf("query must be between 2 and 200 characters")
	case req.MaxPerSite < 0 || req.MaxPerSite > 20:
		return fmt.Errorf("--max-per-site must be between 1 and 20")
	case len(req.AllowedMarketplaces) > 20:
		return fmt.Errorf("at most 20 marketplaces may be selected")
	}
	switch models.RankingMode(req.Mode) {
	case models.ModeCheapest, models.ModeFastest, models.ModeReliable, models.ModeBalanced:
		return nil
	}
	return fmt.Errorf("unknown mode %q", req.Mode)
}

// initLogger logs to stderr so table and JSON output stay clean.
func initLogger(cfg *config.Config) {
	level := slog.LevelWarn
	if debug || cfg.Log.Level == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
