// Package matcher decides which normalized offers are the product the
// user asked for. Six ordered gates reject wrong products outright;
// survivors get a weighted title score, and scores in an uncertain band
// can be re-judged by a semantic collaborator.
package matcher

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/use-agent/pricecompare/metrics"
	"github.com/use-agent/pricecompare/models"
)

// MatchScorer re-judges titles whose score falls in the uncertain band.
type MatchScorer interface {
	ScoreMatch(ctx context.Context, title string, target models.TargetProduct) (*models.MatchVerdict, error)
}

// Options holds the matcher thresholds.
type Options struct {
	MinScore      float64
	UncertainLow  float64
	UncertainHigh float64
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{MinScore: 0.4, UncertainLow: 0.3, UncertainHigh: 0.75}
}

// Matcher filters offers against a target product.
type Matcher struct {
	opts    Options
	scorer  MatchScorer
	metrics *metrics.Metrics
}

// New creates a Matcher. scorer and m may be nil.
func New(opts Options, scorer MatchScorer, m *metrics.Metrics) *Matcher {
	return &Matcher{opts: opts, scorer: scorer, metrics: m}
}

// Result is the matcher's output for one pass.
type Result struct {
	Matched    []*models.NormalizedOffer
	Rejections []models.Rejection
}

// Score runs the gates and weighted scoring for one title. It returns 0
// and the failing gate name for a gate rejection, else the score and "".
// It is deterministic.
func Score(title string, t models.TargetProduct) (float64, string) {
	return newTarget(t).evaluate(title)
}

func (t target) evaluate(title string) (float64, string) {
	lower := strings.ToLower(title)
	tokens := tokenize(title)
	if g := t.gate(lower, tokens); g != "" {
		return 0, g
	}
	return t.score(title, lower, tokens), ""
}

// Match scores every offer in place and returns those at or above the
// minimum score, in input order. Offers without a price are rejected
// whatever their score.
func (m *Matcher) Match(ctx context.Context, offers []*models.NormalizedOffer, tp models.TargetProduct) Result {
	t := newTarget(tp)
	gates := make([]string, len(offers))

	var uncertain []int
	for i, o := range offers {
		o.MatchScore, gates[i] = t.evaluate(o.Title)
		if o.EffectivePrice == nil {
			if gates[i] == "" {
				gates[i] = GateNoPrice
			}
			continue
		}
		if gates[i] == "" && m.inBand(o.MatchScore) {
			uncertain = append(uncertain, i)
		}
	}
	m.consult(ctx, offers, gates, uncertain, tp)

	var res Result
	for i, o := range offers {
		gate := gates[i]
		if gate == "" && o.MatchScore < m.opts.MinScore {
			gate = GateThreshold
		}
		if gate != "" {
			m.metrics.Rejection(gate)
			res.Rejections = append(res.Rejections, models.Rejection{
				Platform: o.Platform,
				Title:    o.Title,
				Gate:     gate,
				Score:    o.MatchScore,
			})
			slog.Debug("matcher: rejected", "site", o.Platform, "title", truncate(o.Title, 50), "gate", gate, "score", o.MatchScore)
			continue
		}
		res.Matched = append(res.Matched, o)
	}
	slog.Info("matcher: pass complete", "offers", len(offers), "matched", len(res.Matched),
		"rejected", len(res.Rejections), "consulted", len(uncertain))
	return res
}

func (m *Matcher) inBand(score float64) bool {
	return m.scorer != nil && score >= m.opts.UncertainLow && score <= m.opts.UncertainHigh
}

// consult asks the scorer about each uncertain offer. A verdict replaces
// the score only when the scorer answers; accessory or wrong-model
// verdicts force zero.
func (m *Matcher) consult(ctx context.Context, offers []*models.NormalizedOffer, gates []string, idx []int, tp models.TargetProduct) {
	if len(idx) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, i := range idx {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := offers[i]
			v, err := m.scorer.ScoreMatch(ctx, o.Title, tp)
			if err != nil || v == nil {
				slog.Debug("matcher: semantic score unavailable", "site", o.Platform, "error", err)
				return
			}
			if v.IsAccessory || !v.CorrectModel {
				o.MatchScore = 0
				gates[i] = GateSemantic
				return
			}
			o.MatchScore = round3(math.Max(0, math.Min(1, v.Score)))
		}(i)
	}
	wg.Wait()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
