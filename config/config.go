package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/use-agent/pricecompare/models"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Browser      BrowserConfig
	Scraper      ScraperConfig
	Engine       EngineConfig
	Orchestrator OrchestratorConfig
	Pipeline     PipelineConfig
	Matcher      MatcherConfig
	Ranker       RankerConfig
	LLM          LLMConfig
	Registry     RegistryConfig
	Cache        CacheConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Log          LogConfig
	Webhook      WebhookConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions caps concurrent per-domain browser sessions.
	// 0 means "same as Orchestrator.Concurrency".
	MaxSessions int // default: 0

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Locale and Timezone are applied to every session.
	Locale   string // default: "en-IN"
	Timezone string // default: "Asia/Kolkata"
}

// ScraperConfig controls per-site scraping behavior.
type ScraperConfig struct {
	// NavigationTimeout is the max time for page navigation alone.
	NavigationTimeout time.Duration // default: 20s

	// SettleDelay is how long to wait when no ready selector is configured.
	SettleDelay time.Duration // default: 2s

	// ReadyTimeout bounds the wait for a configured ready selector.
	ReadyTimeout time.Duration // default: 10s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracker domains.
	BlockAds bool // default: true

	// EnrichCards sends cards whose price failed to parse to the LLM.
	EnrichCards bool // default: true
}

// EngineConfig controls the fetch dispatcher used by specialized parsers.
type EngineConfig struct {
	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 3s]

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 8s

	// DomainMemoryTTL is how long a winning engine is remembered per domain.
	DomainMemoryTTL time.Duration // default: 1h
}

// OrchestratorConfig controls the scrape fan-out.
type OrchestratorConfig struct {
	// Concurrency is the global cap on simultaneous site scrapes.
	Concurrency int // default: 4

	// Stagger is the pause taken inside the semaphore before each scrape.
	Stagger time.Duration // default: 300ms

	// SiteTimeout bounds one site scrape, retries included.
	SiteTimeout time.Duration // default: 45s

	// MaxPerSite caps listings taken from each site.
	MaxPerSite int // default: 5
}

// PipelineConfig controls the comparison state machine.
type PipelineConfig struct {
	// MaxRetries is how many times an empty match re-plans.
	MaxRetries int // default: 2

	// DropNullPrice discards listings without a parsed price at extraction
	// instead of carrying them to the matcher.
	DropNullPrice bool // default: false

	// StrictDedup uses the site+price+title fingerprint and simhash check.
	StrictDedup bool // default: true

	// LayoutDriftDistance is the simhash distance above which a domain's
	// cached selectors are evicted. 0 disables drift detection.
	LayoutDriftDistance int // default: 18
}

// MatcherConfig controls product matching thresholds.
type MatcherConfig struct {
	// MinScore is the minimum score for an offer to be kept.
	MinScore float64 // default: 0.4

	// UncertainLow and UncertainHigh bound the band where the LLM is asked.
	UncertainLow  float64 // default: 0.3
	UncertainHigh float64 // default: 0.75
}

// RankerConfig controls composite scoring.
type RankerConfig struct {
	// MinComposite drops offers scoring below it.
	MinComposite float64 // default: 0.05

	// MaxPerSite caps ranked offers per marketplace.
	MaxPerSite int // default: 5

	// Weights per mode; override with PC_WEIGHTS_<MODE>=price,delivery,trust.
	Weights map[models.RankingMode]models.Weights
}

// LLMConfig controls the OpenAI-compatible completion backend.
type LLMConfig struct {
	// Enabled toggles every LLM collaborator. Off without an API key.
	Enabled bool // default: true

	BaseURL      string // default: "https://api.groq.com/openai/v1"
	APIKey       string
	PrimaryModel string // default: "llama-3.3-70b-versatile"
	FastModel    string // default: "llama-3.1-8b-instant"

	// MaxConcurrent caps in-flight completions.
	MaxConcurrent int // default: 3

	// CallsPerMinute and MinGap form the token-bucket limiter.
	CallsPerMinute int           // default: 25
	MinGap         time.Duration // default: 2.5s

	// Timeout is the per-call deadline.
	Timeout time.Duration // default: 20s
}

// RegistryConfig locates marketplace definitions.
type RegistryConfig struct {
	// Dir holds one YAML file per marketplace.
	Dir string // default: "marketplaces"
}

// CacheConfig controls the comparison response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500

	// TTL is how long a cached response is served.
	TTL time.Duration // default: 5m
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// WebhookConfig controls outgoing event delivery.
type WebhookConfig struct {
	// Secret signs payloads with HMAC-SHA256. Empty disables signing.
	Secret string

	// Timeout is the per-attempt HTTP timeout.
	Timeout time.Duration // default: 10s
}

// DefaultWeights is the built-in weight table per ranking mode.
func DefaultWeights() map[models.RankingMode]models.Weights {
	return map[models.RankingMode]models.Weights{
		models.ModeCheapest: {Price: 0.70, Delivery: 0.15, Trust: 0.15},
		models.ModeFastest:  {Price: 0.15, Delivery: 0.70, Trust: 0.15},
		models.ModeReliable: {Price: 0.20, Delivery: 0.20, Trust: 0.60},
		models.ModeBalanced: {Price: 0.40, Delivery: 0.25, Trust: 0.35},
	}
}

// Load reads an optional .env file and then configuration from
// environment variables with sane defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: .env not loaded", "error", err)
	}

	apiKey := os.Getenv("PC_LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("PC_HOST", "0.0.0.0"),
			Port: envIntOr("PC_PORT", 8080),
			Mode: envOr("PC_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("PC_HEADLESS", true),
			MaxSessions:  envIntOr("PC_MAX_SESSIONS", 0),
			DefaultProxy: os.Getenv("PC_PROXY"),
			NoSandbox:    envBoolOr("PC_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PC_BROWSER_BIN"),
			Locale:       envOr("PC_LOCALE", "en-IN"),
			Timezone:     envOr("PC_TIMEZONE", "Asia/Kolkata"),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("PC_NAV_TIMEOUT", 20*time.Second),
			SettleDelay:       envDurationOr("PC_SETTLE_DELAY", 2*time.Second),
			ReadyTimeout:      envDurationOr("PC_READY_TIMEOUT", 10*time.Second),
			BlockedResourceTypes: envSliceOr("PC_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds:    envBoolOr("PC_BLOCK_ADS", true),
			EnrichCards: envBoolOr("PC_ENRICH_CARDS", true),
		},
		Engine: EngineConfig{
			EscalationDelays: envDurationSliceOr("PC_ESCALATION_DELAYS", []time.Duration{0, 3 * time.Second}),
			HTTPTimeout:      envDurationOr("PC_HTTP_TIMEOUT", 8*time.Second),
			DomainMemoryTTL:  envDurationOr("PC_DOMAIN_MEMORY_TTL", time.Hour),
		},
		Orchestrator: OrchestratorConfig{
			Concurrency: envIntOr("PC_CONCURRENCY", 4),
			Stagger:     envDurationOr("PC_STAGGER", 300*time.Millisecond),
			SiteTimeout: envDurationOr("PC_SITE_TIMEOUT", 45*time.Second),
			MaxPerSite:  envIntOr("PC_MAX_PER_SITE", 5),
		},
		Pipeline: PipelineConfig{
			MaxRetries:          envIntOr("PC_MAX_RETRIES", 2),
			DropNullPrice:       envBoolOr("PC_DROP_NULL_PRICE", false),
			StrictDedup:         envBoolOr("PC_STRICT_DEDUP", true),
			LayoutDriftDistance: envIntOr("PC_LAYOUT_DRIFT_DISTANCE", 18),
		},
		Matcher: MatcherConfig{
			MinScore:      envFloatOr("PC_MATCH_MIN_SCORE", 0.4),
			UncertainLow:  envFloatOr("PC_MATCH_UNCERTAIN_LOW", 0.3),
			UncertainHigh: envFloatOr("PC_MATCH_UNCERTAIN_HIGH", 0.75),
		},
		Ranker: RankerConfig{
			MinComposite: envFloatOr("PC_RANK_MIN_COMPOSITE", 0.05),
			MaxPerSite:   envIntOr("PC_RANK_MAX_PER_SITE", 5),
			Weights:      envWeightsOr("PC_WEIGHTS_", DefaultWeights()),
		},
		LLM: LLMConfig{
			Enabled:        envBoolOr("PC_LLM_ENABLED", true) && apiKey != "",
			BaseURL:        envOr("PC_LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:         apiKey,
			PrimaryModel:   envOr("PC_LLM_MODEL", "llama-3.3-70b-versatile"),
			FastModel:      envOr("PC_LLM_FAST_MODEL", "llama-3.1-8b-instant"),
			MaxConcurrent:  envIntOr("PC_LLM_MAX_CONCURRENT", 3),
			CallsPerMinute: envIntOr("PC_LLM_CALLS_PER_MINUTE", 25),
			MinGap:         envDurationOr("PC_LLM_MIN_GAP", 2500*time.Millisecond),
			Timeout:        envDurationOr("PC_LLM_TIMEOUT", 20*time.Second),
		},
		Registry: RegistryConfig{
			Dir: envOr("PC_MARKETPLACES_DIR", "marketplaces"),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PC_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("PC_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PC_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PC_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PC_RATE_RPS", 1.0),
			Burst:             envIntOr("PC_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  envOr("PC_LOG_LEVEL", "info"),
			Format: envOr("PC_LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			Secret:  os.Getenv("PC_WEBHOOK_SECRET"),
			Timeout: envDurationOr("PC_WEBHOOK_TIMEOUT", 10*time.Second),
		},
	}
}

// MaxSessions resolves the browser session cap.
func (c *Config) MaxSessions() int {
	if c.Browser.MaxSessions > 0 {
		return c.Browser.MaxSessions
	}
	return c.Orchestrator.Concurrency
}

// envWeightsOr overrides entries of fallback from PREFIX<MODE>=p,d,t.
// Triples that do not parse or do not sum to 1 are ignored.
func envWeightsOr(prefix string, fallback map[models.RankingMode]models.Weights) map[models.RankingMode]models.Weights {
	for _, mode := range models.Modes {
		v := os.Getenv(prefix + strings.ToUpper(string(mode)))
		if v == "" {
			continue
		}
		parts := strings.Split(v, ",")
		if len(parts) != 3 {
			slog.Warn("config: ignoring weights", "mode", mode, "value", v)
			continue
		}
		var f [3]float64
		ok := true
		for i, p := range parts {
			n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil || n < 0 {
				ok = false
				break
			}
			f[i] = n
		}
		if sum := f[0] + f[1] + f[2]; !ok || sum < 0.999 || sum > 1.001 {
			slog.Warn("config: ignoring weights", "mode", mode, "value", v)
			continue
		}
		fallback[mode] = models.Weights{Price: f[0], Delivery: f[1], Trust: f[2]}
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
