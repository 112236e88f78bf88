package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Browser     BrowserConfig
	Crawler     CrawlerConfig
	Coordinator CoordinatorConfig
	Cache       CacheConfig
	Session     SessionConfig
	Retry       RetryConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless. Interactive
	// login requires a headful browser, so the default is false.
	Headless bool // default: false

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// CrawlerConfig controls extraction and page loading behavior.
type CrawlerConfig struct {
	// DefaultTimeout is the per-search timeout.
	DefaultTimeout time.Duration // default: 120s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 20s

	// MaxScrollAttempts caps the load controller's scroll loop.
	MaxScrollAttempts int // default: 15

	// ScrollDelay is the settle wait after each scroll.
	ScrollDelay time.Duration // default: 2s

	// ChallengeWait is the pause when a verification challenge shows
	// up mid-scroll, long enough for a watching operator to react.
	ChallengeWait time.Duration // default: 5s

	// LargeScaleThreshold is the requested record count above which
	// the first page is not enough and the loader has to scroll.
	LargeScaleThreshold int // default: 30

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// CoordinatorConfig controls the task queue and worker pool.
type CoordinatorConfig struct {
	// Workers is the number of task workers.
	Workers int // default: 3

	// MaxSessions caps concurrently active browser sessions. It is
	// lower than Workers so workers queue on a semaphore instead of
	// exhausting browser memory.
	MaxSessions int // default: 2

	// QueueSize is the pending-task queue capacity.
	QueueSize int // default: 64

	// TaskTTL is how long finished task records stay queryable.
	TaskTTL time.Duration // default: 1h

	// WebhookSecret signs callback payloads with HMAC-SHA256 when set.
	WebhookSecret string
}

// CacheConfig controls the search result cache.
type CacheConfig struct {
	// Dir is the disk spill directory. Empty disables disk persistence.
	Dir string // default: "data/cache"

	// MaxEntries is the maximum number of cached result sets.
	MaxEntries int // default: 1000

	// TTL is the result freshness window.
	TTL time.Duration // default: 2h
}

// SessionConfig controls persisted login sessions.
type SessionConfig struct {
	// Dir stores serialized session files.
	Dir string // default: "data/sessions"

	// TTL is how long a saved session is trusted.
	TTL time.Duration // default: 168h (7 days)

	// LoginWait is the max time to wait for a manual login.
	LoginWait time.Duration // default: 5m
}

// RetryConfig controls the default retry policy for searches.
type RetryConfig struct {
	MaxAttempts int           // default: 5
	BaseDelay   time.Duration // default: 2s
}

// RateLimitConfig controls per-client API rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per client IP.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("BOSS_HOST", "0.0.0.0"),
			Port: envIntOr("BOSS_PORT", 8080),
			Mode: envOr("BOSS_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("BOSS_HEADLESS", false),
			MaxPages:     envIntOr("BOSS_MAX_PAGES", 4),
			DefaultProxy: os.Getenv("BOSS_PROXY"),
			NoSandbox:    envBoolOr("BOSS_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("BOSS_BROWSER_BIN"),
		},
		Crawler: CrawlerConfig{
			DefaultTimeout:      envDurationOr("BOSS_DEFAULT_TIMEOUT", 120*time.Second),
			NavigationTimeout:   envDurationOr("BOSS_NAV_TIMEOUT", 20*time.Second),
			MaxScrollAttempts:   envIntOr("BOSS_MAX_SCROLLS", 15),
			ScrollDelay:         envDurationOr("BOSS_SCROLL_DELAY", 2*time.Second),
			ChallengeWait:       envDurationOr("BOSS_CHALLENGE_WAIT", 5*time.Second),
			LargeScaleThreshold: envIntOr("BOSS_LARGE_SCALE_THRESHOLD", 30),
			BlockedResourceTypes: envSliceOr("BOSS_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Coordinator: CoordinatorConfig{
			Workers:       envIntOr("BOSS_WORKERS", 3),
			MaxSessions:   envIntOr("BOSS_MAX_SESSIONS", 2),
			QueueSize:     envIntOr("BOSS_QUEUE_SIZE", 64),
			TaskTTL:       envDurationOr("BOSS_TASK_TTL", time.Hour),
			WebhookSecret: os.Getenv("BOSS_WEBHOOK_SECRET"),
		},
		Cache: CacheConfig{
			Dir:        envOr("BOSS_CACHE_DIR", "data/cache"),
			MaxEntries: envIntOr("BOSS_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("BOSS_CACHE_TTL", 2*time.Hour),
		},
		Session: SessionConfig{
			Dir:       envOr("BOSS_SESSION_DIR", "data/sessions"),
			TTL:       envDurationOr("BOSS_SESSION_TTL", 168*time.Hour),
			LoginWait: envDurationOr("BOSS_LOGIN_WAIT", 5*time.Minute),
		},
		Retry: RetryConfig{
			MaxAttempts: envIntOr("BOSS_RETRY_MAX_ATTEMPTS", 5),
			BaseDelay:   envDurationOr("BOSS_RETRY_BASE_DELAY", 2*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("BOSS_RATE_RPS", 2.0),
			Burst:             envIntOr("BOSS_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("BOSS_LOG_LEVEL", "info"),
			Format: envOr("BOSS_LOG_FORMAT", "json"),
		},
	}
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
