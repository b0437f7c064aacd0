package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Capture   CaptureConfig
	Pool      PoolConfig
	Preflight PreflightConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8002
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL used for all page navigations.
	DefaultProxy string
}

// CaptureConfig controls screenshot capture behavior.
type CaptureConfig struct {
	// DefaultTimeout is the per-request capture timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// DefaultViewportWidth/Height set the viewport when the client
	// does not specify one.
	DefaultViewportWidth  int // default: 1920
	DefaultViewportHeight int // default: 1080
}

// PoolConfig controls the browser page pool sizing.
type PoolConfig struct {
	// MinPages is the minimum number of tabs kept in the pool.
	MinPages int // default: 2

	// MaxPages is the absolute maximum number of tabs.
	MaxPages int // default: 10

	// MemThreshold is the heap memory fraction (0.0-1.0) above which
	// the pool shrinks.
	MemThreshold float64 // default: 0.9

	// ScaleStep is the fraction of pool size to grow or shrink per interval.
	ScaleStep float64 // default: 0.1
}

// PreflightConfig controls the pre-navigation reachability probe.
type PreflightConfig struct {
	// Enabled toggles the probe. When on, DNS/TCP/TLS failures are
	// reported without spending a browser tab.
	Enabled bool // default: true

	// Timeout is the deadline for the probe alone.
	Timeout time.Duration // default: 5s
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
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// WebhookConfig controls batch completion notifications.
type WebhookConfig struct {
	// Secret signs webhook payloads with HMAC-SHA256 when non-empty.
	Secret string
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
			Host: envOr("SNAPR_HOST", "0.0.0.0"),
			Port: envIntOr("SNAPR_PORT", 8002),
			Mode: envOr("SNAPR_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SNAPR_HEADLESS", true),
			NoSandbox:    envBoolOr("SNAPR_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SNAPR_BROWSER_BIN"),
			DefaultProxy: os.Getenv("SNAPR_PROXY"),
		},
		Capture: CaptureConfig{
			DefaultTimeout:        envDurationOr("SNAPR_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:            envDurationOr("SNAPR_MAX_TIMEOUT", 120*time.Second),
			DefaultViewportWidth:  envIntOr("SNAPR_VIEWPORT_WIDTH", 1920),
			DefaultViewportHeight: envIntOr("SNAPR_VIEWPORT_HEIGHT", 1080),
		},
		Pool: PoolConfig{
			MinPages:     envIntOr("SNAPR_MIN_PAGES", 2),
			MaxPages:     envIntOr("SNAPR_MAX_PAGES", 10),
			MemThreshold: envFloatOr("SNAPR_MEM_THRESHOLD", 0.9),
			ScaleStep:    envFloatOr("SNAPR_SCALE_STEP", 0.1),
		},
		Preflight: PreflightConfig{
			Enabled: envBoolOr("SNAPR_PREFLIGHT", true),
			Timeout: envDurationOr("SNAPR_PREFLIGHT_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SNAPR_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SNAPR_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SNAPR_RATE_RPS", 2.0),
			Burst:             envIntOr("SNAPR_RATE_BURST", 5),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("SNAPR_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SNAPR_LOG_LEVEL", "info"),
			Format: envOr("SNAPR_LOG_FORMAT", "json"),
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
