package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/snapr/config"
)

func rateLimitRouter(cfg config.RateLimitConfig, apiKey string) *gin.Engine {
	r := gin.New()
	if apiKey != "" {
		r.Use(func(c *gin.Context) {
			c.Set("api_key", apiKey)
		})
	}
	r.Use(RateLimit(cfg))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func hit(r *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitEnforcesBurst(t *testing.T) {
	r := rateLimitRouter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}, "")

	if code := hit(r, "10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", code)
	}
	if code := hit(r, "10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("second request = %d, want 200", code)
	}
	if code := hit(r, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", code)
	}
}

func TestRateLimitIsolatesClients(t *testing.T) {
	r := rateLimitRouter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, "")

	if code := hit(r, "10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first client = %d, want 200", code)
	}
	if code := hit(r, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("first client second hit = %d, want 429", code)
	}
	// A different IP has its own bucket.
	if code := hit(r, "10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("second client = %d, want 200", code)
	}
}

func TestRateLimitKeysOnAPIKey(t *testing.T) {
	r := rateLimitRouter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, "key-a")

	if code := hit(r, "10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", code)
	}
	// Same key from a different IP shares the bucket.
	if code := hit(r, "10.0.0.9:1234"); code != http.StatusTooManyRequests {
		t.Errorf("same key, new IP = %d, want 429", code)
	}
}
