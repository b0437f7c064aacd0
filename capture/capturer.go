package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/snapr/config"
	"github.com/use-agent/snapr/models"
)

// Service is the capture surface the API layer depends on.
type Service interface {
	// DoCapture navigates to the request URL and returns the screenshot.
	DoCapture(ctx context.Context, req *models.CaptureRequest) (*Result, error)

	// Stats returns a snapshot of the page pool's current state.
	Stats() models.PoolStats
}

// Capturer manages the global browser lifecycle and the page pool.
// It is safe for concurrent use.
type Capturer struct {
	browser    *rod.Browser
	pool       *PagePool
	probe      *preflightProbe
	captureCfg config.CaptureConfig
}

// NewCapturer launches a headless browser and initialises the page pool.
func NewCapturer(browserCfg config.BrowserConfig, captureCfg config.CaptureConfig, poolCfg config.PoolConfig, preflightCfg config.PreflightConfig) (*Capturer, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// Flags tuned for reproducible rasterization in containers.
	l.Set(flags.Flag("hide-scrollbars"))
	l.Set(flags.Flag("mute-audio"))
	l.Set(flags.Flag("force-color-profile"), "srgb")
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	factory := func() (*rod.Page, error) {
		return browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	pool := NewPagePool(poolCfg, factory)
	slog.Info("page pool created", "minPages", poolCfg.MinPages, "maxPages", poolCfg.MaxPages)

	var probe *preflightProbe
	if preflightCfg.Enabled {
		probe = newPreflightProbe(preflightCfg.Timeout, browserCfg.DefaultProxy)
	}

	return &Capturer{
		browser:    browser,
		pool:       pool,
		probe:      probe,
		captureCfg: captureCfg,
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (c *Capturer) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    c.pool.cfg.MaxPages,
		LivePages:   c.pool.Size(),
		ActivePages: c.pool.ActiveCount(),
	}
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (c *Capturer) Close() {
	slog.Info("capturer shutting down: draining page pool")
	c.pool.Stop()
	slog.Info("capturer shutting down: closing browser")
	c.browser.MustClose()
	slog.Info("capturer shutdown complete")
}

// clampTimeout bounds a client-requested timeout by the configured maximum.
func (c *Capturer) clampTimeout(seconds int) time.Duration {
	timeout := time.Duration(seconds) * time.Second
	if timeout <= 0 {
		timeout = c.captureCfg.DefaultTimeout
	}
	if timeout > c.captureCfg.MaxTimeout {
		timeout = c.captureCfg.MaxTimeout
	}
	return timeout
}
