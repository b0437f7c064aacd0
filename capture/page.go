package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/snapr/models"
	"github.com/ysmood/gson"
)

// DoCapture is the capture invoker: one linear sequence from validated URL
// to screenshot bytes, with the page released on every exit path.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard          – hard deadline on the entire operation
//  2. Preflight probe        – classify DNS/TCP/TLS failures cheaply
//  3. Acquire tab            – borrow a tab from the pool (or create one)
//  4. DEFER: cleanup         – about:blank + return to pool (leak prevention)
//  5. Stealth injection      – mask navigator.webdriver etc. (before navigation!)
//  6. Extra headers          – applied before navigation
//  7. Viewport override      – capture dimensions are part of the contract
//  8. Ad-block hijack        – optional, mounted before navigation
//  9. Context binding        – propagate timeout/cancellation to all Rod calls
//  10. Navigate + wait        – network idle or DOM stable within the deadline
//  11. Screenshot             – full page, viewport, or a single element
//  12. Metadata               – parsed from the rendered HTML (best-effort)
//
// Steps 5-8 must happen before step 10: stealth JS, headers, viewport and
// request interception only take effect for navigations performed after they
// are installed. Step 4's about:blank uses the ORIGINAL page reference
// (without request context), so cleanup succeeds even if the request context
// has expired.
func (c *Capturer) DoCapture(ctx context.Context, req *models.CaptureRequest) (*Result, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := c.clampTimeout(req.Timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Preflight probe ────────────────────────────────────────────
	if c.probe != nil {
		if err := c.probe.Check(ctx, req.URL); err != nil {
			return nil, err
		}
	}

	// ── 3. Acquire tab from pool ──────────────────────────────────────
	handle, acquireErr := c.pool.Get(ctx)
	if acquireErr != nil {
		return nil, categorizeError(acquireErr, "failed to acquire browser tab")
	}
	page := handle.Page()

	// ── 4. CRITICAL DEFER: reset tab + guarantee pool return ──────────
	success := false
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank",
				"error", navErr,
			)
		}
		c.pool.Put(handle, success)
	}()

	// ── 5. Stealth injection ──────────────────────────────────────────
	// The injected script survives for the tab's lifetime, so the handle is
	// marked and the pool retires the tab on release instead of reusing it
	// for callers that did not ask for stealth.
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		} else {
			handle.MarkStealth()
		}
	}

	// ── 6. Extra headers ──────────────────────────────────────────────
	if len(req.Headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(req.Headers),
		}.Call(page)
	}

	// ── 7. Viewport override ──────────────────────────────────────────
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             req.ViewportWidth,
		Height:            req.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, categorizeError(err, "failed to set viewport")
	}

	// ── 8. Ad-block hijack (optional) ─────────────────────────────────
	router := setupAdBlock(page, req.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 9. Bind request context to page ───────────────────────────────
	p := page.Context(ctx)

	// ── 10. Navigate + wait ───────────────────────────────────────────
	// The idle waiter MUST be registered before Navigate: registering after
	// misses every request the navigation itself started, and the wait
	// returns after 300ms of false idle. It also cannot coexist with a
	// mounted hijack router (both drive the Fetch domain, which deadlocks
	// on Chromium 145+), so block_ads falls back to the DOM-stable wait.
	var waitIdle func()
	if useIdleWait(req.WaitForNetworkIdle, router != nil) {
		waitIdle = p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	}

	navStart := time.Now()
	if navErr := p.Navigate(req.URL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}

	if waitIdle != nil {
		waitIdle()
	} else {
		if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
			if ctx.Err() != nil {
				return nil, categorizeError(ctx.Err(), "page failed to settle before deadline")
			}
			slog.Debug("WaitDOMStable did not converge, capturing current DOM",
				"error", stableErr,
			)
		}
	}
	navigationMs := time.Since(navStart).Milliseconds()

	// Target status via the performance API; no CDP event listeners needed.
	// Non-2xx pages are captured anyway: an archiver records what the page
	// showed. The status is reported so callers can apply their own policy.
	targetStatus := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		targetStatus = res.Value.Int()
	}

	// ── 11. Screenshot ────────────────────────────────────────────────
	capStart := time.Now()
	img, shotErr := c.takeScreenshot(p, req)
	if shotErr != nil {
		return nil, categorizeError(shotErr, "screenshot capture failed")
	}
	if len(img) == 0 {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"browser returned an empty image",
			nil,
		)
	}
	captureMs := time.Since(capStart).Milliseconds()

	// ── 12. Metadata (best-effort) ────────────────────────────────────
	meta := models.ArchiveMetadata{SourceURL: req.URL}
	if rawHTML, htmlErr := p.HTML(); htmlErr == nil {
		meta = extractMetadata(rawHTML, req.URL)
	}
	if meta.Title == "" {
		meta.Title = evalStringOrEmpty(p, `() => document.title`)
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	success = true
	return &Result{
		Image:        img,
		MIMEType:     req.MIMEType(),
		TargetStatus: targetStatus,
		FinalURL:     finalURL,
		Metadata:     meta,
		NavigationMs: navigationMs,
		CaptureMs:    captureMs,
	}, nil
}

// takeScreenshot rasterizes the current page state: a single element when a
// selector is given, otherwise the full page or the viewport.
func (c *Capturer) takeScreenshot(p *rod.Page, req *models.CaptureRequest) ([]byte, error) {
	format := proto.PageCaptureScreenshotFormatPng
	if req.Format == "jpeg" {
		format = proto.PageCaptureScreenshotFormatJpeg
	}

	if req.Selector != "" {
		el, err := p.Element(req.Selector)
		if err != nil {
			return nil, err
		}
		return el.Screenshot(format, req.Quality)
	}

	shot := &proto.PageCaptureScreenshot{Format: format}
	if format == proto.PageCaptureScreenshotFormatJpeg {
		quality := req.Quality
		shot.Quality = &quality
	}
	return p.Screenshot(*req.FullPage, shot)
}

// useIdleWait reports whether the network-idle wait can serve this capture.
// A mounted hijack router rules it out: the idle waiter and the router both
// use the Fetch domain, and running them together stalls requests.
func useIdleWait(wantIdle, hijacked bool) bool {
	return wantIdle && !hijacked
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
