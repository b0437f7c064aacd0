package models

import (
	"fmt"
	"net/url"

	"github.com/andybalholm/cascadia"
)

// CaptureRequest is the payload for POST /api/v1/capture.
type CaptureRequest struct {
	// URL is the target page to capture. Required. Must be an absolute
	// http or https URL.
	URL string `json:"url" binding:"required"`

	// ViewportWidth and ViewportHeight set the browser viewport in CSS
	// pixels. Defaults: 1920x1080.
	ViewportWidth  int `json:"viewport_width,omitempty" binding:"omitempty,min=320,max=7680"`
	ViewportHeight int `json:"viewport_height,omitempty" binding:"omitempty,min=240,max=4320"`

	// FullPage captures the entire scrollable page rather than just the
	// viewport. Default: true.
	FullPage *bool `json:"full_page,omitempty"`

	// Format is the image encoding. Allowed: "png" (default), "jpeg".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=png jpeg"`

	// Quality is the JPEG compression quality (1-100). Ignored for PNG.
	// Default: 80.
	Quality int `json:"quality,omitempty" binding:"omitempty,min=1,max=100"`

	// Selector restricts the capture to the first element matching this
	// CSS selector instead of the whole page. Mutually exclusive with
	// FullPage semantics; when set, only the element is captured.
	Selector string `json:"selector,omitempty"`

	// Timeout is the maximum duration in seconds for the entire capture
	// (navigation + rendering + screenshot). Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// WaitForNetworkIdle waits until the page has no in-flight network
	// requests for 300ms before capturing. Useful for SPAs. Default: false
	// (DOM-stable wait).
	WaitForNetworkIdle bool `json:"wait_for_network_idle,omitempty"`

	// Stealth enables anti-bot-detection evasions before navigation.
	// Default: false.
	Stealth bool `json:"stealth,omitempty"`

	// BlockAds blocks requests to known ad and tracking domains so the
	// capture is not polluted by ad placeholders. Default: false.
	BlockAds bool `json:"block_ads,omitempty"`

	// Headers are extra HTTP headers sent with the page navigation.
	Headers map[string]string `json:"headers,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *CaptureRequest) Defaults() {
	if r.ViewportWidth == 0 {
		r.ViewportWidth = 1920
	}
	if r.ViewportHeight == 0 {
		r.ViewportHeight = 1080
	}
	if r.FullPage == nil {
		t := true
		r.FullPage = &t
	}
	if r.Format == "" {
		r.Format = "png"
	}
	if r.Quality == 0 {
		r.Quality = 80
	}
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}

// Validate checks what the binding tags cannot express, plus the numeric
// ranges the tags do express: the query-parameter flavor of the capture API
// never goes through binding, so the ranges must hold here too. Call after
// Defaults. The capture engine is never invoked on a request that fails here.
func (r *CaptureRequest) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return NewCaptureError(ErrCodeInvalidInput, fmt.Sprintf("malformed url %q", r.URL), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewCaptureError(ErrCodeInvalidInput,
			fmt.Sprintf("url scheme must be http or https, got %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return NewCaptureError(ErrCodeInvalidInput, "url must be absolute", nil)
	}
	if r.ViewportWidth < 320 || r.ViewportWidth > 7680 {
		return NewCaptureError(ErrCodeInvalidInput,
			fmt.Sprintf("viewport_width must be between 320 and 7680, got %d", r.ViewportWidth), nil)
	}
	if r.ViewportHeight < 240 || r.ViewportHeight > 4320 {
		return NewCaptureError(ErrCodeInvalidInput,
			fmt.Sprintf("viewport_height must be between 240 and 4320, got %d", r.ViewportHeight), nil)
	}
	if r.Format != "png" && r.Format != "jpeg" {
		return NewCaptureError(ErrCodeInvalidInput,
			fmt.Sprintf("format must be png or jpeg, got %q", r.Format), nil)
	}
	if r.Quality < 1 || r.Quality > 100 {
		return NewCaptureError(ErrCodeInvalidInput,
			fmt.Sprintf("quality must be between 1 and 100, got %d", r.Quality), nil)
	}
	if r.Timeout < 1 || r.Timeout > 120 {
		return NewCaptureError(ErrCodeInvalidInput,
			fmt.Sprintf("timeout must be between 1 and 120 seconds, got %d", r.Timeout), nil)
	}
	if r.Selector != "" {
		if _, err := cascadia.Parse(r.Selector); err != nil {
			return NewCaptureError(ErrCodeInvalidInput,
				fmt.Sprintf("invalid css selector %q", r.Selector), err)
		}
	}
	return nil
}

// MIMEType returns the content type matching the requested format.
func (r *CaptureRequest) MIMEType() string {
	if r.Format == "jpeg" {
		return "image/jpeg"
	}
	return "image/png"
}
