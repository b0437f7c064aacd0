package models

// CaptureResponse is the JSON envelope used when a capture fails, or when a
// batch result needs the image and its metadata in one document. Successful
// single captures are returned as raw image bytes with metadata in headers.
type CaptureResponse struct {
	// Success indicates whether the capture completed without errors.
	Success bool `json:"success"`

	// TargetStatus is the HTTP status code the target page responded with.
	// Non-2xx pages are still captured; callers apply their own policy.
	TargetStatus int `json:"target_status,omitempty"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url,omitempty"`

	// MIMEType is the encoding of Image ("image/png" or "image/jpeg").
	MIMEType string `json:"mime_type,omitempty"`

	// Image is the base64-encoded screenshot. Populated only in batch
	// results; single captures stream the bytes directly.
	Image string `json:"image,omitempty"`

	// Metadata contains page metadata extracted from the rendered HTML.
	Metadata ArchiveMetadata `json:"metadata"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ArchiveMetadata holds page-level information recorded alongside a capture.
type ArchiveMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Language    string `json:"language,omitempty"`
	OGTitle     string `json:"og_title,omitempty"`
	OGImage     string `json:"og_image,omitempty"`
	OGType      string `json:"og_type,omitempty"`
	SourceURL   string `json:"source_url"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent navigating and rendering the page.
	NavigationMs int64 `json:"navigation_ms"`

	// CaptureMs is the time spent rasterizing the screenshot.
	CaptureMs int64 `json:"capture_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	LivePages   int `json:"live_pages"`
	ActivePages int `json:"active_pages"`
}
