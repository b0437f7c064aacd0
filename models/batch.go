package models

import "sync"

// BatchRequest is the payload for POST /api/v1/batch/capture.
type BatchRequest struct {
	// URLs is the list of target pages to capture. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=20"`

	// Options contains shared capture options applied to all URLs.
	Options BatchOptions `json:"options"`

	// WebhookURL, when set, receives a signed batch.completed event once
	// every URL has been processed.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchOptions are the shared capture settings applied to every URL in a batch.
type BatchOptions struct {
	ViewportWidth      int    `json:"viewport_width,omitempty" binding:"omitempty,min=320,max=7680"`
	ViewportHeight     int    `json:"viewport_height,omitempty" binding:"omitempty,min=240,max=4320"`
	FullPage           *bool  `json:"full_page,omitempty"`
	Format             string `json:"format,omitempty" binding:"omitempty,oneof=png jpeg"`
	Quality            int    `json:"quality,omitempty" binding:"omitempty,min=1,max=100"`
	Timeout            int    `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
	WaitForNetworkIdle bool   `json:"wait_for_network_idle,omitempty"`
	Stealth            bool   `json:"stealth,omitempty"`
	BlockAds           bool   `json:"block_ads,omitempty"`
}

// Request builds a CaptureRequest for one URL using the shared options.
func (o BatchOptions) Request(url string) *CaptureRequest {
	req := &CaptureRequest{
		URL:                url,
		ViewportWidth:      o.ViewportWidth,
		ViewportHeight:     o.ViewportHeight,
		FullPage:           o.FullPage,
		Format:             o.Format,
		Quality:            o.Quality,
		Timeout:            o.Timeout,
		WaitForNetworkIdle: o.WaitForNetworkIdle,
		Stealth:            o.Stealth,
		BlockAds:           o.BlockAds,
	}
	req.Defaults()
	return req
}

// BatchResponse is the immediate response for POST /api/v1/batch/capture.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Results   []*CaptureResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch capture operation. Worker goroutines
// fill Results while clients poll the job, so mutation and serialization go
// through the methods below, which hold the mutex.
type BatchJob struct {
	mu         sync.Mutex
	ID         string
	Status     string // "processing", "completed", "partial", "failed"
	Total      int
	Completed  int
	Results    []*CaptureResponse
	WebhookURL string
	CreatedAt  int64 // unix timestamp
}

// SetResult records the outcome for one slot and bumps the completion count.
func (j *BatchJob) SetResult(idx int, r *CaptureResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results[idx] = r
	j.Completed++
}

// Finish transitions the job out of "processing".
func (j *BatchJob) Finish(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
}

// Snapshot returns a consistent view of the job for serialization. Result
// pointers are shared, but each slot is written exactly once before the
// completion count that publishes it.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*CaptureResponse, len(j.Results))
	copy(results, j.Results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		Completed: j.Completed,
		Total:     j.Total,
		Results:   results,
	}
}
