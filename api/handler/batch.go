package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/snapr/capture"
	"github.com/use-agent/snapr/models"
	"github.com/use-agent/snapr/webhook"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				job := value.(*models.BatchJob)
				if job.CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /api/v1/batch/capture.
// It validates the request, creates a batch job, and launches goroutines
// to capture each URL concurrently.
func PostBatch(svc capture.Service, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		jobID := "batch-" + randomID()
		job := &models.BatchJob{
			ID:         jobID,
			Status:     "processing",
			Total:      len(req.URLs),
			Results:    make([]*models.CaptureResponse, len(req.URLs)),
			WebhookURL: req.WebhookURL,
			CreatedAt:  time.Now().Unix(),
		}
		batchStore.Store(jobID, job)

		go runBatch(svc, webhookSecret, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.URLs),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// runBatch captures all URLs in a batch job, bounded by pool capacity.
// One URL's failure never fails the job; its slot carries the error instead.
func runBatch(svc capture.Service, webhookSecret string, job *models.BatchJob, req models.BatchRequest) {
	maxConcurrent := svc.Stats().MaxPages
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	var completed atomic.Int32
	var failed atomic.Int32

	for i, rawURL := range req.URLs {
		wg.Add(1)
		go func(idx int, targetURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result := captureOne(svc, req.Options, targetURL)
			job.SetResult(idx, result)
			if result.Success {
				completed.Add(1)
			} else {
				failed.Add(1)
			}
		}(i, rawURL)
	}
	wg.Wait()

	var status string
	switch {
	case failed.Load() == 0:
		status = "completed"
	case completed.Load() == 0:
		status = "failed"
	default:
		status = "partial"
	}
	job.Finish(status)
	slog.Info("batch capture finished",
		"job_id", job.ID,
		"status", status,
		"completed", completed.Load(),
		"failed", failed.Load(),
	)

	if job.WebhookURL != "" {
		// The event carries the summary only; images stay behind GET /batch/:id.
		summary := job.Snapshot()
		summary.Results = nil
		webhook.DeliverAsync(job.WebhookURL, webhookSecret, &webhook.Event{
			Type:      "batch.completed",
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      summary,
		})
	}
}

// captureOne runs a single capture for a batch slot and serializes the
// outcome, embedding the image as base64.
func captureOne(svc capture.Service, opts models.BatchOptions, targetURL string) *models.CaptureResponse {
	totalStart := time.Now()

	req := opts.Request(targetURL)
	if err := req.Validate(); err != nil {
		return batchError(err, totalStart)
	}

	result, err := svc.DoCapture(context.Background(), req)
	if err != nil {
		return batchError(err, totalStart)
	}

	return &models.CaptureResponse{
		Success:      true,
		TargetStatus: result.TargetStatus,
		FinalURL:     result.FinalURL,
		MIMEType:     result.MIMEType,
		Image:        base64.StdEncoding.EncodeToString(result.Image),
		Metadata:     result.Metadata,
		Timing: models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			NavigationMs: result.NavigationMs,
			CaptureMs:    result.CaptureMs,
		},
	}
}

func batchError(err error, totalStart time.Time) *models.CaptureResponse {
	capErr, ok := err.(*models.CaptureError)
	if !ok {
		capErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
	}
	return &models.CaptureResponse{
		Success: false,
		Error:   capErr.ToDetail(),
		Timing:  models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()},
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
