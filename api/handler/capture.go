package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/snapr/capture"
	"github.com/use-agent/snapr/models"
)

// Capture returns a handler for POST /api/v1/capture.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. capture.Service.DoCapture → image bytes + metadata.
//  3. Success: raw image body, capture metadata in X-Snapr-* headers.
//     Failure: JSON error envelope with the taxonomy status code.
func Capture(svc capture.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewCaptureError(
				models.ErrCodeInvalidInput, err.Error(), err,
			), models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}
		req.Defaults()
		if err := req.Validate(); err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		result, err := svc.DoCapture(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		writeImage(c, result, totalStart)
	}
}

// Screenshot returns a handler for GET /api/v1/screenshot?url=<absolute-url>.
// It is the query-parameter flavor of Capture for clients that just want
// `GET /screenshot?url=…` → PNG bytes.
//
// Optional query parameters: width, height, full_page, format, quality, timeout.
func Screenshot(svc capture.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		req := models.CaptureRequest{
			URL:            c.Query("url"),
			ViewportWidth:  queryInt(c, "width"),
			ViewportHeight: queryInt(c, "height"),
			Format:         c.Query("format"),
			Quality:        queryInt(c, "quality"),
			Timeout:        queryInt(c, "timeout"),
		}
		if req.URL == "" {
			respondError(c, models.NewCaptureError(
				models.ErrCodeInvalidInput, "missing required query parameter: url", nil,
			), models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}
		if v := c.Query("full_page"); v != "" {
			fullPage := v != "false" && v != "0"
			req.FullPage = &fullPage
		}
		req.Defaults()
		if err := req.Validate(); err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		result, err := svc.DoCapture(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		writeImage(c, result, totalStart)
	}
}

// writeImage streams capture bytes with metadata carried in response headers.
func writeImage(c *gin.Context, result *capture.Result, totalStart time.Time) {
	c.Header("X-Snapr-Final-URL", result.FinalURL)
	c.Header("X-Snapr-Target-Status", strconv.Itoa(result.TargetStatus))
	c.Header("X-Snapr-Navigation-Ms", strconv.FormatInt(result.NavigationMs, 10))
	c.Header("X-Snapr-Capture-Ms", strconv.FormatInt(result.CaptureMs, 10))
	c.Header("X-Snapr-Total-Ms", strconv.FormatInt(time.Since(totalStart).Milliseconds(), 10))
	c.Data(http.StatusOK, result.MIMEType, result.Image)
}

func queryInt(c *gin.Context, key string) int {
	if v := c.Query(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return 0
}

// respondError maps a CaptureError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	capErr, ok := err.(*models.CaptureError)
	if !ok {
		capErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(capErr), models.CaptureResponse{
		Success: false,
		Error:   capErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
// Timeouts and unreachable targets are upstream failures → 502; only an
// engine failure is the service's own fault → 500.
func mapErrorToStatus(e *models.CaptureError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeTimeout, models.ErrCodeConnection, models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
