package capture

import (
	"context"
	"errors"
	"strings"

	"github.com/use-agent/snapr/models"
)

// connectionErrPatterns are the Chromium net error strings that indicate the
// target itself was unreachable (DNS, TCP, TLS), as opposed to a navigation
// that reached the server but failed.
var connectionErrPatterns = []string{
	"ERR_NAME_NOT_RESOLVED",
	"ERR_NAME_RESOLUTION_FAILED",
	"ERR_CONNECTION_REFUSED",
	"ERR_CONNECTION_RESET",
	"ERR_CONNECTION_TIMED_OUT",
	"ERR_CONNECTION_CLOSED",
	"ERR_CONNECTION_FAILED",
	"ERR_ADDRESS_UNREACHABLE",
	"ERR_INTERNET_DISCONNECTED",
	"ERR_SSL_",
	"ERR_CERT_",
	"ERR_PROXY_CONNECTION_FAILED",
	"ERR_SOCKS_CONNECTION_FAILED",
}

// crashErrPatterns indicate the automation engine itself failed rather than
// the navigation: a lost CDP connection, a closed target, a dead renderer.
var crashErrPatterns = []string{
	"websocket",
	"use of closed network connection",
	"target closed",
	"session closed",
	"browser has been closed",
	"context destroyed",
	"crashed",
}

// categorizeError wraps raw errors into typed CaptureErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.CaptureError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCaptureError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCaptureError(models.ErrCodeTimeout, "request canceled", err)
	}

	var capErr *models.CaptureError
	if errors.As(err, &capErr) {
		return capErr
	}

	s := err.Error()
	for _, pattern := range connectionErrPatterns {
		if strings.Contains(s, pattern) {
			return models.NewCaptureError(models.ErrCodeConnection, msg, err)
		}
	}
	lower := strings.ToLower(s)
	for _, pattern := range crashErrPatterns {
		if strings.Contains(lower, pattern) {
			return models.NewCaptureError(models.ErrCodeBrowserCrash, msg, err)
		}
	}
	return models.NewCaptureError(models.ErrCodeNavigation, msg, err)
}
