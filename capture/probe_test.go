package capture

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/use-agent/snapr/models"
)

func TestPreflightProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // status is irrelevant to the probe
	}))
	defer srv.Close()

	probe := newPreflightProbe(2*time.Second, "")
	if err := probe.Check(context.Background(), srv.URL); err != nil {
		t.Errorf("Check(%q) = %v, want nil", srv.URL, err)
	}
}

func TestPreflightProbeConnectionRefused(t *testing.T) {
	// Grab a port that is guaranteed to be closed.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	probe := newPreflightProbe(2*time.Second, "")
	err = probe.Check(context.Background(), "http://"+addr)
	assertConnectionFailed(t, err)
}

func TestPreflightProbeDNSFailure(t *testing.T) {
	// .invalid is reserved and never resolves.
	probe := newPreflightProbe(2*time.Second, "")
	err := probe.Check(context.Background(), "https://snapr-no-such-host.invalid")
	assertConnectionFailed(t, err)
}

func TestPreflightProbeSkippedBehindProxy(t *testing.T) {
	probe := newPreflightProbe(2*time.Second, "http://proxy.local:3128")
	if err := probe.Check(context.Background(), "https://snapr-no-such-host.invalid"); err != nil {
		t.Errorf("probe should be a no-op behind a proxy, got %v", err)
	}
}

func TestPreflightProbeExpiredCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	probe := newPreflightProbe(2*time.Second, "")
	err := probe.Check(ctx, "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	var capErr *models.CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("got %T, want *models.CaptureError", err)
	}
	if capErr.Code != models.ErrCodeTimeout {
		t.Errorf("code = %q, want %q", capErr.Code, models.ErrCodeTimeout)
	}
}

func assertConnectionFailed(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var capErr *models.CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("got %T, want *models.CaptureError", err)
	}
	if capErr.Code != models.ErrCodeConnection {
		t.Errorf("code = %q, want %q", capErr.Code, models.ErrCodeConnection)
	}
}
