package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
	"github.com/use-agent/snapr/models"
)

// preflightProbe verifies the target is reachable before a browser tab is
// spent on it. It dials the target directly and, for https, completes a TLS
// handshake with a Chrome fingerprint so TLS-picky hosts behave the same way
// they will for the real navigation.
//
// The probe only classifies transport failures. It never inspects the HTTP
// response: status-code policy belongs to the capture path.
type preflightProbe struct {
	timeout time.Duration
	proxy   string
}

func newPreflightProbe(timeout time.Duration, proxy string) *preflightProbe {
	return &preflightProbe{timeout: timeout, proxy: proxy}
}

// Check returns a CONNECTION_FAILED CaptureError when the target's host
// cannot be resolved or connected to, and nil otherwise.
func (f *preflightProbe) Check(ctx context.Context, targetURL string) error {
	// When navigation goes through a proxy, the proxy does the resolving
	// and dialing; probing from here would test the wrong path.
	if f.proxy != "" {
		return nil
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return models.NewCaptureError(models.ErrCodeInvalidInput,
			fmt.Sprintf("malformed url %q", targetURL), err)
	}

	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	probeCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(probeCtx, "tcp", addr)
	if err != nil {
		return f.classify(ctx, u.Hostname(), err)
	}
	defer conn.Close()

	if u.Scheme == "https" {
		tlsConn := utls.UClient(conn, &utls.Config{
			ServerName: u.Hostname(),
		}, utls.HelloChrome_Auto)
		if err := tlsConn.HandshakeContext(probeCtx); err != nil {
			return f.classify(ctx, u.Hostname(), err)
		}
	}

	return nil
}

// classify turns a dial/handshake error into the taxonomy the API reports.
// If the caller's own deadline already expired, the failure is the capture
// timing out, not the target being down.
func (f *preflightProbe) classify(parent context.Context, host string, err error) error {
	if parent.Err() != nil {
		return categorizeError(parent.Err(), "capture deadline expired during preflight")
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.NewCaptureError(models.ErrCodeConnection,
			fmt.Sprintf("dns resolution failed for %q", host), err)
	}

	return models.NewCaptureError(models.ErrCodeConnection,
		fmt.Sprintf("could not connect to %q", host), err)
}
