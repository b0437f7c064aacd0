package models

import "testing"

func TestCaptureRequestDefaults(t *testing.T) {
	req := CaptureRequest{URL: "https://example.com"}
	req.Defaults()

	if req.ViewportWidth != 1920 || req.ViewportHeight != 1080 {
		t.Errorf("unexpected default viewport: %dx%d", req.ViewportWidth, req.ViewportHeight)
	}
	if req.FullPage == nil || !*req.FullPage {
		t.Error("full_page should default to true")
	}
	if req.Format != "png" {
		t.Errorf("format should default to png, got %q", req.Format)
	}
	if req.Timeout != 30 {
		t.Errorf("timeout should default to 30, got %d", req.Timeout)
	}
	if req.MIMEType() != "image/png" {
		t.Errorf("unexpected mime type %q", req.MIMEType())
	}
}

func TestCaptureRequestDefaultsKeepExplicitValues(t *testing.T) {
	f := false
	req := CaptureRequest{
		URL:            "https://example.com",
		ViewportWidth:  800,
		ViewportHeight: 600,
		FullPage:       &f,
		Format:         "jpeg",
		Quality:        50,
		Timeout:        10,
	}
	req.Defaults()

	if req.ViewportWidth != 800 || req.ViewportHeight != 600 {
		t.Errorf("explicit viewport overwritten: %dx%d", req.ViewportWidth, req.ViewportHeight)
	}
	if *req.FullPage {
		t.Error("explicit full_page=false overwritten")
	}
	if req.Quality != 50 || req.Timeout != 10 {
		t.Errorf("explicit quality/timeout overwritten: %d/%d", req.Quality, req.Timeout)
	}
	if req.MIMEType() != "image/jpeg" {
		t.Errorf("unexpected mime type %q", req.MIMEType())
	}
}

// Range checks live in Validate rather than only in binding tags because the
// query-parameter endpoint never goes through binding.
func TestCaptureRequestValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CaptureRequest)
		wantErr bool
	}{
		{"defaults pass", func(r *CaptureRequest) {}, false},
		{"width too small", func(r *CaptureRequest) { r.ViewportWidth = 100 }, true},
		{"width negative", func(r *CaptureRequest) { r.ViewportWidth = -5 }, true},
		{"width too large", func(r *CaptureRequest) { r.ViewportWidth = 10000 }, true},
		{"height too small", func(r *CaptureRequest) { r.ViewportHeight = 100 }, true},
		{"height too large", func(r *CaptureRequest) { r.ViewportHeight = 9999 }, true},
		{"quality too large", func(r *CaptureRequest) { r.Quality = 500 }, true},
		{"quality negative", func(r *CaptureRequest) { r.Quality = -1 }, true},
		{"timeout negative", func(r *CaptureRequest) { r.Timeout = -1 }, true},
		{"timeout too large", func(r *CaptureRequest) { r.Timeout = 600 }, true},
		{"unknown format", func(r *CaptureRequest) { r.Format = "webp" }, true},
		{"boundary values", func(r *CaptureRequest) {
			r.ViewportWidth = 320
			r.ViewportHeight = 4320
			r.Quality = 100
			r.Timeout = 120
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CaptureRequest{URL: "https://example.com"}
			req.Defaults()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if err != nil {
				capErr, ok := err.(*CaptureError)
				if !ok {
					t.Fatalf("Validate returned %T, want *CaptureError", err)
				}
				if capErr.Code != ErrCodeInvalidInput {
					t.Errorf("error code = %q, want %q", capErr.Code, ErrCodeInvalidInput)
				}
			}
		})
	}
}

func TestCaptureRequestValidate(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		selector string
		wantErr  bool
	}{
		{"valid http", "http://example.com", "", false},
		{"valid https with path", "https://example.com/page?x=1", "", false},
		{"empty", "", "", true},
		{"not a url", "not a url", "", true},
		{"relative", "/just/a/path", "", true},
		{"ftp scheme", "ftp://example.com/file", "", true},
		{"file scheme", "file:///etc/passwd", "", true},
		{"scheme only", "https://", "", true},
		{"valid selector", "https://example.com", "#main .content", false},
		{"invalid selector", "https://example.com", "div[", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CaptureRequest{URL: tt.url, Selector: tt.selector}
			req.Defaults()
			err := req.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate(%q, %q) = nil, want error", tt.url, tt.selector)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate(%q, %q) = %v, want nil", tt.url, tt.selector, err)
			}
			if tt.wantErr && err != nil {
				capErr, ok := err.(*CaptureError)
				if !ok {
					t.Fatalf("Validate returned %T, want *CaptureError", err)
				}
				if capErr.Code != ErrCodeInvalidInput {
					t.Errorf("error code = %q, want %q", capErr.Code, ErrCodeInvalidInput)
				}
			}
		})
	}
}
