// Capture load benchmark: fires concurrent screenshot requests at a running
// Snapr instance and reports per-URL latency and image size.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL      = flag.String("api-url", "http://localhost:8002", "Snapr API base URL")
	apiKey      = flag.String("api-key", "", "API key for authenticated requests")
	runs        = flag.Int("runs", 3, "Number of runs per URL for averaging")
	concurrency = flag.Int("concurrency", 4, "Concurrent captures in flight")
	timeout     = flag.Int("timeout", 60, "Per-capture timeout in seconds")
)

// Test URLs covering different page weights.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

type runResult struct {
	Label      string
	URL        string
	DurationMs int64
	ImageBytes int
	Status     int
	Err        string
}

func main() {
	flag.Parse()

	client := &http.Client{Timeout: time.Duration(*timeout+30) * time.Second}

	jobs := make(chan struct {
		label, url string
	}, len(testURLs)*(*runs))
	for _, tc := range testURLs {
		for i := 0; i < *runs; i++ {
			jobs <- struct{ label, url string }{tc.Label, tc.URL}
		}
	}
	close(jobs)

	var mu sync.Mutex
	var results []runResult
	var wg sync.WaitGroup

	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				r := captureOnce(client, job.label, job.url)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	report(results)
}

func captureOnce(client *http.Client, label, target string) runResult {
	endpoint := fmt.Sprintf("%s/api/v1/screenshot?url=%s&timeout=%d",
		*apiURL, url.QueryEscape(target), *timeout)

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return runResult{Label: label, URL: target, Err: err.Error()}
	}
	if *apiKey != "" {
		req.Header.Set("X-API-Key", *apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return runResult{Label: label, URL: target, Err: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return runResult{Label: label, URL: target, DurationMs: elapsed, Err: err.Error()}
	}

	r := runResult{
		Label:      label,
		URL:        target,
		DurationMs: elapsed,
		Status:     resp.StatusCode,
	}
	if resp.StatusCode == http.StatusOK {
		r.ImageBytes = len(body)
	} else {
		r.Err = string(body)
	}
	return r
}

func report(results []runResult) {
	type agg struct {
		count, ok  int
		totalMs    int64
		totalBytes int
	}
	byLabel := make(map[string]*agg)
	for _, r := range results {
		a, ok := byLabel[r.Label]
		if !ok {
			a = &agg{}
			byLabel[r.Label] = a
		}
		a.count++
		if r.Err == "" && r.Status == http.StatusOK {
			a.ok++
			a.totalMs += r.DurationMs
			a.totalBytes += r.ImageBytes
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tRUNS\tOK\tAVG MS\tAVG KB")
	for _, tc := range testURLs {
		a := byLabel[tc.Label]
		if a == nil {
			continue
		}
		var avgMs, avgKB float64
		if a.ok > 0 {
			avgMs = float64(a.totalMs) / float64(a.ok)
			avgKB = float64(a.totalBytes) / float64(a.ok) / 1024
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\t%.0f\n", tc.Label, a.count, a.ok, avgMs, avgKB)
	}
	w.Flush()

	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(os.Stderr, "FAIL %s %s: %s\n", r.Label, r.URL, r.Err)
		}
	}
}
