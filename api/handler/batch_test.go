package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/snapr/models"
)

func postBatch(svc *stubService, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/batch/capture", PostBatch(svc, ""))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/batch/capture", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func getBatch(id string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/batch/:id", GetBatch())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batch/"+id, nil))
	return w
}

// waitForJob polls the store until the job leaves "processing", reading only
// through Snapshot so the wait itself stays race-free.
func waitForJob(t *testing.T, id string) models.BatchStatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if val, ok := batchStore.Load(id); ok {
			snap := val.(*models.BatchJob).Snapshot()
			if snap.Status != "processing" {
				return snap
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never completed", id)
	return models.BatchStatusResponse{}
}

func TestPostBatchRunsAllURLs(t *testing.T) {
	svc := &stubService{result: okResult(), stats: models.PoolStats{MaxPages: 2}}
	w := postBatch(svc, `{"urls":["https://a.example","https://b.example","https://c.example"]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var resp models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "processing" || resp.Total != 3 {
		t.Errorf("resp = %+v, want processing/3", resp)
	}

	job := waitForJob(t, resp.ID)
	if job.Status != "completed" {
		t.Errorf("status = %q, want completed", job.Status)
	}
	if job.Completed != 3 {
		t.Errorf("completed = %d, want 3", job.Completed)
	}
	for i, r := range job.Results {
		if r == nil || !r.Success {
			t.Errorf("result %d not successful: %+v", i, r)
			continue
		}
		if r.Image == "" {
			t.Errorf("result %d missing base64 image", i)
		}
	}
}

func TestPostBatchPartialFailure(t *testing.T) {
	// An invalid URL fails validation inside its slot; the job still runs
	// the valid one and ends up partial.
	svc := &stubService{result: okResult(), stats: models.PoolStats{MaxPages: 2}}
	w := postBatch(svc, `{"urls":["https://good.example","ftp://bad.example"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var resp models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	job := waitForJob(t, resp.ID)
	if job.Status != "partial" {
		t.Errorf("status = %q, want partial", job.Status)
	}
	if !job.Results[0].Success {
		t.Error("valid URL should have succeeded")
	}
	if job.Results[1].Success {
		t.Error("ftp URL should have failed")
	}
	if job.Results[1].Error == nil || job.Results[1].Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("failed slot error = %+v, want INVALID_INPUT", job.Results[1].Error)
	}
}

func TestPostBatchAllFailed(t *testing.T) {
	svc := &stubService{
		err:   models.NewCaptureError(models.ErrCodeConnection, "unreachable", nil),
		stats: models.PoolStats{MaxPages: 2},
	}
	w := postBatch(svc, `{"urls":["https://down.example"]}`)
	var resp models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	job := waitForJob(t, resp.ID)
	if job.Status != "failed" {
		t.Errorf("status = %q, want failed", job.Status)
	}
}

func TestPostBatchRejectsBadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"urls":`},
		{"missing urls", `{}`},
		{"empty urls", `{"urls":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{result: okResult()}
			w := postBatch(svc, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body: %s", w.Code, w.Body.String())
			}
			if svc.callCount() != 0 {
				t.Error("bad body must not reach the capture service")
			}
		})
	}
}

func TestGetBatchStatus(t *testing.T) {
	svc := &stubService{result: okResult(), stats: models.PoolStats{MaxPages: 2}}
	w := postBatch(svc, `{"urls":["https://a.example"]}`)
	var created models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	waitForJob(t, created.ID)

	w = getBatch(created.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var status models.BatchStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.ID != created.ID || status.Status != "completed" || len(status.Results) != 1 {
		t.Errorf("status response = %+v", status)
	}
}

// Clients poll a job while its workers are still writing results; serialization
// must see a consistent snapshot rather than racing the writers.
func TestGetBatchWhileProcessing(t *testing.T) {
	svc := &stubService{
		result: okResult(),
		delay:  30 * time.Millisecond,
		stats:  models.PoolStats{MaxPages: 2},
	}
	w := postBatch(svc, `{"urls":["https://a.example","https://b.example","https://c.example","https://d.example","https://e.example"]}`)
	var created models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				resp := getBatch(created.ID)
				if resp.Code != http.StatusOK {
					t.Errorf("poll status = %d, want 200", resp.Code)
					return
				}
				var status models.BatchStatusResponse
				if err := json.Unmarshal(resp.Body.Bytes(), &status); err != nil {
					t.Errorf("poll response not valid JSON: %v", err)
					return
				}
				if status.Completed > status.Total {
					t.Errorf("completed %d exceeds total %d", status.Completed, status.Total)
					return
				}
			}
		}()
	}

	job := waitForJob(t, created.ID)
	close(done)
	wg.Wait()

	if job.Status != "completed" || job.Completed != 5 {
		t.Errorf("job = %q %d/5, want completed 5/5", job.Status, job.Completed)
	}
}

func TestGetBatchUnknownID(t *testing.T) {
	w := getBatch("batch-does-not-exist")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
