// snapr-mcp is a stdio MCP server that fronts a running Snapr API, exposing
// webpage screenshot capture as tools for agent clients.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// captureRequest mirrors the Snapr API request model.
type captureRequest struct {
	URL            string `json:"url"`
	ViewportWidth  int    `json:"viewport_width,omitempty"`
	ViewportHeight int    `json:"viewport_height,omitempty"`
	FullPage       *bool  `json:"full_page,omitempty"`
	Format         string `json:"format,omitempty"`
	Timeout        int    `json:"timeout,omitempty"`
}

// errorEnvelope mirrors the Snapr API failure envelope.
type errorEnvelope struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// batchResponse mirrors the Snapr batch API response.
type batchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// batchStatusResponse mirrors the Snapr batch status API response.
type batchStatusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Results   []struct {
		Success  bool   `json:"success"`
		FinalURL string `json:"final_url"`
		Metadata struct {
			Title     string `json:"title"`
			SourceURL string `json:"source_url"`
		} `json:"metadata"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"results"`
}

func main() {
	apiURL := os.Getenv("SNAPR_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8002"
	}
	apiKey := os.Getenv("SNAPR_API_KEY")

	s := server.NewMCPServer(
		"snapr",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	captureTool := mcp.NewTool("capture_screenshot",
		mcp.WithDescription("Capture a full-page screenshot of a webpage using a headless browser and return the image."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The absolute http/https URL of the page to capture"),
		),
		mcp.WithBoolean("full_page",
			mcp.Description("Capture the entire scrollable page (default: true) or just the viewport"),
		),
		mcp.WithString("format",
			mcp.Description("Image format: 'png' (default) or 'jpeg'"),
			mcp.Enum("png", "jpeg"),
		),
		mcp.WithNumber("viewport_width",
			mcp.Description("Viewport width in CSS pixels (default: 1920)"),
		),
		mcp.WithNumber("viewport_height",
			mcp.Description("Viewport height in CSS pixels (default: 1080)"),
		),
	)
	s.AddTool(captureTool, handleCaptureScreenshot(apiURL, apiKey))

	batchTool := mcp.NewTool("capture_batch",
		mcp.WithDescription("Capture screenshots of multiple URLs in parallel. Returns a per-URL summary; fetch individual images with capture_screenshot."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to capture"),
		),
	)
	s.AddTool(batchTool, handleCaptureBatch(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleCaptureScreenshot(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 150 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := captureRequest{
			URL:            url,
			Format:         request.GetString("format", ""),
			ViewportWidth:  request.GetInt("viewport_width", 0),
			ViewportHeight: request.GetInt("viewport_height", 0),
		}
		if fullPage := request.GetBool("full_page", true); !fullPage {
			reqBody.FullPage = &fullPage
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/capture", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		contentType := resp.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			var envelope errorEnvelope
			if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != nil {
				return mcp.NewToolResultError(fmt.Sprintf("capture failed: %s: %s",
					envelope.Error.Code, envelope.Error.Message)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("capture failed with status %d", resp.StatusCode)), nil
		}

		caption := fmt.Sprintf("Screenshot of %s (%d bytes, target status %s)",
			url, len(respBody), resp.Header.Get("X-Snapr-Target-Status"))
		return mcp.NewToolResultImage(caption,
			base64.StdEncoding.EncodeToString(respBody), contentType), nil
	}
}

func handleCaptureBatch(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil || len(urls) == 0 {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		payload := map[string]any{"urls": urls}
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/batch/capture", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var batch batchResponse
		if err := json.Unmarshal(respBody, &batch); err != nil || batch.ID == "" {
			return mcp.NewToolResultError(fmt.Sprintf("batch submission failed: %s", respBody)), nil
		}

		statusBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+batch.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch polling failed: %v", err)), nil
		}

		var status batchStatusResponse
		if err := json.Unmarshal(statusBody, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d/%d)\n", status.ID, status.Status, status.Completed, status.Total)
		for i, r := range status.Results {
			if r.Success {
				fmt.Fprintf(&sb, "%d. ok %s %q\n", i+1, r.FinalURL, r.Metadata.Title)
			} else if r.Error != nil {
				fmt.Fprintf(&sb, "%d. failed %s: %s\n", i+1, r.Error.Code, r.Error.Message)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// apiPost sends a POST request to the Snapr API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			if apiKey != "" {
				req.Header.Set("X-API-Key", apiKey)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}
