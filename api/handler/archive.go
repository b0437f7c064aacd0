package handler

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/snapr/capture"
	"github.com/use-agent/snapr/models"
)

// archivePage is the minimal form UI: submit a URL, get the archived image
// back inline. Styling is inline so no static-file serving is needed.
const archivePage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Snapr — Webpage Archiver</title>
<style>
body { font-family: sans-serif; margin: 0; background: #f4f5f7; color: #222; }
.container { max-width: 720px; margin: 0 auto; padding: 2rem 1rem; }
h1 { font-size: 1.4rem; }
.form-section { background: #fff; border: 1px solid #ddd; border-radius: 6px; padding: 1.5rem; }
label { display: block; margin-bottom: .4rem; font-weight: 600; }
input[type=text] { width: 100%; padding: .5rem; border: 1px solid #ccc; border-radius: 4px; box-sizing: border-box; }
button { margin-top: 1rem; padding: .5rem 1.5rem; background: #2b6cb0; color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
.status { margin-top: 1rem; padding: .75rem 1rem; border-radius: 4px; }
.status-success { background: #e6ffed; border: 1px solid #9ae6b4; }
.status-error { background: #fff5f5; border: 1px solid #feb2b2; }
.preview { margin-top: 1.5rem; }
.preview img { width: 100%; height: auto; border: 1px solid #ccc; }
</style>
</head>
<body>
<div class="container">
<h1>Snapr — Archive a Webpage</h1>
<div class="form-section">
<form action="/archive" method="post">
<label for="url">URL</label>
<input type="text" id="url" name="url" placeholder="https://example.com" required>
<button type="submit">Archive</button>
</form>
</div>
{{if .Message}}<div class="status status-{{.MessageType}}">{{.Message}}</div>{{end}}
{{if .ImageSrc}}
<div class="preview">
<h2>Archived Image</h2>
<img src="{{.ImageSrc}}" alt="Archived webpage">
</div>
{{end}}
</div>
</body>
</html>`

// archiveData feeds the archive template.
type archiveData struct {
	Message     string
	MessageType string // "success" or "error"
	ImageSrc    template.URL
}

// ArchiveTemplate returns the parsed archive page template for the router to
// install on the gin engine.
func ArchiveTemplate() *template.Template {
	return template.Must(template.New("archive").Parse(archivePage))
}

// ArchiveForm returns a handler for GET /, rendering the URL submission form.
func ArchiveForm() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "archive", archiveData{})
	}
}

// ArchivePost returns a handler for POST /archive. It captures the submitted
// URL and re-renders the page with the image inlined as a data URI, so no
// screenshot ever touches disk.
func ArchivePost(svc capture.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetURL := c.PostForm("url")
		if targetURL == "" {
			c.HTML(http.StatusBadRequest, "archive", archiveData{
				Message:     "Please provide a URL to archive.",
				MessageType: "error",
			})
			return
		}

		req := &models.CaptureRequest{URL: targetURL}
		req.Defaults()
		if err := req.Validate(); err != nil {
			c.HTML(http.StatusBadRequest, "archive", archiveData{
				Message:     fmt.Sprintf("Invalid URL: %s", errMessage(err)),
				MessageType: "error",
			})
			return
		}

		result, err := svc.DoCapture(c.Request.Context(), req)
		if err != nil {
			c.HTML(errStatus(err), "archive", archiveData{
				Message:     fmt.Sprintf("Failed to archive %s: %s", targetURL, errMessage(err)),
				MessageType: "error",
			})
			return
		}

		dataURI := "data:" + result.MIMEType + ";base64," +
			base64.StdEncoding.EncodeToString(result.Image)
		c.HTML(http.StatusOK, "archive", archiveData{
			Message:     fmt.Sprintf("Successfully archived %s.", targetURL),
			MessageType: "success",
			ImageSrc:    template.URL(dataURI),
		})
	}
}

func errMessage(err error) string {
	if capErr, ok := err.(*models.CaptureError); ok {
		return capErr.Message
	}
	return err.Error()
}

func errStatus(err error) int {
	if capErr, ok := err.(*models.CaptureError); ok {
		return mapErrorToStatus(capErr)
	}
	return http.StatusInternalServerError
}
