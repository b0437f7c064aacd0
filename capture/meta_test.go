package capture

import "testing"

const sampleHTML = `<!DOCTYPE html>
<html lang="en-US">
<head>
<title>  Example Domain  </title>
<meta name="description" content="An example page.">
<meta property="og:site_name" content="Example">
<meta property="og:title" content="Example Domain (OG)">
<meta property="og:image" content="https://example.com/og.png">
<meta property="og:type" content="website">
</head>
<body><h1>Example Domain</h1></body>
</html>`

func TestExtractMetadata(t *testing.T) {
	meta := extractMetadata(sampleHTML, "https://example.com")

	if meta.Title != "Example Domain" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Description != "An example page." {
		t.Errorf("description = %q", meta.Description)
	}
	if meta.SiteName != "Example" {
		t.Errorf("site_name = %q", meta.SiteName)
	}
	if meta.OGTitle != "Example Domain (OG)" {
		t.Errorf("og_title = %q", meta.OGTitle)
	}
	if meta.OGImage != "https://example.com/og.png" {
		t.Errorf("og_image = %q", meta.OGImage)
	}
	if meta.Language != "en-US" {
		t.Errorf("language = %q", meta.Language)
	}
	if meta.SourceURL != "https://example.com" {
		t.Errorf("source_url = %q", meta.SourceURL)
	}
}

func TestExtractMetadataBarePage(t *testing.T) {
	meta := extractMetadata("<html><body>hi</body></html>", "https://bare.example")

	if meta.Title != "" || meta.Description != "" {
		t.Errorf("bare page yielded metadata: %+v", meta)
	}
	if meta.SourceURL != "https://bare.example" {
		t.Errorf("source_url = %q", meta.SourceURL)
	}
}

func TestExtractMetadataMalformedHTML(t *testing.T) {
	// The html5 parser is forgiving; even fragments must not panic and
	// must still carry the source URL.
	meta := extractMetadata("<<<not html>>>", "https://broken.example")
	if meta.SourceURL != "https://broken.example" {
		t.Errorf("source_url = %q", meta.SourceURL)
	}
}
