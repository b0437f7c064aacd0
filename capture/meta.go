package capture

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/snapr/models"
	"golang.org/x/net/html"
)

// extractMetadata pulls archive metadata from the rendered page HTML.
// All fields are best-effort; a page without any of them yields a metadata
// record carrying only the source URL.
func extractMetadata(rawHTML, sourceURL string) models.ArchiveMetadata {
	meta := models.ArchiveMetadata{SourceURL: sourceURL}

	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return meta
	}
	doc := goquery.NewDocumentFromNode(root)

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	meta.Description = metaContent(doc, `meta[name="description"]`)
	meta.SiteName = metaContent(doc, `meta[property="og:site_name"]`)
	meta.OGTitle = metaContent(doc, `meta[property="og:title"]`)
	meta.OGImage = metaContent(doc, `meta[property="og:image"]`)
	meta.OGType = metaContent(doc, `meta[property="og:type"]`)

	if lang, ok := doc.Find("html").Attr("lang"); ok {
		meta.Language = strings.TrimSpace(lang)
	}

	return meta
}

func metaContent(doc *goquery.Document, selector string) string {
	if content, ok := doc.Find(selector).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}
