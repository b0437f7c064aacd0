package capture

import "github.com/use-agent/snapr/models"

// Result is the raw output of a capture before API serialization.
type Result struct {
	Image        []byte
	MIMEType     string
	TargetStatus int
	FinalURL     string
	Metadata     models.ArchiveMetadata
	NavigationMs int64
	CaptureMs    int64
}
