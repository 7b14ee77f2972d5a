package documents

import "time"

// Document lifecycle states.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

const (
	mimePDF          = "application/pdf"
	maxFileNameChars = 255
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s string) bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Document represents an uploaded file and its extraction state.
type Document struct {
	ID            string
	Name          string
	SizeBytes     int64
	MimeType      string
	FilePath      string
	Status        string
	ExtractedText string
	UploadedAt    time.Time
	UpdatedAt     time.Time
}

// Stats summarizes the document collection.
type Stats struct {
	TotalDocuments     int
	CompletedDocuments int
	ByStatus           map[string]int
}
