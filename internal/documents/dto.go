package documents

import "time"

// DocumentInfo is the outward-facing representation of a document.
type DocumentInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"`
}

// DocumentItem wraps a document with its linked analysis for list and
// detail responses.
type DocumentItem struct {
	ID             string       `json:"id"`
	Document       DocumentInfo `json:"document"`
	AnalysisResult any          `json:"analysisResult"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// TextResponse carries the extracted text of a completed document.
type TextResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ExtractedText string `json:"extractedText"`
}

// StatsResponse summarizes the document collection.
type StatsResponse struct {
	TotalDocuments     int            `json:"totalDocuments"`
	CompletedDocuments int            `json:"completedDocuments"`
	DocumentsByStatus  map[string]int `json:"documentsByStatus"`
}

func toInfo(doc Document) DocumentInfo {
	return DocumentInfo{
		ID:         doc.ID,
		Name:       doc.Name,
		Size:       doc.SizeBytes,
		Type:       doc.MimeType,
		UploadedAt: doc.UploadedAt,
		Status:     doc.Status,
	}
}

func toItem(doc Document, analysis any) DocumentItem {
	return DocumentItem{
		ID:             doc.ID,
		Document:       toInfo(doc),
		AnalysisResult: analysis,
		CreatedAt:      doc.UploadedAt,
	}
}
