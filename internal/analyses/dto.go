package analyses

import (
	"time"

	"docinsight-backend/internal/documents"
)

// analysisRequest is the store/update body. Pointer fields distinguish
// absent from zero for partial updates.
type analysisRequest struct {
	DocumentName   string       `json:"documentName"`
	DocumentID     string       `json:"documentId"`
	Summary        string       `json:"summary"`
	KeyPoints      []string     `json:"keyPoints"`
	ActionItems    []ActionItem `json:"actionItems"`
	Confidence     *int         `json:"confidence"`
	ProcessingTime *float64     `json:"processingTime"`
	ModelUsed      string       `json:"modelUsed"`
	TokensUsed     *int         `json:"tokensUsed"`
	Category       string       `json:"category"`
	Tags           []string     `json:"tags"`
}

func (r analysisRequest) toInput() Input {
	return Input{
		DocumentName:   r.DocumentName,
		DocumentID:     r.DocumentID,
		Summary:        r.Summary,
		KeyPoints:      r.KeyPoints,
		ActionItems:    r.ActionItems,
		Confidence:     r.Confidence,
		ProcessingTime: r.ProcessingTime,
		ModelUsed:      r.ModelUsed,
		TokensUsed:     r.TokensUsed,
		Category:       r.Category,
		Tags:           r.Tags,
	}
}

type addTagRequest struct {
	Tag string `json:"tag"`
}

// AnalysisResult is the outward-facing representation of an analysis.
// WordCount and ShortSummary are derived on read, never stored; the
// update timestamp stays internal.
type AnalysisResult struct {
	ID             string       `json:"id"`
	DocumentID     string       `json:"documentId,omitempty"`
	DocumentName   string       `json:"documentName"`
	Summary        string       `json:"summary"`
	ShortSummary   string       `json:"shortSummary"`
	WordCount      int          `json:"wordCount"`
	KeyPoints      []string     `json:"keyPoints"`
	ActionItems    []ActionItem `json:"actionItems"`
	Confidence     int          `json:"confidence"`
	ProcessingTime float64      `json:"processingTime"`
	ModelUsed      string       `json:"modelUsed"`
	TokensUsed     int          `json:"tokensUsed"`
	Category       string       `json:"category,omitempty"`
	Tags           []string     `json:"tags"`
	CreatedAt      time.Time    `json:"createdAt"`
}

func toResult(a Analysis) AnalysisResult {
	keyPoints := a.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	actionItems := a.ActionItems
	if actionItems == nil {
		actionItems = []ActionItem{}
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return AnalysisResult{
		ID:             a.ID,
		DocumentID:     a.DocumentID,
		DocumentName:   a.DocumentName,
		Summary:        a.Summary,
		ShortSummary:   a.ShortSummary(),
		WordCount:      a.WordCount(),
		KeyPoints:      keyPoints,
		ActionItems:    actionItems,
		Confidence:     a.Confidence,
		ProcessingTime: a.ProcessingTime,
		ModelUsed:      a.ModelUsed,
		TokensUsed:     a.TokensUsed,
		Category:       a.Category,
		Tags:           tags,
		CreatedAt:      a.CreatedAt,
	}
}

// documentBlock mirrors the document summary embedded next to an analysis.
type documentBlock struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"`
}

func toDocumentBlock(doc documents.Document) documentBlock {
	return documentBlock{
		ID:         doc.ID,
		Name:       doc.Name,
		Size:       doc.SizeBytes,
		Type:       doc.MimeType,
		UploadedAt: doc.UploadedAt,
		Status:     doc.Status,
	}
}

// generationResponse pairs an analysis with its owning document.
type generationResponse struct {
	ID             string         `json:"id"`
	Document       *documentBlock `json:"document,omitempty"`
	AnalysisResult AnalysisResult `json:"analysisResult"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func toGenerationResponse(a Analysis, doc *documents.Document) generationResponse {
	resp := generationResponse{
		ID:             a.ID,
		AnalysisResult: toResult(a),
		CreatedAt:      a.CreatedAt,
	}
	if doc != nil {
		block := toDocumentBlock(*doc)
		resp.Document = &block
	}
	return resp
}

// StatsResponse summarizes the analysis collection.
type StatsResponse struct {
	TotalAnalyses          int            `json:"totalAnalyses"`
	AverageConfidence      float64        `json:"averageConfidence"`
	DistributionByCategory map[string]int `json:"distributionByCategory"`
	RecentAnalyses         int            `json:"recentAnalyses"`
}
