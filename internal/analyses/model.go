package analyses

import (
	"strings"
	"time"
)

// Action item priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is a known priority level.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ActionItem is one suggested follow-up inside an analysis.
type ActionItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

// Analysis is a persisted structured analysis of a document. DocumentID is
// empty for analyses stored by an external producer without a document row.
type Analysis struct {
	ID             string
	DocumentID     string
	DocumentName   string
	Summary        string
	KeyPoints      []string
	ActionItems    []ActionItem
	Confidence     int
	ProcessingTime float64
	ModelUsed      string
	TokensUsed     int
	Category       string
	Tags           []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const shortSummaryLength = 100

// WordCount is the whitespace-token count of the summary. Derived on read,
// never persisted.
func (a Analysis) WordCount() int {
	return len(strings.Fields(a.Summary))
}

// ShortSummary truncates the summary for list views. Derived on read.
func (a Analysis) ShortSummary() string {
	if len(a.Summary) > shortSummaryLength {
		return a.Summary[:shortSummaryLength] + "..."
	}
	return a.Summary
}

// Draft is the generator's output before persistence.
type Draft struct {
	Summary        string
	KeyPoints      []string
	ActionItems    []ActionItem
	Confidence     int
	ProcessingTime float64
	ModelUsed      string
	TokensUsed     int
}

// Stats summarizes the analysis collection.
type Stats struct {
	TotalAnalyses          int
	AverageConfidence      float64
	DistributionByCategory map[string]int
	RecentAnalyses         int
}
