package analyses

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Input is a schema-validated analysis body from the store and update
// endpoints. Pointer fields distinguish absent from zero.
type Input struct {
	DocumentName   string
	DocumentID     string
	Summary        string
	KeyPoints      []string
	ActionItems    []ActionItem
	Confidence     *int
	ProcessingTime *float64
	ModelUsed      string
	TokensUsed     *int
	Category       string
	Tags           []string
}

// Validation bounds, matching the external producer's contract.
const (
	documentNameMin = 3
	documentNameMax = 255
	summaryMin      = 10
	summaryMax      = 10000
	keyPointMin     = 3
	keyPointMax     = 500
	keyPointsMax    = 20
	actionItemsMax  = 10
	titleMin        = 3
	titleMax        = 200
	descriptionMin  = 10
	descriptionMax  = 1000
	categoryMin     = 2
	categoryMax     = 100
	modelUsedMax    = 100
	processingMax   = 300
	tagMax          = 50
	tagsMax         = 10
)

// Validate checks an input against the analysis schema. With partial set,
// absent fields are skipped; present fields still obey every rule.
func Validate(in Input, partial bool) *ValidationError {
	var v []FieldViolation
	add := func(field, message string) {
		v = append(v, FieldViolation{Field: field, Message: message})
	}

	name := strings.TrimSpace(in.DocumentName)
	if name == "" {
		if !partial {
			add("documentName", "document name is required")
		}
	} else if len(name) < documentNameMin || len(name) > documentNameMax {
		add("documentName", fmt.Sprintf("must be between %d and %d characters", documentNameMin, documentNameMax))
	}

	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		if !partial {
			add("summary", "summary is required")
		}
	} else if len(summary) < summaryMin || len(summary) > summaryMax {
		add("summary", fmt.Sprintf("must be between %d and %d characters", summaryMin, summaryMax))
	}

	if len(in.KeyPoints) > keyPointsMax {
		add("keyPoints", fmt.Sprintf("at most %d key points", keyPointsMax))
	}
	for i, kp := range in.KeyPoints {
		if len(kp) < keyPointMin || len(kp) > keyPointMax {
			add(fmt.Sprintf("keyPoints.%d", i), fmt.Sprintf("must be between %d and %d characters", keyPointMin, keyPointMax))
		}
	}

	if len(in.ActionItems) > actionItemsMax {
		add("actionItems", fmt.Sprintf("at most %d action items", actionItemsMax))
	}
	for i, item := range in.ActionItems {
		prefix := fmt.Sprintf("actionItems.%d.", i)
		if len(item.Title) < titleMin || len(item.Title) > titleMax {
			add(prefix+"title", fmt.Sprintf("must be between %d and %d characters", titleMin, titleMax))
		}
		if len(item.Description) < descriptionMin || len(item.Description) > descriptionMax {
			add(prefix+"description", fmt.Sprintf("must be between %d and %d characters", descriptionMin, descriptionMax))
		}
		if item.Priority != "" && !ValidPriority(item.Priority) {
			add(prefix+"priority", "must be one of low, medium, high")
		}
		if len(item.Category) < categoryMin || len(item.Category) > categoryMax {
			add(prefix+"category", fmt.Sprintf("must be between %d and %d characters", categoryMin, categoryMax))
		}
	}

	if in.Confidence == nil {
		if !partial {
			add("confidence", "confidence score is required")
		}
	} else if *in.Confidence < 0 || *in.Confidence > 100 {
		add("confidence", "must be between 0 and 100")
	}

	if in.ProcessingTime != nil && (*in.ProcessingTime < 0 || *in.ProcessingTime > processingMax) {
		add("processingTime", fmt.Sprintf("must be between 0 and %d seconds", processingMax))
	}

	if len(in.ModelUsed) > modelUsedMax {
		add("modelUsed", fmt.Sprintf("at most %d characters", modelUsedMax))
	}

	if in.TokensUsed != nil && *in.TokensUsed < 0 {
		add("tokensUsed", "must not be negative")
	}

	if in.Category != "" && len(in.Category) > categoryMax {
		add("category", fmt.Sprintf("at most %d characters", categoryMax))
	}

	if len(in.Tags) > tagsMax {
		add("tags", fmt.Sprintf("at most %d tags", tagsMax))
	}
	for i, tag := range in.Tags {
		if len(tag) > tagMax {
			add(fmt.Sprintf("tags.%d", i), fmt.Sprintf("at most %d characters", tagMax))
		}
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

// applyDefaults backfills the optional fields of a validated input.
func applyDefaults(in Input) Input {
	if in.ModelUsed == "" {
		in.ModelUsed = "unknown"
	}
	items := make([]ActionItem, len(in.ActionItems))
	for i, item := range in.ActionItems {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Priority == "" {
			item.Priority = PriorityMedium
		}
		items[i] = item
	}
	in.ActionItems = items
	in.Tags = dedupeTags(in.Tags)
	return in
}

// dedupeTags keeps first occurrence order, compares case-insensitively, and
// drops blanks.
func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	return out
}
