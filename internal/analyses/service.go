package analyses

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"docinsight-backend/internal/documents"
	"docinsight-backend/internal/shared/telemetry"
)

// DocumentSource resolves documents for generation preconditions.
type DocumentSource interface {
	GetByID(ctx context.Context, id string) (documents.Document, error)
}

// SearchParams are the query knobs of the search endpoint.
type SearchParams struct {
	Query         string
	Category      string
	ConfidenceMin *int
	ConfidenceMax *int
	MinWords      *int
	MaxWords      *int
}

// Service contains business logic for analyses.
type Service struct {
	Repo Repo
	Docs DocumentSource
	Gen  *Generator
}

// GenerateForDocument creates the analysis for a completed document. The
// operation is idempotent: an existing analysis comes back with created
// false, including when a concurrent generator wins the insert race.
func (s *Service) GenerateForDocument(ctx context.Context, documentID string) (Analysis, documents.Document, bool, error) {
	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		return Analysis{}, documents.Document{}, false, err
	}
	if doc.Status != documents.StatusCompleted {
		return Analysis{}, documents.Document{}, false, documents.ErrNotReady
	}
	if strings.TrimSpace(doc.ExtractedText) == "" {
		return Analysis{}, documents.Document{}, false, ErrNoText
	}

	existing, err := s.Repo.GetByDocumentID(ctx, documentID)
	if err == nil {
		return existing, doc, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Analysis{}, documents.Document{}, false, err
	}

	draft, err := s.Gen.Generate(ctx, doc.ExtractedText, doc.Name)
	if err != nil {
		return Analysis{}, documents.Document{}, false, err
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:             uuid.NewString(),
		DocumentID:     doc.ID,
		DocumentName:   doc.Name,
		Summary:        draft.Summary,
		KeyPoints:      draft.KeyPoints,
		ActionItems:    draft.ActionItems,
		Confidence:     draft.Confidence,
		ProcessingTime: draft.ProcessingTime,
		ModelUsed:      draft.ModelUsed,
		TokensUsed:     draft.TokensUsed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the race; the winner's row is the analysis.
			winner, getErr := s.Repo.GetByDocumentID(ctx, documentID)
			if getErr != nil {
				return Analysis{}, documents.Document{}, false, getErr
			}
			return winner, doc, false, nil
		}
		return Analysis{}, documents.Document{}, false, err
	}

	telemetry.Info("analysis.generated", map[string]any{
		"analysisId": analysis.ID,
		"documentId": doc.ID,
		"model":      analysis.ModelUsed,
		"confidence": analysis.Confidence,
	})
	return analysis, doc, true, nil
}

// Store persists an externally produced analysis after schema validation.
func (s *Service) Store(ctx context.Context, in Input) (Analysis, error) {
	if verr := Validate(in, false); verr != nil {
		return Analysis{}, verr
	}
	in = applyDefaults(in)

	now := time.Now().UTC()
	analysis := Analysis{
		ID:           uuid.NewString(),
		DocumentID:   in.DocumentID,
		DocumentName: strings.TrimSpace(in.DocumentName),
		Summary:      strings.TrimSpace(in.Summary),
		KeyPoints:    in.KeyPoints,
		ActionItems:  in.ActionItems,
		Confidence:   *in.Confidence,
		ModelUsed:    in.ModelUsed,
		Category:     in.Category,
		Tags:         in.Tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.ProcessingTime != nil {
		analysis.ProcessingTime = *in.ProcessingTime
	}
	if in.TokensUsed != nil {
		analysis.TokensUsed = *in.TokensUsed
	}
	if analysis.KeyPoints == nil {
		analysis.KeyPoints = []string{}
	}
	if analysis.ActionItems == nil {
		analysis.ActionItems = []ActionItem{}
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, id string) (Analysis, error) {
	return s.Repo.GetByID(ctx, id)
}

// GetByDocumentID returns the analysis linked to a document.
func (s *Service) GetByDocumentID(ctx context.Context, documentID string) (Analysis, error) {
	return s.Repo.GetByDocumentID(ctx, documentID)
}

// FindResultByDocumentID returns the rendered analysis for a document, or
// nil when none exists. Used by the document handlers to embed the linked
// analysis without a package cycle.
func (s *Service) FindResultByDocumentID(ctx context.Context, documentID string) (any, error) {
	a, err := s.Repo.GetByDocumentID(ctx, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toResult(a), nil
}

// List returns one page plus the filtered total, with clamped paging.
func (s *Service) List(ctx context.Context, page, limit int, search, category string) ([]Analysis, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.Repo.List(ctx, ListFilter{
		Search:   search,
		Category: category,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
}

// Search returns up to 50 matches, best confidence first. Word-count bounds
// apply after the fetch since word count is derived, never stored.
func (s *Service) Search(ctx context.Context, params SearchParams) ([]Analysis, error) {
	matches, err := s.Repo.Search(ctx, SearchFilter{
		Query:         params.Query,
		Category:      params.Category,
		ConfidenceMin: params.ConfidenceMin,
		ConfidenceMax: params.ConfidenceMax,
		Limit:         50,
	})
	if err != nil {
		return nil, err
	}

	if params.MinWords == nil && params.MaxWords == nil {
		return matches, nil
	}

	filtered := make([]Analysis, 0, len(matches))
	for _, a := range matches {
		words := a.WordCount()
		if params.MinWords != nil && words < *params.MinWords {
			continue
		}
		if params.MaxWords != nil && words > *params.MaxWords {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered, nil
}

// Update applies a partial update; absent fields keep their stored values.
func (s *Service) Update(ctx context.Context, id string, in Input) (Analysis, error) {
	if verr := Validate(in, true); verr != nil {
		return Analysis{}, verr
	}

	analysis, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Analysis{}, err
	}

	if name := strings.TrimSpace(in.DocumentName); name != "" {
		analysis.DocumentName = name
	}
	if summary := strings.TrimSpace(in.Summary); summary != "" {
		analysis.Summary = summary
	}
	if in.KeyPoints != nil {
		analysis.KeyPoints = in.KeyPoints
	}
	if in.ActionItems != nil {
		analysis.ActionItems = backfillActionItems(in.ActionItems)
	}
	if in.Confidence != nil {
		analysis.Confidence = *in.Confidence
	}
	if in.ProcessingTime != nil {
		analysis.ProcessingTime = *in.ProcessingTime
	}
	if in.ModelUsed != "" {
		analysis.ModelUsed = in.ModelUsed
	}
	if in.TokensUsed != nil {
		analysis.TokensUsed = *in.TokensUsed
	}
	if in.Category != "" {
		analysis.Category = in.Category
	}
	if in.Tags != nil {
		analysis.Tags = dedupeTags(in.Tags)
	}
	analysis.UpdatedAt = time.Now().UTC()

	if err := s.Repo.Update(ctx, analysis); err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}

// Delete removes an analysis by ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

// Stats summarizes the analysis collection.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.Repo.Stats(ctx)
}

// AddTag appends a tag with set semantics; adding an existing tag is a
// no-op that still returns the analysis.
func (s *Service) AddTag(ctx context.Context, id, tag string) (Analysis, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Analysis{}, &ValidationError{Violations: []FieldViolation{{Field: "tag", Message: "tag is required"}}}
	}
	if len(tag) > tagMax {
		return Analysis{}, &ValidationError{Violations: []FieldViolation{{Field: "tag", Message: "at most 50 characters"}}}
	}

	analysis, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Analysis{}, err
	}

	for _, existing := range analysis.Tags {
		if strings.EqualFold(existing, tag) {
			return analysis, nil
		}
	}
	if len(analysis.Tags) >= tagsMax {
		return Analysis{}, &ValidationError{Violations: []FieldViolation{{Field: "tags", Message: "at most 10 tags"}}}
	}

	analysis.Tags = append(analysis.Tags, tag)
	analysis.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Update(ctx, analysis); err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}

func backfillActionItems(items []ActionItem) []ActionItem {
	out := make([]ActionItem, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Priority == "" {
			item.Priority = PriorityMedium
		}
		out[i] = item
	}
	return out
}
