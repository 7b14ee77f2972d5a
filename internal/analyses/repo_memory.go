package analyses

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Analysis),
	}
}

// Create stores a new analysis, enforcing one analysis per document.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if analysis.DocumentID != "" {
		for _, existing := range r.data {
			if existing.DocumentID == analysis.DocumentID {
				return ErrConflict
			}
		}
	}
	r.data[analysis.ID] = analysis
	return nil
}

// GetByID returns an analysis by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// GetByDocumentID returns the analysis linked to a document.
func (r *MemoryRepo) GetByDocumentID(ctx context.Context, documentID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.data {
		if a.DocumentID == documentID {
			return a, nil
		}
	}
	return Analysis{}, ErrNotFound
}

// List returns a page ordered newest-first plus the filtered total.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Analysis, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	matched := make([]Analysis, 0, len(r.data))
	for _, a := range r.data {
		if filter.Search != "" && !containsFold(a.DocumentName, filter.Search) && !containsFold(a.Summary, filter.Search) {
			continue
		}
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		matched = append(matched, a)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []Analysis{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// Search matches free text across document name, summary and category.
func (r *MemoryRepo) Search(ctx context.Context, filter SearchFilter) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	r.mu.RLock()
	matched := make([]Analysis, 0, len(r.data))
	for _, a := range r.data {
		if filter.Query != "" &&
			!containsFold(a.DocumentName, filter.Query) &&
			!containsFold(a.Summary, filter.Query) &&
			!containsFold(a.Category, filter.Query) {
			continue
		}
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.ConfidenceMin != nil && a.Confidence < *filter.ConfidenceMin {
			continue
		}
		if filter.ConfidenceMax != nil && a.Confidence > *filter.ConfidenceMax {
			continue
		}
		matched = append(matched, a)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Confidence != matched[j].Confidence {
			return matched[i].Confidence > matched[j].Confidence
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Update rewrites the mutable fields of an analysis.
func (r *MemoryRepo) Update(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.data[analysis.ID]
	if !ok {
		return ErrNotFound
	}
	analysis.CreatedAt = existing.CreatedAt
	analysis.UpdatedAt = time.Now().UTC()
	r.data[analysis.ID] = analysis
	return nil
}

// Delete removes an analysis by ID.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

// DeleteByDocumentID removes the analysis linked to a document, if any.
func (r *MemoryRepo) DeleteByDocumentID(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.data {
		if a.DocumentID == documentID {
			delete(r.data, id)
		}
	}
	return nil
}

// Stats aggregates over the full collection at call time.
func (r *MemoryRepo) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{DistributionByCategory: map[string]int{}}
	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	var confidenceSum int
	for _, a := range r.data {
		stats.TotalAnalyses++
		confidenceSum += a.Confidence
		category := a.Category
		if category == "" {
			category = "uncategorized"
		}
		stats.DistributionByCategory[category]++
		if a.CreatedAt.After(cutoff) {
			stats.RecentAnalyses++
		}
	}
	if stats.TotalAnalyses > 0 {
		stats.AverageConfidence = float64(confidenceSum) / float64(stats.TotalAnalyses)
	}
	return stats, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

var _ Repo = (*MemoryRepo)(nil)
