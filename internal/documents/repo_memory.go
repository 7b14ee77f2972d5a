package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo. A CascadeDeleter can be
// attached so document deletion removes the linked analysis like the FK does.
type MemoryRepo struct {
	mu      sync.RWMutex
	data    map[string]Document
	cascade CascadeDeleter
}

// CascadeDeleter removes rows linked to a deleted document.
type CascadeDeleter interface {
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Document),
	}
}

// SetCascade attaches the linked-row deleter used by Delete.
func (r *MemoryRepo) SetCascade(cascade CascadeDeleter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cascade = cascade
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = doc
	return nil
}

// GetByID returns a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// List returns documents newest-first with the filtered total.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
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
	docs := make([]Document, 0, len(r.data))
	for _, doc := range r.data {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		docs = append(docs, doc)
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})

	total := len(docs)
	if offset >= total {
		return []Document{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return docs[offset:end], total, nil
}

// ApplyExtraction records an extraction outcome.
func (r *MemoryRepo) ApplyExtraction(ctx context.Context, id, status, extractedText string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	doc.ExtractedText = extractedText
	doc.UpdatedAt = time.Now().UTC()
	r.data[id] = doc
	return nil
}

// Delete removes a document and its linked analysis.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	_, ok := r.data[id]
	if ok {
		delete(r.data, id)
	}
	cascade := r.cascade
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if cascade != nil {
		return cascade.DeleteByDocumentID(ctx, id)
	}
	return nil
}

// Stats aggregates counts by status.
func (r *MemoryRepo) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{ByStatus: map[string]int{}}
	for _, doc := range r.data {
		stats.ByStatus[doc.Status]++
		stats.TotalDocuments++
		if doc.Status == StatusCompleted {
			stats.CompletedDocuments++
		}
	}
	return stats, nil
}

var _ Repo = (*MemoryRepo)(nil)
