package documents

import "context"

// ListFilter narrows and pages a document listing.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, int, error)
	ApplyExtraction(ctx context.Context, id, status, extractedText string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
}
