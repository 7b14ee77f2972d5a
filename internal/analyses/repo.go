package analyses

import "context"

// ListFilter narrows and pages the list endpoint.
type ListFilter struct {
	Search   string
	Category string
	Limit    int
	Offset   int
}

// SearchFilter narrows the search endpoint. Nil bounds are open.
type SearchFilter struct {
	Query         string
	Category      string
	ConfidenceMin *int
	ConfidenceMax *int
	Limit         int
}

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, id string) (Analysis, error)
	GetByDocumentID(ctx context.Context, documentID string) (Analysis, error)
	List(ctx context.Context, filter ListFilter) ([]Analysis, int, error)
	Search(ctx context.Context, filter SearchFilter) ([]Analysis, error)
	Update(ctx context.Context, analysis Analysis) error
	Delete(ctx context.Context, id string) error
	DeleteByDocumentID(ctx context.Context, documentID string) error
	Stats(ctx context.Context) (Stats, error)
}
