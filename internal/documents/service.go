package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"docinsight-backend/internal/extraction"
	"docinsight-backend/internal/shared/metrics"
	"docinsight-backend/internal/shared/storage/object"
	"docinsight-backend/internal/shared/telemetry"
)

// Enqueuer submits extraction jobs without blocking.
type Enqueuer interface {
	Enqueue(job extraction.Job) error
}

// Service contains business logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  Repo
	Queue Enqueuer
}

// Upload stores the blob, records the document in processing state, and
// enqueues extraction. The response never waits on the extraction itself.
// declaredType is the client's MIME claim; only PDFs are accepted.
func (s *Service) Upload(ctx context.Context, fileName, declaredType string, r io.Reader) (Document, error) {
	name := strings.TrimSpace(fileName)
	if name == "" || len(name) > maxFileNameChars {
		return Document{}, ErrInvalidInput
	}
	if !strings.EqualFold(strings.TrimSpace(declaredType), mimePDF) {
		return Document{}, ErrUnsupportedType
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, name, r)
	if err != nil {
		return Document{}, err
	}

	now := time.Now().UTC()
	doc := Document{
		ID:         uuid.NewString(),
		Name:       name,
		SizeBytes:  size,
		MimeType:   mimeType,
		FilePath:   storageKey,
		Status:     StatusProcessing,
		UploadedAt: now,
		UpdatedAt:  now,
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		s.deleteBlob(ctx, storageKey)
		return Document{}, err
	}

	metrics.IncDocumentUploaded()

	job := extraction.Job{
		DocumentID: doc.ID,
		FilePath:   doc.FilePath,
		MimeType:   doc.MimeType,
		FileName:   doc.Name,
	}
	if err := s.Queue.Enqueue(job); err != nil {
		telemetry.Error("document.enqueue_failed", map[string]any{
			"documentId": doc.ID,
			"error":      err.Error(),
		})
		if applyErr := s.Repo.ApplyExtraction(ctx, doc.ID, StatusError, ""); applyErr != nil && !errors.Is(applyErr, ErrNotFound) {
			return Document{}, applyErr
		}
		doc.Status = StatusError
	}

	return doc, nil
}

// ApplyExtractionResult records a worker outcome on the document row.
// A document deleted while extraction ran is a silent no-op.
func (s *Service) ApplyExtractionResult(ctx context.Context, documentID string, text string, extractErr error) error {
	status := StatusCompleted
	if extractErr != nil {
		status = StatusError
		text = ""
	}
	err := s.Repo.ApplyExtraction(ctx, documentID, status, text)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	if id == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns one page of documents plus the filtered total.
func (s *Service) List(ctx context.Context, page, limit int, status string) ([]Document, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if status != "" && !ValidStatus(status) {
		return nil, 0, ErrInvalidInput
	}
	return s.Repo.List(ctx, ListFilter{
		Status: status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
}

// Text returns the extracted text once extraction has completed.
func (s *Service) Text(ctx context.Context, id string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Status != StatusCompleted {
		return Document{}, ErrNotReady
	}
	return doc, nil
}

// Delete removes the row (cascading to its analysis) and then the blob.
// A failed blob delete is logged, not surfaced.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.deleteBlob(ctx, doc.FilePath)
	return nil
}

// Stats summarizes the document collection.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.Repo.Stats(ctx)
}

// OpenBlob opens the stored file for reading.
func (s *Service) OpenBlob(ctx context.Context, doc Document) (io.ReadCloser, error) {
	return s.Store.Open(ctx, doc.FilePath)
}

func (s *Service) deleteBlob(ctx context.Context, storageKey string) {
	if storageKey == "" {
		return
	}
	if err := s.Store.Delete(ctx, storageKey); err != nil {
		telemetry.Warn("document.blob_delete_failed", map[string]any{
			"storageKey": storageKey,
			"error":      err.Error(),
		})
	}
}
