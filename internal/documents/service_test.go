package documents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"docinsight-backend/internal/extraction"
	"docinsight-backend/internal/shared/storage/object/local"
)

type stuckQueue struct{}

func (stuckQueue) Enqueue(job extraction.Job) error { return extraction.ErrQueueFull }

func TestUploadMarksDocumentErroredWhenQueueIsFull(t *testing.T) {
	repo := NewMemoryRepo()
	svc := &Service{
		Store: local.New(t.TempDir()),
		Repo:  repo,
		Queue: stuckQueue{},
	}

	doc, err := svc.Upload(context.Background(), "rapport.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.Status != StatusError {
		t.Fatalf("status = %q, want %q", doc.Status, StatusError)
	}

	stored, err := repo.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusError {
		t.Fatalf("stored status = %q", stored.Status)
	}
}

func TestUploadValidatesNameAndType(t *testing.T) {
	svc := &Service{Store: local.New(t.TempDir()), Repo: NewMemoryRepo(), Queue: stuckQueue{}}
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "   ", "application/pdf", strings.NewReader("x")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank name: err = %v, want ErrInvalidInput", err)
	}

	overlong := strings.Repeat("n", 252) + ".pdf"
	if _, err := svc.Upload(ctx, overlong, "application/pdf", strings.NewReader("x")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("overlong name: err = %v, want ErrInvalidInput", err)
	}

	if _, err := svc.Upload(ctx, "notes.txt", "text/plain", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("wrong type: err = %v, want ErrUnsupportedType", err)
	}

	// Boundary: exactly 255 characters is accepted.
	boundary := strings.Repeat("n", 251) + ".pdf"
	if _, err := svc.Upload(ctx, boundary, "application/pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("255-char name: %v", err)
	}
}

func TestApplyExtractionResult(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	svc := &Service{Repo: repo}

	doc := Document{ID: "doc-1", Name: "a.pdf", Status: StatusProcessing, UploadedAt: time.Now().UTC()}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.ApplyExtractionResult(ctx, doc.ID, "texte extrait", nil); err != nil {
		t.Fatalf("apply success: %v", err)
	}
	got, _ := repo.GetByID(ctx, doc.ID)
	if got.Status != StatusCompleted || got.ExtractedText != "texte extrait" {
		t.Fatalf("after success: %+v", got)
	}

	if err := svc.ApplyExtractionResult(ctx, doc.ID, "ignored", errors.New("boom")); err != nil {
		t.Fatalf("apply failure: %v", err)
	}
	got, _ = repo.GetByID(ctx, doc.ID)
	if got.Status != StatusError || got.ExtractedText != "" {
		t.Fatalf("after failure: %+v", got)
	}

	// A document deleted mid-extraction is not an error.
	if err := svc.ApplyExtractionResult(ctx, "gone", "texte", nil); err != nil {
		t.Fatalf("apply on deleted document: %v", err)
	}
}

func TestTextRequiresCompletedStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	svc := &Service{Repo: repo}

	doc := Document{ID: "doc-1", Name: "a.pdf", Status: StatusProcessing, UploadedAt: time.Now().UTC()}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := svc.Text(ctx, doc.ID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if _, err := svc.Text(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
