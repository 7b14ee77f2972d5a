package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateMarshalsJSONFields(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	analysis := Analysis{
		ID:           "analysis-1",
		DocumentID:   "doc-1",
		DocumentName: "rapport.pdf",
		Summary:      "un résumé suffisant",
		KeyPoints:    []string{"a", "b"},
		ActionItems:  []ActionItem{{ID: "i1", Title: "Agir", Description: "description", Priority: PriorityMedium, Category: "General"}},
		Confidence:   88,
		ModelUsed:    "gpt-4-turbo-preview",
		Tags:         []string{"finance"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(
			analysis.ID,
			sqlmock.AnyArg(), // document_id as NullString
			analysis.DocumentName,
			analysis.Summary,
			[]byte(`["a","b"]`),
			sqlmock.AnyArg(), // action_items payload
			analysis.Confidence,
			analysis.ProcessingTime,
			analysis.ModelUsed,
			analysis.TokensUsed,
			sqlmock.AnyArg(), // category as NullString
			[]byte(`["finance"]`),
			analysis.CreatedAt,
			analysis.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoCreateUniqueViolationIsConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO analyses").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_analyses_document_id"})

	err := repo.Create(context.Background(), Analysis{ID: "a", DocumentID: "doc-1", DocumentName: "n", Summary: "s"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPGRepoGetByIDScansJSONFields(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "document_id", "document_name", "summary", "key_points", "action_items",
		"confidence", "processing_time", "model_used", "tokens_used", "category", "tags",
		"created_at", "updated_at",
	}).AddRow(
		"analysis-1", "doc-1", "rapport.pdf", "résumé",
		[]byte(`["a"]`), []byte(`[{"id":"i1","title":"Agir","description":"d","priority":"high","category":"Revue"}]`),
		90, 1.5, "gpt-4-turbo-preview", 321, nil, []byte(`[]`),
		now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM analyses").WithArgs("analysis-1").WillReturnRows(rows)

	a, err := repo.GetByID(context.Background(), "analysis-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a.DocumentID != "doc-1" || a.Category != "" {
		t.Fatalf("null scanning wrong: %+v", a)
	}
	if len(a.KeyPoints) != 1 || len(a.ActionItems) != 1 || a.ActionItems[0].Priority != PriorityHigh {
		t.Fatalf("json fields wrong: %+v", a)
	}
	if a.Tags == nil || len(a.Tags) != 0 {
		t.Fatalf("tags must be an empty slice, got %#v", a.Tags)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM analyses").WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoDeleteNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM analyses").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoStats(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(AVG\(confidence\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(12, 81.5))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`SELECT COALESCE\(category, ''\), COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("Finance", 7).
			AddRow("", 5))

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalAnalyses != 12 || stats.AverageConfidence != 81.5 || stats.RecentAnalyses != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.DistributionByCategory["Finance"] != 7 || stats.DistributionByCategory["uncategorized"] != 5 {
		t.Fatalf("distribution: %+v", stats.DistributionByCategory)
	}
}
