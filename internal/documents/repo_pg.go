package documents

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, name, size_bytes, mime_type, file_path, status, extracted_text, uploaded_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    name,
    size_bytes,
    mime_type,
    file_path,
    status,
    extracted_text,
    uploaded_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var extracted sql.NullString
	if doc.ExtractedText != "" {
		extracted = sql.NullString{String: doc.ExtractedText, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.Name,
		doc.SizeBytes,
		doc.MimeType,
		doc.FilePath,
		doc.Status,
		extracted,
		doc.UploadedAt,
		doc.UpdatedAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1
LIMIT 1`

	row := r.DB.QueryRowContext(ctx, query, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List returns a page of documents ordered newest-first, plus the filtered total.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	countQuery := `SELECT COUNT(*) FROM documents`
	listQuery := `
SELECT ` + documentColumns + `
FROM documents`

	args := []any{}
	if filter.Status != "" {
		countQuery += ` WHERE status = $1`
		listQuery += ` WHERE status = $1`
		args = append(args, filter.Status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery += `
ORDER BY uploaded_at DESC
LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, rows.Err()
}

// ApplyExtraction records an extraction outcome. Missing rows are reported
// as ErrNotFound so a delete racing the worker stays silent upstream.
func (r *PGRepo) ApplyExtraction(ctx context.Context, id, status, extractedText string) error {
	const query = `
UPDATE documents
SET status = $1, extracted_text = $2, updated_at = $3
WHERE id = $4`

	var extracted sql.NullString
	if extractedText != "" {
		extracted = sql.NullString{String: extractedText, Valid: true}
	}

	res, err := r.DB.ExecContext(ctx, query, status, extracted, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document. The analysis row goes with it via the FK cascade.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates counts by status.
func (r *PGRepo) Stats(ctx context.Context) (Stats, error) {
	const query = `
SELECT status, COUNT(*)
FROM documents
GROUP BY status`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	stats := Stats{ByStatus: map[string]int{}}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[status] = count
		stats.TotalDocuments += count
		if status == StatusCompleted {
			stats.CompletedDocuments = count
		}
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var extracted sql.NullString
	if err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.SizeBytes,
		&doc.MimeType,
		&doc.FilePath,
		&doc.Status,
		&extracted,
		&doc.UploadedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}
	if extracted.Valid {
		doc.ExtractedText = extracted.String
	}
	return doc, nil
}

var _ Repo = (*PGRepo)(nil)
