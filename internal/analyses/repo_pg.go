package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, document_id, document_name, summary, key_points, action_items, confidence, processing_time, model_used, tokens_used, category, tags, created_at, updated_at`

// Create inserts a new analysis. A duplicate document_id trips the unique
// constraint and is reported as ErrConflict.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, document_id, document_name, summary, key_points, action_items, confidence,
	processing_time, model_used, tokens_used, category, tags, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	keyPoints, actionItems, tags, err := marshalFields(analysis)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		nullString(analysis.DocumentID),
		analysis.DocumentName,
		analysis.Summary,
		keyPoints,
		actionItems,
		analysis.Confidence,
		analysis.ProcessingTime,
		analysis.ModelUsed,
		analysis.TokensUsed,
		nullString(analysis.Category),
		tags,
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	const query = `
SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1
LIMIT 1`
	return r.getOne(ctx, query, id)
}

// GetByDocumentID returns the analysis linked to a document.
func (r *PGRepo) GetByDocumentID(ctx context.Context, documentID string) (Analysis, error) {
	const query = `
SELECT ` + analysisColumns + `
FROM analyses
WHERE document_id = $1
LIMIT 1`
	return r.getOne(ctx, query, documentID)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (Analysis, error) {
	row := r.DB.QueryRowContext(ctx, query, arg)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// List returns a page ordered newest-first plus the filtered total.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Analysis, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where = ` WHERE (document_name ILIKE $` + n + ` OR summary ILIKE $` + n + `)`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		clause := `category = $` + strconv.Itoa(len(args))
		if where == "" {
			where = ` WHERE ` + clause
		} else {
			where += ` AND ` + clause
		}
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
SELECT ` + analysisColumns + `
FROM analyses` + where + `
ORDER BY created_at DESC
LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	out, err := r.queryMany(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Search matches free text across document name, summary and category with
// optional confidence bounds, best confidence first.
func (r *PGRepo) Search(ctx context.Context, filter SearchFilter) ([]Analysis, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	where := ""
	args := []any{}
	and := func(clause string) {
		if where == "" {
			where = ` WHERE ` + clause
		} else {
			where += ` AND ` + clause
		}
	}

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		n := strconv.Itoa(len(args))
		and(`(document_name ILIKE $` + n + ` OR summary ILIKE $` + n + ` OR category ILIKE $` + n + `)`)
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		and(`category = $` + strconv.Itoa(len(args)))
	}
	if filter.ConfidenceMin != nil {
		args = append(args, *filter.ConfidenceMin)
		and(`confidence >= $` + strconv.Itoa(len(args)))
	}
	if filter.ConfidenceMax != nil {
		args = append(args, *filter.ConfidenceMax)
		and(`confidence <= $` + strconv.Itoa(len(args)))
	}

	query := `
SELECT ` + analysisColumns + `
FROM analyses` + where + `
ORDER BY confidence DESC, created_at DESC
LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	return r.queryMany(ctx, query, args)
}

// Update rewrites the mutable fields of an analysis.
func (r *PGRepo) Update(ctx context.Context, analysis Analysis) error {
	const query = `
UPDATE analyses
SET document_name = $1, summary = $2, key_points = $3, action_items = $4,
    confidence = $5, processing_time = $6, model_used = $7, tokens_used = $8,
    category = $9, tags = $10, updated_at = $11
WHERE id = $12`

	keyPoints, actionItems, tags, err := marshalFields(analysis)
	if err != nil {
		return err
	}

	res, err := r.DB.ExecContext(ctx, query,
		analysis.DocumentName,
		analysis.Summary,
		keyPoints,
		actionItems,
		analysis.Confidence,
		analysis.ProcessingTime,
		analysis.ModelUsed,
		analysis.TokensUsed,
		nullString(analysis.Category),
		tags,
		time.Now().UTC(),
		analysis.ID,
	)
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

// Delete removes an analysis by ID.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1`, id)
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

// DeleteByDocumentID removes the analysis linked to a document. No rows is
// not an error here; most documents never had an analysis.
func (r *PGRepo) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE document_id = $1`, documentID)
	return err
}

// Stats aggregates over the full collection at call time.
func (r *PGRepo) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{DistributionByCategory: map[string]int{}}

	const totalsQuery = `
SELECT COUNT(*), COALESCE(AVG(confidence), 0)
FROM analyses`
	if err := r.DB.QueryRowContext(ctx, totalsQuery).Scan(&stats.TotalAnalyses, &stats.AverageConfidence); err != nil {
		return Stats{}, err
	}

	const recentQuery = `
SELECT COUNT(*)
FROM analyses
WHERE created_at >= $1`
	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	if err := r.DB.QueryRowContext(ctx, recentQuery, cutoff).Scan(&stats.RecentAnalyses); err != nil {
		return Stats{}, err
	}

	const categoryQuery = `
SELECT COALESCE(category, ''), COUNT(*)
FROM analyses
GROUP BY category`
	rows, err := r.DB.QueryContext(ctx, categoryQuery)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return Stats{}, err
		}
		if category == "" {
			category = "uncategorized"
		}
		stats.DistributionByCategory[category] = count
	}
	return stats, rows.Err()
}

func (r *PGRepo) queryMany(ctx context.Context, query string, args []any) ([]Analysis, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var documentID sql.NullString
	var category sql.NullString
	var keyPoints, actionItems, tags []byte

	if err := row.Scan(
		&a.ID,
		&documentID,
		&a.DocumentName,
		&a.Summary,
		&keyPoints,
		&actionItems,
		&a.Confidence,
		&a.ProcessingTime,
		&a.ModelUsed,
		&a.TokensUsed,
		&category,
		&tags,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Analysis{}, err
	}

	if documentID.Valid {
		a.DocumentID = documentID.String
	}
	if category.Valid {
		a.Category = category.String
	}
	if err := unmarshalJSONB(keyPoints, &a.KeyPoints); err != nil {
		return Analysis{}, err
	}
	if err := unmarshalJSONB(actionItems, &a.ActionItems); err != nil {
		return Analysis{}, err
	}
	if err := unmarshalJSONB(tags, &a.Tags); err != nil {
		return Analysis{}, err
	}
	if a.KeyPoints == nil {
		a.KeyPoints = []string{}
	}
	if a.ActionItems == nil {
		a.ActionItems = []ActionItem{}
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a, nil
}

func marshalFields(analysis Analysis) (keyPoints, actionItems, tags []byte, err error) {
	if keyPoints, err = marshalJSONB(analysis.KeyPoints, "[]"); err != nil {
		return nil, nil, nil, err
	}
	if actionItems, err = marshalJSONB(analysis.ActionItems, "[]"); err != nil {
		return nil, nil, nil, err
	}
	if tags, err = marshalJSONB(analysis.Tags, "[]"); err != nil {
		return nil, nil, nil, err
	}
	return keyPoints, actionItems, tags, nil
}

func marshalJSONB(value any, empty string) ([]byte, error) {
	if value == nil {
		return []byte(empty), nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		return []byte(empty), nil
	}
	return payload, nil
}

func unmarshalJSONB(payload []byte, target any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, target)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repo = (*PGRepo)(nil)
