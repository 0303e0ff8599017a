// Package postgres implements the persistence ports on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// PgxPool is the minimal subset of pgxpool the repos use, kept small for
// easy test doubles.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ResumeRepo persists resumes.
type ResumeRepo struct{ Pool PgxPool }

// NewResumeRepo constructs a ResumeRepo with the given pool.
func NewResumeRepo(p PgxPool) *ResumeRepo { return &ResumeRepo{Pool: p} }

// Create stores a new resume and returns its id (generates one if empty).
func (r *ResumeRepo) Create(ctx domain.Context, res domain.Resume) (string, error) {
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "resumes"),
	)
	id := res.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO resumes (id, candidate_id, filename, mime, extracted_text, uploaded_at) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, id, res.CandidateID, res.Filename, res.MIME, res.ExtractedText, res.UploadedAt); err != nil {
		return "", fmt.Errorf("op=resume.create: %w", err)
	}
	return id, nil
}

// Get loads a resume by id.
func (r *ResumeRepo) Get(ctx domain.Context, id string) (domain.Resume, error) {
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.Get")
	defer span.End()
	q := `SELECT id, candidate_id, filename, mime, extracted_text, uploaded_at FROM resumes WHERE id=$1`
	var res domain.Resume
	err := r.Pool.QueryRow(ctx, q, id).Scan(&res.ID, &res.CandidateID, &res.Filename, &res.MIME, &res.ExtractedText, &res.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Resume{}, fmt.Errorf("op=resume.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Resume{}, fmt.Errorf("op=resume.get: %w", err)
	}
	return res, nil
}

// GetByCandidate loads the candidate's current resume.
func (r *ResumeRepo) GetByCandidate(ctx domain.Context, candidateID string) (domain.Resume, error) {
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.GetByCandidate")
	defer span.End()
	q := `SELECT id, candidate_id, filename, mime, extracted_text, uploaded_at FROM resumes WHERE candidate_id=$1`
	var res domain.Resume
	err := r.Pool.QueryRow(ctx, q, candidateID).Scan(&res.ID, &res.CandidateID, &res.Filename, &res.MIME, &res.ExtractedText, &res.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Resume{}, fmt.Errorf("op=resume.get_by_candidate: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Resume{}, fmt.Errorf("op=resume.get_by_candidate: %w", err)
	}
	return res, nil
}

// DeleteByCandidate removes the candidate's resume; score rows cascade at
// the database level. Deleting nothing is not an error.
func (r *ResumeRepo) DeleteByCandidate(ctx domain.Context, candidateID string) (int64, error) {
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.DeleteByCandidate")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM resumes WHERE candidate_id=$1`, candidateID)
	if err != nil {
		return 0, fmt.Errorf("op=resume.delete_by_candidate: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListWithText returns all resumes whose extracted text is non-empty.
func (r *ResumeRepo) ListWithText(ctx domain.Context) ([]domain.Resume, error) {
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.ListWithText")
	defer span.End()
	q := `SELECT id, candidate_id, filename, mime, extracted_text, uploaded_at FROM resumes WHERE extracted_text <> '' ORDER BY uploaded_at`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=resume.list_with_text: %w", err)
	}
	defer rows.Close()
	var out []domain.Resume
	for rows.Next() {
		var res domain.Resume
		if err := rows.Scan(&res.ID, &res.CandidateID, &res.Filename, &res.MIME, &res.ExtractedText, &res.UploadedAt); err != nil {
			return nil, fmt.Errorf("op=resume.list_with_text: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=resume.list_with_text: %w", err)
	}
	return out, nil
}

// Count returns the total number of resumes.
func (r *ResumeRepo) Count(ctx domain.Context) (int64, error) {
	ctx, span := otel.Tracer("repo.resumes").Start(ctx, "resumes.Count")
	defer span.End()
	var count int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM resumes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("op=resume.count: %w", err)
	}
	return count, nil
}
