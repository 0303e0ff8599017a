package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// JobRepo persists job descriptions.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

const jobColumns = `id, company_id, title, filename, mime, extracted_text, is_active, close_reason, closed_at, uploaded_at`

func scanJob(row pgx.Row) (domain.JobDescription, error) {
	var j domain.JobDescription
	err := row.Scan(&j.ID, &j.CompanyID, &j.Title, &j.Filename, &j.MIME, &j.ExtractedText, &j.IsActive, &j.CloseReason, &j.ClosedAt, &j.UploadedAt)
	return j, err
}

// Create stores a new job description and returns its id.
func (r *JobRepo) Create(ctx domain.Context, j domain.JobDescription) (string, error) {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.Create")
	defer span.End()
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO job_descriptions (id, company_id, title, filename, mime, extracted_text, is_active, close_reason, uploaded_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := r.Pool.Exec(ctx, q, id, j.CompanyID, j.Title, j.Filename, j.MIME, j.ExtractedText, j.IsActive, j.CloseReason, j.UploadedAt); err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	return id, nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.JobDescription, error) {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM job_descriptions WHERE id=$1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.JobDescription{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.JobDescription{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// ListActiveWithText returns active jobs whose extracted text is non-empty.
func (r *JobRepo) ListActiveWithText(ctx domain.Context) ([]domain.JobDescription, error) {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.ListActiveWithText")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM job_descriptions WHERE is_active AND extracted_text <> '' ORDER BY uploaded_at`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=job.list_active_with_text: %w", err)
	}
	defer rows.Close()
	var out []domain.JobDescription
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job.list_active_with_text: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.list_active_with_text: %w", err)
	}
	return out, nil
}

// Close flags a job inactive, recording when and why. Score rows stay.
func (r *JobRepo) Close(ctx domain.Context, id, reason string, closedAt time.Time) error {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.Close")
	defer span.End()
	q := `UPDATE job_descriptions SET is_active=FALSE, close_reason=$2, closed_at=$3 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, reason, closedAt)
	if err != nil {
		return fmt.Errorf("op=job.close: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.close: %w", domain.ErrNotFound)
	}
	return nil
}

// Reactivate flips a closed job back to active and clears the close marker.
func (r *JobRepo) Reactivate(ctx domain.Context, id string) error {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.Reactivate")
	defer span.End()
	q := `UPDATE job_descriptions SET is_active=TRUE, close_reason='', closed_at=NULL WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("op=job.reactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.reactivate: %w", domain.ErrNotFound)
	}
	return nil
}

// Count returns the total number of job descriptions.
func (r *JobRepo) Count(ctx domain.Context) (int64, error) {
	ctx, span := otel.Tracer("repo.jobs").Start(ctx, "jobs.Count")
	defer span.End()
	var count int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM job_descriptions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("op=job.count: %w", err)
	}
	return count, nil
}
