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

// ScoreRepo persists match scores with upsert-by-pair semantics.
type ScoreRepo struct{ Pool PgxPool }

// NewScoreRepo constructs a ScoreRepo with the given pool.
func NewScoreRepo(p PgxPool) *ScoreRepo { return &ScoreRepo{Pool: p} }

const scoreColumns = `id, resume_id, job_id, score, category, cosine_score, llm_score, created_at, updated_at`

func scanScore(row pgx.Row) (domain.MatchScore, error) {
	var s domain.MatchScore
	err := row.Scan(&s.ID, &s.ResumeID, &s.JobID, &s.Score, &s.Category, &s.CosineScore, &s.LLMScore, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Upsert inserts or updates the row keyed by (resume_id, job_id). The unique
// constraint arbitrates concurrent passes; last writer wins.
func (r *ScoreRepo) Upsert(ctx domain.Context, s domain.MatchScore) error {
	ctx, span := otel.Tracer("repo.scores").Start(ctx, "scores.Upsert")
	defer span.End()
	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	q := `INSERT INTO match_scores (id, resume_id, job_id, score, category, cosine_score, llm_score, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	ON CONFLICT (resume_id, job_id) DO UPDATE SET
		score = EXCLUDED.score,
		category = EXCLUDED.category,
		cosine_score = EXCLUDED.cosine_score,
		llm_score = EXCLUDED.llm_score,
		updated_at = EXCLUDED.updated_at`
	if _, err := r.Pool.Exec(ctx, q, id, s.ResumeID, s.JobID, s.Score, s.Category, s.CosineScore, s.LLMScore, now); err != nil {
		return fmt.Errorf("op=score.upsert: %w", err)
	}
	return nil
}

// Get loads the score row for one (resume, job) pair.
func (r *ScoreRepo) Get(ctx domain.Context, resumeID, jobID string) (domain.MatchScore, error) {
	ctx, span := otel.Tracer("repo.scores").Start(ctx, "scores.Get")
	defer span.End()
	q := `SELECT ` + scoreColumns + ` FROM match_scores WHERE resume_id=$1 AND job_id=$2`
	s, err := scanScore(r.Pool.QueryRow(ctx, q, resumeID, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MatchScore{}, fmt.Errorf("op=score.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.MatchScore{}, fmt.Errorf("op=score.get: %w", err)
	}
	return s, nil
}

// ListByResume returns the resume's scores ordered by score descending.
// Rows for closed jobs are excluded unless includeClosed is set.
func (r *ScoreRepo) ListByResume(ctx domain.Context, resumeID string, includeClosed bool) ([]domain.MatchScore, error) {
	ctx, span := otel.Tracer("repo.scores").Start(ctx, "scores.ListByResume")
	defer span.End()
	q := `SELECT s.` + scoreJoinColumns() + `
	FROM match_scores s
	JOIN job_descriptions j ON j.id = s.job_id
	WHERE s.resume_id=$1 AND (j.is_active OR $2)
	ORDER BY s.score DESC, s.updated_at DESC`
	rows, err := r.Pool.Query(ctx, q, resumeID, includeClosed)
	if err != nil {
		return nil, fmt.Errorf("op=score.list_by_resume: %w", err)
	}
	return collectScores(rows, "op=score.list_by_resume")
}

// ListByJob is the job-side counterpart of ListByResume. Resumes have no
// active flag; only the job filter applies when listing history.
func (r *ScoreRepo) ListByJob(ctx domain.Context, jobID string, includeClosed bool) ([]domain.MatchScore, error) {
	ctx, span := otel.Tracer("repo.scores").Start(ctx, "scores.ListByJob")
	defer span.End()
	q := `SELECT s.` + scoreJoinColumns() + `
	FROM match_scores s
	JOIN job_descriptions j ON j.id = s.job_id
	WHERE s.job_id=$1 AND (j.is_active OR $2)
	ORDER BY s.score DESC, s.updated_at DESC`
	rows, err := r.Pool.Query(ctx, q, jobID, includeClosed)
	if err != nil {
		return nil, fmt.Errorf("op=score.list_by_job: %w", err)
	}
	return collectScores(rows, "op=score.list_by_job")
}

func scoreJoinColumns() string {
	return `id, s.resume_id, s.job_id, s.score, s.category, s.cosine_score, s.llm_score, s.created_at, s.updated_at`
}

func collectScores(rows pgx.Rows, op string) ([]domain.MatchScore, error) {
	defer rows.Close()
	var out []domain.MatchScore
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
