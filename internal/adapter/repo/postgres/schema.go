package postgres

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. The cascade foreign keys on
// match_scores implement the ownership rule: deleting either document removes
// its score rows; closing a job (is_active flip) does not.
const schema = `
CREATE TABLE IF NOT EXISTS resumes (
	id UUID PRIMARY KEY,
	candidate_id TEXT NOT NULL UNIQUE,
	filename TEXT NOT NULL,
	mime TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_descriptions (
	id UUID PRIMARY KEY,
	company_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL,
	mime TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	close_reason TEXT NOT NULL DEFAULT '',
	closed_at TIMESTAMPTZ,
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS match_scores (
	id UUID PRIMARY KEY,
	resume_id UUID NOT NULL REFERENCES resumes(id) ON DELETE CASCADE,
	job_id UUID NOT NULL REFERENCES job_descriptions(id) ON DELETE CASCADE,
	score DOUBLE PRECISION NOT NULL,
	category TEXT NOT NULL,
	cosine_score DOUBLE PRECISION NOT NULL,
	llm_score DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (resume_id, job_id)
);

CREATE INDEX IF NOT EXISTS idx_match_scores_resume ON match_scores (resume_id, score DESC);
CREATE INDEX IF NOT EXISTS idx_match_scores_job ON match_scores (job_id, score DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_active ON job_descriptions (is_active);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("op=postgres.EnsureSchema: %w", err)
	}
	return nil
}
