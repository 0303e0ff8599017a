package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// fakePool records the statements the repos issue and returns canned results.
type fakePool struct {
	execSQL  []string
	execArgs [][]any
	execTag  pgconn.CommandTag
	execErr  error
	row      pgx.Row
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.execTag, f.execErr
}

func (f *fakePool) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return f.row }

func (f *fakePool) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakePool) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return nil, nil
}

// errRow is a pgx.Row that always fails with the given error.
type errRow struct{ err error }

func (r errRow) Scan(_ ...any) error { return r.err }

func TestResumeCreateGeneratesID(t *testing.T) {
	pool := &fakePool{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := NewResumeRepo(pool)

	id, err := repo.Create(context.Background(), domain.Resume{
		CandidateID: "cand-1", Filename: "cv.pdf", MIME: "application/pdf",
		ExtractedText: "go engineer", UploadedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, pool.execSQL, 1)
	require.Contains(t, pool.execSQL[0], "INSERT INTO resumes")
	require.Equal(t, id, pool.execArgs[0][0])
}

func TestResumeGetMapsNoRowsToNotFound(t *testing.T) {
	repo := NewResumeRepo(&fakePool{row: errRow{err: pgx.ErrNoRows}})
	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScoreUpsertUsesPairConflictTarget(t *testing.T) {
	pool := &fakePool{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := NewScoreRepo(pool)

	err := repo.Upsert(context.Background(), domain.MatchScore{
		ResumeID: "r1", JobID: "j1", Score: 0.78, Category: "Good Match",
		CosineScore: 0.6, LLMScore: 0.85,
	})
	require.NoError(t, err)
	require.Len(t, pool.execSQL, 1)
	require.Contains(t, pool.execSQL[0], "ON CONFLICT (resume_id, job_id) DO UPDATE")
	require.Contains(t, pool.execSQL[0], "updated_at = EXCLUDED.updated_at")
}

func TestJobCloseNotFound(t *testing.T) {
	pool := &fakePool{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewJobRepo(pool)
	err := repo.Close(context.Background(), "missing", "filled", time.Now())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobCloseFlagsInactive(t *testing.T) {
	pool := &fakePool{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewJobRepo(pool)
	closedAt := time.Now().UTC()
	require.NoError(t, repo.Close(context.Background(), "j1", "filled", closedAt))
	require.Contains(t, pool.execSQL[0], "SET is_active=FALSE")
	require.Equal(t, []any{"j1", "filled", closedAt}, pool.execArgs[0])
}

func TestDeleteByCandidateReportsRowsAffected(t *testing.T) {
	pool := &fakePool{execTag: pgconn.NewCommandTag("DELETE 1")}
	repo := NewResumeRepo(pool)
	n, err := repo.DeleteByCandidate(context.Background(), "cand-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestSchemaEnforcesPairUniqueness(t *testing.T) {
	require.Contains(t, schema, "UNIQUE (resume_id, job_id)")
	require.True(t, strings.Contains(schema, "ON DELETE CASCADE"))
	require.Contains(t, schema, "candidate_id TEXT NOT NULL UNIQUE")
}
