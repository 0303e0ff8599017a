// Package domain holds the core entities, error taxonomy and ports of the
// resume/job matching pipeline.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrEmptyDocument      = errors.New("empty document")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrParseFailure       = errors.New("parse failure")
	ErrScoring            = errors.New("scoring error")
	ErrInternal           = errors.New("internal error")
)

// Role enumerates the account kinds that interact with the matching core.
// Capability checks are explicit functions over the value; behavior never
// depends on duck-typed attributes of a caller.
type Role string

// Known roles.
const (
	RoleCandidate Role = "candidate"
	RoleCompany   Role = "company"
	RoleAdmin     Role = "admin"
)

// CanUploadResume reports whether the role may own a resume.
func (r Role) CanUploadResume() bool { return r == RoleCandidate || r == RoleAdmin }

// CanUploadJob reports whether the role may post job descriptions.
func (r Role) CanUploadJob() bool { return r == RoleCompany || r == RoleAdmin }

// CanRecompute reports whether the role may trigger batch recomputes.
func (r Role) CanRecompute() bool { return r == RoleAdmin }

// DocumentKind distinguishes the two sides of the score matrix.
type DocumentKind string

// Document kinds carried in score-pass task payloads.
const (
	KindResume DocumentKind = "resume"
	KindJob    DocumentKind = "job"
)

// Resume is a candidate's uploaded document. A candidate owns at most one
// resume; a new upload replaces the previous one and cascades its scores.
// Invariant: ExtractedText is either empty or the normalized extractor
// output for the current file.
type Resume struct {
	ID            string
	CandidateID   string
	Filename      string
	MIME          string
	ExtractedText string
	UploadedAt    time.Time
}

// JobDescription is a company's uploaded document. Newly uploaded jobs are
// active; closing flips the flag and records a reason, it never deletes
// scores.
type JobDescription struct {
	ID            string
	CompanyID     string
	Title         string
	Filename      string
	MIME          string
	ExtractedText string
	IsActive      bool
	CloseReason   string
	ClosedAt      *time.Time
	UploadedAt    time.Time
}

// MatchScore is one computed match between exactly one resume and one job.
// Invariant: at most one row exists per (ResumeID, JobID); recomputation
// overwrites in place.
type MatchScore struct {
	ID          string
	ResumeID    string
	JobID       string
	Score       float64 // hybrid score in [0,1], 2 decimals
	Category    string
	CosineScore float64
	LLMScore    float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScoreTaskPayload describes one deferred fan-out pass: score the named
// document against every opposite-side document.
type ScoreTaskPayload struct {
	Kind       DocumentKind `json:"kind"`
	DocumentID string       `json:"document_id"`
}

// Repositories (ports)

// ResumeRepository persists resumes.
type ResumeRepository interface {
	Create(ctx Context, r Resume) (string, error)
	Get(ctx Context, id string) (Resume, error)
	GetByCandidate(ctx Context, candidateID string) (Resume, error)
	// DeleteByCandidate removes the candidate's resume; its scores cascade.
	// Returns ErrNotFound-free zero when the candidate had none.
	DeleteByCandidate(ctx Context, candidateID string) (int64, error)
	// ListWithText returns all resumes whose extracted text is non-empty.
	ListWithText(ctx Context) ([]Resume, error)
	Count(ctx Context) (int64, error)
}

// JobRepository persists job descriptions.
type JobRepository interface {
	Create(ctx Context, j JobDescription) (string, error)
	Get(ctx Context, id string) (JobDescription, error)
	// ListActiveWithText returns active jobs whose extracted text is non-empty.
	ListActiveWithText(ctx Context) ([]JobDescription, error)
	Close(ctx Context, id, reason string, closedAt time.Time) error
	Reactivate(ctx Context, id string) error
	Count(ctx Context) (int64, error)
}

// ScoreRepository persists match scores with upsert-by-pair semantics.
type ScoreRepository interface {
	// Upsert inserts or updates the row keyed by (ResumeID, JobID).
	Upsert(ctx Context, s MatchScore) error
	Get(ctx Context, resumeID, jobID string) (MatchScore, error)
	// ListByResume returns scores for the resume ordered by score desc.
	// Closed jobs are excluded unless includeClosed is set.
	ListByResume(ctx Context, resumeID string, includeClosed bool) ([]MatchScore, error)
	ListByJob(ctx Context, jobID string, includeClosed bool) ([]MatchScore, error)
}

// Queue (port)

// Queue defers a fan-out scoring pass to a background worker.
type Queue interface {
	EnqueueScorePass(ctx Context, payload ScoreTaskPayload) (string, error)
}

// EmbeddingClient (port)
// Embed returns one fixed-length vector per input text. Implementations
// raise on failure instead of returning zero vectors so callers can tell
// "could not score" from "scored zero".
type EmbeddingClient interface {
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// RelevanceScorer (port)
// Score judges resume/job relevance on [0,1] via an LLM backend. A value
// parsed out of malformed output degrades to 0 with ErrParseFailure; an
// unreachable backend surfaces ErrBackendUnavailable after retries.
type RelevanceScorer interface {
	Score(ctx Context, resumeText, jobText string) (float64, error)
}

// EmbeddingCache (port)
// Keys are content hashes of normalized text. Entries are an optimization
// only: losing one costs a recompute, never correctness.
type EmbeddingCache interface {
	Get(ctx Context, key string) ([]float32, bool, error)
	Set(ctx Context, key string, vec []float32, ttl time.Duration) error
}

// TextExtractor (port)
// Extract converts uploaded bytes into normalized plain text, dispatching
// on the declared filename extension.
type TextExtractor interface {
	Extract(ctx Context, filename string, data []byte) (string, error)
}

// Context is an alias to allow decoupling from std context in domain.
// Adapters and usecases pass context.Context through.
type Context = context.Context
