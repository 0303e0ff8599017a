package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	adapterobs "github.com/fairyhunter13/resume-job-matcher/internal/adapter/observability"
	"github.com/fairyhunter13/resume-job-matcher/internal/config"
	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
	"github.com/fairyhunter13/resume-job-matcher/internal/observability"
)

// PassStats summarizes one fan-out scoring pass. A pass with Failed > 0 but
// Scored > 0 is a degraded success: the matrix is partially refreshed and
// the failures are visible in logs and metrics.
type PassStats struct {
	Kind       domain.DocumentKind `json:"kind"`
	DocumentID string              `json:"document_id"`
	Scored     int                 `json:"scored"`
	Failed     int                 `json:"failed"`
	Skipped    int                 `json:"skipped"`
}

func (p PassStats) outcome() string {
	switch {
	case p.Failed == 0:
		return "ok"
	case p.Scored > 0:
		return "degraded"
	default:
		return "failed"
	}
}

// Matcher maintains the resume×job score matrix: it owns document lifecycle
// orchestration (upload, replace, close) and the fan-out scoring passes those
// events trigger.
type Matcher struct {
	cfg        config.Config
	resumes    domain.ResumeRepository
	jobs       domain.JobRepository
	scores     domain.ScoreRepository
	queue      domain.Queue
	extractor  domain.TextExtractor
	similarity *Similarity
	scorer     domain.RelevanceScorer
	fusion     Fusion
}

// NewMatcher wires the matrix maintainer. queue may be nil when deferred
// scoring is disabled.
func NewMatcher(
	cfg config.Config,
	resumes domain.ResumeRepository,
	jobs domain.JobRepository,
	scores domain.ScoreRepository,
	queue domain.Queue,
	extractor domain.TextExtractor,
	similarity *Similarity,
	scorer domain.RelevanceScorer,
) *Matcher {
	return &Matcher{
		cfg:        cfg,
		resumes:    resumes,
		jobs:       jobs,
		scores:     scores,
		queue:      queue,
		extractor:  extractor,
		similarity: similarity,
		scorer:     scorer,
		fusion:     NewFusion(cfg),
	}
}

// UploadResume replaces the candidate's resume and rescoring it against every
// active job. Extraction failure is fatal and leaves no row behind; the prior
// resume (and its scores, by cascade) is only removed once the new document
// extracted cleanly.
func (m *Matcher) UploadResume(ctx domain.Context, candidateID, filename, mime string, data []byte) (domain.Resume, *PassStats, error) {
	ctx, span := otel.Tracer("usecase.matcher").Start(ctx, "UploadResume")
	defer span.End()
	if candidateID == "" {
		return domain.Resume{}, nil, fmt.Errorf("op=matcher.UploadResume: %w: candidate_id required", domain.ErrInvalidArgument)
	}

	text, err := m.extractor.Extract(ctx, filename, data)
	if err != nil {
		return domain.Resume{}, nil, fmt.Errorf("op=matcher.UploadResume: %w", err)
	}

	prior, err := m.resumes.GetByCandidate(ctx, candidateID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Resume{}, nil, fmt.Errorf("op=matcher.UploadResume: %w", err)
	}
	if err == nil {
		if _, err := m.resumes.DeleteByCandidate(ctx, candidateID); err != nil {
			return domain.Resume{}, nil, fmt.Errorf("op=matcher.UploadResume: %w", err)
		}
		observability.LoggerFromContext(ctx).Info("replaced prior resume",
			"candidate_id", candidateID, "prior_resume_id", prior.ID)
	}

	r := domain.Resume{
		CandidateID:   candidateID,
		Filename:      filename,
		MIME:          mime,
		ExtractedText: text,
		UploadedAt:    time.Now().UTC(),
	}
	id, err := m.resumes.Create(ctx, r)
	if err != nil {
		return domain.Resume{}, nil, fmt.Errorf("op=matcher.UploadResume: %w", err)
	}
	r.ID = id

	stats, err := m.dispatchPass(ctx, domain.KindResume, id, text)
	return r, stats, err
}

// UploadJob stores a new active job description and scores every resume with
// extractable text against it.
func (m *Matcher) UploadJob(ctx domain.Context, companyID, title, filename, mime string, data []byte) (domain.JobDescription, *PassStats, error) {
	ctx, span := otel.Tracer("usecase.matcher").Start(ctx, "UploadJob")
	defer span.End()
	if companyID == "" {
		return domain.JobDescription{}, nil, fmt.Errorf("op=matcher.UploadJob: %w: company_id required", domain.ErrInvalidArgument)
	}

	text, err := m.extractor.Extract(ctx, filename, data)
	if err != nil {
		return domain.JobDescription{}, nil, fmt.Errorf("op=matcher.UploadJob: %w", err)
	}

	j := domain.JobDescription{
		CompanyID:     companyID,
		Title:         title,
		Filename:      filename,
		MIME:          mime,
		ExtractedText: text,
		IsActive:      true,
		UploadedAt:    time.Now().UTC(),
	}
	id, err := m.jobs.Create(ctx, j)
	if err != nil {
		return domain.JobDescription{}, nil, fmt.Errorf("op=matcher.UploadJob: %w", err)
	}
	j.ID = id

	stats, err := m.dispatchPass(ctx, domain.KindJob, id, text)
	return j, stats, err
}

// CloseJob deactivates a job. Existing scores stay for history; no
// recomputation happens.
func (m *Matcher) CloseJob(ctx domain.Context, jobID, reason string) error {
	if err := m.jobs.Close(ctx, jobID, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=matcher.CloseJob: %w", err)
	}
	return nil
}

// ReopenJob flips a closed job back to active and refreshes its column of
// the matrix: scores kept through the closed period may be stale, since
// resume passes skip inactive jobs.
func (m *Matcher) ReopenJob(ctx domain.Context, jobID string) (domain.JobDescription, *PassStats, error) {
	ctx, span := otel.Tracer("usecase.matcher").Start(ctx, "ReopenJob")
	defer span.End()
	if err := m.jobs.Reactivate(ctx, jobID); err != nil {
		return domain.JobDescription{}, nil, fmt.Errorf("op=matcher.ReopenJob: %w", err)
	}
	j, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return domain.JobDescription{}, nil, fmt.Errorf("op=matcher.ReopenJob: %w", err)
	}
	stats, err := m.dispatchPass(ctx, domain.KindJob, jobID, j.ExtractedText)
	return j, stats, err
}

// MatrixStats reports the current size of both sides of the matrix.
type MatrixStats struct {
	Resumes int64 `json:"resumes"`
	Jobs    int64 `json:"jobs"`
}

// Stats counts the stored documents for the admin surface.
func (m *Matcher) Stats(ctx domain.Context) (MatrixStats, error) {
	resumes, err := m.resumes.Count(ctx)
	if err != nil {
		return MatrixStats{}, fmt.Errorf("op=matcher.Stats: %w", err)
	}
	jobs, err := m.jobs.Count(ctx)
	if err != nil {
		return MatrixStats{}, fmt.Errorf("op=matcher.Stats: %w", err)
	}
	return MatrixStats{Resumes: resumes, Jobs: jobs}, nil
}

// MatchesByResume returns the resume's scores ordered by score descending,
// active jobs only unless includeClosed is set.
func (m *Matcher) MatchesByResume(ctx domain.Context, resumeID string, includeClosed bool) ([]domain.MatchScore, error) {
	if _, err := m.resumes.Get(ctx, resumeID); err != nil {
		return nil, fmt.Errorf("op=matcher.MatchesByResume: %w", err)
	}
	rows, err := m.scores.ListByResume(ctx, resumeID, includeClosed)
	if err != nil {
		return nil, fmt.Errorf("op=matcher.MatchesByResume: %w", err)
	}
	return rows, nil
}

// MatchesByJob is the job-side counterpart of MatchesByResume.
func (m *Matcher) MatchesByJob(ctx domain.Context, jobID string, includeClosed bool) ([]domain.MatchScore, error) {
	if _, err := m.jobs.Get(ctx, jobID); err != nil {
		return nil, fmt.Errorf("op=matcher.MatchesByJob: %w", err)
	}
	rows, err := m.scores.ListByJob(ctx, jobID, includeClosed)
	if err != nil {
		return nil, fmt.Errorf("op=matcher.MatchesByJob: %w", err)
	}
	return rows, nil
}

// dispatchPass either runs the fan-out inline or hands it to the queue,
// depending on config. Documents with no extractable text have nothing to
// score and skip the pass.
func (m *Matcher) dispatchPass(ctx domain.Context, kind domain.DocumentKind, id, text string) (*PassStats, error) {
	if text == "" {
		return &PassStats{Kind: kind, DocumentID: id}, nil
	}
	if m.cfg.ScoreAsync && m.queue != nil {
		if _, err := m.queue.EnqueueScorePass(ctx, domain.ScoreTaskPayload{Kind: kind, DocumentID: id}); err != nil {
			return nil, fmt.Errorf("op=matcher.dispatchPass: %w", err)
		}
		adapterobs.PassEnqueued(string(kind))
		return nil, nil
	}
	stats, err := m.RunPass(ctx, domain.ScoreTaskPayload{Kind: kind, DocumentID: id})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// RunPass executes one fan-out scoring pass described by the payload. It is
// the single entry point for both the inline path and the queue worker.
func (m *Matcher) RunPass(ctx domain.Context, payload domain.ScoreTaskPayload) (PassStats, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ScorePassTimeout)
	defer cancel()
	ctx, span := otel.Tracer("usecase.matcher").Start(ctx, "RunPass")
	defer span.End()

	var stats PassStats
	var err error
	switch payload.Kind {
	case domain.KindResume:
		stats, err = m.scoreResumePass(ctx, payload.DocumentID)
	case domain.KindJob:
		stats, err = m.scoreJobPass(ctx, payload.DocumentID)
	default:
		return PassStats{}, fmt.Errorf("op=matcher.RunPass: %w: unknown kind %q", domain.ErrInvalidArgument, payload.Kind)
	}
	if err != nil {
		adapterobs.PassCompleted(string(payload.Kind), "failed")
		return stats, err
	}
	adapterobs.PassCompleted(string(payload.Kind), stats.outcome())
	observability.LoggerFromContext(ctx).Info("scoring pass finished",
		"kind", payload.Kind, "document_id", payload.DocumentID,
		"scored", stats.Scored, "failed", stats.Failed, "skipped", stats.Skipped)
	return stats, nil
}

func (m *Matcher) scoreResumePass(ctx domain.Context, resumeID string) (PassStats, error) {
	stats := PassStats{Kind: domain.KindResume, DocumentID: resumeID}
	r, err := m.resumes.Get(ctx, resumeID)
	if err != nil {
		return stats, fmt.Errorf("op=matcher.scoreResumePass: %w", err)
	}
	if r.ExtractedText == "" {
		return stats, nil
	}
	jobs, err := m.jobs.ListActiveWithText(ctx)
	if err != nil {
		return stats, fmt.Errorf("op=matcher.scoreResumePass: %w", err)
	}
	for _, j := range jobs {
		if ctx.Err() != nil {
			return stats, fmt.Errorf("op=matcher.scoreResumePass: %w", ctx.Err())
		}
		m.scorePair(ctx, r, j, &stats)
	}
	return stats, nil
}

func (m *Matcher) scoreJobPass(ctx domain.Context, jobID string) (PassStats, error) {
	stats := PassStats{Kind: domain.KindJob, DocumentID: jobID}
	j, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return stats, fmt.Errorf("op=matcher.scoreJobPass: %w", err)
	}
	// A job closed between enqueue and execution has nothing to refresh.
	if !j.IsActive || j.ExtractedText == "" {
		return stats, nil
	}
	resumes, err := m.resumes.ListWithText(ctx)
	if err != nil {
		return stats, fmt.Errorf("op=matcher.scoreJobPass: %w", err)
	}
	for _, r := range resumes {
		if ctx.Err() != nil {
			return stats, fmt.Errorf("op=matcher.scoreJobPass: %w", ctx.Err())
		}
		m.scorePair(ctx, r, j, &stats)
	}
	return stats, nil
}

// scorePair computes and upserts the hybrid score for one pair. Failures are
// counted, logged and skipped so one bad pair cannot sink a whole pass. An
// unparseable LLM verdict degrades that signal to zero instead of failing.
func (m *Matcher) scorePair(ctx domain.Context, r domain.Resume, j domain.JobDescription, stats *PassStats) {
	log := observability.LoggerFromContext(ctx)

	cosineScore, _, err := m.similarity.CosineSimilarity(ctx, r.ExtractedText, j.ExtractedText)
	if err != nil {
		log.Warn("pair similarity failed",
			"resume_id", r.ID, "job_id", j.ID, "error", err)
		stats.Failed++
		adapterobs.PairFailed()
		return
	}

	llmScore, err := m.scorer.Score(ctx, r.ExtractedText, j.ExtractedText)
	if err != nil {
		if !errors.Is(err, domain.ErrParseFailure) {
			log.Warn("pair llm scoring failed",
				"resume_id", r.ID, "job_id", j.ID, "error", err)
			stats.Failed++
			adapterobs.PairFailed()
			return
		}
		log.Warn("llm verdict unparseable, degrading to zero",
			"resume_id", r.ID, "job_id", j.ID)
		llmScore = 0.0
	}

	hybrid, category := m.fusion.Fuse(cosineScore, llmScore)
	score := domain.MatchScore{
		ResumeID:    r.ID,
		JobID:       j.ID,
		Score:       hybrid,
		Category:    category,
		CosineScore: cosineScore,
		LLMScore:    llmScore,
	}
	if err := m.scores.Upsert(ctx, score); err != nil {
		log.Error("score upsert failed",
			"resume_id", r.ID, "job_id", j.ID, "error", err)
		stats.Failed++
		adapterobs.PairFailed()
		return
	}
	stats.Scored++
	adapterobs.PairScored()
	adapterobs.ObserveHybridScore(hybrid)
}

// RecomputeResume rescores one resume against every active job.
func (m *Matcher) RecomputeResume(ctx domain.Context, resumeID string) (PassStats, error) {
	return m.RunPass(ctx, domain.ScoreTaskPayload{Kind: domain.KindResume, DocumentID: resumeID})
}

// RecomputeJob rescores one job against every resume.
func (m *Matcher) RecomputeJob(ctx domain.Context, jobID string) (PassStats, error) {
	return m.RunPass(ctx, domain.ScoreTaskPayload{Kind: domain.KindJob, DocumentID: jobID})
}

// RecomputeAll rebuilds the whole matrix by running a resume pass for every
// resume with text. Failures in one pass do not stop the sweep.
func (m *Matcher) RecomputeAll(ctx domain.Context) (PassStats, error) {
	resumes, err := m.resumes.ListWithText(ctx)
	if err != nil {
		return PassStats{}, fmt.Errorf("op=matcher.RecomputeAll: %w", err)
	}
	total := PassStats{Kind: domain.KindResume, DocumentID: "*"}
	for _, r := range resumes {
		stats, err := m.RunPass(ctx, domain.ScoreTaskPayload{Kind: domain.KindResume, DocumentID: r.ID})
		if err != nil {
			observability.LoggerFromContext(ctx).Error("recompute pass failed",
				"resume_id", r.ID, "error", err)
			total.Skipped++
			continue
		}
		total.Scored += stats.Scored
		total.Failed += stats.Failed
	}
	return total, nil
}
