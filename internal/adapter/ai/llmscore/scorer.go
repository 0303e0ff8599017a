// Package llmscore judges resume/job relevance with an LLM backend and
// parses the numeric verdict out of the model's free-form output.
package llmscore

import (
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"log/slog"

	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/resume-job-matcher/internal/config"
	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

const systemPrompt = `You are a recruitment relevance rater. Given a resume and a job description, rate how well the candidate fits the role. Evaluate: skills match, experience-level match, responsibility alignment, and domain relevance. Respond with ONLY a single decimal number between 0 and 1. No words, no explanation.`

// ChatBackend is the slice of the chat client the scorer needs.
type ChatBackend interface {
	Complete(ctx domain.Context, systemPrompt, userPrompt string) (string, error)
}

// Scorer implements domain.RelevanceScorer over a ChatBackend. Prompts are
// deterministic: fixed instruction, temperature zero downstream, documents
// truncated to a fixed token budget so the same pair always yields the same
// prompt.
type Scorer struct {
	backend ChatBackend
	counter *tokencount.Counter

	model         string
	tokenBudget   int
	retryAttempts uint64
	retryDelay    time.Duration
}

// New constructs a Scorer with the retry policy from config.
func New(backend ChatBackend, cfg config.Config) *Scorer {
	attempts, delay := cfg.GetLLMRetry()
	return &Scorer{
		backend:       backend,
		counter:       tokencount.DefaultCounter,
		model:         cfg.LLMModel,
		tokenBudget:   cfg.PromptTokenBudget,
		retryAttempts: attempts,
		retryDelay:    delay,
	}
}

// Score rates resume/job relevance on [0,1]. Transport failures retry with a
// constant delay up to the configured bound; exhaustion surfaces
// domain.ErrBackendUnavailable so the caller decides whether to degrade.
// Unparseable output degrades to 0 with domain.ErrParseFailure.
func (s *Scorer) Score(ctx domain.Context, resumeText, jobText string) (float64, error) {
	if resumeText == "" || jobText == "" {
		return 0.0, fmt.Errorf("op=llmscore.Score: %w: empty document text", domain.ErrInvalidArgument)
	}
	userPrompt := s.buildUserPrompt(resumeText, jobText)

	var raw string
	op := func() error {
		var err error
		raw, err = s.backend.Complete(ctx, systemPrompt, userPrompt)
		return err
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), s.retryAttempts), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return 0.0, fmt.Errorf("op=llmscore.Score: %w: %v", domain.ErrBackendUnavailable, err)
	}

	score, err := ParseScore(raw)
	if err != nil {
		slog.Warn("llm output had no parseable score",
			slog.String("model", s.model),
			slog.String("raw", truncateForLog(raw)))
		return 0.0, err
	}
	return score, nil
}

// buildUserPrompt assembles the pair prompt, cutting each document to its
// share of the token budget so long resumes cannot crowd out the job text.
func (s *Scorer) buildUserPrompt(resumeText, jobText string) string {
	resumeText = s.counter.Truncate(resumeText, s.model, s.tokenBudget)
	jobText = s.counter.Truncate(jobText, s.model, s.tokenBudget)
	return fmt.Sprintf("Resume:\n%s\n\nJob Description:\n%s\n\nRelevance score:", resumeText, jobText)
}
