package llmscore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-job-matcher/internal/config"
	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

type stubBackend struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubBackend) Complete(_ domain.Context, _, _ string) (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var resp string
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

func testCfg() config.Config {
	return config.Config{
		AppEnv:            "test",
		LLMModel:          "phi-2",
		LLMRetryAttempts:  3,
		LLMRetryDelay:     2 * time.Second,
		PromptTokenBudget: 0, // keep tests off the tokenizer
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"0.82", 0.82},
		{"The relevance score is 0.75.", 0.75},
		{".6", 0.6},
		{"1", 1.0},
		{"0", 0.0},
		{"score: 1.0 overall", 1.0},
		// Out-of-range numbers are skipped, not clamped into existence.
		{"rated 7 out of 10, so 0.7", 0.7},
	}
	for _, tc := range cases {
		got, err := ParseScore(tc.raw)
		require.NoError(t, err, "raw %q", tc.raw)
		require.InDelta(t, tc.want, got, 1e-9, "raw %q", tc.raw)
	}
}

func TestParseScoreFailure(t *testing.T) {
	for _, raw := range []string{"", "no numbers here", "ten out of ten", "42", "1.5"} {
		got, err := ParseScore(raw)
		require.ErrorIs(t, err, domain.ErrParseFailure, "raw %q", raw)
		require.Equal(t, 0.0, got)
	}
}

func TestScoreHappyPath(t *testing.T) {
	b := &stubBackend{responses: []string{"0.82"}}
	s := New(b, testCfg())
	got, err := s.Score(context.Background(), "go engineer", "backend role")
	require.NoError(t, err)
	require.InDelta(t, 0.82, got, 1e-9)
	require.Equal(t, 1, b.calls)
}

func TestScoreRetriesTransportFailures(t *testing.T) {
	b := &stubBackend{
		responses: []string{"", "", "0.5"},
		errs:      []error{errors.New("timeout"), errors.New("timeout"), nil},
	}
	s := New(b, testCfg())
	got, err := s.Score(context.Background(), "resume", "job")
	require.NoError(t, err)
	require.InDelta(t, 0.5, got, 1e-9)
	require.Equal(t, 3, b.calls)
}

func TestScoreExhaustedRetriesSurfaceBackendUnavailable(t *testing.T) {
	fail := errors.New("connection refused")
	b := &stubBackend{errs: []error{fail, fail, fail, fail, fail}}
	s := New(b, testCfg())
	got, err := s.Score(context.Background(), "resume", "job")
	require.ErrorIs(t, err, domain.ErrBackendUnavailable)
	require.Equal(t, 0.0, got)
	// Initial call plus the configured retries.
	require.Equal(t, 4, b.calls)
}

func TestScoreParseFailureDegradesToZero(t *testing.T) {
	b := &stubBackend{responses: []string{"I cannot provide a rating."}}
	s := New(b, testCfg())
	got, err := s.Score(context.Background(), "resume", "job")
	require.ErrorIs(t, err, domain.ErrParseFailure)
	require.Equal(t, 0.0, got)
}

func TestBuildUserPromptIsDeterministic(t *testing.T) {
	s := New(&stubBackend{}, testCfg())
	p1 := s.buildUserPrompt("go engineer with five years", "backend role, go required")
	p2 := s.buildUserPrompt("go engineer with five years", "backend role, go required")
	require.Equal(t, p1, p2)
	require.Contains(t, p1, "Resume:\ngo engineer with five years")
	require.Contains(t, p1, "Job Description:\nbackend role, go required")
	require.True(t, strings.HasSuffix(p1, "Relevance score:"))
}

func TestScoreRejectsEmptyDocuments(t *testing.T) {
	s := New(&stubBackend{}, testCfg())
	_, err := s.Score(context.Background(), "", "job")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = s.Score(context.Background(), "resume", "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
