package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-job-matcher/internal/config"
	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// In-memory ports for matcher tests.

type memResumes struct {
	byID    map[string]domain.Resume
	nextID  int
	deletes int
}

func newMemResumes() *memResumes { return &memResumes{byID: map[string]domain.Resume{}} }

func (m *memResumes) Create(_ domain.Context, r domain.Resume) (string, error) {
	m.nextID++
	id := fmt.Sprintf("r%d", m.nextID)
	r.ID = id
	m.byID[id] = r
	return id, nil
}

func (m *memResumes) Get(_ domain.Context, id string) (domain.Resume, error) {
	r, ok := m.byID[id]
	if !ok {
		return domain.Resume{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memResumes) GetByCandidate(_ domain.Context, candidateID string) (domain.Resume, error) {
	for _, r := range m.byID {
		if r.CandidateID == candidateID {
			return r, nil
		}
	}
	return domain.Resume{}, domain.ErrNotFound
}

func (m *memResumes) DeleteByCandidate(_ domain.Context, candidateID string) (int64, error) {
	var n int64
	for id, r := range m.byID {
		if r.CandidateID == candidateID {
			delete(m.byID, id)
			n++
		}
	}
	m.deletes++
	return n, nil
}

func (m *memResumes) ListWithText(_ domain.Context) ([]domain.Resume, error) {
	var out []domain.Resume
	for _, r := range m.byID {
		if r.ExtractedText != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memResumes) Count(_ domain.Context) (int64, error) { return int64(len(m.byID)), nil }

type memJobs struct {
	byID   map[string]domain.JobDescription
	nextID int
}

func newMemJobs() *memJobs { return &memJobs{byID: map[string]domain.JobDescription{}} }

func (m *memJobs) Create(_ domain.Context, j domain.JobDescription) (string, error) {
	m.nextID++
	id := fmt.Sprintf("j%d", m.nextID)
	j.ID = id
	m.byID[id] = j
	return id, nil
}

func (m *memJobs) Get(_ domain.Context, id string) (domain.JobDescription, error) {
	j, ok := m.byID[id]
	if !ok {
		return domain.JobDescription{}, domain.ErrNotFound
	}
	return j, nil
}

func (m *memJobs) ListActiveWithText(_ domain.Context) ([]domain.JobDescription, error) {
	var out []domain.JobDescription
	for _, j := range m.byID {
		if j.IsActive && j.ExtractedText != "" {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) Close(_ domain.Context, id, reason string, closedAt time.Time) error {
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.IsActive = false
	j.CloseReason = reason
	j.ClosedAt = &closedAt
	m.byID[id] = j
	return nil
}

func (m *memJobs) Reactivate(_ domain.Context, id string) error {
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.IsActive = true
	j.CloseReason = ""
	j.ClosedAt = nil
	m.byID[id] = j
	return nil
}

func (m *memJobs) Count(_ domain.Context) (int64, error) { return int64(len(m.byID)), nil }

type memScores struct {
	byPair  map[string]domain.MatchScore
	upserts int
}

func newMemScores() *memScores { return &memScores{byPair: map[string]domain.MatchScore{}} }

func pairKey(resumeID, jobID string) string { return resumeID + "/" + jobID }

func (m *memScores) Upsert(_ domain.Context, s domain.MatchScore) error {
	m.upserts++
	m.byPair[pairKey(s.ResumeID, s.JobID)] = s
	return nil
}

func (m *memScores) Get(_ domain.Context, resumeID, jobID string) (domain.MatchScore, error) {
	s, ok := m.byPair[pairKey(resumeID, jobID)]
	if !ok {
		return domain.MatchScore{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memScores) ListByResume(_ domain.Context, resumeID string, _ bool) ([]domain.MatchScore, error) {
	var out []domain.MatchScore
	for _, s := range m.byPair {
		if s.ResumeID == resumeID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memScores) ListByJob(_ domain.Context, jobID string, _ bool) ([]domain.MatchScore, error) {
	var out []domain.MatchScore
	for _, s := range m.byPair {
		if s.JobID == jobID {
			out = append(out, s)
		}
	}
	return out, nil
}

// stubExtractor returns the file contents as text, or a canned error.
type stubExtractor struct {
	err error
}

func (s *stubExtractor) Extract(_ domain.Context, _ string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return string(data), nil
}

// stubScorer returns a fixed LLM score, with optional per-job-text failures.
type stubScorer struct {
	score   float64
	failFor map[string]error // keyed by job text
	calls   int
}

func (s *stubScorer) Score(_ domain.Context, _, jobText string) (float64, error) {
	s.calls++
	if err, ok := s.failFor[jobText]; ok {
		return 0, err
	}
	return s.score, nil
}

type stubQueue struct {
	payloads []domain.ScoreTaskPayload
}

func (q *stubQueue) EnqueueScorePass(_ domain.Context, p domain.ScoreTaskPayload) (string, error) {
	q.payloads = append(q.payloads, p)
	return fmt.Sprintf("task-%d", len(q.payloads)), nil
}

func matcherConfig() config.Config {
	cfg := defaultPolicy()
	cfg.AppEnv = "test"
	cfg.ScorePassTimeout = time.Minute
	cfg.EmbedCacheTTL = time.Hour
	return cfg
}

type matcherFixture struct {
	matcher *Matcher
	resumes *memResumes
	jobs    *memJobs
	scores  *memScores
	scorer  *stubScorer
	queue   *stubQueue
}

func newMatcherFixture(cfg config.Config) *matcherFixture {
	f := &matcherFixture{
		resumes: newMemResumes(),
		jobs:    newMemJobs(),
		scores:  newMemScores(),
		scorer:  &stubScorer{score: 0.9},
		queue:   &stubQueue{},
	}
	emb := &stubEmbedder{vectors: map[string][]float32{}}
	sim := NewSimilarity(emb, newMapCache(), cfg.EmbedCacheTTL)
	f.matcher = NewMatcher(cfg, f.resumes, f.jobs, f.scores, f.queue, &stubExtractor{}, sim, f.scorer)
	return f
}

func (f *matcherFixture) seedJob(t *testing.T, text string) string {
	t.Helper()
	id, err := f.jobs.Create(context.Background(), domain.JobDescription{
		CompanyID: "co-1", ExtractedText: text, IsActive: true,
	})
	require.NoError(t, err)
	return id
}

func TestUploadResumeFansOutOverActiveJobs(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	f.seedJob(t, "backend go role")
	f.seedJob(t, "data engineer role")

	closedID := f.seedJob(t, "old closed role")
	require.NoError(t, f.jobs.Close(ctx, closedID, "filled", time.Now()))

	r, stats, err := f.matcher.UploadResume(ctx, "cand-1", "cv.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)
	require.NotNil(t, stats)
	require.Equal(t, 2, stats.Scored)
	require.Equal(t, 0, stats.Failed)
	require.Equal(t, 2, f.scores.upserts)

	rows, err := f.scores.ListByResume(ctx, r.ID, false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.GreaterOrEqual(t, row.Score, 0.0)
		require.LessOrEqual(t, row.Score, 1.0)
		require.NotEmpty(t, row.Category)
	}
}

func TestUploadResumeReplacesPriorAndCascades(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	f.seedJob(t, "backend go role")

	first, _, err := f.matcher.UploadResume(ctx, "cand-1", "v1.pdf", "application/pdf", []byte("junior dev"))
	require.NoError(t, err)
	second, _, err := f.matcher.UploadResume(ctx, "cand-1", "v2.pdf", "application/pdf", []byte("senior dev"))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	_, err = f.resumes.Get(ctx, first.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Len(t, f.resumes.byID, 1)
}

func TestUploadResumeExtractionFailureKeepsPriorResume(t *testing.T) {
	cfg := matcherConfig()
	f := newMatcherFixture(cfg)
	ctx := context.Background()

	prior, _, err := f.matcher.UploadResume(ctx, "cand-1", "v1.pdf", "application/pdf", []byte("junior dev"))
	require.NoError(t, err)

	emb := &stubEmbedder{vectors: map[string][]float32{}}
	sim := NewSimilarity(emb, newMapCache(), cfg.EmbedCacheTTL)
	broken := NewMatcher(cfg, f.resumes, f.jobs, f.scores, f.queue,
		&stubExtractor{err: domain.ErrEmptyDocument}, sim, f.scorer)

	_, _, err = broken.UploadResume(ctx, "cand-1", "v2.pdf", "application/pdf", []byte("x"))
	require.ErrorIs(t, err, domain.ErrEmptyDocument)

	// The failed upload must not have replaced the working resume.
	got, err := f.resumes.Get(ctx, prior.ID)
	require.NoError(t, err)
	require.Equal(t, "junior dev", got.ExtractedText)
}

func TestUploadJobFansOutOverResumes(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()

	_, _, err := f.matcher.UploadResume(ctx, "cand-1", "a.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	_, _, err = f.matcher.UploadResume(ctx, "cand-2", "b.pdf", "application/pdf", []byte("data analyst"))
	require.NoError(t, err)

	j, stats, err := f.matcher.UploadJob(ctx, "co-1", "Backend", "job.pdf", "application/pdf", []byte("backend go role"))
	require.NoError(t, err)
	require.True(t, j.IsActive)
	require.NotNil(t, stats)
	require.Equal(t, 2, stats.Scored)
}

func TestPassPartialFailureIsDegradedSuccess(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	f.seedJob(t, "good role")
	f.seedJob(t, "broken role")
	f.scorer.failFor = map[string]error{"broken role": domain.ErrBackendUnavailable}

	_, stats, err := f.matcher.UploadResume(ctx, "cand-1", "cv.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	require.NotNil(t, stats)
	require.Equal(t, 1, stats.Scored)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, f.scores.upserts)
}

func TestPassParseFailureDegradesLLMSignalToZero(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	jobID := f.seedJob(t, "fuzzy role")
	f.scorer.failFor = map[string]error{"fuzzy role": domain.ErrParseFailure}

	r, stats, err := f.matcher.UploadResume(ctx, "cand-1", "cv.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	require.Equal(t, 1, stats.Scored)
	require.Equal(t, 0, stats.Failed)

	row, err := f.scores.Get(ctx, r.ID, jobID)
	require.NoError(t, err)
	require.Equal(t, 0.0, row.LLMScore)
}

func TestRunPassIsIdempotentPerPair(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	f.seedJob(t, "backend go role")

	r, _, err := f.matcher.UploadResume(ctx, "cand-1", "cv.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)

	_, err = f.matcher.RecomputeResume(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.matcher.RecomputeResume(ctx, r.ID)
	require.NoError(t, err)

	// Three passes total, still a single row per pair.
	require.Len(t, f.scores.byPair, 1)
	require.Equal(t, 3, f.scores.upserts)
}

func TestCloseJobKeepsScores(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	jobID := f.seedJob(t, "backend go role")

	r, _, err := f.matcher.UploadResume(ctx, "cand-1", "cv.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	require.NoError(t, f.matcher.CloseJob(ctx, jobID, "position filled"))

	j, err := f.jobs.Get(ctx, jobID)
	require.NoError(t, err)
	require.False(t, j.IsActive)
	require.Equal(t, "position filled", j.CloseReason)
	require.NotNil(t, j.ClosedAt)

	_, err = f.scores.Get(ctx, r.ID, jobID)
	require.NoError(t, err)
}

func TestJobPassSkipsClosedJob(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	jobID := f.seedJob(t, "backend go role")
	_, _, err := f.matcher.UploadResume(ctx, "cand-1", "cv.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	require.NoError(t, f.matcher.CloseJob(ctx, jobID, "filled"))

	before := f.scores.upserts
	stats, err := f.matcher.RecomputeJob(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Scored)
	require.Equal(t, before, f.scores.upserts)
}

func TestReopenJobRefreshesScores(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	jobID := f.seedJob(t, "backend go role")

	_, _, err := f.matcher.UploadResume(ctx, "cand-1", "a.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	require.NoError(t, f.matcher.CloseJob(ctx, jobID, "on hold"))

	// A resume uploaded while the job is closed never scores against it.
	_, _, err = f.matcher.UploadResume(ctx, "cand-2", "b.pdf", "application/pdf", []byte("platform engineer"))
	require.NoError(t, err)
	require.Len(t, f.scores.byPair, 1)

	j, stats, err := f.matcher.ReopenJob(ctx, jobID)
	require.NoError(t, err)
	require.True(t, j.IsActive)
	require.Empty(t, j.CloseReason)
	require.Nil(t, j.ClosedAt)
	require.NotNil(t, stats)
	require.Equal(t, 2, stats.Scored)
	require.Len(t, f.scores.byPair, 2)
}

func TestReopenJobUnknownJob(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	_, _, err := f.matcher.ReopenJob(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatsCountsBothSides(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	f.seedJob(t, "backend go role")
	f.seedJob(t, "frontend role")
	_, _, err := f.matcher.UploadResume(ctx, "cand-1", "cv.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)

	stats, err := f.matcher.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Resumes)
	require.Equal(t, int64(2), stats.Jobs)
}

func TestAsyncUploadEnqueuesInsteadOfScoring(t *testing.T) {
	cfg := matcherConfig()
	cfg.ScoreAsync = true
	f := newMatcherFixture(cfg)
	ctx := context.Background()
	f.seedJob(t, "backend go role")

	r, stats, err := f.matcher.UploadResume(ctx, "cand-1", "cv.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	require.Nil(t, stats)
	require.Equal(t, 0, f.scores.upserts)
	require.Len(t, f.queue.payloads, 1)
	require.Equal(t, domain.KindResume, f.queue.payloads[0].Kind)
	require.Equal(t, r.ID, f.queue.payloads[0].DocumentID)
}

func TestRecomputeAllSweepsEveryResume(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	ctx := context.Background()
	f.seedJob(t, "backend go role")
	f.seedJob(t, "frontend role")

	_, _, err := f.matcher.UploadResume(ctx, "cand-1", "a.pdf", "application/pdf", []byte("go engineer"))
	require.NoError(t, err)
	_, _, err = f.matcher.UploadResume(ctx, "cand-2", "b.pdf", "application/pdf", []byte("react developer"))
	require.NoError(t, err)

	total, err := f.matcher.RecomputeAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, total.Scored)
	require.Equal(t, 0, total.Failed)
	require.Len(t, f.scores.byPair, 4)
}

func TestMatchesByResumeUnknownResume(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	_, err := f.matcher.MatchesByResume(context.Background(), "nope", false)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUploadResumeRequiresCandidateID(t *testing.T) {
	f := newMatcherFixture(matcherConfig())
	_, _, err := f.matcher.UploadResume(context.Background(), "", "cv.pdf", "application/pdf", []byte("x"))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
