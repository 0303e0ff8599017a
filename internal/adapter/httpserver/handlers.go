package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/resume-job-matcher/internal/config"
	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
	"github.com/fairyhunter13/resume-job-matcher/internal/usecase"
)

// MatchService is the slice of the matcher the HTTP layer depends on.
type MatchService interface {
	UploadResume(ctx domain.Context, candidateID, filename, mime string, data []byte) (domain.Resume, *usecase.PassStats, error)
	UploadJob(ctx domain.Context, companyID, title, filename, mime string, data []byte) (domain.JobDescription, *usecase.PassStats, error)
	CloseJob(ctx domain.Context, jobID, reason string) error
	ReopenJob(ctx domain.Context, jobID string) (domain.JobDescription, *usecase.PassStats, error)
	MatchesByResume(ctx domain.Context, resumeID string, includeClosed bool) ([]domain.MatchScore, error)
	MatchesByJob(ctx domain.Context, jobID string, includeClosed bool) ([]domain.MatchScore, error)
	RecomputeResume(ctx domain.Context, resumeID string) (usecase.PassStats, error)
	RecomputeJob(ctx domain.Context, jobID string) (usecase.PassStats, error)
	RecomputeAll(ctx domain.Context) (usecase.PassStats, error)
	Stats(ctx domain.Context) (usecase.MatrixStats, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Matcher     MatchService
	DBCheck     func(ctx context.Context) error
	RedisCheck  func(ctx context.Context) error
	BrokerCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
// Checks may be nil; nil checks pass.
func NewServer(cfg config.Config, matcher MatchService, dbCheck, redisCheck, brokerCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Matcher: matcher, DBCheck: dbCheck, RedisCheck: redisCheck, BrokerCheck: brokerCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

func allowedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".docx":
		return true
	}
	return false
}

// allowedMIMEFor checks the sniffed content type against the declared
// extension. DOCX files are zip containers, so a generic zip sniff passes.
func allowedMIMEFor(m, filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return strings.HasPrefix(m, "application/pdf")
	case ".docx":
		return strings.HasPrefix(m, "application/vnd.openxmlformats-officedocument.wordprocessingml.document") ||
			strings.HasPrefix(m, "application/zip")
	}
	return false
}

// readUpload parses the multipart form and returns the validated file. On
// failure it has already written the error response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (filename, mime string, data []byte, ok bool) {
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
		return
	}
	maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
				Code: "PAYLOAD_TOO_LARGE", Message: "payload too large",
				Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB},
			}})
			return
		}
		writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
		return
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %s file required", domain.ErrInvalidArgument, field), map[string]string{"field": field})
		return
	}
	defer func() { _ = file.Close() }()
	data, err = io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %s read: %v", domain.ErrInvalidArgument, field, err), nil)
		return
	}
	if !allowedExt(header.Filename) {
		writeError(w, r, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, header.Filename),
			map[string]string{"filename": header.Filename})
		return
	}
	sniffed := mimetype.Detect(data)
	if !allowedMIMEFor(sniffed.String(), header.Filename) {
		writeError(w, r, fmt.Errorf("%w: content does not match extension", domain.ErrUnsupportedFormat),
			map[string]string{"filename": header.Filename, "mime": sniffed.String()})
		return
	}
	return header.Filename, sniffed.String(), data, true
}

// UploadResumeHandler accepts multipart (candidate_id, file), replaces the
// candidate's resume and triggers the scoring pass.
func (s *Server) UploadResumeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, mime, data, ok := s.readUpload(w, r, "file")
		if !ok {
			return
		}
		candidateID := strings.TrimSpace(r.FormValue("candidate_id"))
		if candidateID == "" {
			writeError(w, r, fmt.Errorf("%w: candidate_id required", domain.ErrInvalidArgument),
				map[string]string{"field": "candidate_id"})
			return
		}
		res, stats, err := s.Matcher.UploadResume(r.Context(), candidateID, filename, mime, data)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"resume_id":       res.ID,
			"candidate_id":    res.CandidateID,
			"extracted_chars": len(res.ExtractedText),
			"pass":            stats,
		})
	}
}

// UploadJobHandler accepts multipart (company_id, title, file) and triggers
// the job-side scoring pass.
func (s *Server) UploadJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, mime, data, ok := s.readUpload(w, r, "file")
		if !ok {
			return
		}
		companyID := strings.TrimSpace(r.FormValue("company_id"))
		if companyID == "" {
			writeError(w, r, fmt.Errorf("%w: company_id required", domain.ErrInvalidArgument),
				map[string]string{"field": "company_id"})
			return
		}
		title := strings.TrimSpace(r.FormValue("title"))
		job, stats, err := s.Matcher.UploadJob(r.Context(), companyID, title, filename, mime, data)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"job_id":          job.ID,
			"company_id":      job.CompanyID,
			"title":           job.Title,
			"is_active":       job.IsActive,
			"extracted_chars": len(job.ExtractedText),
			"pass":            stats,
		})
	}
}

// CloseJobHandler flags a job inactive. Scores are kept for history.
func (s *Server) CloseJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason" validate:"required,max=500"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: reason required", domain.ErrInvalidArgument), nil)
			return
		}
		jobID := chi.URLParam(r, "id")
		if err := s.Matcher.CloseJob(r.Context(), jobID, req.Reason); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "is_active": false})
	}
}

// ReopenJobHandler flips a closed job back to active and triggers the pass
// that refreshes its scores.
func (s *Server) ReopenJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		job, stats, err := s.Matcher.ReopenJob(r.Context(), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":    job.ID,
			"is_active": job.IsActive,
			"pass":      stats,
		})
	}
}

func includeClosed(r *http.Request) bool {
	v := r.URL.Query().Get("include_closed")
	return v == "1" || strings.EqualFold(v, "true")
}

type matchRow struct {
	ResumeID    string  `json:"resume_id"`
	JobID       string  `json:"job_id"`
	Score       float64 `json:"score"`
	Category    string  `json:"category"`
	CosineScore float64 `json:"cosine_score"`
	LLMScore    float64 `json:"llm_score"`
}

func toMatchRows(scores []domain.MatchScore) []matchRow {
	out := make([]matchRow, 0, len(scores))
	for _, s := range scores {
		out = append(out, matchRow{
			ResumeID: s.ResumeID, JobID: s.JobID, Score: s.Score,
			Category: s.Category, CosineScore: s.CosineScore, LLMScore: s.LLMScore,
		})
	}
	return out
}

// ResumeMatchesHandler lists a resume's matches, best first.
func (s *Server) ResumeMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rows, err := s.Matcher.MatchesByResume(r.Context(), id, includeClosed(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"resume_id": id, "matches": toMatchRows(rows)})
	}
}

// JobMatchesHandler lists a job's matches, best first.
func (s *Server) JobMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rows, err := s.Matcher.MatchesByJob(r.Context(), id, includeClosed(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"job_id": id, "matches": toMatchRows(rows)})
	}
}

// RecomputeHandler triggers a batch recompute: one resume, one job, or the
// whole matrix.
func (s *Server) RecomputeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResumeID string `json:"resume_id"`
			JobID    string `json:"job_id"`
			All      bool   `json:"all"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		var stats usecase.PassStats
		var err error
		switch {
		case req.ResumeID != "":
			stats, err = s.Matcher.RecomputeResume(r.Context(), req.ResumeID)
		case req.JobID != "":
			stats, err = s.Matcher.RecomputeJob(r.Context(), req.JobID)
		case req.All:
			stats, err = s.Matcher.RecomputeAll(r.Context())
		default:
			writeError(w, r, fmt.Errorf("%w: one of resume_id, job_id or all required", domain.ErrInvalidArgument), nil)
			return
		}
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// StatsHandler reports document counts for the admin surface.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.Matcher.Stats(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler pings the dependencies the request path needs.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]func(context.Context) error{
			"db":     s.DBCheck,
			"redis":  s.RedisCheck,
			"broker": s.BrokerCheck,
		}
		failures := map[string]string{}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(r.Context()); err != nil {
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failures": failures})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
