// Package api exposes the generation endpoints and server-hosted
// assessment sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/metrics"
	"github.com/c360studio/rolefit/model"
	"github.com/c360studio/rolefit/session"
	"golang.org/x/time/rate"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20 // 1 MB

// ResultStore looks up recorded assessments. *recorder.Recorder implements it.
type ResultStore interface {
	Get(ctx context.Context, sessionID string) (*assessment.Result, error)
}

// ModelHealth reports endpoint circuit state. *model.Registry implements it.
type ModelHealth interface {
	Statuses() []model.EndpointStatus
}

// notFoundMatcher reports whether a ResultStore error means no such result.
type notFoundMatcher func(error) bool

// Server holds the handlers and their collaborators.
type Server struct {
	questions   session.QuestionSource
	suggestions session.SuggestionSource
	sessions    *session.Manager
	results     ResultStore
	models      ModelHealth
	isNotFound  notFoundMatcher
	metrics     *metrics.Metrics
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithSessions enables the /api/sessions routes.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) { s.sessions = m }
}

// WithResults enables GET /api/results/{id}. notFound marks the store's
// not-found error.
func WithResults(store ResultStore, notFound error) Option {
	return func(s *Server) {
		s.results = store
		s.isNotFound = func(err error) bool { return errors.Is(err, notFound) }
	}
}

// WithModelHealth adds endpoint health to GET /health.
func WithModelHealth(h ModelHealth) Option {
	return func(s *Server) { s.models = h }
}

// WithMetrics records request metrics and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimit limits the generation routes to rps requests per second
// with the given burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server over the two generators.
func NewServer(questions session.QuestionSource, suggestions session.SuggestionSource, opts ...Option) *Server {
	s := &Server{
		questions:   questions,
		suggestions: suggestions,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")
	return s
}

// RegisterHTTPHandlers registers every route on mux.
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.Handle("POST /api/generate-question", s.limit(http.HandlerFunc(s.handleGenerateQuestion)))
	mux.Handle("POST /api/generate-suggestions", s.limit(http.HandlerFunc(s.handleGenerateSuggestions)))

	if s.sessions != nil {
		s.registerSessionHandlers(mux)
	}
	if s.results != nil {
		mux.HandleFunc("GET /api/results/{id}", s.handleGetResult)
	}
}

// Handler returns the full route table wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers(mux)
	return s.withRequestLog(mux)
}

// HealthResponse is the response for GET /health. Status is "degraded"
// when every model endpoint is out of rotation.
type HealthResponse struct {
	Status string                 `json:"status"`
	Models []model.EndpointStatus `json:"models,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.models != nil {
		resp.Models = s.models.Statuses()
		if len(resp.Models) > 0 && !slices.ContainsFunc(resp.Models, func(m model.EndpointStatus) bool { return m.Available }) {
			resp.Status = "degraded"
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// CategoriesResponse is the response for GET /api/categories.
type CategoriesResponse struct {
	Categories   []assessment.Category `json:"categories"`
	Competencies []string              `json:"competencies"`
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, CategoriesResponse{
		Categories:   assessment.Categories(),
		Competencies: assessment.Competencies(),
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.results.Get(r.Context(), id)
	if err != nil {
		if s.isNotFound(err) {
			s.writeError(w, http.StatusNotFound, "result not found")
			return
		}
		s.logger.Error("Failed to get result", "session_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get result")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// decodeBody reads a JSON body into v, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %s", strings.TrimPrefix(err.Error(), "json: ")))
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to write JSON response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
