// Package chi exposes the pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/loader"
	"github.com/codebridge-ai/codebridge/internal/logger"
	askuc "github.com/codebridge-ai/codebridge/internal/usecase/ask"
	healthuc "github.com/codebridge-ai/codebridge/internal/usecase/health"
	ingestuc "github.com/codebridge-ai/codebridge/internal/usecase/ingest"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	ask           *askuc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	docsDir       string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. docsDir is the default corpus
// location for the ingest endpoint.
func NewServer(
	ask *askuc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	docsDir string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ask:     ask,
		ingest:  ingest,
		health:  health,
		docsDir: docsDir,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidConfig, http.StatusBadRequest, "invalid_request"),
		sentinelHandler(domain.ErrModelNotLoaded, http.StatusServiceUnavailable, "model_not_loaded"),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusBadGateway, "embedding_unavailable"),
		sentinelHandler(domain.ErrBackendUnreachable, http.StatusBadGateway, "backend_unreachable"),
		sentinelHandler(domain.ErrBackendRejected, http.StatusBadGateway, "backend_rejected"),
	}
	return s
}

// Routes registers all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/diagnose", s.handleDiagnose)
	r.Post("/api/v1/ingest", s.handleIngest)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

type queryRequest struct {
	Question string `json:"question"`
}

type sourceRef struct {
	ChunkID string `json:"chunk_id"`
	DocID   string `json:"doc_id"`
	Offset  int    `json:"offset"`
}

type queryResponse struct {
	Answer  string      `json:"answer"`
	TraceID string      `json:"trace_id"`
	Sources []sourceRef `json:"sources"`
}

// handleQuery handles POST /api/v1/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is required")
		return
	}

	answer, err := s.ask.Ask(r.Context(), req.Question)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(answer))
}

type diagnoseRequest struct {
	Error string `json:"error"`
}

// handleDiagnose handles POST /api/v1/diagnose.
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Error == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "error text is required")
		return
	}

	answer, err := s.ask.Diagnose(r.Context(), req.Error)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(answer))
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type ingestFailure struct {
	DocID string `json:"doc_id"`
	Error string `json:"error"`
}

type ingestResponse struct {
	Documents int             `json:"documents"`
	Chunks    int             `json:"chunks"`
	Failed    []ingestFailure `json:"failed,omitempty"`
}

// handleIngest handles POST /api/v1/ingest. An empty body or empty dir
// re-ingests the configured docs directory.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
			return
		}
	}
	dir := req.Dir
	if dir == "" {
		dir = s.docsDir
	}

	docs, err := loader.LoadDocuments(dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "load documents: "+err.Error())
		return
	}

	report := s.ingest.IngestAll(r.Context(), docs)

	resp := ingestResponse{
		Documents: len(report.Results),
		Chunks:    report.Indexed(),
	}
	for _, f := range report.Failed() {
		resp.Failed = append(resp.Failed, ingestFailure{DocID: f.DocID, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func answerToResponse(a domain.Answer) queryResponse {
	resp := queryResponse{
		Answer:  a.Text,
		TraceID: a.TraceID,
		Sources: make([]sourceRef, len(a.Chunks)),
	}
	for i, c := range a.Chunks {
		resp.Sources[i] = sourceRef{
			ChunkID: c.ID,
			DocID:   c.SourceDocID,
			Offset:  c.SourceOffset,
		}
	}
	return resp
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidConfig,
		domain.ErrModelNotLoaded,
		domain.ErrModelUnavailable,
		domain.ErrBackendUnreachable,
		domain.ErrBackendRejected,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// The request-scoped logger carries the request id set by the
	// logging middleware; outside of it the warning is dropped.
	logger.FromContext(r.Context()).Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
