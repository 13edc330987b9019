// Package api is the LexiGuard HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/config"
	"github.com/ericksa/lexiguard/internal/metrics"
	"github.com/ericksa/lexiguard/internal/middleware"
	"github.com/ericksa/lexiguard/internal/pipeline"
	"github.com/ericksa/lexiguard/internal/report"
	apperrors "github.com/ericksa/lexiguard/pkg/errors"
	"github.com/ericksa/lexiguard/pkg/mcp"
)

const defaultAuditLimit = 50

type Server struct {
	cfg     *config.Config
	svc     *pipeline.Service
	tools   *mcp.Handler
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewServer(cfg *config.Config, svc *pipeline.Service, tools *mcp.Handler, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, svc: svc, tools: tools, metrics: m, logger: logger}
}

// Router wires every route and the middleware chain.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	middleware.Register(r, s.logger, s.metrics, s.cfg.Server.CORSOrigins)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/analyze", s.analyze).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/analyze/upload", s.upload).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/contracts", s.listContracts).Methods(http.MethodGet)
	r.HandleFunc("/contracts/{id}", s.getContract).Methods(http.MethodGet)
	r.HandleFunc("/contracts/{id}/report", s.contractReport).Methods(http.MethodGet)
	r.HandleFunc("/audit", s.auditLog).Methods(http.MethodGet)
	r.HandleFunc("/keywords", s.keywords).Methods(http.MethodGet)

	if s.tools != nil {
		r.HandleFunc("/tools", s.listTools).Methods(http.MethodGet)
		r.HandleFunc("/tools/{tool}", s.executeTool).Methods(http.MethodPost, http.MethodOptions)
		r.PathPrefix("/mcp").Handler(s.tools)
	}
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		r.Handle(s.cfg.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}
	config.NewConfigAPI(s.cfg).Register(r)
	return r
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

type analyzeResponse struct {
	Success   bool            `json:"success"`
	RiskScore int             `json:"risk_score"`
	Summary   string          `json:"summary"`
	Details   []analysis.Risk `json:"details"`
	ID        string          `json:"id"`
	Duplicate bool            `json:"duplicate"`
}

type contractSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	RiskScore int       `json:"risk_score"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "LexiGuard API",
	})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	out, err := s.svc.AnalyzeText(r.Context(), pipeline.TextSubmission{
		Text:     req.Text,
		Filename: req.Filename,
		Source:   "api",
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(out))
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Server.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		if isTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Uploaded file is too large"})
			return
		}
		s.writeError(w, apperrors.Validation("Invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, apperrors.Validation("No file provided"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, apperrors.Validation("Failed to read uploaded file"))
		return
	}
	out, err := s.svc.AnalyzeDocument(r.Context(), pipeline.DocumentSubmission{
		Filename: header.Filename,
		Content:  content,
		Source:   "upload",
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(out))
}

func (s *Server) listContracts(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.History(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]contractSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, contractSummary{
			ID:        rec.ID,
			Filename:  rec.Filename,
			Timestamp: rec.Timestamp,
			RiskScore: rec.RiskScore,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Contract(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) contractReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Contract(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.Render(w, rec); err != nil {
		s.logger.Error("failed to render report", zap.String("id", rec.ID), zap.Error(err))
	}
}

func (s *Server) auditLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, apperrors.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	events, err := s.svc.AuditLog(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) keywords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Keywords())
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": s.tools.Tools()})
}

func (s *Server) executeTool(w http.ResponseWriter, r *http.Request) {
	var args json.RawMessage
	if !s.decodeBody(w, r, &args) {
		return
	}
	result, err := s.tools.ExecuteTool(r.Context(), mux.Vars(r)["tool"], args)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(result)
}

// decodeBody decodes an optional JSON body capped at the upload size limit.
// It writes the error response itself and reports whether to continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true
	case isTooLarge(err):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body is too large"})
	default:
		s.writeError(w, apperrors.Validation("Invalid JSON body"))
	}
	return false
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func toResponse(out *pipeline.Outcome) analyzeResponse {
	return analyzeResponse{
		Success:   true,
		RiskScore: out.Record.RiskScore,
		Summary:   out.Record.Summary,
		Details:   out.Record.Risks,
		ID:        out.Record.ID,
		Duplicate: out.Duplicate,
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": apperrors.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
