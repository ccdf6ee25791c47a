package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/internal/graph"
	"github.com/dyike/FinCortex/internal/logger"
	"github.com/dyike/FinCortex/internal/metrics"
	"github.com/dyike/FinCortex/internal/models"
	"github.com/dyike/FinCortex/internal/storage"
)

const maxBodyBytes = 1 << 20

// Analyzer runs one analysis request end to end.
type Analyzer interface {
	Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisReport, error)
}

// History serves previously recorded analyses.
type History interface {
	Recent(ctx context.Context, limit int) ([]storage.AnalysisRecord, error)
	Get(ctx context.Context, id string) (*models.AnalysisReport, error)
}

type Server struct {
	analyzer Analyzer
	history  History
	defaultK int
	logger   *zap.Logger
	validate *validator.Validate
}

type Option func(*Server)

func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithDefaultK sets the k used when a request omits it.
func WithDefaultK(k int) Option {
	return func(s *Server) {
		if k >= 0 {
			s.defaultK = k
		}
	}
}

func New(analyzer Analyzer, log *zap.Logger, opts ...Option) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	s := &Server{
		analyzer: analyzer,
		defaultK: models.DefaultTopK,
		logger:   logger.OrNop(log),
		validate: v,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router mounts the API together with health and metrics endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(requestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Post("/analyze", s.handleAnalyze)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.history != nil {
		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleHistoryItem)
	}
	return r
}

type analyzeRequest struct {
	Query   string `json:"query" validate:"required"`
	Company string `json:"company" validate:"required"`
	K       *int   `json:"k" validate:"omitnil,gte=0"`
}

type analyzeResponse struct {
	Synthesis string `json:"synthesis"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOr(r.Context(), s.logger)

	var in analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid JSON body: " + err.Error()})
		return
	}
	in.Query = strings.TrimSpace(in.Query)
	in.Company = strings.TrimSpace(in.Company)
	if err := s.validate.Struct(in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: describeValidation(err)})
		return
	}

	k := s.defaultK
	if in.K != nil {
		k = *in.K
	}
	req := models.AnalysisRequest{
		ID:      requestIDFrom(r.Context()),
		Query:   in.Query,
		Company: in.Company,
		K:       k,
	}

	report, err := s.analyzer.Run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		log.Error("analysis failed", zap.Error(err))
		writeJSON(w, status, errorResponse{Detail: err.Error()})
		return
	}

	if full, _ := strconv.ParseBool(r.URL.Query().Get("full")); full {
		writeJSON(w, http.StatusOK, report)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Synthesis: report.Synthesis})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "limit must be a non-negative integer"})
			return
		}
		limit = v
	}
	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	if records == nil {
		records = []storage.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	report, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gte":
			msgs = append(msgs, fe.Field()+" must be >= "+fe.Param())
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
