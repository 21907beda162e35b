package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/job"
	"github.com/kailas-cloud/workflows/internal/logger"
)

// JobReader loads job records.
type JobReader interface {
	Get(ctx context.Context, jobID string) (job.Record, error)
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const healthTimeout = 2 * time.Second

// Server serves the read-only job status API.
type Server struct {
	jobs          JobReader
	store         Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the status API server. store may be nil when there is no
// remote backend to probe.
func NewServer(jobs JobReader, store Pinger, l *zap.Logger) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		jobs:   jobs,
		store:  store,
		logger: l,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeJobNotFound),
			sentinelHandler(domain.ErrInvalidConfig, http.StatusBadRequest, ErrorCodeBadRequest),
		},
	}
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/jobs/{jobID}", s.GetJob)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// GetJob handles GET /jobs/{jobID}.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	if id == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "job id is required")
		return
	}
	rec, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy"}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		resp.Checks = map[string]string{"database": "ok"}
		if err := s.store.Ping(ctx); err != nil {
			logger.FromContext(r.Context()).Warn("Health check failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Checks["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err), zap.String("request_id", requestID(ctx)))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}
