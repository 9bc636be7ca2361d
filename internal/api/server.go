package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/kepler/internal/processor"
	"github.com/MikeSquared-Agency/kepler/internal/store"
)

// maxBodyBytes caps request bodies, which may embed raw exports.
const maxBodyBytes = 20 << 20

type Analyzer interface {
	Analyze(ctx context.Context, req processor.Request) (*store.Run, error)
}

type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error)
	ListRuns(ctx context.Context, opts store.ListOpts) ([]store.Run, error)
}

// BusStatus reports the message bus connection. *hermes.Client satisfies it.
type BusStatus interface {
	Connected() bool
}

type Server struct {
	router    *chi.Mux
	processor Analyzer
	runs      RunReader
	bus       BusStatus
	logger    *slog.Logger
	srv       *http.Server
}

type ServerOption func(*Server)

// WithBus makes the status endpoint report the bus connection.
func WithBus(b BusStatus) ServerOption {
	return func(s *Server) { s.bus = b }
}

// NewServer wires the routes. runs may be nil when no database is configured;
// the listing endpoints then answer 503.
func NewServer(port int, apiToken string, p Analyzer, runs RunReader, logger *slog.Logger, opts ...ServerOption) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		processor: p,
		runs:      runs,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/kepler/status", s.status)

	router.Route("/api/v1/insights", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/analyze", s.analyze)
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
	})
	router.Route("/api/v1/feedback", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/normalize", s.normalize)
	})

	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// status always answers 200. A dropped bus connection reads as degraded.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	state := "ok"
	nats := s.bus != nil && s.bus.Connected()
	if s.bus != nil && !nats {
		state = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":   "kepler",
		"status":  state,
		"storage": s.runs != nil,
		"nats":    nats,
	})
}

// analyze handles POST /api/v1/insights/analyze. A run that produced no
// insight answers 422 with the run body.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req processor.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	run, err := s.processor.Analyze(r.Context(), req)
	if err != nil {
		s.logger.Error("analyze failed", "error", err)
		if run == nil {
			writeError(w, http.StatusInternalServerError, "analysis failed")
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "run completed but could not be saved",
			"run":   run,
		})
		return
	}

	status := http.StatusOK
	if !run.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, run)
}

// listRuns handles GET /api/v1/insights?source_id=&limit=&offset=.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	q := r.URL.Query()
	opts := store.ListOpts{SourceID: q.Get("source_id")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = n
	}

	runs, err := s.runs.ListRuns(r.Context(), opts)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run failed", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
