// Package server exposes comparisons and runs over HTTP and WebSocket.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GriffinCanCode/shotdiff/internal/artifacts"
	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/runner"
	"github.com/GriffinCanCode/shotdiff/internal/suite"
	"github.com/GriffinCanCode/shotdiff/internal/syncx"
	"github.com/GriffinCanCode/shotdiff/internal/trace"
)

// Options configures a Server.
type Options struct {
	Runner    *runner.Runner
	Suite     *suite.Suite         // nil disables POST /api/runs
	Publisher *artifacts.Publisher // nil skips uploads after runs
	Logger    *slog.Logger
}

// Server serves the comparison API and streams run progress to websocket clients.
type Server struct {
	runner    *runner.Runner
	suite     *suite.Suite
	publisher *artifacts.Publisher
	log       *slog.Logger
	published syncx.Guard[artifacts.Location]

	running sync.Mutex // one suite run at a time
	clients *hub

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New creates a server and starts broadcasting run progress to websocket clients until Close.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		runner:    opts.Runner,
		suite:     opts.Suite,
		publisher: opts.Publisher,
		log:       opts.Logger,
		clients:   newHub(),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go s.broadcastProgress()
	return s
}

// Close stops the progress broadcaster. It does not close the HTTP listener.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
}

// Handler returns the routes wrapped in trace and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /healthcheck", s.handleHealth)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	mux.HandleFunc("POST /api/runs", s.handleRun)
	mux.HandleFunc("GET /api/runs/latest", s.handleLatest)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/artifacts/latest", s.handleLatestArtifacts)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid request body"))
		return
	}

	item, err := s.runner.Compare(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.suite == nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeInvalidArgument, "server was started without a suite"))
		return
	}
	if !s.running.TryLock() {
		s.writeError(w, r, apperrors.New(apperrors.CodeConflict, "a run is already in progress"))
		return
	}
	defer s.running.Unlock()

	log := trace.Logger(r.Context(), s.log)
	report, err := s.runner.Run(r.Context(), s.suite)
	if err != nil {
		s.writeError(w, r, apperrors.Wrap(err, apperrors.CodeUnavailable, "run interrupted"))
		return
	}

	if s.publisher != nil && !report.OK() {
		if loc, err := s.publisher.Publish(r.Context(), report); err != nil {
			log.Error("artifact upload failed", "run_id", report.RunID, "error", err)
		} else {
			s.published.Set(loc)
			w.Header().Set("X-Artifact-Bundle", loc.BundleKey)
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	report := s.runner.History().Latest()
	if report == nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeNotFound, "no runs yet"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestArtifacts(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.published.Get()
	if !ok {
		s.writeError(w, r, apperrors.New(apperrors.CodeNotFound, "no artifacts published yet"))
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report := s.runner.History().Get(id)
	if report == nil {
		s.writeError(w, r, apperrors.New(apperrors.CodeNotFound, "run not found").
			WithMetadata("run_id", id))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Code: string(apperrors.CodeOf(err)), Message: err.Error()}
	if appErr, ok := apperrors.As(err); ok {
		resp.Message = appErr.Message
		resp.Details = appErr.Metadata
	}
	if tc, ok := trace.FromContext(r.Context()); ok {
		resp.TraceID = tc.TraceID
	}
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		trace.Logger(r.Context(), s.log).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
