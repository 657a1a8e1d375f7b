// ABOUTME: Read-only ratchet HTTP server exposing run history, run records, reports, and live status.
// ABOUTME: Routes are served by a chi router backed by the SQLite history index and run directories.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/2389-research/ratchet/history"
	"github.com/2389-research/ratchet/pipeline"
	"github.com/2389-research/ratchet/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
)

const (
	defaultAddr  = "127.0.0.1:2389"
	defaultLimit = 50
	maxLimit     = 500
)

// Server is the ratchet run browser.
type Server struct {
	index      *history.Index
	outputRoot string
	router     chi.Router
	addr       string
	logger     *log.Logger
}

// ServerConfig holds the configuration for the web server.
type ServerConfig struct {
	Index      *history.Index
	OutputRoot string // root of per-branch run directories, used for live status
	Addr       string      // listen address (default: "127.0.0.1:2389")
	Logger     *log.Logger // access and error log (default: log.Default())
}

// NewServer creates a Server with the given configuration.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("Index must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	s := &Server{
		index:      cfg.Index,
		outputRoot: cfg.OutputRoot,
		addr:       cfg.Addr,
		logger:     cfg.Logger,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/runs", s.handleRunList)
	r.Route("/runs/{runID}", func(r chi.Router) {
		r.Get("/", s.handleRunGet)
		r.Get("/report", s.handleRunReport)
		r.Get("/iterations/{iteration}/steps/{stepID}", s.handleStepArtifacts)
		r.Get("/iterations/{iteration}/steps/{stepID}/{file}", s.handleStepArtifact)
	})
	r.Get("/branches/{branch}/live", s.handleLive)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRunList returns run summaries, newest first. Supports ?branch= and ?limit=.
func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLimit)
	}

	runs, err := s.index.List(r.URL.Query().Get("branch"), limit)
	if err != nil {
		s.logger.Printf("component=web action=list_runs err=%v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRunReport renders the run report as HTML, or Markdown with ?format=md.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	rd := s.artifactDir(run.RunID)

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(report.Markdown(run, rd)))
		return
	}
	page, err := report.HTML(run, rd)
	if err != nil {
		s.logger.Printf("component=web action=render_report run=%s err=%v", run.RunID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

// handleLive serves the live.json snapshot of the branch's current run.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.outputRoot == "" {
		http.Error(w, "live status not configured", http.StatusNotFound)
		return
	}
	slug := pipeline.BranchSlug(chi.URLParam(r, "branch"))
	data, err := os.ReadFile(filepath.Join(s.outputRoot, slug, pipeline.LiveStateFile))
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "no live status for branch", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Printf("component=web action=read_live branch=%s err=%v", slug, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleStepArtifacts lists the files one step left in its directory.
func (s *Server) handleStepArtifacts(w http.ResponseWriter, r *http.Request) {
	rd, iteration, stepID, ok := s.stepArtifactTarget(w, r)
	if !ok {
		return
	}
	names, err := rd.ListStepArtifacts(iteration, stepID)
	if err != nil {
		s.logger.Printf("component=web action=list_artifacts step=%s err=%v", stepID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if names == nil {
		http.Error(w, "no artifacts for step", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"iteration": iteration, "step_id": stepID, "files": names})
}

// handleStepArtifact serves one artifact file, e.g. summary.txt or status.json.
func (s *Server) handleStepArtifact(w http.ResponseWriter, r *http.Request) {
	rd, iteration, stepID, ok := s.stepArtifactTarget(w, r)
	if !ok {
		return
	}
	file := chi.URLParam(r, "file")
	if !safeName(file) {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}
	data, err := rd.ReadStepArtifact(iteration, stepID, file)
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Printf("component=web action=read_artifact step=%s file=%s err=%v", stepID, file, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	ct := "text/plain; charset=utf-8"
	if filepath.Ext(file) == ".json" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(data)
}

// stepArtifactTarget resolves the run directory, iteration, and step of an
// artifact request, writing the error response itself when it cannot.
func (s *Server) stepArtifactTarget(w http.ResponseWriter, r *http.Request) (*pipeline.RunDirectory, int, string, bool) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return nil, 0, "", false
	}
	iteration, err := strconv.Atoi(chi.URLParam(r, "iteration"))
	if err != nil || iteration < 0 {
		http.Error(w, "iteration must be a non-negative integer", http.StatusBadRequest)
		return nil, 0, "", false
	}
	stepID := chi.URLParam(r, "stepID")
	if !safeName(stepID) {
		http.Error(w, "invalid step id", http.StatusBadRequest)
		return nil, 0, "", false
	}
	rd := s.artifactDir(run.RunID)
	if rd == nil {
		http.Error(w, "artifacts were replaced by a newer run of the branch", http.StatusGone)
		return nil, 0, "", false
	}
	return rd, iteration, stepID, true
}

// safeName reports whether name is a single path element.
func safeName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

// loadRun validates the runID URL parameter and fetches the record. It
// writes the error response itself and reports whether to continue.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*pipeline.PipelineRun, bool) {
	runID := chi.URLParam(r, "runID")
	if _, err := ulid.ParseStrict(runID); err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return nil, false
	}
	run, err := s.index.Get(runID)
	if errors.Is(err, history.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.logger.Printf("component=web action=get_run run=%s err=%v", runID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

// artifactDir returns the run directory holding runID's step artifacts, or
// nil when that directory has since been reused by a newer run.
func (s *Server) artifactDir(runID string) *pipeline.RunDirectory {
	summary, err := s.index.Lookup(runID)
	if err != nil || summary.ResultsPath == "" {
		return nil
	}
	current, err := pipeline.LoadRun(summary.ResultsPath)
	if err != nil || current.RunID != runID {
		return nil
	}
	return &pipeline.RunDirectory{BaseDir: filepath.Dir(summary.ResultsPath)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("component=web action=encode_json err=%v", err)
	}
}
