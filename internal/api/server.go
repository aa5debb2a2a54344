package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"prowfetch/internal/report"
)

// RunFunc produces a fresh report by running the whole crawl pipeline.
type RunFunc func(ctx context.Context) (*report.Report, error)

// Server serves the latest crawl report over HTTP. A cron entry keeps the
// cached report warm so page loads do not pay for a full crawl.
type Server struct {
	ctx    context.Context
	run    RunFunc
	router *chi.Mux
	cron   *cron.Cron

	mu      sync.RWMutex
	current *report.Report
}

// New creates a new report server instance. refreshSpec is a cron expression
// (or @every descriptor) for the background refresh; empty disables it.
func New(ctx context.Context, run RunFunc, refreshSpec string) (*Server, error) {
	s := &Server{
		ctx:    ctx,
		run:    run,
		router: chi.NewRouter(),
		cron:   cron.New(cron.WithLocation(time.UTC)),
	}

	// Set up middleware
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/", s.handleHTML)
	s.router.Get("/report.json", s.handleJSON)

	if refreshSpec != "" {
		if _, err := s.cron.AddFunc(refreshSpec, s.refresh); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start warms the report cache and begins the scheduled refreshes. The first
// crawl failing is fatal, matching the CLI behavior for an unreadable feed.
func (s *Server) Start() error {
	rep, err := s.run(s.ctx)
	if err != nil {
		return err
	}
	s.setReport(rep)

	s.cron.Start()
	return nil
}

// Stop halts the scheduled refreshes.
func (s *Server) Stop() {
	s.cron.Stop()
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) refresh() {
	log.Info().Msg("Refreshing crawl report...")
	rep, err := s.run(s.ctx)
	if err != nil {
		// keep serving the previous report rather than dropping it
		log.Error().Err(err).Msg("Scheduled report refresh failed")
		return
	}
	s.setReport(rep)
	log.Info().
		Int("failed", rep.Summary.FailedJobs).
		Msg("Report refresh complete")
}

func (s *Server) setReport(rep *report.Report) {
	s.mu.Lock()
	s.current = rep
	s.mu.Unlock()
}

func (s *Server) report() *report.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleHTML(w http.ResponseWriter, _ *http.Request) {
	rep := s.report()
	if rep == nil {
		http.Error(w, "report not ready yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := rep.HTML(w); err != nil {
		log.Error().Err(err).Msg("Could not render HTML report")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, _ *http.Request) {
	rep := s.report()
	if rep == nil {
		http.Error(w, "report not ready yet", http.StatusServiceUnavailable)
		return
	}
	serveJson(w, rep)
}

func serveJson(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		http.Error(w, "Failed to encode payload", http.StatusInternalServerError)
		log.Error().Err(err).Msg("JSON encoding issue")
	}
}
