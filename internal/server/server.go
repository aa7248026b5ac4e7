// Package server exposes the resolution engine over HTTP.
//
// The API surface is deliberately small: POST /v1/check resolves one
// package identifier and returns the ranked result as JSON. The server is
// meant for sidecar or batch use, not as a public service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/purl"
)

// Resolver is the part of the engine the server needs.
type Resolver interface {
	Resolve(ctx context.Context, pkg purl.Package, opts check.Options) (*check.Result, error)
}

// Server handles HTTP requests against a shared engine.
type Server struct {
	resolver Resolver
	opts     check.Options
	logger   *log.Logger
}

// New creates a Server. opts is the baseline for every request; per-request
// fields (overrides) are layered on top.
func New(resolver Resolver, opts check.Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{resolver: resolver, opts: opts, logger: logger}
}

// Routes returns the chi router for the API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/check", s.handleCheck)
	return r
}

type checkRequest struct {
	// Package is the identifier to resolve, e.g. "pkg:pypi/requests".
	Package string `json:"package"`
	// MaxCandidates optionally truncates the ranked result.
	MaxCandidates int `json:"max_candidates,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	pkg, err := purl.Parse(req.Package)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	opts := s.opts
	if req.MaxCandidates > 0 {
		opts.MaxCandidates = req.MaxCandidates
	}

	res, err := s.resolver.Resolve(r.Context(), pkg, opts)
	if err != nil {
		if errors.Is(err, purl.ErrInvalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("resolution failed", "package", pkg.String(), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "resolution failed"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
