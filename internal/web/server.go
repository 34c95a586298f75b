// Package web serves the JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/kobeya/studypartner/internal/difficulty"
	"github.com/kobeya/studypartner/internal/domain"
	"github.com/kobeya/studypartner/internal/similarity"
	"github.com/kobeya/studypartner/internal/sm2"
	"github.com/kobeya/studypartner/internal/storage"
	"github.com/kobeya/studypartner/internal/study"
)

// maxBodyBytes bounds request bodies; similarity corpora are the largest.
const maxBodyBytes = 4 << 20

// Definer writes learner-facing definitions.
type Definer interface {
	Define(ctx context.Context, word domain.VocabularyWord) (string, error)
}

// Deps holds the dependencies for the HTTP server. Definer may be nil when
// no LLM provider is configured.
type Deps struct {
	DB       *storage.DB
	Scorer   *difficulty.Scorer
	Study    *study.Service
	Checker  *similarity.Checker
	Definer  Definer
	ReposDir string
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	Deps
	router   *http.ServeMux
	validate *validator.Validate
}

// NewServer creates and configures a new server.
func NewServer(d Deps) *Server {
	s := &Server{
		Deps:     d,
		router:   http.NewServeMux(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	s.router.HandleFunc("GET /api/words", s.handleSearchWords())
	s.router.HandleFunc("GET /api/words/{id}", s.handleGetWord())
	s.router.HandleFunc("POST /api/words/{id}/difficulty", s.handleRecomputeDifficulty())
	s.router.HandleFunc("POST /api/words/{id}/definition", s.handleGenerateDefinition())
	s.router.HandleFunc("POST /api/difficulty", s.handleScoreWord())

	s.router.HandleFunc("PUT /api/learners/{learner}", s.handlePutLearner())
	s.router.HandleFunc("POST /api/learners/{learner}/cards", s.handleEnroll())
	s.router.HandleFunc("GET /api/learners/{learner}/cards/{word}", s.handleGetCard())
	s.router.HandleFunc("GET /api/learners/{learner}/reviews/due", s.handleDue())
	s.router.HandleFunc("POST /api/learners/{learner}/reviews", s.handleReview())
	s.router.HandleFunc("GET /api/learners/{learner}/stats", s.handleStats())

	s.router.HandleFunc("POST /api/similarity/validate", s.handleValidateSimilarity())

	s.router.HandleFunc("GET /api/sources", s.handleGetSources())
	s.router.HandleFunc("POST /api/sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /api/sync", s.handlePostSync())
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.Ping(r.Context()); err != nil {
			slog.Error("Health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// errBadRequest marks client errors found while reading a request.
var errBadRequest = errors.New("bad request")

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, r.PathValue(name))
	}
	return id, nil
}

func (s *Server) learnerID(r *http.Request) (string, error) {
	id := r.PathValue("learner")
	if err := s.validate.Var(id, "required,max=64,printascii"); err != nil {
		return "", fmt.Errorf("%w: invalid learner id", errBadRequest)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, v)
	}
	return n, nil
}

// fail maps err to a status code, logs server-side failures and writes the
// error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, sm2.ErrInvalidQuality):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, similarity.ErrEmbedding):
		status = http.StatusBadGateway
	}

	msg := err.Error()
	if status >= 500 {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
