package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kobeya/studypartner/internal/gitsource"
	"github.com/kobeya/studypartner/internal/storage"
	"github.com/kobeya/studypartner/internal/sync"
)

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.DB.GetAllSources(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if sources == nil {
			sources = []storage.Source{}
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

type sourceRequest struct {
	Path string `json:"path" validate:"required"`
}

// handlePostSource registers a local directory or git repository.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}

		existing, err := s.DB.FindSourceByPath(r.Context(), req.Path)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "source already exists")
			return
		}

		sourceType := storage.SourceLocal
		if gitsource.IsGitURL(req.Path) {
			if _, err := gitsource.LocalPath(s.ReposDir, req.Path); err != nil {
				s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
				return
			}
			sourceType = storage.SourceGit
		}
		id, err := s.DB.InsertSource(r.Context(), req.Path, sourceType)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, storage.Source{ID: id, Path: req.Path, Type: sourceType})
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.DB.DeleteSource(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync runs a sync in the foreground and returns its report.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := sync.RunSync(r.Context(), s.DB, s.Scorer, s.ReposDir)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		slog.Info("Manual sync finished", "words", report.Words, "errors", len(report.Errors))
		writeJSON(w, http.StatusOK, report)
	}
}
