package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kobeya/studypartner/internal/storage"
	"github.com/kobeya/studypartner/internal/textkey"
)

type validateRequest struct {
	Text   string   `json:"text" validate:"required"`
	Corpus []string `json:"corpus" validate:"max=500"`
}

// handleValidateSimilarity checks generated text against a corpus and
// records the verdict for audit.
func (s *Server) handleValidateSimilarity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}

		verdict, err := s.Checker.Validate(r.Context(), req.Text, req.Corpus)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		body, err := json.Marshal(verdict)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		audit := &storage.SimilarityAudit{
			ID:             uuid.NewString(),
			TextHash:       textkey.Hash(req.Text),
			CorpusSize:     len(req.Corpus),
			Score:          verdict.Score,
			Recommendation: string(verdict.Recommendation),
			Verdict:        string(body),
		}
		if err := s.DB.InsertAudit(r.Context(), audit); err != nil {
			slog.Warn("Failed to record similarity audit", "error", err)
		}

		writeJSON(w, http.StatusOK, verdict)
	}
}
