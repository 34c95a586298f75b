package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kobeya/studypartner/internal/difficulty"
	"github.com/kobeya/studypartner/internal/domain"
)

func (s *Server) handleSearchWords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 50)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		words, err := s.DB.SearchWords(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if words == nil {
			words = []domain.VocabularyWord{}
		}
		writeJSON(w, http.StatusOK, words)
	}
}

func (s *Server) handleGetWord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		word, err := s.DB.GetWord(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, word)
	}
}

type difficultyResponse struct {
	WordID int64            `json:"word_id,omitempty"`
	Score  difficulty.Score `json:"score"`
}

// handleRecomputeDifficulty scores a stored word and writes the result back.
func (s *Server) handleRecomputeDifficulty() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		word, err := s.DB.GetWord(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		score := s.Scorer.CalculateDifficulty(*word)
		if err := s.DB.SetDifficulty(r.Context(), id, score.Final, score.ShouldAnnotate); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, difficultyResponse{WordID: id, Score: score})
	}
}

type scoreRequest struct {
	Word               string   `json:"word" validate:"required"`
	PartOfSpeech       string   `json:"part_of_speech"`
	CEFR               string   `json:"cefr_level" validate:"required"`
	FrequencyRank      *int     `json:"frequency_rank" validate:"omitempty,gt=0"`
	ZipfScore          *float64 `json:"zipf_score" validate:"omitempty,gte=0,lte=8"`
	InNGSL             bool     `json:"in_ngsl"`
	InNAWL             bool     `json:"in_nawl"`
	KatakanaLoanword   bool     `json:"katakana_loanword"`
	FalseCognate       bool     `json:"false_cognate"`
	L1InterferenceRisk bool     `json:"l1_interference_risk"`
}

// handleScoreWord scores a word that need not be stored.
func (s *Server) handleScoreWord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
		level, err := domain.ParseCEFR(req.CEFR)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}

		word := domain.VocabularyWord{
			Word:               req.Word,
			PartOfSpeech:       req.PartOfSpeech,
			CEFR:               level,
			FrequencyRank:      req.FrequencyRank,
			ZipfScore:          req.ZipfScore,
			InNGSL:             req.InNGSL,
			InNAWL:             req.InNAWL,
			KatakanaLoanword:   req.KatakanaLoanword,
			FalseCognate:       req.FalseCognate,
			L1InterferenceRisk: req.L1InterferenceRisk,
		}
		word.SyncCEFRNumeric()
		writeJSON(w, http.StatusOK, difficultyResponse{Score: s.Scorer.CalculateDifficulty(word)})
	}
}

// handleGenerateDefinition asks the LLM for a definition and stores it.
func (s *Server) handleGenerateDefinition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Definer == nil {
			writeError(w, http.StatusServiceUnavailable, "definition generation is not configured")
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		word, err := s.DB.GetWord(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		def, err := s.Definer.Define(r.Context(), *word)
		if err != nil {
			slog.Error("Failed to generate definition", "word", word.Word, "error", err)
			writeError(w, http.StatusBadGateway, "definition provider failed")
			return
		}
		if err := s.DB.SetDefinition(r.Context(), id, def); err != nil {
			s.fail(w, r, err)
			return
		}
		word.Definition = &def
		writeJSON(w, http.StatusOK, word)
	}
}
