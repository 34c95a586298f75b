package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kobeya/studypartner/internal/domain"
	"github.com/kobeya/studypartner/internal/sm2"
	"github.com/kobeya/studypartner/internal/study"
)

type learnerRequest struct {
	Age      *int   `json:"age" validate:"omitempty,gte=0,lte=120"`
	ExamDate string `json:"exam_date" validate:"omitempty,datetime=2006-01-02"`
}

func (s *Server) handlePutLearner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.learnerID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var req learnerRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}

		learner := &domain.Learner{ID: id, Age: req.Age}
		if req.ExamDate != "" {
			d, err := time.Parse(time.DateOnly, req.ExamDate)
			if err != nil {
				s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
				return
			}
			learner.ExamDate = &d
		}
		if err := s.DB.UpsertLearner(r.Context(), learner); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, learner)
	}
}

type enrollRequest struct {
	WordIDs []int64 `json:"word_ids" validate:"required,min=1,max=1000,dive,gt=0"`
}

func (s *Server) handleEnroll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.learnerID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var req enrollRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
		created, err := s.Study.Enroll(r.Context(), id, req.WordIDs)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"created": created})
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.learnerID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		wordID, err := pathID(r, "word")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		card, err := s.Study.Card(r.Context(), id, wordID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.learnerID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items, err := s.Study.Due(r.Context(), id, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if items == nil {
			items = []study.DueItem{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

type reviewRequest struct {
	WordID    int64  `json:"word_id" validate:"required,gt=0"`
	Quality   *int   `json:"quality" validate:"required,gte=0,lte=5"`
	LatencyMS *int64 `json:"latency_ms" validate:"omitempty,gte=0"`
}

func (s *Server) handleReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.learnerID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var req reviewRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
		card, err := s.Study.Review(r.Context(), id, req.WordID, sm2.Quality(*req.Quality), req.LatencyMS)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.learnerID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		stats, err := s.Study.Stats(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
