// Package study connects learners, their review cards and the SM-2
// scheduler.
package study

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kobeya/studypartner/internal/domain"
	"github.com/kobeya/studypartner/internal/sm2"
	"github.com/kobeya/studypartner/internal/storage"
)

// CardView is a card with its derived mastery.
type CardView struct {
	WordID       int64 `json:"word_id"`
	sm2.Card
	MasteryLevel int  `json:"mastery_level"`
	Mastered     bool `json:"mastered"`
}

func newCardView(row storage.ReviewCard) CardView {
	card := row.Card()
	return CardView{
		WordID:       row.WordID,
		Card:         card,
		MasteryLevel: sm2.MasteryLevel(card),
		Mastered:     sm2.IsMastered(card),
	}
}

// DueItem is a word waiting for review.
type DueItem struct {
	Word domain.VocabularyWord `json:"word"`
	Card CardView              `json:"card"`
}

// Service runs study operations against the store.
type Service struct {
	db    *storage.DB
	sched *sm2.Scheduler
}

// NewService returns a Service.
func NewService(db *storage.DB, sched *sm2.Scheduler) *Service {
	if sched.Now == nil {
		sched.Now = time.Now
	}
	return &Service{db: db, sched: sched}
}

// Enroll adds the words to the learner's queue and returns how many cards
// were created. Words already enrolled keep their progress.
func (s *Service) Enroll(ctx context.Context, learnerID string, wordIDs []int64) (int, error) {
	if _, err := s.db.EnsureLearner(ctx, learnerID); err != nil {
		return 0, err
	}

	created := 0
	for _, id := range wordIDs {
		if _, err := s.db.GetWord(ctx, id); err != nil {
			return created, err
		}
		row := &storage.ReviewCard{LearnerID: learnerID, WordID: id}
		row.SetCard(s.sched.CreateInitialCard())
		ok, err := s.db.CreateCardIfMissing(ctx, row)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// Review applies one recall of quality q to the learner's card for wordID
// and logs the event.
func (s *Service) Review(ctx context.Context, learnerID string, wordID int64, q sm2.Quality, latencyMS *int64) (*CardView, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: got %d", sm2.ErrInvalidQuality, q)
	}

	learner, err := s.db.GetLearner(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	now := s.sched.Now()
	multiplier := sm2.Multiplier(learner.Age, learner.ExamDate, now)
	row, err := s.db.RecordReview(ctx, learnerID, wordID, func(c *storage.ReviewCard) (*domain.ReviewEvent, error) {
		next, err := s.sched.UpdateCard(c.Card(), q, multiplier)
		if err != nil {
			return nil, err
		}
		c.SetCard(next)
		return &domain.ReviewEvent{
			ID:        uuid.NewString(),
			LearnerID: learnerID,
			WordID:    wordID,
			Quality:   int(q),
			LatencyMS: latencyMS,
			Correct:   q.Correct(),
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	view := newCardView(*row)
	return &view, nil
}

// Due returns up to limit cards due now in review order.
func (s *Service) Due(ctx context.Context, learnerID string, limit int) ([]DueItem, error) {
	now := s.sched.Now()
	rows, err := s.db.ListDueCards(ctx, learnerID, now)
	if err != nil {
		return nil, err
	}

	cards := make([]sm2.Card, len(rows))
	for i, r := range rows {
		cards[i] = r.Card()
	}
	rows, _ = sm2.SortDue(rows, cards, now, limit)

	items := make([]DueItem, 0, len(rows))
	for _, r := range rows {
		w, err := s.db.GetWord(ctx, r.WordID)
		if err != nil {
			return nil, err
		}
		items = append(items, DueItem{Word: *w, Card: newCardView(r)})
	}
	return items, nil
}

// Card returns one card with its mastery level.
func (s *Service) Card(ctx context.Context, learnerID string, wordID int64) (*CardView, error) {
	row, err := s.db.GetCard(ctx, learnerID, wordID)
	if err != nil {
		return nil, err
	}
	view := newCardView(*row)
	return &view, nil
}

// Stats summarizes a learner's progress.
type Stats struct {
	TotalCards      int     `json:"total_cards"`
	Due             int     `json:"due"`
	ReviewedToday   int     `json:"reviewed_today"`
	Mastered        int     `json:"mastered"`
	AverageEasiness float64 `json:"average_easiness"`
	// Accuracy is the share of correct reviews over the last AccuracyWindow.
	Accuracy   float64 `json:"accuracy"`
	StreakDays int     `json:"streak_days"`
}

// AccuracyWindow is the period accuracy is measured over.
const AccuracyWindow = 30 * 24 * time.Hour

// streakHorizon bounds how far back review history is read for streaks.
const streakHorizon = 365

// Stats computes the learner's progress summary.
func (s *Service) Stats(ctx context.Context, learnerID string) (*Stats, error) {
	if _, err := s.db.GetLearner(ctx, learnerID); err != nil {
		return nil, err
	}

	now := s.sched.Now()
	today := s.sched.Today()

	rows, err := s.db.ListCards(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	st := &Stats{TotalCards: len(rows)}
	var easiness float64
	for _, r := range rows {
		card := r.Card()
		easiness += card.Easiness
		if card.IsDue(now) {
			st.Due++
		}
		if sm2.IsMastered(card) {
			st.Mastered++
		}
	}
	if len(rows) > 0 {
		st.AverageEasiness = easiness / float64(len(rows))
	}

	events, err := s.db.ListEvents(ctx, learnerID, today.AddDate(0, 0, -streakHorizon))
	if err != nil {
		return nil, err
	}

	days := make(map[string]bool)
	var windowTotal, windowCorrect int
	for _, ev := range events {
		ts := ev.Timestamp.In(today.Location())
		days[dayOf(ts)] = true
		if !ts.Before(today) {
			st.ReviewedToday++
		}
		if now.Sub(ts) <= AccuracyWindow {
			windowTotal++
			if ev.Correct {
				windowCorrect++
			}
		}
	}
	if windowTotal > 0 {
		st.Accuracy = float64(windowCorrect) / float64(windowTotal)
	}
	st.StreakDays = streak(days, today)
	return st, nil
}

// streak counts consecutive review days ending today, or yesterday when
// nothing has been reviewed yet today.
func streak(days map[string]bool, today time.Time) int {
	d := today
	if !days[dayOf(d)] {
		d = d.AddDate(0, 0, -1)
	}
	n := 0
	for days[dayOf(d)] {
		n++
		d = d.AddDate(0, 0, -1)
	}
	return n
}

func dayOf(t time.Time) string {
	return t.Format(time.DateOnly)
}
