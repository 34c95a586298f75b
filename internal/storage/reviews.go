package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kobeya/studypartner/internal/domain"
	"github.com/kobeya/studypartner/internal/sm2"
)

// ReviewCard is the stored SM-2 state of one learner-word pair.
type ReviewCard struct {
	LearnerID    string     `db:"learner_id"`
	WordID       int64      `db:"word_id"`
	Easiness     float64    `db:"easiness"`
	IntervalDays float64    `db:"interval_days"`
	Repetitions  int        `db:"repetitions"`
	NextReview   time.Time  `db:"next_review"`
	LastReview   *time.Time `db:"last_review"`
	LastQuality  *int       `db:"last_quality"`
	CreatedAt    time.Time  `db:"created_at"`
}

// Card converts the row to scheduler state.
func (c ReviewCard) Card() sm2.Card {
	card := sm2.Card{
		Easiness:    c.Easiness,
		Interval:    c.IntervalDays,
		Repetitions: c.Repetitions,
		NextReview:  c.NextReview,
	}
	if c.LastReview != nil {
		card.LastReview = *c.LastReview
	}
	if c.LastQuality != nil {
		q := sm2.Quality(*c.LastQuality)
		card.LastQuality = &q
	}
	return card
}

// SetCard copies scheduler state onto the row.
func (c *ReviewCard) SetCard(card sm2.Card) {
	c.Easiness = card.Easiness
	c.IntervalDays = card.Interval
	c.Repetitions = card.Repetitions
	c.NextReview = card.NextReview
	c.LastReview = nil
	if !card.LastReview.IsZero() {
		t := card.LastReview
		c.LastReview = &t
	}
	c.LastQuality = nil
	if card.LastQuality != nil {
		q := int(*card.LastQuality)
		c.LastQuality = &q
	}
}

const cardColumns = `learner_id, word_id, easiness, interval_days, repetitions,
	next_review, last_review, last_quality, created_at`

// CreateCardIfMissing inserts a new card and reports whether it was created.
// An existing card for the same learner and word is left untouched.
func (db *DB) CreateCardIfMissing(ctx context.Context, c *ReviewCard) (bool, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, word_id) DO NOTHING
	`, c.LearnerID, c.WordID, c.Easiness, c.IntervalDays, c.Repetitions,
		c.NextReview.UTC(), utcPtr(c.LastReview), c.LastQuality, c.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to create card for word %d: %w", c.WordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// GetCard returns the card for a learner and word.
func (db *DB) GetCard(ctx context.Context, learnerID string, wordID int64) (*ReviewCard, error) {
	var c ReviewCard
	err := db.conn.GetContext(ctx, &c,
		`SELECT `+cardColumns+` FROM review_cards WHERE learner_id = ? AND word_id = ?`, learnerID, wordID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("card %s/%d", learnerID, wordID))
	}
	return &c, nil
}

// ListCards returns all of a learner's cards.
func (db *DB) ListCards(ctx context.Context, learnerID string) ([]ReviewCard, error) {
	var cards []ReviewCard
	err := db.conn.SelectContext(ctx, &cards,
		`SELECT `+cardColumns+` FROM review_cards WHERE learner_id = ? ORDER BY word_id`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards for learner %s: %w", learnerID, err)
	}
	return cards, nil
}

// ListDueCards returns the learner's cards whose next review is at or before now.
func (db *DB) ListDueCards(ctx context.Context, learnerID string, now time.Time) ([]ReviewCard, error) {
	var cards []ReviewCard
	err := db.conn.SelectContext(ctx, &cards, `
		SELECT `+cardColumns+` FROM review_cards
		WHERE learner_id = ? AND next_review <= ?
		ORDER BY next_review, word_id
	`, learnerID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list due cards for learner %s: %w", learnerID, err)
	}
	return cards, nil
}

// ReviewFunc computes a card's next state in place and returns the event
// that records the change.
type ReviewFunc func(c *ReviewCard) (*domain.ReviewEvent, error)

// RecordReview reads the card, applies review and writes the card and its
// event in one transaction, so a card changes exactly once per logged
// event even when reviews of the same card race.
func (db *DB) RecordReview(ctx context.Context, learnerID string, wordID int64, review ReviewFunc) (*ReviewCard, error) {
	var c ReviewCard
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &c,
			`SELECT `+cardColumns+` FROM review_cards WHERE learner_id = ? AND word_id = ?`, learnerID, wordID)
		if err != nil {
			return notFound(err, fmt.Sprintf("card %s/%d", learnerID, wordID))
		}
		ev, err := review(&c)
		if err != nil {
			return err
		}
		if err := updateCard(ctx, tx, &c); err != nil {
			return err
		}
		return insertEvent(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListEvents returns a learner's review events at or after since, oldest first.
func (db *DB) ListEvents(ctx context.Context, learnerID string, since time.Time) ([]domain.ReviewEvent, error) {
	var events []domain.ReviewEvent
	err := db.conn.SelectContext(ctx, &events, `
		SELECT id, learner_id, word_id, quality, latency_ms, correct, reviewed_at
		FROM review_events
		WHERE learner_id = ? AND reviewed_at >= ?
		ORDER BY reviewed_at, rowid
	`, learnerID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list review events for learner %s: %w", learnerID, err)
	}
	return events, nil
}

func updateCard(ctx context.Context, exec sqlx.ExecerContext, c *ReviewCard) error {
	res, err := exec.ExecContext(ctx, `
		UPDATE review_cards
		SET easiness = ?, interval_days = ?, repetitions = ?, next_review = ?, last_review = ?, last_quality = ?
		WHERE learner_id = ? AND word_id = ?
	`, c.Easiness, c.IntervalDays, c.Repetitions, c.NextReview.UTC(), utcPtr(c.LastReview), c.LastQuality,
		c.LearnerID, c.WordID)
	if err != nil {
		return fmt.Errorf("failed to update card %s/%d: %w", c.LearnerID, c.WordID, err)
	}
	return expectOne(res, fmt.Sprintf("card %s/%d", c.LearnerID, c.WordID))
}

func insertEvent(ctx context.Context, exec sqlx.ExecerContext, ev *domain.ReviewEvent) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO review_events (id, learner_id, word_id, quality, latency_ms, correct, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.LearnerID, ev.WordID, ev.Quality, ev.LatencyMS, ev.Correct, ev.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert review event: %w", err)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
