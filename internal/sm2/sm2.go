package sm2

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Quality is the learner's recall rating for a review, from 0 to 5.
type Quality int

const (
	Blackout          Quality = 0 // complete failure to recall
	Incorrect         Quality = 1 // wrong, remembered on seeing the answer
	IncorrectFamiliar Quality = 2 // wrong, but the answer felt familiar
	CorrectDifficult  Quality = 3 // right with serious effort
	CorrectHesitation Quality = 4 // right after hesitation
	Perfect           Quality = 5
)

// PassThreshold is the lowest quality that counts as a successful recall.
const PassThreshold = CorrectDifficult

const (
	InitialEasiness = 2.5
	MinEasiness     = 1.3
	InitialInterval = 1.0
)

// ErrInvalidQuality is returned when a quality outside 0..5 is supplied.
var ErrInvalidQuality = errors.New("quality must be between 0 and 5")

// Valid reports whether q is in 0..5.
func (q Quality) Valid() bool {
	return q >= Blackout && q <= Perfect
}

// Correct reports whether q counts as a successful recall.
func (q Quality) Correct() bool {
	return q >= PassThreshold
}

// Params holds scheduler settings.
type Params struct {
	// SecondInterval is the interval after the second consecutive success.
	SecondInterval float64
	// MaxIntervalDays caps the interval; zero means no cap.
	MaxIntervalDays float64
}

// DefaultParams returns the standard settings.
func DefaultParams() Params {
	return Params{
		SecondInterval:  3,
		MaxIntervalDays: 365,
	}
}

// Card is the SM-2 memory state of one learner-word pair.
type Card struct {
	Easiness    float64   `json:"easiness"`
	Interval    float64   `json:"interval"`
	Repetitions int       `json:"repetitions"`
	NextReview  time.Time `json:"next_review"`
	LastReview  time.Time `json:"last_review,omitempty"`
	LastQuality *Quality  `json:"last_quality,omitempty"`
}

// Scheduler applies SM-2 transitions relative to a clock.
type Scheduler struct {
	Params Params
	Now    func() time.Time
}

// New returns a Scheduler using the wall clock.
func New(p Params) *Scheduler {
	return &Scheduler{Params: p, Now: time.Now}
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Today returns midnight of the scheduler's current date.
func (s *Scheduler) Today() time.Time {
	return startOfDay(s.now())
}

// CreateInitialCard returns the state of a word entering the study queue.
func (s *Scheduler) CreateInitialCard() Card {
	return Card{
		Easiness:    InitialEasiness,
		Interval:    InitialInterval,
		Repetitions: 0,
		NextReview:  s.Today().AddDate(0, 0, 1),
	}
}

// UpdateEasiness applies the SM-2 easiness update for quality q.
func UpdateEasiness(ef float64, q Quality) float64 {
	d := 5 - float64(q)
	return math.Max(MinEasiness, ef+(0.1-d*(0.08+d*0.02)))
}

// UpdateCard records a review of quality q. multiplier scales the interval
// of a successful review; values <= 0 are treated as 1.
func (s *Scheduler) UpdateCard(card Card, q Quality, multiplier float64) (Card, error) {
	if !q.Valid() {
		return card, fmt.Errorf("%w: got %d", ErrInvalidQuality, q)
	}
	if card.Easiness == 0 {
		card.Easiness = InitialEasiness
	}
	if multiplier <= 0 {
		multiplier = 1
	}

	now := s.now()
	next := card
	next.Easiness = UpdateEasiness(card.Easiness, q)
	next.LastReview = now
	next.LastQuality = &q

	if !q.Correct() {
		// A failed recall discards all accumulated spacing.
		next.Repetitions = 0
		next.Interval = InitialInterval
	} else {
		next.Repetitions = card.Repetitions + 1
		var interval float64
		switch next.Repetitions {
		case 1:
			interval = InitialInterval
		case 2:
			interval = s.Params.SecondInterval
		default:
			interval = math.Max(card.Interval, InitialInterval) * next.Easiness
		}
		interval *= multiplier
		if interval < InitialInterval {
			interval = InitialInterval
		}
		if s.Params.MaxIntervalDays > 0 && interval > s.Params.MaxIntervalDays {
			interval = s.Params.MaxIntervalDays
		}
		next.Interval = interval
	}

	next.NextReview = NextDueDate(startOfDay(now), next.Interval)
	return next, nil
}

// NextDueDate returns today plus the interval rounded up to whole days.
func NextDueDate(today time.Time, interval float64) time.Time {
	return today.AddDate(0, 0, int(math.Ceil(interval)))
}

// IsDue reports whether the card should be reviewed at now.
func (c Card) IsDue(now time.Time) bool {
	return !c.NextReview.After(now)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
