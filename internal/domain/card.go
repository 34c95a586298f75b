package domain

import "time"

// ReviewEvent records a single review of a word by a learner.
// Events are append-only; Correct is derived from Quality >= 3.
type ReviewEvent struct {
	ID        string    `json:"id" db:"id"`
	LearnerID string    `json:"learner_id" db:"learner_id"`
	WordID    int64     `json:"word_id" db:"word_id"`
	Quality   int       `json:"quality" db:"quality"`
	LatencyMS *int64    `json:"latency_ms,omitempty" db:"latency_ms"`
	Correct   bool      `json:"correct" db:"correct"`
	Timestamp time.Time `json:"timestamp" db:"reviewed_at"`
}

// Learner holds the per-learner inputs to interval scheduling.
type Learner struct {
	ID        string     `json:"id" db:"id"`
	Age       *int       `json:"age,omitempty" db:"age"`
	ExamDate  *time.Time `json:"exam_date,omitempty" db:"exam_date"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
