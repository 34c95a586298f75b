package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kobeya/studypartner/internal/domain"
)

// UpsertLearner creates or updates a learner's age and exam date.
func (db *DB) UpsertLearner(ctx context.Context, l *domain.Learner) error {
	now := time.Now().UTC()
	var examDate *time.Time
	if l.ExamDate != nil {
		d := l.ExamDate.UTC()
		examDate = &d
	}

	err := db.conn.QueryRowxContext(ctx, `
		INSERT INTO learners (id, age, exam_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			age = excluded.age,
			exam_date = excluded.exam_date,
			updated_at = excluded.updated_at
		RETURNING created_at, updated_at
	`, l.ID, l.Age, examDate, now, now).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert learner %s: %w", l.ID, err)
	}
	return nil
}

// EnsureLearner returns the learner, creating an empty profile first if
// none exists.
func (db *DB) EnsureLearner(ctx context.Context, id string) (*domain.Learner, error) {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO learners (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create learner %s: %w", id, err)
	}
	return db.GetLearner(ctx, id)
}

// GetLearner returns a learner by ID.
func (db *DB) GetLearner(ctx context.Context, id string) (*domain.Learner, error) {
	var l domain.Learner
	err := db.conn.GetContext(ctx, &l,
		`SELECT id, age, exam_date, created_at, updated_at FROM learners WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "learner "+id)
	}
	return &l, nil
}
