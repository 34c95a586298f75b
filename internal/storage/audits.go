package storage

import (
	"context"
	"fmt"
	"time"
)

// SimilarityAudit records one copyright check of generated content.
type SimilarityAudit struct {
	ID             string    `db:"id"`
	TextHash       string    `db:"text_hash"`
	CorpusSize     int       `db:"corpus_size"`
	Score          float64   `db:"score"`
	Recommendation string    `db:"recommendation"`
	Verdict        string    `db:"verdict"`
	CreatedAt      time.Time `db:"created_at"`
}

// InsertAudit appends an audit row.
func (db *DB) InsertAudit(ctx context.Context, a *SimilarityAudit) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO similarity_audits (id, text_hash, corpus_size, score, recommendation, verdict, created_at)
		VALUES (:id, :text_hash, :corpus_size, :score, :recommendation, :verdict, :created_at)
	`, a)
	if err != nil {
		return fmt.Errorf("failed to insert similarity audit: %w", err)
	}
	return nil
}

// CountAudits returns the number of audits recorded for a text hash.
func (db *DB) CountAudits(ctx context.Context, textHash string) (int, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM similarity_audits WHERE text_hash = ?`, textHash); err != nil {
		return 0, fmt.Errorf("failed to count audits: %w", err)
	}
	return n, nil
}
