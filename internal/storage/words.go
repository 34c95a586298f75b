package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kobeya/studypartner/internal/domain"
)

const wordColumns = `id, word, part_of_speech, cefr_level, cefr_numeric, frequency_rank, zipf_score,
	in_ngsl, in_nawl, katakana_loanword, false_cognate, l1_interference_risk,
	definition, difficulty_score, should_annotate, source_id, created_at, updated_at`

// UpsertWord inserts a word or updates the existing (word, part_of_speech)
// row. An empty definition never overwrites a stored one. w.ID and the
// timestamps are filled in from the stored row.
func (db *DB) UpsertWord(ctx context.Context, w *domain.VocabularyWord) error {
	w.SyncCEFRNumeric()
	now := time.Now().UTC()

	err := db.conn.QueryRowxContext(ctx, `
		INSERT INTO words (
			word, part_of_speech, cefr_level, cefr_numeric, frequency_rank, zipf_score,
			in_ngsl, in_nawl, katakana_loanword, false_cognate, l1_interference_risk,
			definition, difficulty_score, should_annotate, source_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(word, part_of_speech) DO UPDATE SET
			cefr_level = excluded.cefr_level,
			cefr_numeric = excluded.cefr_numeric,
			frequency_rank = excluded.frequency_rank,
			zipf_score = excluded.zipf_score,
			in_ngsl = excluded.in_ngsl,
			in_nawl = excluded.in_nawl,
			katakana_loanword = excluded.katakana_loanword,
			false_cognate = excluded.false_cognate,
			l1_interference_risk = excluded.l1_interference_risk,
			definition = COALESCE(excluded.definition, words.definition),
			difficulty_score = COALESCE(excluded.difficulty_score, words.difficulty_score),
			should_annotate = excluded.should_annotate,
			source_id = COALESCE(excluded.source_id, words.source_id),
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`,
		w.Word, w.PartOfSpeech, w.CEFR, w.CEFRNumeric, w.FrequencyRank, w.ZipfScore,
		w.InNGSL, w.InNAWL, w.KatakanaLoanword, w.FalseCognate, w.L1InterferenceRisk,
		w.Definition, w.DifficultyScore, w.ShouldAnnotate, w.SourceID, now, now,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert word %q: %w", w.Word, err)
	}
	return nil
}

// GetWord returns a word by ID.
func (db *DB) GetWord(ctx context.Context, id int64) (*domain.VocabularyWord, error) {
	var w domain.VocabularyWord
	err := db.conn.GetContext(ctx, &w, `SELECT `+wordColumns+` FROM words WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("word %d", id))
	}
	return &w, nil
}

// SearchWords returns words whose surface form contains query, ordered
// alphabetically. An empty query lists all words.
func (db *DB) SearchWords(ctx context.Context, query string, limit int) ([]domain.VocabularyWord, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.ToLower(query) + "%"

	var words []domain.VocabularyWord
	err := db.conn.SelectContext(ctx, &words, `
		SELECT `+wordColumns+` FROM words
		WHERE LOWER(word) LIKE ?
		ORDER BY word, part_of_speech
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search words: %w", err)
	}
	return words, nil
}

// ListWordsBySource returns every word attached to a wordlist source.
func (db *DB) ListWordsBySource(ctx context.Context, sourceID int64) ([]domain.VocabularyWord, error) {
	var words []domain.VocabularyWord
	err := db.conn.SelectContext(ctx, &words,
		`SELECT `+wordColumns+` FROM words WHERE source_id = ? ORDER BY id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get words for source ID %d: %w", sourceID, err)
	}
	return words, nil
}

// DetachWord clears a word's source. Words are never deleted because
// learners may still be reviewing them.
func (db *DB) DetachWord(ctx context.Context, id int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE words SET source_id = NULL, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to detach word %d: %w", id, err)
	}
	return nil
}

// SetDifficulty writes a computed difficulty score back onto a word.
func (db *DB) SetDifficulty(ctx context.Context, id int64, score int, annotate bool) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE words SET difficulty_score = ?, should_annotate = ?, updated_at = ?
		WHERE id = ?
	`, score, annotate, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set difficulty for word %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("word %d", id))
}

// SetDefinition stores a generated or edited definition.
func (db *DB) SetDefinition(ctx context.Context, id int64, definition string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE words SET definition = ?, updated_at = ? WHERE id = ?`, definition, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set definition for word %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("word %d", id))
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func expectOne(res rowsAffecter, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
