package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobeya/studypartner/internal/domain"
	"github.com/kobeya/studypartner/internal/sm2"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestWithPragmas(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_time_format=sqlite", withPragmas(":memory:"))
	assert.Equal(t, "a.db?cache=shared&_pragma=foreign_keys(1)&_time_format=sqlite", withPragmas("a.db?cache=shared"))
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_time_format=sqlite", withPragmas("a.db?_pragma=foreign_keys(1)&_time_format=sqlite"))
}

func TestWords(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	w := domain.VocabularyWord{
		Word:      "comprehend",
		CEFR:      domain.C1,
		ZipfScore: ptr(2.8),
	}
	require.NoError(t, db.UpsertWord(ctx, &w))
	require.NotZero(t, w.ID)
	assert.Equal(t, 5, w.CEFRNumeric)

	t.Run("upsert keeps id and definition", func(t *testing.T) {
		require.NoError(t, db.SetDefinition(ctx, w.ID, "to understand"))

		again := domain.VocabularyWord{Word: "comprehend", CEFR: domain.B2, InNAWL: true}
		require.NoError(t, db.UpsertWord(ctx, &again))
		assert.Equal(t, w.ID, again.ID)

		got, err := db.GetWord(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.B2, got.CEFR)
		assert.Equal(t, 4, got.CEFRNumeric)
		assert.True(t, got.InNAWL)
		require.NotNil(t, got.Definition)
		assert.Equal(t, "to understand", *got.Definition)
	})

	t.Run("difficulty", func(t *testing.T) {
		require.NoError(t, db.SetDifficulty(ctx, w.ID, 75, true))
		got, err := db.GetWord(ctx, w.ID)
		require.NoError(t, err)
		require.NotNil(t, got.DifficultyScore)
		assert.Equal(t, 75, *got.DifficultyScore)
		assert.True(t, got.ShouldAnnotate)

		err = db.SetDifficulty(ctx, 9999, 10, false)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("search", func(t *testing.T) {
		other := domain.VocabularyWord{Word: "compare", CEFR: domain.A2}
		require.NoError(t, db.UpsertWord(ctx, &other))

		words, err := db.SearchWords(ctx, "COMP", 10)
		require.NoError(t, err)
		require.Len(t, words, 2)
		assert.Equal(t, "compare", words[0].Word)

		words, err = db.SearchWords(ctx, "hend", 10)
		require.NoError(t, err)
		assert.Len(t, words, 1)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := db.GetWord(ctx, 9999)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.InsertSource(ctx, "/lists/eiken", SourceLocal)
	require.NoError(t, err)

	src, err := db.FindSourceByPath(ctx, "/lists/eiken")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, id, src.ID)
	assert.Nil(t, src.LastScanned)

	missing, err := db.FindSourceByPath(ctx, "/nowhere")
	require.NoError(t, err)
	assert.Nil(t, missing)

	scanned := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpdateSourceLastScanned(ctx, id, scanned))

	all, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].LastScanned)
	assert.True(t, scanned.Equal(*all[0].LastScanned))

	w := domain.VocabularyWord{Word: "bridge", CEFR: domain.B1, SourceID: &id}
	require.NoError(t, db.UpsertWord(ctx, &w))
	attached, err := db.ListWordsBySource(ctx, id)
	require.NoError(t, err)
	assert.Len(t, attached, 1)

	t.Run("delete detaches words", func(t *testing.T) {
		require.NoError(t, db.DeleteSource(ctx, id))

		got, err := db.GetWord(ctx, w.ID)
		require.NoError(t, err)
		assert.Nil(t, got.SourceID)

		assert.True(t, errors.Is(db.DeleteSource(ctx, id), ErrNotFound))
	})
}

func TestReviewCards(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	learner, err := db.EnsureLearner(ctx, "hana")
	require.NoError(t, err)
	assert.Nil(t, learner.Age)

	word := domain.VocabularyWord{Word: "environment", CEFR: domain.B1}
	require.NoError(t, db.UpsertWord(ctx, &word))

	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	sched := &sm2.Scheduler{Params: sm2.DefaultParams(), Now: func() time.Time { return now }}

	row := &ReviewCard{LearnerID: "hana", WordID: word.ID}
	row.SetCard(sched.CreateInitialCard())

	created, err := db.CreateCardIfMissing(ctx, row)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = db.CreateCardIfMissing(ctx, row)
	require.NoError(t, err)
	assert.False(t, created, "second enrollment must not reset the card")

	due, err := db.ListDueCards(ctx, "hana", now)
	require.NoError(t, err)
	assert.Empty(t, due, "a new card is due tomorrow")

	due, err = db.ListDueCards(ctx, "hana", now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, due, 1)

	ev := &domain.ReviewEvent{
		ID:        uuid.NewString(),
		LearnerID: "hana",
		WordID:    word.ID,
		Quality:   int(sm2.Perfect),
		LatencyMS: ptr(int64(1800)),
		Correct:   true,
		Timestamp: now,
	}
	perfect := func(c *ReviewCard) (*domain.ReviewEvent, error) {
		next, err := sched.UpdateCard(c.Card(), sm2.Perfect, 1)
		if err != nil {
			return nil, err
		}
		c.SetCard(next)
		return ev, nil
	}
	updated, err := db.RecordReview(ctx, "hana", word.ID, perfect)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Repetitions)

	got, err := db.GetCard(ctx, "hana", word.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Repetitions)
	require.NotNil(t, got.LastQuality)
	assert.Equal(t, 5, *got.LastQuality)
	require.NotNil(t, got.LastReview)
	assert.True(t, now.Equal(*got.LastReview))

	card := got.Card()
	require.NotNil(t, card.LastQuality)
	assert.Equal(t, sm2.Perfect, *card.LastQuality)

	events, err := db.ListEvents(ctx, "hana", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)
	assert.True(t, events[0].Correct)
	require.NotNil(t, events[0].LatencyMS)
	assert.Equal(t, int64(1800), *events[0].LatencyMS)

	t.Run("failed event rolls back the card", func(t *testing.T) {
		before, err := db.GetCard(ctx, "hana", word.ID)
		require.NoError(t, err)

		dup := *ev // same primary key
		_, err = db.RecordReview(ctx, "hana", word.ID, func(c *ReviewCard) (*domain.ReviewEvent, error) {
			c.Repetitions = 7
			return &dup, nil
		})
		require.Error(t, err)

		after, err := db.GetCard(ctx, "hana", word.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Repetitions, after.Repetitions)
	})

	t.Run("review error leaves the card untouched", func(t *testing.T) {
		before, err := db.GetCard(ctx, "hana", word.ID)
		require.NoError(t, err)

		_, err = db.RecordReview(ctx, "hana", word.ID, func(c *ReviewCard) (*domain.ReviewEvent, error) {
			c.Repetitions = 9
			return nil, sm2.ErrInvalidQuality
		})
		assert.True(t, errors.Is(err, sm2.ErrInvalidQuality))

		after, err := db.GetCard(ctx, "hana", word.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Repetitions, after.Repetitions)
	})

	t.Run("review of a missing card", func(t *testing.T) {
		_, err := db.RecordReview(ctx, "hana", 9999, func(*ReviewCard) (*domain.ReviewEvent, error) {
			t.Fatal("review must not run without a card")
			return nil, nil
		})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("missing card", func(t *testing.T) {
		_, err := db.GetCard(ctx, "hana", 9999)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestLearners(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	exam := time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC)
	l := &domain.Learner{ID: "ken", Age: ptr(11), ExamDate: &exam}
	require.NoError(t, db.UpsertLearner(ctx, l))

	got, err := db.GetLearner(ctx, "ken")
	require.NoError(t, err)
	require.NotNil(t, got.Age)
	assert.Equal(t, 11, *got.Age)
	require.NotNil(t, got.ExamDate)
	assert.True(t, exam.Equal(*got.ExamDate))

	_, err = db.GetLearner(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	vec := []float32{0.25, -1, 3.5}
	require.NoError(t, db.SetEmbedding(ctx, "k1", "text-embedding-3-small", vec, now, time.Hour))

	got, ok, err := db.GetEmbedding(ctx, "k1", now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vec, got)

	_, ok, err = db.GetEmbedding(ctx, "k1", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "expired entries are not returned")

	n, err := db.DeleteExpiredEmbeddings(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAudits(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	a := &SimilarityAudit{
		ID:             uuid.NewString(),
		TextHash:       "abc",
		CorpusSize:     2,
		Score:          92,
		Recommendation: "approve",
		Verdict:        `{"safe":true}`,
	}
	require.NoError(t, db.InsertAudit(ctx, a))

	n, err := db.CountAudits(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
