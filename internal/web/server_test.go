package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobeya/studypartner/internal/difficulty"
	"github.com/kobeya/studypartner/internal/domain"
	"github.com/kobeya/studypartner/internal/similarity"
	"github.com/kobeya/studypartner/internal/sm2"
	"github.com/kobeya/studypartner/internal/storage"
	"github.com/kobeya/studypartner/internal/study"
)

type fakeDefiner struct {
	err error
}

func (f fakeDefiner) Define(_ context.Context, w domain.VocabularyWord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "definition of " + w.Word, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider unavailable")
}

type testServer struct {
	*Server
	db  *storage.DB
	now time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ts := &testServer{db: db, now: time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)}
	sched := &sm2.Scheduler{Params: sm2.DefaultParams(), Now: func() time.Time { return ts.now }}
	ts.Server = NewServer(Deps{
		DB:       db,
		Scorer:   difficulty.New(),
		Study:    study.NewService(db, sched),
		Checker:  similarity.New(nil, similarity.DefaultConfig()),
		Definer:  fakeDefiner{},
		ReposDir: t.TempDir(),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) addWord(t *testing.T, word string, level domain.CEFRLevel, zipf float64) int64 {
	t.Helper()
	w := domain.VocabularyWord{Word: word, CEFR: level, ZipfScore: &zipf}
	require.NoError(t, ts.db.UpsertWord(context.Background(), &w))
	return w.ID
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestWords(t *testing.T) {
	ts := newTestServer(t)
	id := ts.addWord(t, "comprehend", domain.C1, 2.8)

	t.Run("get", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/words/%d", id), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		w := decodeBody[domain.VocabularyWord](t, rec)
		assert.Equal(t, "comprehend", w.Word)
	})

	t.Run("missing and malformed ids", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/words/999", nil).Code)
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/words/abc", nil).Code)
	})

	t.Run("search", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/words?q=comp&limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]domain.VocabularyWord](t, rec), 1)

		rec = ts.do(t, http.MethodGet, "/api/words?q=zzz", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())

		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/words?limit=-1", nil).Code)
	})

	t.Run("recompute difficulty", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/words/%d/difficulty", id), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[difficultyResponse](t, rec)
		assert.Equal(t, 75, resp.Score.Final)
		assert.True(t, resp.Score.ShouldAnnotate)

		stored, err := ts.db.GetWord(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, stored.DifficultyScore)
		assert.Equal(t, 75, *stored.DifficultyScore)
	})

	t.Run("definition", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/words/%d/definition", id), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		w := decodeBody[domain.VocabularyWord](t, rec)
		require.NotNil(t, w.Definition)
		assert.Equal(t, "definition of comprehend", *w.Definition)

		ts.Definer = fakeDefiner{err: errors.New("timeout")}
		defer func() { ts.Definer = fakeDefiner{} }()
		rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/words/%d/definition", id), nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("definition not configured", func(t *testing.T) {
		ts.Definer = nil
		defer func() { ts.Definer = fakeDefiner{} }()
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/words/%d/definition", id), nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestScoreWord(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/difficulty", map[string]any{
		"word": "the", "cefr_level": "a1", "zipf_score": 7.9, "in_ngsl": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decodeBody[difficultyResponse](t, rec).Score.Final)

	rec = ts.do(t, http.MethodPost, "/api/difficulty", map[string]any{"word": "the", "cefr_level": "Z1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/difficulty", map[string]any{"cefr_level": "A1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLearnerReviewFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.addWord(t, "environment", domain.B1, 4.6)

	rec := ts.do(t, http.MethodPut, "/api/learners/hana", map[string]any{"age": 11, "exam_date": "2026-06-07"})
	require.Equal(t, http.StatusOK, rec.Code)
	learner := decodeBody[domain.Learner](t, rec)
	require.NotNil(t, learner.ExamDate)

	rec = ts.do(t, http.MethodPut, "/api/learners/hana", map[string]any{"exam_date": "June 7"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/learners/hana/cards", map[string]any{"word_ids": []int64{id}})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"created":1}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/learners/hana/cards", map[string]any{"word_ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/learners/hana/reviews/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	ts.now = ts.now.AddDate(0, 0, 1)
	rec = ts.do(t, http.MethodGet, "/api/learners/hana/reviews/due?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	due := decodeBody[[]study.DueItem](t, rec)
	require.Len(t, due, 1)
	assert.Equal(t, "environment", due[0].Word.Word)

	t.Run("quality is validated", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/learners/hana/reviews", map[string]any{"word_id": id, "quality": 6})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = ts.do(t, http.MethodPost, "/api/learners/hana/reviews", map[string]any{"word_id": id})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("quality zero is a valid review", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/learners/hana/reviews", map[string]any{"word_id": id, "quality": 0})
		require.Equal(t, http.StatusOK, rec.Code)
		card := decodeBody[study.CardView](t, rec)
		assert.Equal(t, 0, card.Repetitions)
		assert.Equal(t, 1.0, card.Interval)
	})

	t.Run("review", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/learners/hana/reviews", map[string]any{"word_id": id, "quality": 5, "latency_ms": 1200})
		require.Equal(t, http.StatusOK, rec.Code)
		card := decodeBody[study.CardView](t, rec)
		assert.Equal(t, 1, card.Repetitions)
		assert.Equal(t, 1, card.MasteryLevel)

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/learners/hana/cards/%d", id), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decodeBody[study.CardView](t, rec).Repetitions)
	})

	t.Run("unknown card", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/learners/ken/reviews", map[string]any{"word_id": id, "quality": 4})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/learners/hana/stats", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		st := decodeBody[study.Stats](t, rec)
		assert.Equal(t, 1, st.TotalCards)
		assert.Equal(t, 2, st.ReviewedToday)
		assert.Equal(t, 0.5, st.Accuracy)

		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/learners/nobody/stats", nil).Code)
	})
}

func TestValidateSimilarity(t *testing.T) {
	ts := newTestServer(t)
	corpus := []string{"Ken goes to the library every Saturday morning because he likes reading about space."}

	rec := ts.do(t, http.MethodPost, "/api/similarity/validate", map[string]any{
		"text":   "Yuki practices the piano after school every day.",
		"corpus": corpus,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[similarity.Verdict](t, rec)
	assert.True(t, v.Safe)
	assert.Equal(t, similarity.Approve, v.Recommendation)

	rec = ts.do(t, http.MethodPost, "/api/similarity/validate", map[string]any{"text": corpus[0], "corpus": corpus})
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeBody[similarity.Verdict](t, rec)
	assert.Equal(t, similarity.Reject, v.Recommendation)

	rec = ts.do(t, http.MethodPost, "/api/similarity/validate", map[string]any{"corpus": corpus})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("provider failure", func(t *testing.T) {
		ts.Checker = similarity.New(failingEmbedder{}, similarity.DefaultConfig())
		rec := ts.do(t, http.MethodPost, "/api/similarity/validate", map[string]any{"text": "hello", "corpus": corpus})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestSources(t *testing.T) {
	ts := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "list.csv"), []byte("word,cefr\nbridge,B1\n"), 0o644))

	rec := ts.do(t, http.MethodPost, "/api/sources", map[string]any{"path": dir})
	require.Equal(t, http.StatusCreated, rec.Code)
	src := decodeBody[storage.Source](t, rec)
	assert.Equal(t, storage.SourceLocal, src.Type)

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/sources", map[string]any{"path": dir}).Code)

	rec = ts.do(t, http.MethodPost, "/api/sources", map[string]any{"path": "https://github.com/kobeya/eiken-lists.git"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, storage.SourceGit, decodeBody[storage.Source](t, rec).Type)

	rec = ts.do(t, http.MethodPost, "/api/sources", map[string]any{"path": "https://example.com/../../../tmp/evil.git"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]storage.Source](t, rec), 2)

	// Remove the remote source so the sync stays offline.
	rec = ts.do(t, http.MethodDelete, "/api/sources/2", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/sources/2", nil).Code)

	rec = ts.do(t, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(1), report["words"])
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodDelete, "/api/words", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
