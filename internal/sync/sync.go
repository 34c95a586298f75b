// Package sync imports wordlists from registered sources into the store.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kobeya/studypartner/internal/difficulty"
	"github.com/kobeya/studypartner/internal/domain"
	"github.com/kobeya/studypartner/internal/gitsource"
	"github.com/kobeya/studypartner/internal/parser"
	"github.com/kobeya/studypartner/internal/storage"
)

// DifficultyScorer scores a word before it is stored.
type DifficultyScorer interface {
	CalculateDifficulty(word domain.VocabularyWord) difficulty.Score
}

// Report summarizes one sync run.
type Report struct {
	Sources  int      `json:"sources"`
	Files    int      `json:"files"`
	Words    int      `json:"words"`
	Detached int      `json:"detached"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *Report) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// RunSync iterates over all sources and reconciles them. Per-source and
// per-row problems are collected in the report; only failures to read the
// source list abort the run.
func RunSync(ctx context.Context, db *storage.DB, scorer DifficultyScorer, reposDir string) (*Report, error) {
	slog.Info("Starting sync process for all sources...")
	sources, err := db.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	report := &Report{}
	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with --add-source <path/or/url.git>")
		return report, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		dir := source.Path
		if source.Type == storage.SourceGit {
			dir, err = gitsource.LocalPath(reposDir, source.Path)
			if err != nil {
				report.addError(err)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
				report.addError(fmt.Errorf("failed to create repos directory: %w", err))
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, dir); err != nil {
				report.addError(err)
				continue
			}
		}

		if err := reconcileSource(ctx, db, scorer, source.ID, dir, report); err != nil {
			report.addError(fmt.Errorf("source %d: %w", source.ID, err))
			continue
		}
		report.Sources++
	}

	slog.Info("Sync process complete.",
		"sources", report.Sources,
		"files", report.Files,
		"words", report.Words,
		"detached", report.Detached,
		"errors", len(report.Errors),
	)
	return report, nil
}

func reconcileSource(ctx context.Context, db *storage.DB, scorer DifficultyScorer, sourceID int64, dir string, report *Report) error {
	found := make(map[int64]bool)
	var words int
	// Words are not tracked per file, so a file that could not be read
	// makes every word it may have supplied look removed.
	var incomplete bool

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.IsWordlist(path) || strings.HasPrefix(d.Name(), "~$") {
			return nil
		}

		result, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.addError(fmt.Errorf("parsing %s: %w", path, parseErr))
			incomplete = true
			return nil
		}
		report.Files++
		for _, rowErr := range result.Errors {
			report.addError(fmt.Errorf("%s: %w", path, rowErr))
		}

		for _, w := range result.Words {
			w.SourceID = &sourceID
			score := scorer.CalculateDifficulty(w)
			w.DifficultyScore = &score.Final
			w.ShouldAnnotate = score.ShouldAnnotate

			if err := db.UpsertWord(ctx, &w); err != nil {
				report.addError(err)
				incomplete = true
				continue
			}
			found[w.ID] = true
			words++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	var existing []domain.VocabularyWord
	if incomplete {
		slog.Warn("Skipping detach for partially read source", "source_id", sourceID, "path", dir)
	} else {
		var err error
		existing, err = db.ListWordsBySource(ctx, sourceID)
		if err != nil {
			return err
		}
	}
	var detached int
	for _, w := range existing {
		if found[w.ID] {
			continue
		}
		slog.Info("Word no longer in source, detaching", "word", w.Word, "source_id", sourceID)
		if err := db.DetachWord(ctx, w.ID); err != nil {
			report.addError(err)
			continue
		}
		detached++
	}

	if err := db.UpdateSourceLastScanned(ctx, sourceID, time.Now()); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	report.Words += words
	report.Detached += detached
	slog.Info("reconciliation complete", "path", dir, "words", words, "detached", detached)
	return nil
}
