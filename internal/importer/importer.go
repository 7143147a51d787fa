// Package importer loads flashcards from markdown deck files into a
// subject, creating one lecture per deck and skipping cards whose content
// already exists.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conorfennell/studydeck/internal/repository"
)

// Importer drives deck imports against the repository.
type Importer struct {
	repo   *repository.Repository
	logger *slog.Logger
}

// New builds an Importer.
func New(repo *repository.Repository, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{repo: repo, logger: logger.With(slog.String("component", "importer"))}
}

// Result summarises one import run.
type Result struct {
	Files      int
	Added      int
	Duplicates int
}

// ImportFile parses one deck file and adds its cards to the subject under
// a new lecture named after the file. Cards whose content fingerprint
// already exists in the subject, or appears twice within the deck, are
// skipped rather than duplicated.
func (i *Importer) ImportFile(ctx context.Context, subjectID, path string) (Result, error) {
	drafts, err := ParseFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("import %s: %w", path, err)
	}
	if len(drafts) == 0 {
		i.logger.Warn("deck contains no cards", slog.String("path", path))
		return Result{Files: 1}, nil
	}

	seen, err := i.subjectFingerprints(ctx, subjectID)
	if err != nil {
		return Result{}, err
	}

	var fresh []repository.CardDraft
	duplicates := 0
	for _, draft := range drafts {
		fp := Fingerprint(draft.Question, draft.Answer)
		if seen[fp] {
			duplicates++
			continue
		}
		seen[fp] = true
		fresh = append(fresh, repository.CardDraft{
			SubjectID: subjectID,
			Question:  draft.Question,
			Answer:    draft.Answer,
			Tags:      draft.Tags,
		})
	}

	if len(fresh) == 0 {
		i.logger.Info("deck already imported",
			slog.String("path", path), slog.Int("duplicates", duplicates))
		return Result{Files: 1, Duplicates: duplicates}, nil
	}

	lecture, err := i.repo.CreateLecture(ctx, subjectID, deckTitle(path), "")
	if err != nil {
		return Result{}, fmt.Errorf("import %s: %w", path, err)
	}
	for idx := range fresh {
		fresh[idx].LectureID = lecture.ID
	}

	if _, err := i.repo.AddFlashcards(ctx, fresh); err != nil {
		return Result{}, fmt.Errorf("import %s: %w", path, err)
	}

	i.logger.Info("deck imported",
		slog.String("path", path),
		slog.String("lecture_id", lecture.ID),
		slog.Int("added", len(fresh)),
		slog.Int("duplicates", duplicates))
	return Result{Files: 1, Added: len(fresh), Duplicates: duplicates}, nil
}

// ImportDir walks dir recursively and imports every .md deck found.
func (i *Importer) ImportDir(ctx context.Context, subjectID, dir string) (Result, error) {
	var total Result
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		res, err := i.ImportFile(ctx, subjectID, path)
		if err != nil {
			return err
		}
		total.Files += res.Files
		total.Added += res.Added
		total.Duplicates += res.Duplicates
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("import dir %s: %w", dir, err)
	}
	return total, nil
}

// subjectFingerprints indexes the subject's existing cards by content.
func (i *Importer) subjectFingerprints(ctx context.Context, subjectID string) (map[string]bool, error) {
	cards, err := i.repo.ListFlashcardsBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(cards))
	for _, card := range cards {
		seen[Fingerprint(card.Question, card.Answer)] = true
	}
	return seen, nil
}

// deckTitle derives the lecture title from the deck filename.
func deckTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
