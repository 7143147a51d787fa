package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/storage"
)

// CreateSubject stores a new subject. The name must be non-empty after
// trimming; the color is free-form and optional.
func (r *Repository) CreateSubject(ctx context.Context, name, color string) (domain.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Subject{}, newValidationError("subject", "name", "must not be empty")
	}

	subject := domain.NewSubject(name, color, r.now())
	if err := r.store.Put(ctx, storage.CollectionSubjects, subject.ID, subject); err != nil {
		return domain.Subject{}, fmt.Errorf("create subject: %w", err)
	}
	r.logger.Info("subject created", slog.String("subject_id", subject.ID), slog.String("name", name))
	return subject, nil
}

// GetSubject loads one subject by id.
func (r *Repository) GetSubject(ctx context.Context, id string) (domain.Subject, error) {
	var subject domain.Subject
	found, err := r.store.Get(ctx, storage.CollectionSubjects, id, &subject)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("get subject %s: %w", id, err)
	}
	if !found {
		return domain.Subject{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, id)
	}
	return subject, nil
}

// RenameSubject updates the subject's name in place.
func (r *Repository) RenameSubject(ctx context.Context, id, name string) (domain.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Subject{}, newValidationError("subject", "name", "must not be empty")
	}

	subject, err := r.GetSubject(ctx, id)
	if err != nil {
		return domain.Subject{}, err
	}
	subject.Name = name
	if err := r.store.Put(ctx, storage.CollectionSubjects, subject.ID, subject); err != nil {
		return domain.Subject{}, fmt.Errorf("rename subject %s: %w", id, err)
	}
	return subject, nil
}

// DeleteSubject removes the subject together with every lecture, note and
// flashcard under it, atomically. Deleting an absent subject is a no-op.
func (r *Repository) DeleteSubject(ctx context.Context, id string) error {
	err := r.store.RunInTransaction(ctx, func(tx *storage.Tx) error {
		var lectureIDs []string
		for rec, err := range tx.ScanIndex(ctx, storage.CollectionLectures, storage.IndexBySubject, id) {
			if err != nil {
				return err
			}
			lectureIDs = append(lectureIDs, rec.Key)
		}

		for _, lectureID := range lectureIDs {
			for rec, err := range tx.ScanIndex(ctx, storage.CollectionNotes, storage.IndexByLecture, lectureID) {
				if err != nil {
					return err
				}
				if err := tx.Delete(ctx, storage.CollectionNotes, rec.Key); err != nil {
					return err
				}
			}
			if err := tx.Delete(ctx, storage.CollectionLectures, lectureID); err != nil {
				return err
			}
		}

		for rec, err := range tx.ScanIndex(ctx, storage.CollectionFlashcards, storage.IndexBySubject, id) {
			if err != nil {
				return err
			}
			if err := tx.Delete(ctx, storage.CollectionFlashcards, rec.Key); err != nil {
				return err
			}
		}

		return tx.Delete(ctx, storage.CollectionSubjects, id)
	})
	if err != nil {
		return fmt.Errorf("delete subject %s: %w", id, err)
	}
	r.logger.Info("subject deleted", slog.String("subject_id", id))
	return nil
}

// ListSubjects returns all subjects ordered by name, case-insensitively
// and locale-aware, so "algebra" sorts next to "Algebra".
func (r *Repository) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	var subjects []domain.Subject
	for rec, err := range r.store.Scan(ctx, storage.CollectionSubjects) {
		if err != nil {
			return nil, fmt.Errorf("list subjects: %w", err)
		}
		var s domain.Subject
		if err := decode(rec, &s); err != nil {
			return nil, fmt.Errorf("list subjects: %w", err)
		}
		subjects = append(subjects, s)
	}

	c := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(subjects, func(i, j int) bool {
		return c.CompareString(subjects[i].Name, subjects[j].Name) < 0
	})
	return subjects, nil
}
