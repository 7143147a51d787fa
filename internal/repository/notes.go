package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/storage"
)

// SaveNote stores a new note under an existing lecture. Notes of the same
// kind accumulate; use UpsertUserNote for the single editable user draft.
func (r *Repository) SaveNote(ctx context.Context, lectureID string, kind domain.NoteKind, content string) (domain.Note, error) {
	if !domain.ValidNoteKind(kind) {
		return domain.Note{}, newValidationError("note", "kind", fmt.Sprintf("unknown kind %q", kind))
	}
	if _, err := r.GetLecture(ctx, lectureID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Note{}, newValidationError("note", "lectureId",
				fmt.Sprintf("unknown lecture %s", lectureID))
		}
		return domain.Note{}, err
	}

	note := domain.NewNote(lectureID, kind, content)
	if err := r.store.Put(ctx, storage.CollectionNotes, note.ID, note); err != nil {
		return domain.Note{}, fmt.Errorf("save note: %w", err)
	}
	return note, nil
}

// UpsertUserNote writes the lecture's user draft, replacing the existing
// one if present. Each lecture holds at most one user note. The lookup
// and the write are not atomic; the single logical writer makes that safe.
func (r *Repository) UpsertUserNote(ctx context.Context, lectureID, content string) (domain.Note, error) {
	if _, err := r.GetLecture(ctx, lectureID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Note{}, newValidationError("note", "lectureId",
				fmt.Sprintf("unknown lecture %s", lectureID))
		}
		return domain.Note{}, err
	}

	existing, err := r.findUserNote(ctx, lectureID)
	if err != nil {
		return domain.Note{}, err
	}

	note := domain.NewNote(lectureID, domain.NoteUser, content)
	if existing != nil {
		note.ID = existing.ID
	}
	if err := r.store.Put(ctx, storage.CollectionNotes, note.ID, note); err != nil {
		return domain.Note{}, fmt.Errorf("upsert user note: %w", err)
	}
	return note, nil
}

func (r *Repository) findUserNote(ctx context.Context, lectureID string) (*domain.Note, error) {
	for rec, err := range r.store.ScanIndex(ctx, storage.CollectionNotes, storage.IndexByLecture, lectureID) {
		if err != nil {
			return nil, fmt.Errorf("find user note: %w", err)
		}
		var n domain.Note
		if err := decode(rec, &n); err != nil {
			return nil, fmt.Errorf("find user note: %w", err)
		}
		if n.Kind == domain.NoteUser {
			return &n, nil
		}
	}
	return nil, nil
}

// ListNotesByLecture returns the lecture's notes in insertion order.
func (r *Repository) ListNotesByLecture(ctx context.Context, lectureID string) ([]domain.Note, error) {
	var notes []domain.Note
	for rec, err := range r.store.ScanIndex(ctx, storage.CollectionNotes, storage.IndexByLecture, lectureID) {
		if err != nil {
			return nil, fmt.Errorf("list notes: %w", err)
		}
		var n domain.Note
		if err := decode(rec, &n); err != nil {
			return nil, fmt.Errorf("list notes: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}
