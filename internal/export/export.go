// Package export assembles a full snapshot of the study data for backup
// or transfer as one JSON document.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/repository"
)

// Snapshot is the complete exported state. Temp files are transient by
// definition and are not part of it.
type Snapshot struct {
	ExportedAt time.Time          `json:"exportedAt"`
	Subjects   []domain.Subject   `json:"subjects"`
	Lectures   []domain.Lecture   `json:"lectures"`
	Notes      []domain.Note      `json:"notes"`
	Flashcards []domain.Flashcard `json:"flashcards"`
}

// Build reads every subject, lecture, note and flashcard into a snapshot.
func Build(ctx context.Context, repo *repository.Repository, now time.Time) (Snapshot, error) {
	subjects, err := repo.ListSubjects(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: %w", err)
	}

	snap := Snapshot{ExportedAt: now.UTC(), Subjects: subjects}
	for _, subject := range subjects {
		lectures, err := repo.ListLecturesBySubject(ctx, subject.ID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("export subject %s: %w", subject.ID, err)
		}
		snap.Lectures = append(snap.Lectures, lectures...)
		for _, lecture := range lectures {
			notes, err := repo.ListNotesByLecture(ctx, lecture.ID)
			if err != nil {
				return Snapshot{}, fmt.Errorf("export lecture %s: %w", lecture.ID, err)
			}
			snap.Notes = append(snap.Notes, notes...)
		}
	}

	cards, err := repo.ListFlashcards(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: %w", err)
	}
	snap.Flashcards = cards
	return snap, nil
}

// Write renders the snapshot as indented JSON.
func Write(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
