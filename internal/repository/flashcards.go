package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/storage"
)

// CardDraft is the caller-supplied material for one new flashcard.
type CardDraft struct {
	SubjectID string   `validate:"required"`
	LectureID string   // optional; when set it must name an existing lecture
	Question  string   `validate:"required"`
	Answer    string   `validate:"required"`
	Tags      []string `validate:"omitempty,dive,required"`
}

// AddFlashcards validates the whole batch up front and then stores it in
// one transaction: either every card is written or none is. The returned
// cards carry their assigned ids and default scheduling state. On a bad
// draft the error is a ValidationError whose Index points at the first
// offending draft.
func (r *Repository) AddFlashcards(ctx context.Context, drafts []CardDraft) ([]domain.Flashcard, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	subjects := map[string]bool{}
	lectures := map[string]bool{}
	for i, draft := range drafts {
		if err := r.validate.Struct(draft); err != nil {
			return nil, batchValidationError(i, err)
		}
		if !subjects[draft.SubjectID] {
			if _, err := r.GetSubject(ctx, draft.SubjectID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil, &ValidationError{Entity: "flashcard", Field: "subjectId", Index: i,
						Msg: fmt.Sprintf("unknown subject %s", draft.SubjectID)}
				}
				return nil, err
			}
			subjects[draft.SubjectID] = true
		}
		if draft.LectureID != "" && !lectures[draft.LectureID] {
			if _, err := r.GetLecture(ctx, draft.LectureID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil, &ValidationError{Entity: "flashcard", Field: "lectureId", Index: i,
						Msg: fmt.Sprintf("unknown lecture %s", draft.LectureID)}
				}
				return nil, err
			}
			lectures[draft.LectureID] = true
		}
	}

	now := r.now()
	cards := make([]domain.Flashcard, len(drafts))
	for i, draft := range drafts {
		cards[i] = domain.NewFlashcard(draft.SubjectID, draft.LectureID, draft.Question, draft.Answer, draft.Tags, now)
	}

	err := r.store.RunInTransaction(ctx, func(tx *storage.Tx) error {
		for _, card := range cards {
			if err := tx.Put(ctx, storage.CollectionFlashcards, card.ID, card); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add flashcards: %w", err)
	}
	r.logger.Info("flashcards added", slog.Int("count", len(cards)))
	return cards, nil
}

// GetFlashcard loads one card by id.
func (r *Repository) GetFlashcard(ctx context.Context, id string) (domain.Flashcard, error) {
	var card domain.Flashcard
	found, err := r.store.Get(ctx, storage.CollectionFlashcards, id, &card)
	if err != nil {
		return domain.Flashcard{}, fmt.Errorf("get flashcard %s: %w", id, err)
	}
	if !found {
		return domain.Flashcard{}, fmt.Errorf("%w: %s", ErrFlashcardNotFound, id)
	}
	return card, nil
}

// SaveFlashcard overwrites a card's stored state, typically after a
// review advanced its scheduling.
func (r *Repository) SaveFlashcard(ctx context.Context, card domain.Flashcard) error {
	if card.ID == "" {
		return newValidationError("flashcard", "id", "must not be empty")
	}
	if err := r.store.Put(ctx, storage.CollectionFlashcards, card.ID, card); err != nil {
		return fmt.Errorf("save flashcard %s: %w", card.ID, err)
	}
	return nil
}

// DeleteFlashcard removes a card. Deleting an absent card is a no-op.
func (r *Repository) DeleteFlashcard(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, storage.CollectionFlashcards, id); err != nil {
		return fmt.Errorf("delete flashcard %s: %w", id, err)
	}
	return nil
}

// ListFlashcards returns every card in store order.
func (r *Repository) ListFlashcards(ctx context.Context) ([]domain.Flashcard, error) {
	return r.collectCards(r.store.Scan(ctx, storage.CollectionFlashcards))
}

// ListFlashcardsBySubject returns the subject's cards in store order.
func (r *Repository) ListFlashcardsBySubject(ctx context.Context, subjectID string) ([]domain.Flashcard, error) {
	return r.collectCards(r.store.ScanIndex(ctx, storage.CollectionFlashcards, storage.IndexBySubject, subjectID))
}

// ListDueFlashcards returns every card due at or before now. The bound is
// evaluated on the due-date index, so cards the grader pushed into the
// future are skipped without decoding them.
func (r *Repository) ListDueFlashcards(ctx context.Context, now time.Time) ([]domain.Flashcard, error) {
	bound := now.UTC().Truncate(time.Second).Format(time.RFC3339)
	return r.collectCards(r.store.ScanIndexTo(ctx, storage.CollectionFlashcards, storage.IndexByDueDate, bound))
}

func (r *Repository) collectCards(seq func(func(storage.Record, error) bool)) ([]domain.Flashcard, error) {
	var cards []domain.Flashcard
	for rec, err := range seq {
		if err != nil {
			return nil, fmt.Errorf("list flashcards: %w", err)
		}
		var c domain.Flashcard
		if err := decode(rec, &c); err != nil {
			return nil, fmt.Errorf("list flashcards: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// batchValidationError converts the validator's first complaint about a
// draft into the repository's error shape.
func batchValidationError(index int, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Entity: "flashcard", Field: verrs[0].Field(), Index: index,
			Msg: fmt.Sprintf("failed %q validation", verrs[0].Tag())}
	}
	return &ValidationError{Entity: "flashcard", Field: "", Index: index, Msg: err.Error()}
}
