package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/storage"
)

// CreateLecture stores a new lecture under an existing subject. A lecture
// pointing at an unknown subject is rejected rather than stored orphaned.
func (r *Repository) CreateLecture(ctx context.Context, subjectID, title, language string) (domain.Lecture, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Lecture{}, newValidationError("lecture", "title", "must not be empty")
	}
	if _, err := r.GetSubject(ctx, subjectID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Lecture{}, newValidationError("lecture", "subjectId",
				fmt.Sprintf("unknown subject %s", subjectID))
		}
		return domain.Lecture{}, err
	}

	lecture := domain.NewLecture(subjectID, title, language, r.now())
	if err := r.store.Put(ctx, storage.CollectionLectures, lecture.ID, lecture); err != nil {
		return domain.Lecture{}, fmt.Errorf("create lecture: %w", err)
	}
	r.logger.Info("lecture created",
		slog.String("lecture_id", lecture.ID), slog.String("subject_id", subjectID))
	return lecture, nil
}

// GetLecture loads one lecture by id.
func (r *Repository) GetLecture(ctx context.Context, id string) (domain.Lecture, error) {
	var lecture domain.Lecture
	found, err := r.store.Get(ctx, storage.CollectionLectures, id, &lecture)
	if err != nil {
		return domain.Lecture{}, fmt.Errorf("get lecture %s: %w", id, err)
	}
	if !found {
		return domain.Lecture{}, fmt.Errorf("%w: %s", ErrLectureNotFound, id)
	}
	return lecture, nil
}

// MoveLecture reassigns the lecture to another existing subject. Moving
// an unknown lecture is a no-op; moving to an unknown subject is rejected.
func (r *Repository) MoveLecture(ctx context.Context, lectureID, subjectID string) error {
	if _, err := r.GetSubject(ctx, subjectID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newValidationError("lecture", "subjectId",
				fmt.Sprintf("unknown subject %s", subjectID))
		}
		return err
	}

	lecture, err := r.GetLecture(ctx, lectureID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	lecture.SubjectID = subjectID
	if err := r.store.Put(ctx, storage.CollectionLectures, lecture.ID, lecture); err != nil {
		return fmt.Errorf("move lecture %s: %w", lectureID, err)
	}
	return nil
}

// ListLecturesBySubject returns the subject's lectures, newest first.
func (r *Repository) ListLecturesBySubject(ctx context.Context, subjectID string) ([]domain.Lecture, error) {
	var lectures []domain.Lecture
	for rec, err := range r.store.ScanIndex(ctx, storage.CollectionLectures, storage.IndexBySubject, subjectID) {
		if err != nil {
			return nil, fmt.Errorf("list lectures: %w", err)
		}
		var l domain.Lecture
		if err := decode(rec, &l); err != nil {
			return nil, fmt.Errorf("list lectures: %w", err)
		}
		lectures = append(lectures, l)
	}

	sort.SliceStable(lectures, func(i, j int) bool {
		return lectures[i].CreatedAt.After(lectures[j].CreatedAt)
	})
	return lectures, nil
}
