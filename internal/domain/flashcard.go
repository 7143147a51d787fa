package domain

import "time"

// DefaultEasiness is the SM-2 starting easiness for a new card.
const DefaultEasiness = 2.5

// Review is one entry in a card's review history: when it was graded and
// with what quality (0-5). History is append-only and never reordered.
type Review struct {
	Date    time.Time `json:"date"`
	Quality int       `json:"quality"`
}

// Flashcard carries a question/answer pair together with its SM-2
// scheduling state. A card is due when DueDate is at or before now.
type Flashcard struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subjectId"`
	LectureID  string    `json:"lectureId,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Tags       []string  `json:"tags,omitempty"`
	Easiness   float64   `json:"easiness"`
	Interval   int       `json:"interval"`   // days until the next review
	Repetition int       `json:"repetition"` // consecutive successful reviews
	DueDate    time.Time `json:"dueDate"`
	History    []Review  `json:"history"`
}

// NewFlashcard creates a card with default scheduling state: due
// immediately, easiness 2.5, no reviews recorded.
//
// DueDate is truncated to whole seconds so its persisted form stays
// fixed-width and ordered under the store's due-date index.
func NewFlashcard(subjectID, lectureID, question, answer string, tags []string, now time.Time) Flashcard {
	return Flashcard{
		ID:         NewID(),
		SubjectID:  subjectID,
		LectureID:  lectureID,
		Question:   question,
		Answer:     answer,
		Tags:       tags,
		Easiness:   DefaultEasiness,
		Interval:   0,
		Repetition: 0,
		DueDate:    now.UTC().Truncate(time.Second),
		History:    nil,
	}
}

// Due reports whether the card is due for review at the given time.
func (c Flashcard) Due(now time.Time) bool {
	return !c.DueDate.After(now)
}
