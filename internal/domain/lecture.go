package domain

import "time"

// Lecture is a single study session under a subject. A lecture may be
// moved to a different subject but is never orphaned.
type Lecture struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Language  string    `json:"language,omitempty"`
}

// NewLecture creates a lecture with a fresh id and creation timestamp.
func NewLecture(subjectID, title, language string, now time.Time) Lecture {
	return Lecture{
		ID:        NewID(),
		SubjectID: subjectID,
		Title:     title,
		CreatedAt: now.UTC(),
		Language:  language,
	}
}
