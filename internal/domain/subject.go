package domain

import "time"

// Subject is a top-level study topic. Lectures and flashcards belong to
// exactly one subject.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSubject creates a subject with a fresh id and creation timestamp.
func NewSubject(name, color string, now time.Time) Subject {
	return Subject{
		ID:        NewID(),
		Name:      name,
		Color:     color,
		CreatedAt: now.UTC(),
	}
}
