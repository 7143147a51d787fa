package domain

import "github.com/google/uuid"

// NewID returns a fresh globally-unique record id. Ids are stable once
// assigned and never reused.
func NewID() string {
	return uuid.NewString()
}
