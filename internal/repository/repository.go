// Package repository is the typed persistence layer over the record
// store. It owns entity validation, referential checks between subjects,
// lectures, notes and flashcards, and the multi-record transactions that
// keep them consistent.
package repository

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/studydeck/internal/storage"
)

// Repository exposes typed operations for every entity kind. All methods
// are safe for the single logical caller the core assumes; none retry.
type Repository struct {
	store    *storage.Store
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// Option adjusts Repository construction.
type Option func(*Repository)

// WithClock fixes the repository's clock, used by tests to make creation
// timestamps and due-date queries deterministic.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New builds a Repository over an opened store.
func New(store *storage.Store, logger *slog.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "repository")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// decode unmarshals a scanned record into a typed entity.
func decode(rec storage.Record, dest any) error {
	if err := json.Unmarshal(rec.Data, dest); err != nil {
		return fmt.Errorf("decode record %s: %w", rec.Key, err)
	}
	return nil
}
