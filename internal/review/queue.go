// Package review builds and drives a study session: it selects the cards
// to show, feeds each binary outcome through the grader, and persists the
// advanced scheduling state.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/repository"
	"github.com/conorfennell/studydeck/internal/sm2"
)

// Scope selects which cards from the pool enter the queue.
type Scope string

const (
	// ScopeOverdue takes only cards whose due date has passed.
	ScopeOverdue Scope = "overdue"
	// ScopeNew takes only cards without a successful review streak
	// (repetition zero), including cards whose last review failed.
	ScopeNew Scope = "new"
	// ScopeAll takes the whole pool.
	ScopeAll Scope = "all"
)

// ValidScope reports whether s names a known scope.
func ValidScope(s Scope) bool {
	return s == ScopeOverdue || s == ScopeNew || s == ScopeAll
}

// Options control queue construction.
type Options struct {
	// SubjectID restricts the pool to one subject; empty means all subjects.
	SubjectID string
	// Scope selects overdue, new or the whole pool. Defaults to ScopeAll.
	Scope Scope
	// DailyLimit caps the queue size and must be positive.
	DailyLimit int
	// Now fixes the session clock. Zero means use the wall clock for the
	// whole session.
	Now time.Time
}

// Stats classifies the whole pool (the subject-filtered card set, before
// scope and daily limit are applied):
//
//	Overdue: due date at or before now
//	New:     repetition zero
//	Done:    repetition above zero and due date in the future
//
// Overdue and New may overlap, so they can sum to more than Total; Done
// is disjoint from both. Stats are fixed at build time and do not change
// as the session progresses.
type Stats struct {
	Total   int
	Overdue int
	New     int
	Done    int
}

// Session tallies the binary outcomes recorded so far.
type Session struct {
	Known   int
	Unknown int
}

// ErrExhausted is returned by Current and Grade once every queued card
// has been graded.
var ErrExhausted = errors.New("review queue exhausted")

// Queue is one in-progress study session over a fixed set of cards.
// Cards are shown in selection order; grading a card removes it from the
// session regardless of outcome, so a session always terminates.
type Queue struct {
	repo    *repository.Repository
	cards   []domain.Flashcard
	pos     int
	stats   Stats
	session Session
	now     func() time.Time
}

// Build loads the pool, classifies it and selects the session's cards
// per opts.
func Build(ctx context.Context, repo *repository.Repository, opts Options) (*Queue, error) {
	if opts.DailyLimit <= 0 {
		return nil, fmt.Errorf("daily limit must be positive, got %d", opts.DailyLimit)
	}
	scope := opts.Scope
	if scope == "" {
		scope = ScopeAll
	}
	if !ValidScope(scope) {
		return nil, fmt.Errorf("unknown scope %q", scope)
	}

	now := func() time.Time { return time.Now() }
	if !opts.Now.IsZero() {
		fixed := opts.Now
		now = func() time.Time { return fixed }
	}

	pool, err := loadPool(ctx, repo, opts.SubjectID)
	if err != nil {
		return nil, err
	}

	q := &Queue{repo: repo, now: now}
	q.stats.Total = len(pool)
	for _, card := range pool {
		due := card.Due(now())
		if due {
			q.stats.Overdue++
		}
		if card.Repetition == 0 {
			q.stats.New++
		}
		if card.Repetition > 0 && !due {
			q.stats.Done++
		}
	}

	for _, card := range pool {
		if !inScope(card, scope, now()) {
			continue
		}
		q.cards = append(q.cards, card)
		if len(q.cards) == opts.DailyLimit {
			break
		}
	}
	return q, nil
}

func loadPool(ctx context.Context, repo *repository.Repository, subjectID string) ([]domain.Flashcard, error) {
	if subjectID != "" {
		return repo.ListFlashcardsBySubject(ctx, subjectID)
	}
	return repo.ListFlashcards(ctx)
}

func inScope(card domain.Flashcard, scope Scope, now time.Time) bool {
	switch scope {
	case ScopeOverdue:
		return card.Due(now)
	case ScopeNew:
		return card.Repetition == 0
	default:
		return true
	}
}

// Current returns the card awaiting a grade, or ErrExhausted when the
// session is over.
func (q *Queue) Current() (domain.Flashcard, error) {
	if q.Exhausted() {
		return domain.Flashcard{}, ErrExhausted
	}
	return q.cards[q.pos], nil
}

// Grade records the binary outcome for the current card, persists its
// advanced scheduling state and moves on. The graded card never re-enters
// this session, even on an unknown outcome.
func (q *Queue) Grade(ctx context.Context, known bool) (domain.Flashcard, error) {
	card, err := q.Current()
	if err != nil {
		return domain.Flashcard{}, err
	}

	graded := sm2.Review(card, sm2.ForKnown(known), q.now())
	if err := q.repo.SaveFlashcard(ctx, graded); err != nil {
		return domain.Flashcard{}, fmt.Errorf("grade card %s: %w", card.ID, err)
	}

	q.pos++
	if known {
		q.session.Known++
	} else {
		q.session.Unknown++
	}
	return graded, nil
}

// Exhausted reports whether every queued card has been graded.
func (q *Queue) Exhausted() bool {
	return q.pos >= len(q.cards)
}

// Remaining returns the number of cards still awaiting a grade.
func (q *Queue) Remaining() int {
	return len(q.cards) - q.pos
}

// Stats returns the pool classification computed at build time.
func (q *Queue) Stats() Stats {
	return q.stats
}

// Session returns the outcome tallies recorded so far.
func (q *Queue) Session() Session {
	return q.session
}
