package review

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/repository"
	"github.com/conorfennell/studydeck/internal/storage"
)

var sessionClock = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	store, err := storage.Open(context.Background(),
		filepath.Join(t.TempDir(), "studydeck.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return repository.New(store, slog.New(slog.DiscardHandler),
		repository.WithClock(func() time.Time { return sessionClock }))
}

func seedCards(t *testing.T, repo *repository.Repository, subjectID string, n int) {
	t.Helper()
	drafts := make([]repository.CardDraft, n)
	for i := range drafts {
		drafts[i] = repository.CardDraft{
			SubjectID: subjectID,
			Question:  "Q",
			Answer:    "A",
		}
	}
	_, err := repo.AddFlashcards(context.Background(), drafts)
	require.NoError(t, err)
}

// markDone gives the card an established streak and a future due date.
func markDone(t *testing.T, repo *repository.Repository, card domain.Flashcard) domain.Flashcard {
	t.Helper()
	card.Repetition = 3
	card.Interval = 15
	card.DueDate = sessionClock.Add(72 * time.Hour)
	card.History = append(card.History, domain.Review{Date: sessionClock.Add(-24 * time.Hour), Quality: 4})
	require.NoError(t, repo.SaveFlashcard(context.Background(), card))
	return card
}

func TestBuildRejectsBadOptions(t *testing.T) {
	repo := newTestRepo(t)

	_, err := Build(context.Background(), repo, Options{DailyLimit: 0})
	assert.ErrorContains(t, err, "daily limit")

	_, err = Build(context.Background(), repo, Options{DailyLimit: 10, Scope: "everything"})
	assert.ErrorContains(t, err, "unknown scope")
}

func TestQueueSmallerThanLimitExhaustsNaturally(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	seedCards(t, repo, subject.ID, 5)

	q, err := Build(ctx, repo, Options{DailyLimit: 30, Now: sessionClock})
	require.NoError(t, err)
	assert.Equal(t, 5, q.Stats().Total)
	assert.Equal(t, 5, q.Remaining())

	for !q.Exhausted() {
		_, err := q.Grade(ctx, true)
		require.NoError(t, err)
	}

	_, err = q.Current()
	assert.ErrorIs(t, err, ErrExhausted)
	_, err = q.Grade(ctx, true)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, Session{Known: 5}, q.Session())
}

func TestDailyLimitCapsQueueNotStats(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	seedCards(t, repo, subject.ID, 12)

	q, err := Build(ctx, repo, Options{DailyLimit: 4, Now: sessionClock})
	require.NoError(t, err)
	assert.Equal(t, 4, q.Remaining())
	// Classification covers the whole pool, not just the capped queue.
	assert.Equal(t, 12, q.Stats().Total)
	assert.Equal(t, 12, q.Stats().Overdue)
}

func TestUnknownCardIsNotRequeued(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	seedCards(t, repo, subject.ID, 2)

	q, err := Build(ctx, repo, Options{DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)

	first, err := q.Grade(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Interval, "failed card resets to a one-day interval")

	second, err := q.Grade(ctx, true)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	assert.True(t, q.Exhausted(), "a session visits each card exactly once")
	assert.Equal(t, Session{Known: 1, Unknown: 1}, q.Session())
}

func TestGradePersistsSchedulingState(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	seedCards(t, repo, subject.ID, 1)

	q, err := Build(ctx, repo, Options{DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)

	graded, err := q.Grade(ctx, true)
	require.NoError(t, err)

	stored, err := repo.GetFlashcard(ctx, graded.ID)
	require.NoError(t, err)
	assert.Equal(t, graded.DueDate, stored.DueDate)
	assert.Len(t, stored.History, 1)

	// The graded card is no longer due today.
	due, err := repo.ListDueFlashcards(ctx, sessionClock)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestScopeNewExcludesCardsWithAStreak(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	seedCards(t, repo, subject.ID, 3)

	// A successful review starts a streak, taking the card out of the new set.
	q, err := Build(ctx, repo, Options{DailyLimit: 1, Now: sessionClock})
	require.NoError(t, err)
	reviewed, err := q.Grade(ctx, true)
	require.NoError(t, err)

	fresh, err := Build(ctx, repo, Options{Scope: ScopeNew, DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Stats().New)
	assert.Equal(t, 2, fresh.Remaining())
	for !fresh.Exhausted() {
		card, err := fresh.Current()
		require.NoError(t, err)
		assert.NotEqual(t, reviewed.ID, card.ID)
		_, err = fresh.Grade(ctx, true)
		require.NoError(t, err)
	}
}

func TestScopeNewIncludesFailedCards(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	seedCards(t, repo, subject.ID, 1)

	q, err := Build(ctx, repo, Options{DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)
	failed, err := q.Grade(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 0, failed.Repetition)
	require.NotEmpty(t, failed.History)

	// Repetition is back to zero, so the card is new again despite its
	// recorded review.
	fresh, err := Build(ctx, repo, Options{Scope: ScopeNew, DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Stats().New)
	require.Equal(t, 1, fresh.Remaining())
	current, err := fresh.Current()
	require.NoError(t, err)
	assert.Equal(t, failed.ID, current.ID)
}

func TestScopeOverdueExcludesFutureCards(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	cards, err := repo.AddFlashcards(ctx, []repository.CardDraft{
		{SubjectID: subject.ID, Question: "due", Answer: "A"},
		{SubjectID: subject.ID, Question: "future", Answer: "A"},
	})
	require.NoError(t, err)

	future := cards[1]
	future.DueDate = sessionClock.Add(72 * time.Hour)
	require.NoError(t, repo.SaveFlashcard(ctx, future))

	q, err := Build(ctx, repo, Options{Scope: ScopeOverdue, DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Stats().Overdue)
	require.Equal(t, 1, q.Remaining())
	current, err := q.Current()
	require.NoError(t, err)
	assert.Equal(t, cards[0].ID, current.ID)
}

func TestScopeAllIncludesDoneCards(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	cards, err := repo.AddFlashcards(ctx, []repository.CardDraft{
		{SubjectID: subject.ID, Question: "due", Answer: "A"},
		{SubjectID: subject.ID, Question: "done", Answer: "A"},
	})
	require.NoError(t, err)
	markDone(t, repo, cards[1])

	// The whole pool queues, including cards that are neither overdue nor new.
	q, err := Build(ctx, repo, Options{Scope: ScopeAll, DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)
	assert.Equal(t, 2, q.Stats().Total)
	assert.Equal(t, 2, q.Remaining())
}

func TestStatsClassifyPool(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	subject, err := repo.CreateSubject(ctx, "Go", "")
	require.NoError(t, err)
	cards, err := repo.AddFlashcards(ctx, []repository.CardDraft{
		{SubjectID: subject.ID, Question: "fresh", Answer: "A"},
		{SubjectID: subject.ID, Question: "done", Answer: "A"},
	})
	require.NoError(t, err)
	markDone(t, repo, cards[1])

	// The fresh card is due immediately and never reviewed, so it counts as
	// both overdue and new; the done card counts only as done.
	q, err := Build(ctx, repo, Options{DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Overdue: 1, New: 1, Done: 1}, q.Stats())

	// Stats describe the pool at build time; grading does not change them.
	_, err = q.Grade(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Overdue: 1, New: 1, Done: 1}, q.Stats())
	assert.Equal(t, Session{Known: 1}, q.Session())
}

func TestSubjectScopedQueue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	mine, err := repo.CreateSubject(ctx, "Mine", "")
	require.NoError(t, err)
	other, err := repo.CreateSubject(ctx, "Other", "")
	require.NoError(t, err)
	seedCards(t, repo, mine.ID, 2)
	seedCards(t, repo, other.ID, 3)

	q, err := Build(ctx, repo, Options{SubjectID: mine.ID, DailyLimit: 10, Now: sessionClock})
	require.NoError(t, err)
	assert.Equal(t, 2, q.Stats().Total)
	assert.Equal(t, 2, q.Remaining())
}
