package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studydeck/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studydeck.db")
	store, err := Open(context.Background(), path, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func collectKeys(t *testing.T, seq func(func(Record, error) bool)) []string {
	t.Helper()
	var keys []string
	for rec, err := range seq {
		require.NoError(t, err)
		keys = append(keys, rec.Key)
	}
	return keys
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	subject := domain.NewSubject("Mathematics", "#ff0000", now)
	require.NoError(t, store.Put(ctx, CollectionSubjects, subject.ID, subject))

	var got domain.Subject
	found, err := store.Get(ctx, CollectionSubjects, subject.ID, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, subject, got)

	// Overwriting the same key replaces the record.
	subject.Name = "Applied Mathematics"
	require.NoError(t, store.Put(ctx, CollectionSubjects, subject.ID, subject))
	n, err := store.Count(ctx, CollectionSubjects)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	found, err = store.Get(ctx, CollectionSubjects, subject.ID, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Applied Mathematics", got.Name)

	require.NoError(t, store.Delete(ctx, CollectionSubjects, subject.ID))
	found, err = store.Get(ctx, CollectionSubjects, subject.ID, &got)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting an absent key is a no-op.
	require.NoError(t, store.Delete(ctx, CollectionSubjects, subject.ID))
}

func TestGetAbsentKeyIsNotAnError(t *testing.T) {
	store := openTestStore(t)

	var got domain.Subject
	found, err := store.Get(context.Background(), CollectionSubjects, "no-such-key", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUnknownCollection(t *testing.T) {
	store := openTestStore(t)

	err := store.Put(context.Background(), "bogus", "k", struct{}{})
	assert.ErrorContains(t, err, `unknown collection "bogus"`)
}

func TestScanOrderIsStable(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	var want []string
	for _, name := range []string{"Chemistry", "Algebra", "Biology"} {
		s := domain.NewSubject(name, "", now)
		require.NoError(t, store.Put(ctx, CollectionSubjects, s.ID, s))
		want = append(want, s.ID)
	}

	first := collectKeys(t, store.Scan(ctx, CollectionSubjects))
	second := collectKeys(t, store.Scan(ctx, CollectionSubjects))
	assert.Equal(t, want, first, "scan must preserve insertion order")
	assert.Equal(t, first, second, "repeated scans must agree")
}

func TestScanIndexFiltersBySubject(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	mine := domain.NewLecture("subject-a", "Week 1", "", now)
	other := domain.NewLecture("subject-b", "Week 1", "", now)
	require.NoError(t, store.Put(ctx, CollectionLectures, mine.ID, mine))
	require.NoError(t, store.Put(ctx, CollectionLectures, other.ID, other))

	keys := collectKeys(t, store.ScanIndex(ctx, CollectionLectures, IndexBySubject, "subject-a"))
	assert.Equal(t, []string{mine.ID}, keys)
}

func TestScanIndexEmptyValueNeverMatches(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	orphan := domain.NewFlashcard("subject-a", "", "Q", "A", nil, now)
	require.NoError(t, store.Put(ctx, CollectionFlashcards, orphan.ID, orphan))

	// The card has no lecture, so its byDueDate sibling still matches but a
	// lookup on the empty string must not.
	keys := collectKeys(t, store.ScanIndex(ctx, CollectionFlashcards, IndexBySubject, ""))
	assert.Empty(t, keys)
}

func TestScanIndexToDueDateBound(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	due := domain.NewFlashcard("subject-a", "", "due", "A", nil, now.Add(-48*time.Hour))
	today := domain.NewFlashcard("subject-a", "", "today", "A", nil, now)
	future := domain.NewFlashcard("subject-a", "", "future", "A", nil, now)
	future.DueDate = now.Add(72 * time.Hour)

	for _, c := range []domain.Flashcard{due, today, future} {
		require.NoError(t, store.Put(ctx, CollectionFlashcards, c.ID, c))
	}

	bound := now.UTC().Truncate(time.Second).Format(time.RFC3339)
	keys := collectKeys(t, store.ScanIndexTo(ctx, CollectionFlashcards, IndexByDueDate, bound))
	assert.ElementsMatch(t, []string{due.ID, today.ID}, keys)
}

func TestPutUpdatesIndexColumns(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	lecture := domain.NewLecture("subject-a", "Week 1", "", now)
	require.NoError(t, store.Put(ctx, CollectionLectures, lecture.ID, lecture))

	lecture.SubjectID = "subject-b"
	require.NoError(t, store.Put(ctx, CollectionLectures, lecture.ID, lecture))

	assert.Empty(t, collectKeys(t, store.ScanIndex(ctx, CollectionLectures, IndexBySubject, "subject-a")))
	assert.Equal(t, []string{lecture.ID},
		collectKeys(t, store.ScanIndex(ctx, CollectionLectures, IndexBySubject, "subject-b")))
}

func TestRunInTransactionCommits(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	subject := domain.NewSubject("Physics", "", now)
	lecture := domain.NewLecture(subject.ID, "Kinematics", "", now)

	err := store.RunInTransaction(ctx, func(tx *Tx) error {
		if err := tx.Put(ctx, CollectionSubjects, subject.ID, subject); err != nil {
			return err
		}
		return tx.Put(ctx, CollectionLectures, lecture.ID, lecture)
	})
	require.NoError(t, err)

	var got domain.Lecture
	found, err := store.Get(ctx, CollectionLectures, lecture.ID, &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRunInTransactionRollsBackAllWrites(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	subject := domain.NewSubject("Physics", "", now)
	boom := assert.AnError

	err := store.RunInTransaction(ctx, func(tx *Tx) error {
		if err := tx.Put(ctx, CollectionSubjects, subject.ID, subject); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, ErrTxAborted)
	require.ErrorIs(t, err, boom)

	var got domain.Subject
	found, err := store.Get(ctx, CollectionSubjects, subject.ID, &got)
	require.NoError(t, err)
	assert.False(t, found, "aborted transaction must leave no writes behind")
}

func TestRunInTransactionSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	subject := domain.NewSubject("Physics", "", now)

	err := store.RunInTransaction(ctx, func(tx *Tx) error {
		if err := tx.Put(ctx, CollectionSubjects, subject.ID, subject); err != nil {
			return err
		}
		var got domain.Subject
		found, err := tx.Get(ctx, CollectionSubjects, subject.ID, &got)
		require.NoError(t, err)
		assert.True(t, found)
		return nil
	})
	require.NoError(t, err)
}

func TestMigrationIsIdempotentAcrossReopens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "studydeck.db")
	logger := slog.New(slog.DiscardHandler)

	store, err := Open(ctx, path, logger)
	require.NoError(t, err)
	subject := domain.NewSubject("History", "", time.Now())
	require.NoError(t, store.Put(ctx, CollectionSubjects, subject.ID, subject))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path, logger)
	require.NoError(t, err)
	defer reopened.Close()

	var got domain.Subject
	found, err := reopened.Get(ctx, CollectionSubjects, subject.ID, &got)
	require.NoError(t, err)
	assert.True(t, found, "data must survive a reopen and re-migration check")
}

func TestUpgradeRenamesLectureTitleField(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "studydeck.db")
	logger := slog.New(slog.DiscardHandler)

	store, err := Open(ctx, path, logger)
	require.NoError(t, err)

	// Plant a legacy record and wind the version back so the upgrade step
	// replays on the next open.
	legacy := map[string]any{
		"id":        "lecture-legacy",
		"subjectId": "subject-a",
		"name":      "Old Title",
		"createdAt": "2026-01-02T15:04:05Z",
	}
	require.NoError(t, store.Put(ctx, CollectionLectures, "lecture-legacy", legacy))
	_, err = store.db.ExecContext(ctx, `UPDATE schema_info SET version = 2 WHERE id = 1`)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	upgraded, err := Open(ctx, path, logger)
	require.NoError(t, err)
	defer upgraded.Close()

	var got domain.Lecture
	found, err := upgraded.Get(ctx, CollectionLectures, "lecture-legacy", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Old Title", got.Title)
	assert.Equal(t, "subject-a", got.SubjectID)
}
