package journal_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/pkg/validator"
	"github.com/dmitrymomot/diary/svc/journal"
)

func TestService_CreateEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("normalises input and counts usage", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		e, err := f.svc.CreateEntry(ctx, f.user, journal.EntryInput{
			Title:   "  A long\nday ",
			Content: "went hiking\r\nwith friends",
			Mood:    " Happy ",
			Tags:    []string{"Travel", "travel", " family "},
		})
		require.NoError(t, err)

		assert.Equal(t, "A long day", e.Title)
		assert.Equal(t, "went hiking\nwith friends", e.Content)
		assert.Equal(t, "happy", e.Mood)
		assert.Equal(t, []string{"travel", "family"}, e.Tags)
		assert.Equal(t, 4, e.WordCount)
		assert.Equal(t, "2025-03-01", e.Date.Format("2006-01-02"))
		assert.EqualValues(t, 1, f.usage(t, subscription.ResourceEntries))
	})

	t.Run("validation errors do not consume quota", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.CreateEntry(ctx, f.user, journal.EntryInput{Title: "", Content: "x", Mood: "angry", Date: "01/02/2025"})
		require.Error(t, err)

		ve := validator.ExtractValidationErrors(err)
		require.NotNil(t, ve)
		assert.True(t, ve.Has("title"))
		assert.True(t, ve.Has("mood"))
		assert.True(t, ve.Has("date"))
		assert.Zero(t, f.usage(t, subscription.ResourceEntries))
	})

	t.Run("limit reached", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		for range 3 {
			_, err := f.svc.CreateEntry(ctx, f.user, journal.EntryInput{Title: "t", Content: "c"})
			require.NoError(t, err)
		}
		_, err := f.svc.CreateEntry(ctx, f.user, journal.EntryInput{Title: "t", Content: "c"})
		assert.ErrorIs(t, err, subscription.ErrLimitExceeded)

		list, err := f.svc.ListEntries(ctx, f.user, journal.EntryFilter{})
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("deleting does not refund usage", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		e, err := f.svc.CreateEntry(ctx, f.user, journal.EntryInput{Title: "t", Content: "c"})
		require.NoError(t, err)
		require.NoError(t, f.svc.DeleteEntry(ctx, f.user, e.ID))
		assert.EqualValues(t, 1, f.usage(t, subscription.ResourceEntries))
	})

	t.Run("store failure reverts the counter", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		svc := journal.NewService(failingStore{journal.NewMemoryStore()}, f.subs, journal.WithLogger(logger.Discard()))

		_, err := svc.CreateEntry(ctx, f.user, journal.EntryInput{Title: "t", Content: "c"})
		assert.ErrorIs(t, err, errStoreDown)
		assert.Zero(t, f.usage(t, subscription.ResourceEntries))
	})
}

func TestService_EntryOwnership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	e, err := f.svc.CreateEntry(ctx, f.user, journal.EntryInput{Title: "mine", Content: "secret"})
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = f.svc.GetEntry(ctx, stranger, e.ID)
	assert.ErrorIs(t, err, journal.ErrEntryNotFound)
	_, err = f.svc.UpdateEntry(ctx, stranger, e.ID, journal.EntryInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, journal.ErrEntryNotFound)
	assert.ErrorIs(t, f.svc.DeleteEntry(ctx, stranger, e.ID), journal.ErrEntryNotFound)

	got, err := f.svc.GetEntry(ctx, f.user, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Content)
}

func TestService_UpdateAndArchiveEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	e, err := f.svc.CreateEntry(ctx, f.user, journal.EntryInput{Title: "t", Content: "c", Date: "2025-02-14"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateEntry(ctx, f.user, e.ID, journal.EntryInput{Title: "new", Content: "one two three"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, 3, updated.WordCount)
	assert.Equal(t, "2025-02-14", updated.Date.Format("2006-01-02"), "date kept when omitted")

	archived, err := f.svc.SetArchived(ctx, f.user, e.ID, true)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	require.NotNil(t, archived.ArchivedAt)

	active, err := f.svc.ListEntries(ctx, f.user, journal.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, active)

	onlyArchived, err := f.svc.ListEntries(ctx, f.user, journal.EntryFilter{Archived: true})
	require.NoError(t, err)
	assert.Len(t, onlyArchived, 1)

	restored, err := f.svc.SetArchived(ctx, f.user, e.ID, false)
	require.NoError(t, err)
	assert.False(t, restored.Archived)
	assert.Nil(t, restored.ArchivedAt)
}

func TestService_Reminders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("defaults and validation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		r, err := f.svc.CreateReminder(ctx, f.user, journal.ReminderInput{Title: "Dentist", Date: "2025-03-10"})
		require.NoError(t, err)
		assert.Equal(t, "personal", r.Category)
		assert.Equal(t, "medium", r.Priority)
		assert.Equal(t, 9, r.DaysUntil(t0))
		assert.EqualValues(t, 1, f.usage(t, subscription.ResourceReminders))

		_, err = f.svc.CreateReminder(ctx, f.user, journal.ReminderInput{Title: "x", Priority: "whenever"})
		ve := validator.ExtractValidationErrors(err)
		require.NotNil(t, ve)
		assert.True(t, ve.Has("date"))
		assert.True(t, ve.Has("priority"))
	})

	t.Run("limit reached", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		for range 2 {
			_, err := f.svc.CreateReminder(ctx, f.user, journal.ReminderInput{Title: "r", Date: "2025-03-10"})
			require.NoError(t, err)
		}
		_, err := f.svc.CreateReminder(ctx, f.user, journal.ReminderInput{Title: "r", Date: "2025-03-10"})
		assert.ErrorIs(t, err, subscription.ErrLimitExceeded)
	})

	t.Run("complete and reopen", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		r, err := f.svc.CreateReminder(ctx, f.user, journal.ReminderInput{Title: "Pay rent", Date: "2025-02-27"})
		require.NoError(t, err)
		assert.True(t, r.Overdue(t0))

		done, err := f.svc.SetCompleted(ctx, f.user, r.ID, true)
		require.NoError(t, err)
		assert.True(t, done.Completed)
		assert.False(t, done.Overdue(t0))
		require.NotNil(t, done.CompletedAt)

		open := false
		list, err := f.svc.ListReminders(ctx, f.user, journal.ReminderFilter{Completed: &open})
		require.NoError(t, err)
		assert.Empty(t, list)

		reopened, err := f.svc.SetCompleted(ctx, f.user, r.ID, false)
		require.NoError(t, err)
		assert.Nil(t, reopened.CompletedAt)

		_, err = f.svc.SetCompleted(ctx, uuid.New(), r.ID, true)
		assert.ErrorIs(t, err, journal.ErrReminderNotFound)
	})

	t.Run("update", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		r, err := f.svc.CreateReminder(ctx, f.user, journal.ReminderInput{Title: "Trip", Date: "2025-04-01"})
		require.NoError(t, err)

		r, err = f.svc.UpdateReminder(ctx, f.user, r.ID, journal.ReminderInput{
			Title: "Trip to Rome", Date: "2025-04-02", Category: "Travel", Priority: "high",
		})
		require.NoError(t, err)
		assert.Equal(t, "travel", r.Category)
		assert.Equal(t, "high", r.Priority)
		assert.Equal(t, "2025-04-02", r.Date.Format("2006-01-02"))
	})
}

func TestService_UnlimitedPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, subscription.Plan{
		ID: "free", Name: "Free", Type: subscription.PlanFree,
		MaxEntries: subscription.Unlimited, MaxReminders: subscription.Unlimited, Active: true,
	})

	for range 50 {
		_, err := f.svc.CreateEntry(ctx, f.user, journal.EntryInput{Title: "t", Content: "c"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 50, f.usage(t, subscription.ResourceEntries))
}
