package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/svc/journal"
)

func seedEntries(t *testing.T, store journal.Store, user uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	entries := []journal.Entry{
		{Title: "Beach day", Content: "sun and sand", Mood: "happy", Tags: []string{"travel"}, Date: t0.AddDate(0, 0, -2)},
		{Title: "Deadline", Content: "release 100% done", Mood: "stressed", Tags: []string{"work"}, Date: t0.AddDate(0, 0, -1)},
		{Title: "Mountains", Content: "long hike", Mood: "happy", Tags: []string{"travel", "hiking"}, Date: t0},
		{Title: "Archived", Content: "old", Archived: true, Tags: []string{}, Date: t0.AddDate(0, 0, -30)},
	}
	for i := range entries {
		e := entries[i]
		e.ID = uuid.New()
		e.UserID = user
		e.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		e.UpdatedAt = e.CreatedAt
		require.NoError(t, store.CreateEntry(ctx, &e))
	}
	other := journal.Entry{ID: uuid.New(), UserID: uuid.New(), Title: "Beach", Content: "not mine", Tags: []string{"travel"}, Date: t0}
	require.NoError(t, store.CreateEntry(ctx, &other))
}

// testEntryListing runs the same listing cases against any Store.
func testEntryListing(t *testing.T, store journal.Store) {
	user := uuid.New()
	seedEntries(t, store, user)
	ctx := context.Background()

	titles := func(entries []journal.Entry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Title)
		}
		return out
	}

	tests := []struct {
		name   string
		filter journal.EntryFilter
		want   []string
	}{
		{"newest first", journal.EntryFilter{}, []string{"Mountains", "Deadline", "Beach day"}},
		{"archived only", journal.EntryFilter{Archived: true}, []string{"Archived"}},
		{"mood", journal.EntryFilter{Mood: "happy"}, []string{"Mountains", "Beach day"}},
		{"tag", journal.EntryFilter{Tag: "hiking"}, []string{"Mountains"}},
		{"query title", journal.EntryFilter{Query: "beach"}, []string{"Beach day"}},
		{"query content", journal.EntryFilter{Query: "HIKE"}, []string{"Mountains"}},
		{"query with like wildcard", journal.EntryFilter{Query: "100%"}, []string{"Deadline"}},
		{"limit", journal.EntryFilter{Limit: 2}, []string{"Mountains", "Deadline"}},
		{"offset", journal.EntryFilter{Limit: 2, Offset: 2}, []string{"Beach day"}},
		{"offset past end", journal.EntryFilter{Offset: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListEntries(ctx, user, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func testReminderListing(t *testing.T, store journal.Store) {
	ctx := context.Background()
	user := uuid.New()
	done := t0

	reminders := []journal.Reminder{
		{Title: "Low", Date: t0.AddDate(0, 0, 1), Category: "work", Priority: "low"},
		{Title: "Urgent", Date: t0.AddDate(0, 0, 1), Category: "work", Priority: "urgent"},
		{Title: "Earlier", Date: t0, Category: "health", Priority: "medium", Description: "see doctor"},
		{Title: "Done", Date: t0.AddDate(0, 0, -1), Category: "personal", Priority: "high", Completed: true, CompletedAt: &done},
	}
	for i := range reminders {
		r := reminders[i]
		r.ID = uuid.New()
		r.UserID = user
		r.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		r.UpdatedAt = r.CreatedAt
		require.NoError(t, store.CreateReminder(ctx, &r))
	}

	open, closed := false, true
	tests := []struct {
		name   string
		filter journal.ReminderFilter
		want   []string
	}{
		{"by date then priority", journal.ReminderFilter{}, []string{"Done", "Earlier", "Urgent", "Low"}},
		{"open", journal.ReminderFilter{Completed: &open}, []string{"Earlier", "Urgent", "Low"}},
		{"completed", journal.ReminderFilter{Completed: &closed}, []string{"Done"}},
		{"category", journal.ReminderFilter{Category: "work"}, []string{"Urgent", "Low"}},
		{"query description", journal.ReminderFilter{Query: "doctor"}, []string{"Earlier"}},
		{"no match", journal.ReminderFilter{Query: "nothing"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListReminders(ctx, user, tt.filter)
			require.NoError(t, err)
			titles := make([]string, 0, len(got))
			for _, r := range got {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestMemoryStore_ListEntries(t *testing.T) {
	t.Parallel()
	testEntryListing(t, journal.NewMemoryStore())
}

func TestMemoryStore_ListReminders(t *testing.T) {
	t.Parallel()
	testReminderListing(t, journal.NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := journal.NewMemoryStore()

	e := &journal.Entry{ID: uuid.New(), UserID: uuid.New(), Title: "t", Tags: []string{"a"}}
	require.NoError(t, store.CreateEntry(ctx, e))
	e.Tags[0] = "mutated"

	got, err := store.GetEntry(ctx, e.UserID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Tags)
}
