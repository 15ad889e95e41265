package journal

import (
	"context"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store persists entries and reminders. Lookups are scoped to the owner:
// a record of another user is reported as not found.
type Store interface {
	CreateEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, userID, id uuid.UUID) (*Entry, error)
	ListEntries(ctx context.Context, userID uuid.UUID, f EntryFilter) ([]Entry, error)
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, userID, id uuid.UUID) error

	CreateReminder(ctx context.Context, r *Reminder) error
	GetReminder(ctx context.Context, userID, id uuid.UUID) (*Reminder, error)
	ListReminders(ctx context.Context, userID uuid.UUID, f ReminderFilter) ([]Reminder, error)
	UpdateReminder(ctx context.Context, r *Reminder) error
	DeleteReminder(ctx context.Context, userID, id uuid.UUID) error
}

// page clamps limit and offset to sane values.
func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return min(limit, MaxPageSize), max(offset, 0)
}
