package journal

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]Entry
	reminders map[uuid.UUID]Reminder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[uuid.UUID]Entry),
		reminders: make(map[uuid.UUID]Reminder),
	}
}

func (m *MemoryStore) CreateEntry(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = cloneEntry(*e)
	return nil
}

func (m *MemoryStore) GetEntry(_ context.Context, userID, id uuid.UUID) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return nil, ErrEntryNotFound
	}
	e = cloneEntry(e)
	return &e, nil
}

func (m *MemoryStore) ListEntries(_ context.Context, userID uuid.UUID, f EntryFilter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	tag := strings.ToLower(strings.TrimSpace(f.Tag))
	out := lo.Filter(lo.Values(m.entries), func(e Entry, _ int) bool {
		switch {
		case e.UserID != userID, e.Archived != f.Archived:
			return false
		case f.Mood != "" && e.Mood != f.Mood:
			return false
		case tag != "" && !slices.Contains(e.Tags, tag):
			return false
		case q != "":
			return strings.Contains(strings.ToLower(e.Title), q) ||
				strings.Contains(strings.ToLower(e.Content), q) ||
				slices.ContainsFunc(e.Tags, func(t string) bool { return strings.Contains(t, q) })
		}
		return true
	})
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(b.Date.Compare(a.Date), b.CreatedAt.Compare(a.CreatedAt))
	})
	return paginate(lo.Map(out, func(e Entry, _ int) Entry { return cloneEntry(e) }), f.Limit, f.Offset), nil
}

func (m *MemoryStore) UpdateEntry(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[e.ID]
	if !ok || cur.UserID != e.UserID {
		return ErrEntryNotFound
	}
	m.entries[e.ID] = cloneEntry(*e)
	return nil
}

func (m *MemoryStore) DeleteEntry(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) CreateReminder(_ context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetReminder(_ context.Context, userID, id uuid.UUID) (*Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reminders[id]
	if !ok || r.UserID != userID {
		return nil, ErrReminderNotFound
	}
	return &r, nil
}

func (m *MemoryStore) ListReminders(_ context.Context, userID uuid.UUID, f ReminderFilter) ([]Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := lo.Filter(lo.Values(m.reminders), func(r Reminder, _ int) bool {
		switch {
		case r.UserID != userID:
			return false
		case f.Completed != nil && r.Completed != *f.Completed:
			return false
		case f.Category != "" && r.Category != f.Category:
			return false
		case q != "":
			return strings.Contains(strings.ToLower(r.Title), q) ||
				strings.Contains(strings.ToLower(r.Description), q)
		}
		return true
	})
	slices.SortFunc(out, func(a, b Reminder) int {
		return cmp.Or(
			a.Date.Compare(b.Date),
			cmp.Compare(priorityRank(b.Priority), priorityRank(a.Priority)),
			a.CreatedAt.Compare(b.CreatedAt),
		)
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryStore) UpdateReminder(_ context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reminders[r.ID]
	if !ok || cur.UserID != r.UserID {
		return ErrReminderNotFound
	}
	m.reminders[r.ID] = *r
	return nil
}

func (m *MemoryStore) DeleteReminder(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.UserID != userID {
		return ErrReminderNotFound
	}
	delete(m.reminders, id)
	return nil
}

func cloneEntry(e Entry) Entry {
	e.Tags = slices.Clone(e.Tags)
	return e
}

func paginate[T any](items []T, limit, offset int) []T {
	limit, offset = page(limit, offset)
	if offset >= len(items) {
		return []T{}
	}
	return items[offset:min(offset+limit, len(items))]
}
