package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Usage counts quota-controlled resources created since LastReset.
type Usage struct {
	UserID           uuid.UUID
	EntriesCreated   int64
	RemindersCreated int64
	LastReset        time.Time
}

// Count returns the counter for res.
func (u *Usage) Count(res Resource) int64 {
	if u == nil {
		return 0
	}
	switch res {
	case ResourceEntries:
		return u.EntriesCreated
	case ResourceReminders:
		return u.RemindersCreated
	}
	return 0
}

// Add adjusts the counter for res by delta, clamping at zero.
func (u *Usage) Add(res Resource, delta int64) {
	switch res {
	case ResourceEntries:
		u.EntriesCreated = max(u.EntriesCreated+delta, 0)
	case ResourceReminders:
		u.RemindersCreated = max(u.RemindersCreated+delta, 0)
	}
}

// Reset zeroes every counter.
func (u *Usage) Reset(now time.Time) {
	u.EntriesCreated = 0
	u.RemindersCreated = 0
	u.LastReset = now
}

// WithinLimit reports whether one more resource fits under limit.
func WithinLimit(limit, count int64) bool {
	return limit == Unlimited || count < limit
}
