package journal

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/sanitizer"
	"github.com/dmitrymomot/diary/pkg/validator"
)

var (
	Categories = []string{
		"personal", "work", "health", "social", "birthday",
		"appointment", "deadline", "event", "travel", "other",
	}
	// Priorities in ascending order of urgency.
	Priorities = []string{"low", "medium", "high", "urgent"}
)

const (
	defaultCategory   = "personal"
	defaultPriority   = "medium"
	maxDescriptionLen = 5000
	maxLocationLen    = 200
)

// Reminder is a dated personal note, such as a birthday or a deadline.
type Reminder struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"-"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Date        time.Time  `json:"date"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Location    string     `json:"location,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DaysUntil is negative for past dates.
func (r *Reminder) DaysUntil(now time.Time) int {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(r.Date.Sub(today).Hours() / 24)
}

// Overdue reports whether an open reminder's date has passed.
func (r *Reminder) Overdue(now time.Time) bool {
	return !r.Completed && r.DaysUntil(now) < 0
}

// ReminderInput is the user-editable part of a reminder. Date uses
// YYYY-MM-DD and is required.
type ReminderInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Category    string `json:"category,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Location    string `json:"location,omitempty"`
}

func (in ReminderInput) normalize() ReminderInput {
	in.Title = sanitizer.Apply(in.Title, sanitizer.RemoveControlChars, sanitizer.SingleLine)
	in.Description = sanitizer.Apply(in.Description, sanitizer.RemoveControlChars, sanitizer.NormalizeNewlines)
	in.Date = sanitizer.Trim(in.Date)
	in.Category = sanitizer.TrimToLower(in.Category)
	in.Priority = sanitizer.TrimToLower(in.Priority)
	in.Location = sanitizer.SingleLine(in.Location)
	if in.Category == "" {
		in.Category = defaultCategory
	}
	if in.Priority == "" {
		in.Priority = defaultPriority
	}
	return in
}

func (in ReminderInput) validate(dateErr error) error {
	return validator.Apply(
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, maxTitleLen),
		validator.MaxLen("description", in.Description, maxDescriptionLen),
		validator.Required("date", in.Date),
		dateRule(dateErr),
		validator.OneOf("category", in.Category, Categories),
		validator.OneOf("priority", in.Priority, Priorities),
		validator.MaxLen("location", in.Location, maxLocationLen),
	)
}

func (in ReminderInput) apply(r *Reminder, date time.Time) {
	r.Title = in.Title
	r.Description = in.Description
	r.Date = date
	r.Category = in.Category
	r.Priority = in.Priority
	r.Location = in.Location
}

// ReminderFilter narrows ListReminders. A nil Completed lists both.
type ReminderFilter struct {
	Query     string
	Category  string
	Completed *bool
	Limit     int
	Offset    int
}

// priorityRank orders priorities for sorting, most urgent highest.
func priorityRank(p string) int {
	for i, v := range Priorities {
		if v == p {
			return i
		}
	}
	return -1
}
