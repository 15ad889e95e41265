package journal

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/sanitizer"
	"github.com/dmitrymomot/diary/pkg/validator"
)

// Moods a diary entry may be tagged with.
var Moods = []string{
	"happy", "sad", "excited", "calm", "stressed",
	"grateful", "reflective", "energetic", "peaceful", "other",
}

const (
	maxTitleLen   = 200
	maxContentLen = 50000
	maxTags       = 20
	maxTagLen     = 50
	dateLayout    = time.DateOnly
)

// Entry is a single diary entry.
type Entry struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"-"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Date       time.Time  `json:"date"`
	Mood       string     `json:"mood,omitempty"`
	Tags       []string   `json:"tags"`
	WordCount  int        `json:"word_count"`
	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Snippet returns the first n runes of the content.
func (e *Entry) Snippet(n int) string {
	if s := sanitizer.MaxLength(e.Content, n); len(s) < len(e.Content) {
		return s + "..."
	}
	return e.Content
}

// EntryInput is the user-editable part of an entry. Date uses YYYY-MM-DD and
// defaults to today.
type EntryInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Date    string   `json:"date,omitempty"`
	Mood    string   `json:"mood,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

func (in EntryInput) normalize() EntryInput {
	in.Title = sanitizer.Apply(in.Title, sanitizer.RemoveControlChars, sanitizer.SingleLine)
	in.Content = sanitizer.Apply(in.Content, sanitizer.RemoveControlChars, sanitizer.NormalizeNewlines)
	in.Date = sanitizer.Trim(in.Date)
	in.Mood = sanitizer.TrimToLower(in.Mood)
	in.Tags = sanitizer.Tags(in.Tags)
	return in
}

func (in EntryInput) validate(dateErr error) error {
	rules := []validator.Rule{
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, maxTitleLen),
		validator.Required("content", in.Content),
		validator.MaxLen("content", in.Content, maxContentLen),
		validator.OneOf("mood", in.Mood, Moods),
		validator.MaxItems("tags", in.Tags, maxTags),
		dateRule(dateErr),
	}
	for _, tag := range in.Tags {
		rules = append(rules, validator.MaxLen("tags", tag, maxTagLen))
	}
	return validator.Apply(rules...)
}

// apply copies the input onto e and recomputes derived fields.
func (in EntryInput) apply(e *Entry, date time.Time) {
	e.Title = in.Title
	e.Content = in.Content
	e.Date = date
	e.Mood = in.Mood
	e.Tags = in.Tags
	e.WordCount = len(strings.Fields(in.Content))
}

// EntryFilter narrows ListEntries. Query matches title, content and tags
// case-insensitively; Tag matches a whole tag.
type EntryFilter struct {
	Query    string
	Mood     string
	Tag      string
	Archived bool
	Limit    int
	Offset   int
}

// parseDate reads a YYYY-MM-DD value, falling back to today's date.
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateLayout, s)
}

func dateRule(err error) validator.Rule {
	return validator.Rule{
		Check: func() bool { return err == nil },
		Error: validator.ValidationError{Field: "date", Message: "must be a date in YYYY-MM-DD format"},
	}
}

func normalizeFilter(s string) string {
	return sanitizer.TrimToLower(s)
}
