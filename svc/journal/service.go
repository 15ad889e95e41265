package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

// Quota gates creation of quota-controlled resources.
// subscription.Service satisfies it.
type Quota interface {
	Consume(ctx context.Context, userID uuid.UUID, res subscription.Resource, create func(ctx context.Context) error) error
}

// Service defines the diary operations available to an authenticated user.
type Service interface {
	CreateEntry(ctx context.Context, userID uuid.UUID, in EntryInput) (*Entry, error)
	GetEntry(ctx context.Context, userID, id uuid.UUID) (*Entry, error)
	ListEntries(ctx context.Context, userID uuid.UUID, f EntryFilter) ([]Entry, error)
	UpdateEntry(ctx context.Context, userID, id uuid.UUID, in EntryInput) (*Entry, error)
	SetArchived(ctx context.Context, userID, id uuid.UUID, archived bool) (*Entry, error)
	DeleteEntry(ctx context.Context, userID, id uuid.UUID) error

	CreateReminder(ctx context.Context, userID uuid.UUID, in ReminderInput) (*Reminder, error)
	GetReminder(ctx context.Context, userID, id uuid.UUID) (*Reminder, error)
	ListReminders(ctx context.Context, userID uuid.UUID, f ReminderFilter) ([]Reminder, error)
	UpdateReminder(ctx context.Context, userID, id uuid.UUID, in ReminderInput) (*Reminder, error)
	SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) (*Reminder, error)
	DeleteReminder(ctx context.Context, userID, id uuid.UUID) error
}

type service struct {
	store Store
	quota Quota
	log   *slog.Logger
	now   func() time.Time
}

// Option configures the journal service.
type Option func(*service)

func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a journal Service. Panics if store or quota is nil.
func NewService(store Store, quota Quota, opts ...Option) Service {
	if store == nil {
		panic("journal: Store is required")
	}
	if quota == nil {
		panic("journal: Quota is required")
	}
	s := &service{
		store: store,
		quota: quota,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("journal"))
	return s
}

func (s *service) CreateEntry(ctx context.Context, userID uuid.UUID, in EntryInput) (*Entry, error) {
	now := s.now()
	in = in.normalize()
	date, dateErr := parseDate(in.Date, now)
	if err := in.validate(dateErr); err != nil {
		return nil, err
	}

	e := &Entry{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	in.apply(e, date)

	err := s.quota.Consume(ctx, userID, subscription.ResourceEntries, func(ctx context.Context) error {
		return s.store.CreateEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	s.log.DebugContext(ctx, "diary entry created", logger.UserID(userID), slog.String("entry_id", e.ID.String()))
	return e, nil
}

func (s *service) GetEntry(ctx context.Context, userID, id uuid.UUID) (*Entry, error) {
	return s.store.GetEntry(ctx, userID, id)
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID, f EntryFilter) ([]Entry, error) {
	f.Mood = normalizeFilter(f.Mood)
	f.Limit, f.Offset = page(f.Limit, f.Offset)
	return s.store.ListEntries(ctx, userID, f)
}

func (s *service) UpdateEntry(ctx context.Context, userID, id uuid.UUID, in EntryInput) (*Entry, error) {
	e, err := s.store.GetEntry(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	in = in.normalize()
	if in.Date == "" {
		in.Date = e.Date.Format(dateLayout)
	}
	date, dateErr := parseDate(in.Date, s.now())
	if err := in.validate(dateErr); err != nil {
		return nil, err
	}

	in.apply(e, date)
	e.UpdatedAt = s.now()
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *service) SetArchived(ctx context.Context, userID, id uuid.UUID, archived bool) (*Entry, error) {
	e, err := s.store.GetEntry(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if e.Archived == archived {
		return e, nil
	}

	now := s.now()
	e.Archived = archived
	e.ArchivedAt = nil
	if archived {
		e.ArchivedAt = &now
	}
	e.UpdatedAt = now
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEntry does not refund usage: counters track creations per period.
func (s *service) DeleteEntry(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.DeleteEntry(ctx, userID, id)
}

func (s *service) CreateReminder(ctx context.Context, userID uuid.UUID, in ReminderInput) (*Reminder, error) {
	now := s.now()
	in = in.normalize()
	date, dateErr := parseReminderDate(in.Date)
	if err := in.validate(dateErr); err != nil {
		return nil, err
	}

	r := &Reminder{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	in.apply(r, date)

	err := s.quota.Consume(ctx, userID, subscription.ResourceReminders, func(ctx context.Context) error {
		return s.store.CreateReminder(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.log.DebugContext(ctx, "reminder created", logger.UserID(userID), slog.String("reminder_id", r.ID.String()))
	return r, nil
}

func (s *service) GetReminder(ctx context.Context, userID, id uuid.UUID) (*Reminder, error) {
	return s.store.GetReminder(ctx, userID, id)
}

func (s *service) ListReminders(ctx context.Context, userID uuid.UUID, f ReminderFilter) ([]Reminder, error) {
	f.Category = normalizeFilter(f.Category)
	f.Limit, f.Offset = page(f.Limit, f.Offset)
	return s.store.ListReminders(ctx, userID, f)
}

func (s *service) UpdateReminder(ctx context.Context, userID, id uuid.UUID, in ReminderInput) (*Reminder, error) {
	r, err := s.store.GetReminder(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	in = in.normalize()
	date, dateErr := parseReminderDate(in.Date)
	if err := in.validate(dateErr); err != nil {
		return nil, err
	}

	in.apply(r, date)
	r.UpdatedAt = s.now()
	if err := s.store.UpdateReminder(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *service) SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) (*Reminder, error) {
	r, err := s.store.GetReminder(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if r.Completed == completed {
		return r, nil
	}

	now := s.now()
	r.Completed = completed
	r.CompletedAt = nil
	if completed {
		r.CompletedAt = &now
	}
	r.UpdatedAt = now
	if err := s.store.UpdateReminder(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *service) DeleteReminder(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.DeleteReminder(ctx, userID, id)
}

// parseReminderDate requires a date; the Required rule reports the empty case.
func parseReminderDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}
