package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// PGStore persists journal records in PostgreSQL.
type PGStore struct {
	db *sqlx.DB
}

// NewPGStore returns a store backed by db.
func NewPGStore(db *sqlx.DB) *PGStore {
	if db == nil {
		panic("journal: db cannot be nil")
	}
	return &PGStore{db: db}
}

// OpenDB exposes pool through database/sql for sqlx. Closing the returned
// handle does not close the pool.
func OpenDB(pool *pgxpool.Pool) *sqlx.DB {
	return sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
}

// entryRow is the journal_entries row; tags are stored comma-separated.
type entryRow struct {
	ID         uuid.UUID  `db:"id"`
	UserID     uuid.UUID  `db:"user_id"`
	Title      string     `db:"title"`
	Content    string     `db:"content"`
	Date       time.Time  `db:"entry_date"`
	Mood       string     `db:"mood"`
	Tags       string     `db:"tags"`
	WordCount  int        `db:"word_count"`
	Archived   bool       `db:"archived"`
	ArchivedAt *time.Time `db:"archived_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

func toEntryRow(e *Entry) entryRow {
	return entryRow{
		ID: e.ID, UserID: e.UserID, Title: e.Title, Content: e.Content, Date: e.Date,
		Mood: e.Mood, Tags: strings.Join(e.Tags, ","), WordCount: e.WordCount,
		Archived: e.Archived, ArchivedAt: e.ArchivedAt, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

func (r entryRow) entry() Entry {
	tags := []string{}
	if r.Tags != "" {
		tags = strings.Split(r.Tags, ",")
	}
	return Entry{
		ID: r.ID, UserID: r.UserID, Title: r.Title, Content: r.Content, Date: r.Date.UTC(),
		Mood: r.Mood, Tags: tags, WordCount: r.WordCount, Archived: r.Archived,
		ArchivedAt: utc(r.ArchivedAt), CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type reminderRow struct {
	ID          uuid.UUID  `db:"id"`
	UserID      uuid.UUID  `db:"user_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Date        time.Time  `db:"due_date"`
	Category    string     `db:"category"`
	Priority    string     `db:"priority"`
	Location    string     `db:"location"`
	Completed   bool       `db:"completed"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func toReminderRow(r *Reminder) reminderRow {
	return reminderRow{
		ID: r.ID, UserID: r.UserID, Title: r.Title, Description: r.Description, Date: r.Date,
		Category: r.Category, Priority: r.Priority, Location: r.Location, Completed: r.Completed,
		CompletedAt: r.CompletedAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (r reminderRow) reminder() Reminder {
	return Reminder{
		ID: r.ID, UserID: r.UserID, Title: r.Title, Description: r.Description, Date: r.Date.UTC(),
		Category: r.Category, Priority: r.Priority, Location: r.Location, Completed: r.Completed,
		CompletedAt: utc(r.CompletedAt), CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const (
	entryColumns = `id, user_id, title, content, entry_date, mood, tags, word_count,
		archived, archived_at, created_at, updated_at`
	reminderColumns = `id, user_id, title, description, due_date, category, priority, location,
		completed, completed_at, created_at, updated_at`
)

func (s *PGStore) CreateEntry(ctx context.Context, e *Entry) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO journal_entries (`+entryColumns+`)
		VALUES (:id, :user_id, :title, :content, :entry_date, :mood, :tags, :word_count,
			:archived, :archived_at, :created_at, :updated_at)`, toEntryRow(e))
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *PGStore) GetEntry(ctx context.Context, userID, id uuid.UUID) (*Entry, error) {
	var row entryRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e := row.entry()
	return &e, nil
}

func (s *PGStore) ListEntries(ctx context.Context, userID uuid.UUID, f EntryFilter) ([]Entry, error) {
	q := &queryBuilder{}
	q.where("user_id = %s", userID)
	q.where("archived = %s", f.Archived)
	if f.Mood != "" {
		q.where("mood = %s", f.Mood)
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		q.where("(',' || tags || ',') LIKE %s", "%,"+escapeLike(tag)+",%")
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		q.where("(title ILIKE %[1]s OR content ILIKE %[1]s OR tags ILIKE %[1]s)", "%"+escapeLike(text)+"%")
	}
	limit, offset := page(f.Limit, f.Offset)

	var rows []entryRow
	query := `SELECT ` + entryColumns + ` FROM journal_entries` + q.clause() +
		` ORDER BY entry_date DESC, created_at DESC` + q.page(limit, offset)
	if err := s.db.SelectContext(ctx, &rows, query, q.args...); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry())
	}
	return out, nil
}

func (s *PGStore) UpdateEntry(ctx context.Context, e *Entry) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE journal_entries
		SET title = :title, content = :content, entry_date = :entry_date, mood = :mood,
			tags = :tags, word_count = :word_count, archived = :archived,
			archived_at = :archived_at, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`, toEntryRow(e))
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return affected(res, ErrEntryNotFound)
}

func (s *PGStore) DeleteEntry(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return affected(res, ErrEntryNotFound)
}

func (s *PGStore) CreateReminder(ctx context.Context, r *Reminder) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO journal_reminders (`+reminderColumns+`)
		VALUES (:id, :user_id, :title, :description, :due_date, :category, :priority, :location,
			:completed, :completed_at, :created_at, :updated_at)`, toReminderRow(r))
	if err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (s *PGStore) GetReminder(ctx context.Context, userID, id uuid.UUID) (*Reminder, error) {
	var row reminderRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+reminderColumns+` FROM journal_reminders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	r := row.reminder()
	return &r, nil
}

func (s *PGStore) ListReminders(ctx context.Context, userID uuid.UUID, f ReminderFilter) ([]Reminder, error) {
	q := &queryBuilder{}
	q.where("user_id = %s", userID)
	if f.Completed != nil {
		q.where("completed = %s", *f.Completed)
	}
	if f.Category != "" {
		q.where("category = %s", f.Category)
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		q.where("(title ILIKE %[1]s OR description ILIKE %[1]s)", "%"+escapeLike(text)+"%")
	}
	limit, offset := page(f.Limit, f.Offset)

	var rows []reminderRow
	query := `SELECT ` + reminderColumns + ` FROM journal_reminders` + q.clause() + `
		ORDER BY due_date,
			CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			created_at` + q.page(limit, offset)
	if err := s.db.SelectContext(ctx, &rows, query, q.args...); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	out := make([]Reminder, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.reminder())
	}
	return out, nil
}

func (s *PGStore) UpdateReminder(ctx context.Context, r *Reminder) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE journal_reminders
		SET title = :title, description = :description, due_date = :due_date,
			category = :category, priority = :priority, location = :location,
			completed = :completed, completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`, toReminderRow(r))
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	return affected(res, ErrReminderNotFound)
}

func (s *PGStore) DeleteReminder(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal_reminders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return affected(res, ErrReminderNotFound)
}

// queryBuilder accumulates WHERE conditions with numbered placeholders.
type queryBuilder struct {
	conds []string
	args  []any
}

// where adds a condition; every %s verb in cond refers to arg.
func (q *queryBuilder) where(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, fmt.Sprintf(cond, fmt.Sprintf("$%d", len(q.args))))
}

func (q *queryBuilder) clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func (q *queryBuilder) page(limit, offset int) string {
	q.args = append(q.args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(q.args)-1, len(q.args))
}

func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
