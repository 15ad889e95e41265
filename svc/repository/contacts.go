package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/diary/pkg/pg"
)

// ErrContactNotFound is returned when a user has no stored email address.
var ErrContactNotFound = errors.New("contact not found")

// Contacts stores the email address reminders are delivered to.
type Contacts struct {
	pool *pgxpool.Pool
}

func NewContacts(pool *pgxpool.Pool) *Contacts {
	if pool == nil {
		panic("repository: pool cannot be nil")
	}
	return &Contacts{pool: pool}
}

// SetEmail creates or replaces the user's address.
func (c *Contacts) SetEmail(ctx context.Context, userID uuid.UUID, email string) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO user_contacts (user_id, email, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, updated_at = EXCLUDED.updated_at`,
		userID, email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set contact email: %w", err)
	}
	return nil
}

func (c *Contacts) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	err := c.pool.QueryRow(ctx, `SELECT email FROM user_contacts WHERE user_id = $1`, userID).Scan(&email)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return "", ErrContactNotFound
		}
		return "", fmt.Errorf("get contact email: %w", err)
	}
	return email, nil
}
