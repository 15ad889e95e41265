// Package repository implements subscription.Store on PostgreSQL through pgx.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/diary/pkg/pg"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists subscriptions, usage counters, payments and payment
// reminders. The zero value is not usable; call New.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

var _ subscription.Store = (*Store)(nil)

// New returns a Store bound to pool.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("repository: pool cannot be nil")
	}
	return &Store{pool: pool, db: pool}
}

// InTx runs fn inside a transaction. Nested calls join the outer one.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx subscription.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Store{pool: s.pool, db: tx, inTx: true})
	})
}

// lockClause makes reads inside a transaction hold the row until commit.
func (s *Store) lockClause() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}
