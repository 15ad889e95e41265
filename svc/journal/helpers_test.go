package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/svc/journal"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return t0 }

type fixture struct {
	svc   journal.Service
	store *journal.MemoryStore
	subs  subscription.Service
	user  uuid.UUID
}

// newFixture wires the journal service to a real subscription service on
// in-memory stores, with a provisioned free-plan user.
func newFixture(t *testing.T, plans ...subscription.Plan) *fixture {
	t.Helper()
	if len(plans) == 0 {
		plans = []subscription.Plan{{
			ID: "free", Name: "Free", Type: subscription.PlanFree,
			MaxEntries: 3, MaxReminders: 2, Active: true,
		}}
	}

	subs := subscription.NewService(subscription.NewMemoryStore(), subscription.MustCatalog(plans...),
		subscription.WithLogger(logger.Discard()),
		subscription.WithClock(clock),
	)
	user := uuid.New()
	_, err := subs.ProvisionUser(context.Background(), user)
	require.NoError(t, err)

	store := journal.NewMemoryStore()
	return &fixture{
		svc:   journal.NewService(store, subs, journal.WithLogger(logger.Discard()), journal.WithClock(clock)),
		store: store,
		subs:  subs,
		user:  user,
	}
}

func (f *fixture) usage(t *testing.T, res subscription.Resource) int64 {
	t.Helper()
	all, err := f.subs.GetAllUsage(context.Background(), f.user)
	require.NoError(t, err)
	return all[res].Current
}

// failingStore rejects every create.
type failingStore struct {
	*journal.MemoryStore
}

var errStoreDown = errors.New("store down")

func (failingStore) CreateEntry(context.Context, *journal.Entry) error       { return errStoreDown }
func (failingStore) CreateReminder(context.Context, *journal.Reminder) error { return errStoreDown }
