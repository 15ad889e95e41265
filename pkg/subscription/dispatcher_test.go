package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/subscription"
)

type recordingNotifier struct {
	mu      sync.Mutex
	err     error
	notices []subscription.ReminderNotice
}

func (n *recordingNotifier) Notify(_ context.Context, notice subscription.ReminderNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	return nil
}

func TestService_DispatchReminders(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := f.provision(t)

	_, err := f.svc.AssignPlan(ctx, userID, "pro-monthly")
	require.NoError(t, err)

	t.Run("nothing due yet", func(t *testing.T) {
		res, err := f.svc.DispatchReminders(ctx, &recordingNotifier{}, subscription.DispatchOptions{})
		require.NoError(t, err)
		assert.Zero(t, res.Due)
	})

	f.clock.Advance(days(24))

	t.Run("dry run does not mutate", func(t *testing.T) {
		res, err := f.svc.DispatchReminders(ctx, nil, subscription.DispatchOptions{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Due)
		assert.Zero(t, res.Sent)
		require.Len(t, res.Notices, 1)
		assert.Equal(t, subscription.ReminderRenewal7, res.Notices[0].Reminder.Type)

		reminders, err := f.svc.ListReminders(ctx, userID)
		require.NoError(t, err)
		for _, r := range reminders {
			assert.False(t, r.Sent)
		}
	})

	t.Run("failed delivery stays due", func(t *testing.T) {
		n := &recordingNotifier{err: errors.New("smtp down")}
		res, err := f.svc.DispatchReminders(ctx, n, subscription.DispatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
		assert.Zero(t, res.Sent)
	})

	t.Run("delivers and marks sent", func(t *testing.T) {
		n := &recordingNotifier{}
		res, err := f.svc.DispatchReminders(ctx, n, subscription.DispatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Sent)
		require.Len(t, n.notices, 1)

		notice := n.notices[0]
		assert.Equal(t, userID, notice.Reminder.UserID)
		require.NotNil(t, notice.Plan)
		assert.Equal(t, "pro-monthly", notice.Plan.ID)
		assert.Equal(t, "Your Diary subscription expires in 7 days", notice.Subject())

		res, err = f.svc.DispatchReminders(ctx, n, subscription.DispatchOptions{})
		require.NoError(t, err)
		assert.Zero(t, res.Due)
		assert.Len(t, n.notices, 1)
	})

	t.Run("notifier required", func(t *testing.T) {
		_, err := f.svc.DispatchReminders(ctx, nil, subscription.DispatchOptions{})
		assert.ErrorIs(t, err, subscription.ErrConfiguration)
	})
}
