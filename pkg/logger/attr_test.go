package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("grp", slog.String("k", "v"))
	require.Equal(t, "grp", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	group := attr.Value.Group()
	require.Len(t, group, 1)
	assert.Equal(t, "k", group[0].Key)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	t.Run("keeps non-nil errors", func(t *testing.T) {
		t.Parallel()
		attr := logger.Errors(errors.New("a"), nil, errors.New("b"))
		require.Equal(t, "errors", attr.Key)
		assert.Len(t, attr.Value.Group(), 2)
	})

	t.Run("all nil yields empty attr", func(t *testing.T) {
		t.Parallel()
		assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
	})
}

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestIDAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want any
	}{
		{"user", logger.UserID("u-1"), "user_id", "u-1"},
		{"subscription", logger.SubscriptionID(int64(7)), "subscription_id", int64(7)},
		{"plan", logger.PlanID("pro-monthly"), "plan_id", "pro-monthly"},
		{"reminder", logger.ReminderType("renewal_3"), "reminder_type", "renewal_3"},
		{"external ref", logger.ExternalRef("cs_123"), "external_ref", "cs_123"},
		{"event", logger.EventType("checkout.session.completed"), "event_type", "checkout.session.completed"},
		{"request", logger.RequestID("req"), "request_id", "req"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.Any())
		})
	}

	assert.True(t, logger.UserID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.SubscriptionID(nil).Equal(slog.Attr{}))
}
