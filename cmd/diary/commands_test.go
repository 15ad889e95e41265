package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/subscription"
)

func TestRootCmd_Commands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{
		"serve", "migrate", "seed-plans", "provision-user", "assign-plan",
		"check-subscriptions", "send-reminders", "reset-usage",
	}, names)
}

func TestRootCmd_RequiredFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		flag string
	}{
		{"provision without user", []string{"provision-user"}, "user"},
		{"assign without plan", []string{"assign-plan", "--user", "00000000-0000-0000-0000-000000000001"}, "plan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := newRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.flag)
		})
	}
}

func TestPrintPlans(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, printPlans(&buf, subscription.DefaultPlans()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(subscription.DefaultPlans())+1)
	assert.Contains(t, lines[0], "REMINDERS")
	assert.Contains(t, buf.String(), "unlimited")
	assert.Contains(t, lines[1], "free")
}

func TestParseUser(t *testing.T) {
	t.Parallel()

	id, err := parseUser(" 00000000-0000-0000-0000-000000000001 ")
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", id.String())

	_, err = parseUser("bob")
	assert.Error(t, err)
}
