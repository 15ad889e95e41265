package journal

import "errors"

var (
	ErrEntryNotFound    = errors.New("diary entry not found")
	ErrReminderNotFound = errors.New("reminder not found")
)
