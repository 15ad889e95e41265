package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a scheduled payment notification.
// At most one exists per (user, subscription, type).
type Reminder struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	SubscriptionID uuid.UUID
	Type           ReminderType
	ScheduledAt    time.Time
	Sent           bool
	SentAt         *time.Time
	CreatedAt      time.Time
}

var renewalOffsets = []struct {
	days int
	typ  ReminderType
}{
	{7, ReminderRenewal7},
	{3, ReminderRenewal3},
	{1, ReminderRenewal1},
}

// RenewalReminders derives the renewal reminders for sub as of now. Only
// active, auto-renewing subscriptions get reminders, and only for offsets
// whose scheduled time is still in the future.
func RenewalReminders(sub *Subscription, now time.Time) []Reminder {
	if !sub.AutoRenew || sub.Status != StatusActive {
		return nil
	}
	var out []Reminder
	for _, o := range renewalOffsets {
		at := sub.EndDate.Add(-time.Duration(o.days) * day)
		if !at.After(now) {
			continue
		}
		out = append(out, Reminder{
			ID:             uuid.New(),
			UserID:         sub.UserID,
			SubscriptionID: sub.ID,
			Type:           o.typ,
			ScheduledAt:    at,
			CreatedAt:      now,
		})
	}
	return out
}

// Subject is the email subject line for the reminder type.
func (t ReminderType) Subject() string {
	switch t {
	case ReminderRenewal7:
		return "Your Diary subscription expires in 7 days"
	case ReminderRenewal3:
		return "Your Diary subscription expires in 3 days"
	case ReminderRenewal1:
		return "Your Diary subscription expires tomorrow"
	case ReminderExpired:
		return "Your Diary subscription has expired"
	case ReminderFailedPayment:
		return "Payment failed for your Diary subscription"
	}
	return "Diary subscription update"
}

func newReminder(sub *Subscription, typ ReminderType, at time.Time) Reminder {
	return Reminder{
		ID:             uuid.New(),
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Type:           typ,
		ScheduledAt:    at,
		CreatedAt:      at,
	}
}
