package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/email"
	"github.com/dmitrymomot/diary/pkg/email/templates"
	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

// Recipients resolves the email address of a user.
type Recipients interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

// EmailNotifier delivers payment reminders as HTML email. It satisfies
// subscription.Notifier.
type EmailNotifier struct {
	sender     email.EmailSender
	recipients Recipients
	siteURL    string
	support    string
	log        *slog.Logger
}

var _ subscription.Notifier = (*EmailNotifier)(nil)

type NotifierOption func(*EmailNotifier)

// WithSiteURL sets the base URL used for renewal and management links.
func WithSiteURL(u string) NotifierOption {
	return func(n *EmailNotifier) { n.siteURL = strings.TrimRight(u, "/") }
}

func WithSupportEmail(addr string) NotifierOption {
	return func(n *EmailNotifier) { n.support = addr }
}

func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *EmailNotifier) {
		if l != nil {
			n.log = l
		}
	}
}

func NewEmailNotifier(sender email.EmailSender, recipients Recipients, opts ...NotifierOption) *EmailNotifier {
	if sender == nil {
		panic("billing: email sender cannot be nil")
	}
	if recipients == nil {
		panic("billing: recipients cannot be nil")
	}
	n := &EmailNotifier{sender: sender, recipients: recipients, log: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify renders and sends the reminder. Any error leaves the reminder due,
// so the dispatcher retries it on the next run.
func (n *EmailNotifier) Notify(ctx context.Context, notice subscription.ReminderNotice) error {
	r := notice.Reminder
	to, err := n.recipients.Email(ctx, r.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	body, err := templates.Render(ctx, templates.Message(n.message(notice)))
	if err != nil {
		return fmt.Errorf("render reminder email: %w", err)
	}

	params := email.SendEmailParams{
		SendTo:   to,
		Subject:  notice.Subject(),
		BodyHTML: body,
		Tag:      string(r.Type),
	}
	if err := n.sender.SendEmail(ctx, params); err != nil {
		return fmt.Errorf("send reminder email: %w", err)
	}

	n.log.DebugContext(ctx, "reminder email sent",
		logger.UserID(r.UserID),
		logger.ReminderType(string(r.Type)))
	return nil
}

func (n *EmailNotifier) message(notice subscription.ReminderNotice) templates.MessageData {
	planName := "Diary"
	if notice.Plan != nil {
		planName = notice.Plan.Name
	}
	var ends string
	if notice.Subscription != nil {
		ends = notice.Subscription.EndDate.Format("January 2, 2006")
	}

	d := templates.MessageData{
		Title:    notice.Subject(),
		Greeting: "Hello,",
	}
	manage := &templates.Action{Label: "Manage subscription", URL: n.siteURL + "/subscription"}

	switch notice.Reminder.Type {
	case subscription.ReminderRenewal7, subscription.ReminderRenewal3, subscription.ReminderRenewal1:
		d.Paragraphs = []string{
			fmt.Sprintf("Your %s subscription ends on %s.", planName, ends),
			"It renews automatically. Make sure your payment details are up to date to keep access to your entries and reminders.",
		}
		d.Action = manage
	case subscription.ReminderExpired:
		d.Paragraphs = []string{
			fmt.Sprintf("Your %s subscription expired on %s.", planName, ends),
			"Renew now to keep your plan limits. Otherwise your account moves to the free plan after the grace period.",
		}
		d.Action = &templates.Action{Label: "Renew subscription", URL: n.siteURL + "/subscription/renew"}
	case subscription.ReminderFailedPayment:
		d.Paragraphs = []string{
			fmt.Sprintf("We could not process the payment for your %s subscription.", planName),
			"Please check your payment method and try again.",
		}
		d.Action = manage
	default:
		d.Paragraphs = []string{"There is an update to your Diary subscription."}
		d.Action = manage
	}
	if n.support != "" {
		d.Footer = "Questions? Contact " + n.support + "."
	}
	return d
}

// MemoryRecipients is a fixed user-to-address map.
type MemoryRecipients map[uuid.UUID]string

func (m MemoryRecipients) Email(_ context.Context, userID uuid.UUID) (string, error) {
	addr, ok := m[userID]
	if !ok {
		return "", ErrNoRecipient
	}
	return addr, nil
}
