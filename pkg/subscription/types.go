package subscription

import "time"

// Resource is a quota-controlled resource type.
type Resource string

const (
	ResourceEntries   Resource = "entries"
	ResourceReminders Resource = "reminders"
)

// Resources lists every quota-controlled resource in display order.
var Resources = []Resource{ResourceEntries, ResourceReminders}

func (r Resource) Valid() bool {
	return r == ResourceEntries || r == ResourceReminders
}

// Unlimited marks a limit without an upper bound (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// SentinelYears is how far in the future open-ended subscriptions end.
// Free and lifetime plans still carry an end date so expiry comparisons are total.
const SentinelYears = 10

const DefaultCurrency = "USD"

// PlanType is the billing category of a plan.
type PlanType string

const (
	PlanFree     PlanType = "free"
	PlanMonthly  PlanType = "monthly"
	PlanYearly   PlanType = "yearly"
	PlanLifetime PlanType = "lifetime"
)

func (t PlanType) Valid() bool {
	switch t {
	case PlanFree, PlanMonthly, PlanYearly, PlanLifetime:
		return true
	}
	return false
}

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusPending   Status = "pending"
	StatusTrial     Status = "trial"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusCancelled, StatusPending, StatusTrial:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	MethodStripe PaymentMethod = "stripe"
	MethodPaddle PaymentMethod = "paddle"
	MethodPayPal PaymentMethod = "paypal"
	MethodBank   PaymentMethod = "bank_transfer"
	MethodManual PaymentMethod = "manual"
)

// ReminderType is the category of a payment reminder.
type ReminderType string

const (
	ReminderRenewal7      ReminderType = "renewal_7"
	ReminderRenewal3      ReminderType = "renewal_3"
	ReminderRenewal1      ReminderType = "renewal_1"
	ReminderExpired       ReminderType = "expired"
	ReminderFailedPayment ReminderType = "failed_payment"
)

// UsageInfo contains the current usage and limit for a resource.
type UsageInfo struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

// Unlimited reports whether the resource has no upper bound.
func (u UsageInfo) Unlimited() bool { return u.Limit == Unlimited }

// Remaining returns how many more resources may be created, or -1 when unlimited.
func (u UsageInfo) Remaining() int64 {
	if u.Limit == Unlimited {
		return Unlimited
	}
	return max(u.Limit-u.Current, 0)
}

// day is the length used for every day-based offset in this package.
const day = 24 * time.Hour
