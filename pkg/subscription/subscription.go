package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription binds a user to exactly one plan at a time.
// Records are never deleted; the lifecycle is carried by Status.
type Subscription struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	PlanID      string
	Status      Status
	StartDate   time.Time
	EndDate     time.Time
	AutoRenew   bool
	ExternalRef string // gateway subscription reference, empty for free plans
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive reports whether the subscription currently grants its plan.
func (s *Subscription) IsActive(now time.Time) bool {
	return (s.Status == StatusActive || s.Status == StatusTrial) && s.EndDate.After(now)
}

// DaysUntilExpiry returns the whole days left before EndDate, never negative.
func (s *Subscription) DaysUntilExpiry(now time.Time) int {
	if !s.EndDate.After(now) {
		return 0
	}
	return int(s.EndDate.Sub(now) / day)
}

// NeedsPaymentReminder reports whether a renewal nudge is due within a week.
func (s *Subscription) NeedsPaymentReminder(now time.Time) bool {
	return s.AutoRenew && s.Status == StatusActive && s.DaysUntilExpiry(now) <= 7
}

// Extend adds one plan period to the current EndDate, keeping any unused
// time, and reactivates the subscription. Lifetime plans keep their end date.
func (s *Subscription) Extend(plan Plan) {
	if plan.DurationDays > 0 {
		s.EndDate = s.EndDate.AddDate(0, 0, plan.DurationDays)
	}
	s.Status = StatusActive
}

// TransitionOnSave expires an active subscription whose EndDate has passed.
// Every write path must call it before persisting.
func (s *Subscription) TransitionOnSave(now time.Time) {
	if s.Status == StatusActive && !s.EndDate.After(now) {
		s.Status = StatusExpired
	}
}

// switchPlan moves the subscription onto plan starting at now.
func (s *Subscription) switchPlan(plan Plan, now time.Time) {
	s.PlanID = plan.ID
	s.StartDate = now
	s.EndDate = plan.EndDate(now)
	s.Status = StatusActive
}
