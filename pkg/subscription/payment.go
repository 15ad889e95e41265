package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is an entry in the append-only payment log. The only permitted
// mutation is pending -> completed|failed.
type Payment struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	SubscriptionID uuid.UUID // uuid.Nil when the user had no subscription yet
	PlanID         string
	Amount         decimal.Decimal
	Currency       string
	Status         PaymentStatus
	Method         PaymentMethod
	ExternalRef    string // unique gateway reference (checkout session, payment intent, transaction)
	TransactionID  string
	PaidAt         time.Time
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// canSettle reports whether the payment may still move to a terminal status.
func (p *Payment) canSettle() bool {
	return p.Status == PaymentPending
}
