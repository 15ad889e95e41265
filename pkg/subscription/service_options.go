package subscription

import (
	"log/slog"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithProvider sets the payment gateway. Without one, checkout returns
// ErrPaymentUnavailable and webhooks are rejected.
func WithProvider(p Provider) ServiceOption {
	return func(s *service) {
		if p != nil {
			s.provider = p
		}
	}
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGatewayTimeout bounds every outbound gateway call. Panics on a
// non-positive duration.
func WithGatewayTimeout(d time.Duration) ServiceOption {
	if d <= 0 {
		panic("subscription: gateway timeout must be positive")
	}
	return func(s *service) {
		s.gatewayTimeout = d
	}
}

// WithDeduper skips webhook redeliveries by event ID before any storage work.
func WithDeduper(d EventDeduper) ServiceOption {
	return func(s *service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithBatchSize sets how many records the sweeper and dispatcher load per query.
func WithBatchSize(n int) ServiceOption {
	if n <= 0 {
		panic("subscription: batch size must be positive")
	}
	return func(s *service) {
		s.batchSize = n
	}
}
