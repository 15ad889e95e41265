package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/dmitrymomot/diary/pkg/handler"
	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

// DefaultHeader carries the user ID set by the authenticating proxy.
const DefaultHeader = "X-User-ID"

// Resolver extracts the user ID from a request.
// It returns ErrUnauthenticated when the request carries no identity.
type Resolver func(r *http.Request) (uuid.UUID, error)

// NewHeaderResolver reads the user ID from header, DefaultHeader when empty.
func NewHeaderResolver(header string) Resolver {
	if header == "" {
		header = DefaultHeader
	}
	return func(r *http.Request) (uuid.UUID, error) {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" {
			return uuid.Nil, ErrUnauthenticated
		}
		id, err := uuid.Parse(value)
		if err != nil || id == uuid.Nil {
			return uuid.Nil, fmt.Errorf("%w: header %s", ErrInvalidUserID, header)
		}
		return id, nil
	}
}

// Provisioner creates the user's subscription and usage records on first
// sight. subscription.Service satisfies it.
type Provisioner interface {
	ProvisionUser(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
}

// DefaultProvisionTTL is how long a provisioned user is remembered before
// the next request provisions again.
const DefaultProvisionTTL = 15 * time.Minute

type config struct {
	provisioner  Provisioner
	provisionTTL time.Duration
	log          *slog.Logger
}

type Option func(*config)

func WithProvisioner(p Provisioner) Option {
	return func(c *config) { c.provisioner = p }
}

// WithProvisionTTL sets how long provisioned users are remembered.
// Non-positive values are ignored.
func WithProvisionTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.provisionTTL = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// Middleware rejects requests without a valid identity with 401 and stores
// the user ID in the request context. With a Provisioner, a user is
// provisioned on the first request and again once the provision TTL lapses;
// failures answer 503 and are retried on the next request.
func Middleware(resolve Resolver, opts ...Option) func(http.Handler) http.Handler {
	if resolve == nil {
		panic("auth: resolver cannot be nil")
	}
	cfg := &config{log: slog.Default(), provisionTTL: DefaultProvisionTTL}
	for _, opt := range opts {
		opt(cfg)
	}

	provisioned := cache.New(cfg.provisionTTL, 2*cfg.provisionTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, err := resolve(r)
			if err != nil {
				if !errors.Is(err, ErrUnauthenticated) {
					cfg.log.WarnContext(ctx, "rejected request identity", logger.Error(err))
				}
				render(w, r, handler.ErrUnauthorized)
				return
			}

			if cfg.provisioner != nil {
				if _, done := provisioned.Get(id.String()); !done {
					if _, err := cfg.provisioner.ProvisionUser(ctx, id); err != nil {
						cfg.log.ErrorContext(ctx, "failed to provision user", logger.UserID(id), logger.Error(err))
						render(w, r, handler.ErrServiceUnavailable)
						return
					}
					provisioned.SetDefault(id.String(), struct{}{})
				}
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, id)))
		})
	}
}

func render(w http.ResponseWriter, r *http.Request, err error) {
	_ = handler.JSONError(err).Render(w, r)
}
