package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/dmitrymomot/diary/pkg/handler"
	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/sanitizer"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/pkg/validator"
	"github.com/dmitrymomot/diary/svc/auth"
)

const (
	maxWebhookBody     = 1 << 20
	defaultPaymentPage = 20
	maxPaymentPage     = 100
)

// Handler serves the billing HTTP API.
type Handler struct {
	svc      subscription.Service
	log      *slog.Logger
	metrics  *Metrics
	provider string
	now      func() time.Time
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithProviderName restricts webhooks to /webhooks/{name}. Without it any
// provider segment is accepted and the configured provider decides.
func WithProviderName(name string) Option {
	return func(h *Handler) { h.provider = name }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(svc subscription.Service, opts ...Option) *Handler {
	if svc == nil {
		panic("billing: subscription service cannot be nil")
	}
	h := &Handler{svc: svc, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("billing"))
	return h
}

func (h *Handler) wrap(fn handler.HandlerFunc) http.HandlerFunc {
	return handler.Wrap(fn, handler.WithErrorMapper(MapError), handler.WithLogger(h.log))
}

// PublicRoutes serves the plan catalog and gateway webhooks.
func (h *Handler) PublicRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/plans", h.PlansHandler())
	r.Post("/webhooks/{provider}", h.WebhookHandler())
	return r
}

// PlansHandler lists the active plans.
func (h *Handler) PlansHandler() http.HandlerFunc {
	return h.wrap(h.listPlans)
}

// WebhookHandler must be registered on a chi route with a {provider}
// parameter.
func (h *Handler) WebhookHandler() http.HandlerFunc {
	return h.wrap(h.webhook)
}

// Routes serves the authenticated user's subscription. Mount it under
// /subscription behind auth.Middleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.wrap(h.getSubscription))
	r.Post("/checkout/{planID}", h.wrap(h.checkout))
	r.Post("/cancel", h.wrap(h.cancel))
	r.Get("/payments", h.wrap(h.listPayments))
	return r
}

func (h *Handler) webhook(r *http.Request) handler.Response {
	ctx := r.Context()
	if h.provider != "" && chi.URLParam(r, "provider") != h.provider {
		h.metrics.webhook("unknown_provider")
		return handler.JSONError(handler.ErrNotFound)
	}

	payload, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxWebhookBody))
	if err != nil {
		h.metrics.webhook("bad_request")
		return handler.JSONError(handler.ErrBadRequest.WithMessage("unreadable webhook body"))
	}

	err = h.svc.HandleWebhook(ctx, payload, r.Header)
	switch {
	case err == nil:
		h.metrics.webhook("accepted")
		return handler.JSON(map[string]bool{"received": true})
	case errors.Is(err, subscription.ErrInvalidSignature):
		h.metrics.webhook("invalid_signature")
	case errors.Is(err, subscription.ErrPaymentUnavailable):
		h.metrics.webhook("unavailable")
	default:
		// the gateway redelivers on 5xx; processing is idempotent
		h.metrics.webhook("error")
	}
	return handler.JSONError(err)
}

type planView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	DurationDays int    `json:"duration_days"`
	Duration     string `json:"duration"`
	MaxEntries   int64  `json:"max_entries"`
	MaxReminders int64  `json:"max_reminders"`
}

func toPlanView(p subscription.Plan) planView {
	return planView{
		ID:           p.ID,
		Name:         p.Name,
		Type:         string(p.Type),
		Description:  p.Description,
		Price:        p.Price.StringFixed(2),
		Currency:     p.Currency,
		DurationDays: p.DurationDays,
		Duration:     p.DurationLabel(),
		MaxEntries:   p.MaxEntries,
		MaxReminders: p.MaxReminders,
	}
}

func (h *Handler) listPlans(_ *http.Request) handler.Response {
	return handler.JSON(lo.Map(h.svc.ListPlans(), func(p subscription.Plan, _ int) planView {
		return toPlanView(p)
	}))
}

type usageView struct {
	Current   int64 `json:"current"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

type subscriptionView struct {
	ID                   string               `json:"id"`
	Plan                 *planView            `json:"plan,omitempty"`
	PlanID               string               `json:"plan_id"`
	Status               string               `json:"status"`
	StartDate            time.Time            `json:"start_date"`
	EndDate              time.Time            `json:"end_date"`
	AutoRenew            bool                 `json:"auto_renew"`
	Active               bool                 `json:"active"`
	DaysUntilExpiry      int                  `json:"days_until_expiry"`
	NeedsPaymentReminder bool                 `json:"needs_payment_reminder"`
	Usage                map[string]usageView `json:"usage,omitempty"`
}

func (h *Handler) subscriptionView(sub *subscription.Subscription) subscriptionView {
	now := h.now()
	v := subscriptionView{
		ID:                   sub.ID.String(),
		PlanID:               sub.PlanID,
		Status:               string(sub.Status),
		StartDate:            sub.StartDate,
		EndDate:              sub.EndDate,
		AutoRenew:            sub.AutoRenew,
		Active:               sub.IsActive(now),
		DaysUntilExpiry:      sub.DaysUntilExpiry(now),
		NeedsPaymentReminder: sub.NeedsPaymentReminder(now),
	}
	if p, ok := lo.Find(h.svc.ListPlans(), func(p subscription.Plan) bool { return p.ID == sub.PlanID }); ok {
		pv := toPlanView(p)
		v.Plan = &pv
	}
	return v
}

func (h *Handler) getSubscription(r *http.Request) handler.Response {
	ctx := r.Context()
	userID := auth.MustUserID(ctx)

	sub, err := h.svc.GetSubscription(ctx, userID)
	if err != nil {
		return handler.JSONError(err)
	}
	usage, err := h.svc.GetAllUsage(ctx, userID)
	if err != nil {
		return handler.JSONError(err)
	}

	v := h.subscriptionView(sub)
	v.Usage = make(map[string]usageView, len(usage))
	for res, u := range usage {
		v.Usage[string(res)] = usageView{Current: u.Current, Limit: u.Limit, Remaining: u.Remaining()}
	}
	return handler.JSON(v)
}

type checkoutRequest struct {
	Email      string `json:"email"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (c checkoutRequest) normalize() checkoutRequest {
	c.Email = sanitizer.TrimToLower(c.Email)
	c.SuccessURL = sanitizer.Trim(c.SuccessURL)
	c.CancelURL = sanitizer.Trim(c.CancelURL)
	return c
}

func (c checkoutRequest) validate() error {
	return validator.Apply(
		validator.Email("email", c.Email),
		validator.Required("success_url", c.SuccessURL),
		validator.AbsoluteURL("success_url", c.SuccessURL),
		validator.Required("cancel_url", c.CancelURL),
		validator.AbsoluteURL("cancel_url", c.CancelURL),
	)
}

type checkoutView struct {
	URL         string     `json:"url"`
	ExternalRef string     `json:"external_ref"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) checkout(r *http.Request) handler.Response {
	ctx := r.Context()

	var req checkoutRequest
	if err := handler.BindJSON(r, &req); err != nil {
		return handler.JSONError(err)
	}
	req = req.normalize()
	if err := req.validate(); err != nil {
		return handler.JSONError(err)
	}

	session, err := h.svc.CreateCheckout(ctx, auth.MustUserID(ctx), chi.URLParam(r, "planID"), subscription.CheckoutOptions{
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		h.metrics.checkout("error")
		return handler.JSONError(err)
	}
	h.metrics.checkout("created")

	v := checkoutView{URL: session.URL, ExternalRef: session.ExternalRef}
	if !session.ExpiresAt.IsZero() {
		v.ExpiresAt = &session.ExpiresAt
	}
	return handler.JSON(v, handler.WithStatus(http.StatusCreated))
}

func (h *Handler) cancel(r *http.Request) handler.Response {
	ctx := r.Context()
	sub, err := h.svc.CancelAutoRenew(ctx, auth.MustUserID(ctx))
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(h.subscriptionView(sub))
}

type paymentView struct {
	ID            string     `json:"id"`
	PlanID        string     `json:"plan_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Method        string     `json:"method"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toPaymentView(p subscription.Payment, _ int) paymentView {
	v := paymentView{
		ID:            p.ID.String(),
		PlanID:        p.PlanID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Status:        string(p.Status),
		Method:        string(p.Method),
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
	}
	if !p.PaidAt.IsZero() {
		v.PaidAt = &p.PaidAt
	}
	return v
}

func (h *Handler) listPayments(r *http.Request) handler.Response {
	ctx := r.Context()
	limit, err := handler.QueryInt(r, "limit", defaultPaymentPage)
	if err != nil {
		return handler.JSONError(err)
	}
	if err := validator.Apply(validator.Range("limit", limit, 1, maxPaymentPage)); err != nil {
		return handler.JSONError(err)
	}

	payments, err := h.svc.ListPayments(ctx, auth.MustUserID(ctx), limit)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(lo.Map(payments, toPaymentView), handler.WithMeta(map[string]any{"limit": limit, "count": len(payments)}))
}
