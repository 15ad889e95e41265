package billing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/svc/auth"
	"github.com/dmitrymomot/diary/svc/billing"
)

const secret = "whsec_test"

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return t0 }

type fixture struct {
	subs     subscription.Service
	store    *subscription.MemoryStore
	registry *prometheus.Registry
	metrics  *billing.Metrics
	router   http.Handler
	user     uuid.UUID
}

// newFixture serves the billing routes on top of a subscription service
// backed by the in-memory store and the shared-secret provider.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	provider, err := subscription.NewSignedProvider(subscription.SignedConfig{
		Secret:      secret,
		CheckoutURL: "https://pay.example.com/checkout",
		MaxAge:      time.Hour,
	})
	require.NoError(t, err)

	store := subscription.NewMemoryStore()
	subs := subscription.NewService(store, subscription.MustCatalog(subscription.DefaultPlans()...),
		subscription.WithProvider(provider),
		subscription.WithLogger(logger.Discard()),
		subscription.WithClock(clock),
	)
	user := uuid.New()
	_, err = subs.ProvisionUser(context.Background(), user)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := billing.NewMetrics(reg)

	return &fixture{
		subs:     subs,
		store:    store,
		registry: reg,
		metrics:  metrics,
		router:   newRouter(subs, metrics),
		user:     user,
	}
}

func newRouter(subs subscription.Service, metrics *billing.Metrics) http.Handler {
	h := billing.NewHandler(subs,
		billing.WithLogger(logger.Discard()),
		billing.WithMetrics(metrics),
		billing.WithProviderName("bank_transfer"),
		billing.WithClock(clock),
	)
	r := chi.NewRouter()
	r.Mount("/", h.PublicRoutes())
	r.With(auth.Middleware(auth.NewHeaderResolver(auth.DefaultHeader), auth.WithLogger(logger.Discard()))).
		Mount("/subscription", h.Routes())
	return r
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func serve(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func request(method, path string, user uuid.UUID, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != uuid.Nil {
		req.Header.Set(auth.DefaultHeader, user.String())
	}
	return req
}

// signedWebhook builds a signed completion event for plan.
func signedWebhook(t *testing.T, user uuid.UUID, evType, ref, plan string) *http.Request {
	t.Helper()
	payload, header, err := subscription.SignEvent(secret, subscription.SignedEvent{
		ID:        "evt_" + ref,
		Type:      evType,
		CreatedAt: time.Now(),
		Data: subscription.SignedEventData{
			Reference: ref,
			UserID:    user.String(),
			PlanID:    plan,
			Currency:  "USD",
		},
	}, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank_transfer", strings.NewReader(string(payload)))
	for k, v := range header {
		req.Header[k] = v
	}
	return req
}
