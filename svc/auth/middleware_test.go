package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/svc/auth"
)

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) ProvisionUser(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func okHandler(t *testing.T, want uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := auth.UserIDFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.Equal(t, want, auth.MustUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("stores user from header", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		mw := auth.Middleware(auth.NewHeaderResolver(""), auth.WithLogger(logger.Discard()))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(auth.DefaultHeader, id.String())
		rec := httptest.NewRecorder()
		mw(okHandler(t, id)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("custom header", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		mw := auth.Middleware(auth.NewHeaderResolver("X-Auth-User"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Auth-User", " "+id.String()+" ")
		rec := httptest.NewRecorder()
		mw(okHandler(t, id)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	for name, value := range map[string]string{
		"missing header": "",
		"malformed id":   "not-a-uuid",
		"nil id":         uuid.Nil.String(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			mw := auth.Middleware(auth.NewHeaderResolver(""), auth.WithLogger(logger.Discard()))
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("next handler must not run")
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if value != "" {
				req.Header.Set(auth.DefaultHeader, value)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "unauthorized")
		})
	}

	t.Run("provisions each user once", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		prov := new(mockProvisioner)
		prov.On("ProvisionUser", mock.Anything, id).Return(&subscription.Subscription{UserID: id}, nil).Once()

		h := auth.Middleware(auth.NewHeaderResolver(""), auth.WithProvisioner(prov))(okHandler(t, id))
		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(auth.DefaultHeader, id.String())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
		prov.AssertExpectations(t)
	})

	t.Run("provisions again once the user is forgotten", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		prov := new(mockProvisioner)
		prov.On("ProvisionUser", mock.Anything, id).Return(&subscription.Subscription{UserID: id}, nil).Twice()

		h := auth.Middleware(auth.NewHeaderResolver(""),
			auth.WithProvisioner(prov), auth.WithProvisionTTL(50*time.Millisecond))(okHandler(t, id))
		serve := func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(auth.DefaultHeader, id.String())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		serve()
		serve()
		time.Sleep(120 * time.Millisecond)
		serve()
		prov.AssertExpectations(t)
		prov.AssertNumberOfCalls(t, "ProvisionUser", 2)
	})

	t.Run("provisioning failure is retried", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		prov := new(mockProvisioner)
		prov.On("ProvisionUser", mock.Anything, id).Return(nil, errors.New("db down")).Once()
		prov.On("ProvisionUser", mock.Anything, id).Return(&subscription.Subscription{UserID: id}, nil).Once()

		h := auth.Middleware(auth.NewHeaderResolver(""),
			auth.WithProvisioner(prov), auth.WithLogger(logger.Discard()))(okHandler(t, id))

		codes := make([]int, 0, 2)
		for range 2 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(auth.DefaultHeader, id.String())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}
		assert.Equal(t, []int{http.StatusServiceUnavailable, http.StatusOK}, codes)
		prov.AssertExpectations(t)
	})
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := auth.LoggerExtractor()
	_, ok := extract(context.Background())
	assert.False(t, ok)

	id := uuid.New()
	attr, ok := extract(auth.WithUserID(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, "user_id", attr.Key)
	assert.Equal(t, id.String(), attr.Value.String())
}
