package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/handler"
	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/validator"
)

func serve(t *testing.T, h http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, handler.Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, req)

	var env handler.Envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestWrap(t *testing.T) {
	t.Parallel()

	errDomain := errors.New("entry not found")
	mapper := func(err error) error {
		if errors.Is(err, errDomain) {
			return handler.ErrNotFound.WithMessage(err.Error())
		}
		return err
	}

	tests := []struct {
		name       string
		resp       handler.Response
		wantStatus int
		wantCode   string
	}{
		{"data", handler.JSON(map[string]int{"n": 1}), http.StatusOK, ""},
		{"created", handler.JSON("ok", handler.WithStatus(http.StatusCreated)), http.StatusCreated, ""},
		{"http error", handler.JSONError(handler.ErrConflict), http.StatusConflict, "conflict"},
		{"mapped domain error", handler.JSONError(errDomain), http.StatusNotFound, "not_found"},
		{"unknown error", handler.JSONError(errors.New("db down")), http.StatusInternalServerError, "internal_server_error"},
		{"validation", handler.JSONError(validator.Apply(validator.Required("title", ""))), http.StatusUnprocessableEntity, "validation_error"},
		{"nil response", nil, http.StatusInternalServerError, "internal_server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := handler.Wrap(func(*http.Request) handler.Response { return tt.resp },
				handler.WithErrorMapper(mapper), handler.WithLogger(logger.Discard()))

			rec, env := serve(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			if tt.wantCode == "" {
				assert.Nil(t, env.Error)
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}

	t.Run("internal error text is hidden", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(*http.Request) handler.Response {
			return handler.JSONError(errors.New("password=hunter2"))
		}, handler.WithLogger(logger.Discard()))
		rec, _ := serve(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotContains(t, rec.Body.String(), "hunter2")
	})

	t.Run("validation details", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(*http.Request) handler.Response {
			return handler.JSONError(validator.Apply(validator.Required("title", "")))
		})
		_, env := serve(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Details, "title")
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(*http.Request) handler.Response { return handler.Empty() })
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Zero(t, rec.Body.Len())
	})
}

func TestBindJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"valid", "application/json", `{"title":"a"}`, 0},
		{"charset param", "application/json; charset=utf-8", `{"title":"a"}`, 0},
		{"missing content type", "", `{"title":"a"}`, http.StatusBadRequest},
		{"wrong media type", "text/plain", `{"title":"a"}`, http.StatusUnsupportedMediaType},
		{"unknown field", "application/json", `{"title":"a","x":1}`, http.StatusBadRequest},
		{"trailing data", "application/json", `{"title":"a"}{}`, http.StatusBadRequest},
		{"empty body", "application/json", ``, http.StatusBadRequest},
		{"malformed", "application/json", `{"title":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			var p payload
			err := handler.BindJSON(req, &p)
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				assert.Equal(t, "a", p.Title)
				return
			}
			var httpErr handler.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.wantStatus, httpErr.Code)
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&done=true", nil)

	n, err := handler.QueryInt(req, "limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = handler.QueryInt(req, "offset", 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = handler.QueryInt(req, "bad", 0)
	assert.Error(t, err)

	b, err := handler.QueryBool(req, "done")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, *b)

	b, err = handler.QueryBool(req, "missing")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestPathUUID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	params := map[string]string{"id": id.String(), "bad": "nope"}
	extract := func(_ *http.Request, name string) string { return params[name] }
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	got, err := handler.PathUUID(req, extract, "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = handler.PathUUID(req, extract, "bad")
	var httpErr handler.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}
