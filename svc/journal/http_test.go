package journal_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/svc/auth"
	"github.com/dmitrymomot/diary/svc/journal"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func newServer(t *testing.T, f *fixture) http.Handler {
	t.Helper()
	return auth.Middleware(auth.NewHeaderResolver(auth.DefaultHeader), auth.WithLogger(logger.Discard()))(
		journal.NewHandler(f.svc, logger.Discard()),
	)
}

func do(t *testing.T, h http.Handler, user uuid.UUID, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
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
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHandler_Entries(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	h := newServer(t, f)

	rec, env := do(t, h, f.user, http.MethodPost, "/entries", `{"title":"Hello","content":"first day","mood":"happy","tags":["Life"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created journal.Entry
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Hello", created.Title)
	assert.Equal(t, []string{"life"}, created.Tags)
	assert.Equal(t, 2, created.WordCount)

	rec, env = do(t, h, f.user, http.MethodGet, "/entries/"+created.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, f.user, http.MethodGet, "/entries?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, env.Meta["count"])
	assert.EqualValues(t, 10, env.Meta["limit"])

	rec, _ = do(t, h, f.user, http.MethodPost, "/entries/"+created.ID.String()+"/archive", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, f.user, http.MethodGet, "/entries?archived=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, env.Meta["count"])

	rec, _ = do(t, h, f.user, http.MethodDelete, "/entries/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, f.user, http.MethodGet, "/entries/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing identity", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec, env := do(t, newServer(t, f), uuid.Nil, http.MethodGet, "/entries", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "unauthorized", env.Error.Code)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec, env := do(t, newServer(t, f), f.user, http.MethodPost, "/entries", `{"title":"","content":"x","mood":"angry"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Details, "title")
		assert.Contains(t, env.Error.Details, "mood")
		assert.Zero(t, f.usage(t, subscription.ResourceEntries))
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec, _ := do(t, newServer(t, f), f.user, http.MethodPost, "/entries", `{"title":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec, _ := do(t, newServer(t, f), f.user, http.MethodGet, "/reminders/not-a-uuid", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("other user's entry", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		h := newServer(t, f)
		_, env := do(t, h, f.user, http.MethodPost, "/entries", `{"title":"Mine","content":"secret"}`)
		var e journal.Entry
		require.NoError(t, json.Unmarshal(env.Data, &e))

		rec, _ := do(t, h, uuid.New(), http.MethodGet, "/entries/"+e.ID.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("limit exceeded", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		h := newServer(t, f)
		body := `{"title":"Call","date":"2025-03-05"}`
		for range 2 {
			rec, _ := do(t, h, f.user, http.MethodPost, "/reminders", body)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		}
		rec, env := do(t, h, f.user, http.MethodPost, "/reminders", body)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "limit_exceeded", env.Error.Code)
	})
}

func TestHandler_Reminders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	h := newServer(t, f)

	rec, env := do(t, h, f.user, http.MethodPost, "/reminders", `{"title":"Dentist","date":"2025-03-10","category":"health","priority":"high"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var r journal.Reminder
	require.NoError(t, json.Unmarshal(env.Data, &r))
	assert.Equal(t, "high", r.Priority)

	rec, env = do(t, h, f.user, http.MethodPost, "/reminders/"+r.ID.String()+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &r))
	assert.True(t, r.Completed)

	rec, env = do(t, h, f.user, http.MethodGet, "/reminders?completed=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, env.Meta["count"])

	rec, _ = do(t, h, f.user, http.MethodGet, "/reminders?completed=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, h, f.user, http.MethodPut, "/reminders/"+r.ID.String(), `{"title":"Dentist","date":"2025-03-12","category":"health"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &r))
	assert.Equal(t, "medium", r.Priority)
}
