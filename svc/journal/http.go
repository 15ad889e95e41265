package journal

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/handler"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/svc/auth"
)

// ErrLimitExceeded is the HTTP form of subscription.ErrLimitExceeded.
var ErrLimitExceeded = handler.NewHTTPError(http.StatusPaymentRequired, "limit_exceeded").
	WithMessage("You have reached your plan's limit. Upgrade your plan to create more.")

// MapError translates journal and quota errors into HTTP errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrReminderNotFound):
		return handler.ErrNotFound.WithMessage(err.Error())
	case errors.Is(err, subscription.ErrLimitExceeded):
		return ErrLimitExceeded
	}
	return err
}

// NewHandler exposes svc as a JSON API. Routes expect auth.Middleware to
// have stored the user ID in the request context.
func NewHandler(svc Service, log *slog.Logger) http.Handler {
	h := &httpHandler{svc: svc}
	wrap := func(fn handler.HandlerFunc) http.HandlerFunc {
		return handler.Wrap(fn, handler.WithErrorMapper(MapError), handler.WithLogger(log))
	}

	r := chi.NewRouter()
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", wrap(h.listEntries))
		r.Post("/", wrap(h.createEntry))
		r.Get("/{id}", wrap(h.getEntry))
		r.Put("/{id}", wrap(h.updateEntry))
		r.Delete("/{id}", wrap(h.deleteEntry))
		r.Post("/{id}/archive", wrap(h.archiveEntry(true)))
		r.Post("/{id}/unarchive", wrap(h.archiveEntry(false)))
	})
	r.Route("/reminders", func(r chi.Router) {
		r.Get("/", wrap(h.listReminders))
		r.Post("/", wrap(h.createReminder))
		r.Get("/{id}", wrap(h.getReminder))
		r.Put("/{id}", wrap(h.updateReminder))
		r.Delete("/{id}", wrap(h.deleteReminder))
		r.Post("/{id}/complete", wrap(h.completeReminder(true)))
		r.Post("/{id}/reopen", wrap(h.completeReminder(false)))
	})
	return r
}

type httpHandler struct {
	svc Service
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return handler.PathUUID(r, chi.URLParam, "id")
}

func pagination(r *http.Request) (limit, offset int, err error) {
	if limit, err = handler.QueryInt(r, "limit", DefaultPageSize); err != nil {
		return 0, 0, err
	}
	if offset, err = handler.QueryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	limit, offset = page(limit, offset)
	return limit, offset, nil
}

func pageMeta(limit, offset, n int) handler.JSONOption {
	return handler.WithMeta(map[string]any{"limit": limit, "offset": offset, "count": n})
}

func (h *httpHandler) listEntries(r *http.Request) handler.Response {
	limit, offset, err := pagination(r)
	if err != nil {
		return handler.JSONError(err)
	}
	archived, err := handler.QueryBool(r, "archived")
	if err != nil {
		return handler.JSONError(err)
	}

	q := r.URL.Query()
	f := EntryFilter{Query: q.Get("q"), Mood: q.Get("mood"), Tag: q.Get("tag"), Limit: limit, Offset: offset}
	if archived != nil {
		f.Archived = *archived
	}

	entries, err := h.svc.ListEntries(r.Context(), auth.MustUserID(r.Context()), f)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(entries, pageMeta(limit, offset, len(entries)))
}

func (h *httpHandler) createEntry(r *http.Request) handler.Response {
	var in EntryInput
	if err := handler.BindJSON(r, &in); err != nil {
		return handler.JSONError(err)
	}
	e, err := h.svc.CreateEntry(r.Context(), auth.MustUserID(r.Context()), in)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(e, handler.WithStatus(http.StatusCreated))
}

func (h *httpHandler) getEntry(r *http.Request) handler.Response {
	id, err := pathID(r)
	if err != nil {
		return handler.JSONError(err)
	}
	e, err := h.svc.GetEntry(r.Context(), auth.MustUserID(r.Context()), id)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(e)
}

func (h *httpHandler) updateEntry(r *http.Request) handler.Response {
	id, err := pathID(r)
	if err != nil {
		return handler.JSONError(err)
	}
	var in EntryInput
	if err := handler.BindJSON(r, &in); err != nil {
		return handler.JSONError(err)
	}
	e, err := h.svc.UpdateEntry(r.Context(), auth.MustUserID(r.Context()), id, in)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(e)
}

func (h *httpHandler) archiveEntry(archived bool) handler.HandlerFunc {
	return func(r *http.Request) handler.Response {
		id, err := pathID(r)
		if err != nil {
			return handler.JSONError(err)
		}
		e, err := h.svc.SetArchived(r.Context(), auth.MustUserID(r.Context()), id, archived)
		if err != nil {
			return handler.JSONError(err)
		}
		return handler.JSON(e)
	}
}

func (h *httpHandler) deleteEntry(r *http.Request) handler.Response {
	id, err := pathID(r)
	if err != nil {
		return handler.JSONError(err)
	}
	if err := h.svc.DeleteEntry(r.Context(), auth.MustUserID(r.Context()), id); err != nil {
		return handler.JSONError(err)
	}
	return handler.Empty()
}

func (h *httpHandler) listReminders(r *http.Request) handler.Response {
	limit, offset, err := pagination(r)
	if err != nil {
		return handler.JSONError(err)
	}
	completed, err := handler.QueryBool(r, "completed")
	if err != nil {
		return handler.JSONError(err)
	}

	q := r.URL.Query()
	f := ReminderFilter{Query: q.Get("q"), Category: q.Get("category"), Completed: completed, Limit: limit, Offset: offset}
	reminders, err := h.svc.ListReminders(r.Context(), auth.MustUserID(r.Context()), f)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(reminders, pageMeta(limit, offset, len(reminders)))
}

func (h *httpHandler) createReminder(r *http.Request) handler.Response {
	var in ReminderInput
	if err := handler.BindJSON(r, &in); err != nil {
		return handler.JSONError(err)
	}
	rem, err := h.svc.CreateReminder(r.Context(), auth.MustUserID(r.Context()), in)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(rem, handler.WithStatus(http.StatusCreated))
}

func (h *httpHandler) getReminder(r *http.Request) handler.Response {
	id, err := pathID(r)
	if err != nil {
		return handler.JSONError(err)
	}
	rem, err := h.svc.GetReminder(r.Context(), auth.MustUserID(r.Context()), id)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(rem)
}

func (h *httpHandler) updateReminder(r *http.Request) handler.Response {
	id, err := pathID(r)
	if err != nil {
		return handler.JSONError(err)
	}
	var in ReminderInput
	if err := handler.BindJSON(r, &in); err != nil {
		return handler.JSONError(err)
	}
	rem, err := h.svc.UpdateReminder(r.Context(), auth.MustUserID(r.Context()), id, in)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(rem)
}

func (h *httpHandler) completeReminder(completed bool) handler.HandlerFunc {
	return func(r *http.Request) handler.Response {
		id, err := pathID(r)
		if err != nil {
			return handler.JSONError(err)
		}
		rem, err := h.svc.SetCompleted(r.Context(), auth.MustUserID(r.Context()), id, completed)
		if err != nil {
			return handler.JSONError(err)
		}
		return handler.JSON(rem)
	}
}

func (h *httpHandler) deleteReminder(r *http.Request) handler.Response {
	id, err := pathID(r)
	if err != nil {
		return handler.JSONError(err)
	}
	if err := h.svc.DeleteReminder(r.Context(), auth.MustUserID(r.Context()), id); err != nil {
		return handler.JSONError(err)
	}
	return handler.Empty()
}
