package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/diary/pkg/logger"
)

// HandlerFunc produces the response for a request.
type HandlerFunc func(r *http.Request) Response

// ErrorMapper translates domain errors into HTTPError values. It returns
// the input unchanged for errors it does not know.
type ErrorMapper func(err error) error

type wrapConfig struct {
	log    *slog.Logger
	mapErr ErrorMapper
}

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

func WithLogger(l *slog.Logger) WrapOption {
	return func(c *wrapConfig) {
		if l != nil {
			c.log = l
		}
	}
}

func WithErrorMapper(m ErrorMapper) WrapOption {
	return func(c *wrapConfig) {
		if m != nil {
			c.mapErr = m
		}
	}
}

// Wrap converts h into an http.HandlerFunc. Error responses pass through
// the configured ErrorMapper; server-side failures are logged.
func Wrap(h HandlerFunc, opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{
		log:    slog.Default(),
		mapErr: func(err error) error { return err },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := h(r)
		if resp == nil {
			resp = JSONError(ErrNilResponse)
		}

		if jr, ok := resp.(*jsonResponse); ok && jr.err != nil {
			mapped := cfg.mapErr(jr.err)
			jr.status, jr.body.Error = errorToDetail(mapped)
			if jr.status >= http.StatusInternalServerError {
				cfg.log.ErrorContext(r.Context(), "request failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					logger.Error(jr.err),
				)
			}
		}

		if err := resp.Render(w, r); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
			cfg.log.ErrorContext(r.Context(), "failed to render response", logger.Error(err))
		}
	}
}
