package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// MaxBodySize bounds JSON request bodies.
const MaxBodySize = 1 << 20

// BindJSON decodes a single JSON object from the request body into v.
// Unknown fields and trailing data are rejected.
func BindJSON(r *http.Request, v any) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return ErrBadRequest.WithMessage(ErrMissingContentType.Error() + ": expected application/json")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return NewHTTPError(http.StatusUnsupportedMediaType, "unsupported_media_type").
			WithMessage(fmt.Sprintf("%s: expected application/json", ErrUnsupportedMediaType))
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrBadRequest.WithMessage(ErrInvalidJSON.Error() + ": empty body")
		}
		return ErrBadRequest.WithMessage(fmt.Sprintf("%s: %v", ErrInvalidJSON, err))
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ErrBadRequest.WithMessage(ErrInvalidJSON.Error() + ": unexpected data after JSON object")
	}
	return nil
}

// QueryInt reads an integer query parameter, returning def when it is absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrBadRequest.WithMessage(fmt.Sprintf("%s: %s must be an integer", ErrInvalidQuery, name))
	}
	return n, nil
}

// QueryBool reads an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, ErrBadRequest.WithMessage(fmt.Sprintf("%s: %s must be a boolean", ErrInvalidQuery, name))
	}
	return &b, nil
}

// PathExtractor reads a named path parameter, e.g. chi.URLParam.
type PathExtractor func(r *http.Request, name string) string

// PathUUID parses the named path parameter as a UUID.
func PathUUID(r *http.Request, param PathExtractor, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(param(r, name))
	if err != nil {
		return uuid.Nil, ErrNotFound.WithMessage(fmt.Sprintf("%s: %s", ErrInvalidPath, name))
	}
	return id, nil
}
