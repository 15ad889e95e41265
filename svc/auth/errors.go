package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("request is not authenticated")
	ErrInvalidUserID   = errors.New("invalid user identifier")
)
