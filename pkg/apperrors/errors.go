package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("invalid request")
	ErrLimitExceeded = errors.New("limit exceeded")
)
