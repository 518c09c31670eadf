// errors/gateway_errors.go
package errors

import "errors"

var (
	ErrResourceNotFound   = errors.New("resource not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrGrantNotFound      = errors.New("grant not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidRequestData = errors.New("invalid request data")
	ErrInternalServer     = errors.New("internal server error")
)
