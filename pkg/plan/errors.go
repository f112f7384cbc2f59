package plan

import (
	"errors"
	"fmt"

	"planrelay/pkg/llmerrors"
)

var (
	// ErrInvalidRequest is returned when a required field is missing or falsy.
	ErrInvalidRequest = errors.New("invalid plan request")
	// ErrConfiguration is returned when the upstream credential was absent at startup.
	ErrConfiguration = errors.New("upstream credential not configured")
)

// UpstreamError is any failure of the upstream call, including a response that is not JSON.
type UpstreamError struct {
	Err  error
	Type llmerrors.ErrorType
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream call failed (%s): %v", e.Type, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
