package activity

import (
	"errors"
	"fmt"
)

const notAuthenticatedMessage = "Please log in to view your activity data"

var ErrNotAuthenticated = errors.New(notAuthenticatedMessage)

// TransportError is a failed aggregation call: either a non-2xx status or a
// request that never produced a usable body.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "failed to fetch dashboard data"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
