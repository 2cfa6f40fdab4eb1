package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers unreachable backends and expired deadlines.
	ErrTransport = errors.New("transport failure")
	ErrMalformed = errors.New("malformed response")
	// ErrNotSuccess is returned when a 2xx body carries status != "success".
	ErrNotSuccess = errors.New("request not successful")
)

type StatusError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Code)
}
