// Package remote defines the failure kinds shared by adapters that talk to
// the backend over the network.
package remote

import (
	"fmt"

	"github.com/go-faster/errors"
)

// NetworkError indicates the backend could not be reached at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseError is a well-formed error response from the backend.
type ResponseError struct {
	Op      string
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// IsNetwork reports whether err was caused by a connectivity failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// MessageOf returns the backend-provided message carried by err, if any.
func MessageOf(err error) (string, bool) {
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Message != "" {
		return respErr.Message, true
	}
	return "", false
}
