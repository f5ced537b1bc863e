package reporter

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNetwork signals that the sink could not be reached
var ErrNetwork = errors.New("network error")

var errEmptyURL = errors.New("empty sink URL")
var errEmptyBucket = errors.New("empty InfluxDB organization or bucket")

// StatusError is returned when the sink answered with a non-success status
type StatusError struct {
	StatusCode int
	Message    string
}

// Error returns the string representation of the error
func (e *StatusError) Error() string {
	if len(e.Message) == 0 {
		return fmt.Sprintf("sink rejected batch with status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	return fmt.Sprintf("sink rejected batch with status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Permanent returns true for client-error statuses: resending the same content will fail again
func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
