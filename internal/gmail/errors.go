package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrCircuitOpen is wrapped in a TransientServiceError when a call is
	// rejected without reaching the API because the circuit breaker is open.
	ErrCircuitOpen = errors.New("gmail API temporarily unavailable (circuit open)")

	// ErrAttachmentNotFound is returned when a local file named as an
	// attachment of an outgoing message does not exist.
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// TransientServiceError is returned when an operation kept failing with
// rate-limit or server errors until the retry budget was spent.
type TransientServiceError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("gmail %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// PermanentServiceError is returned for failures that retrying cannot fix,
// such as not-found, bad request or insufficient permission.
type PermanentServiceError struct {
	Op  string
	Err error
}

func (e *PermanentServiceError) Error() string {
	return fmt.Sprintf("gmail %s failed: %v", e.Op, e.Err)
}

func (e *PermanentServiceError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a Gmail API error worth retrying:
// HTTP 429 or any 5xx status.
func IsTransient(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
}

// IsNotFound reports whether err is a Gmail API 404.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// StatusCode returns the HTTP status of a Gmail API error, or 0.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
