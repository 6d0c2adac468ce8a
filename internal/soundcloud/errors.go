package soundcloud

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches a 404 from the API via errors.Is
var ErrNotFound = &Error{Status: http.StatusNotFound}

// Error is a non-200 response from the SoundCloud API
type Error struct {
	Status  int    // HTTP status code
	Message string // first error message from the body, if any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("soundcloud: status %d", e.Status)
	}
	return fmt.Sprintf("soundcloud: status %d: %s", e.Status, e.Message)
}

// Is matches errors with the same status code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

// Temporary reports whether the request should be retried:
// rate limiting and server-side failures.
func (e *Error) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTemporary reports whether err is a temporary API error
func IsTemporary(err error) bool {
	var scErr *Error
	if errors.As(err, &scErr) {
		return scErr.Temporary()
	}
	return false
}

// errorBody is the error envelope the API returns alongside failures
type errorBody struct {
	Errors []struct {
		ErrorMessage string `json:"error_message"`
	} `json:"errors"`
	Message string `json:"message"`
}

func (b errorBody) first() string {
	for _, e := range b.Errors {
		if e.ErrorMessage != "" {
			return e.ErrorMessage
		}
	}
	return b.Message
}
