package backend

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable is returned when the backend cannot be reached or
// answers with an unreadable body.
var ErrBackendUnavailable = errors.New("backend unavailable")

// RemoteError is a non-2xx answer from the backend. Message is the `error`
// field of the JSON body, empty when the body carried none.
type RemoteError struct {
	Operation string
	Status    int
	Message   string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Message returns the backend `error` field of err when it is a RemoteError,
// otherwise fallback.
func Message(err error, fallback string) string {
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return fallback
}
