package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrBodyTooLarge     = errors.New("request body too large")
	ErrReadBody         = errors.New("read request body")
)

// methodNotAllowedMessage is the exact body text for non-POST predict calls.
const methodNotAllowedMessage = "Method not allowed"
