package upstream

import (
	"errors"
	"fmt"
)

// Sentinel kinds for forwarding failures. All of them surface to the caller
// as HTTP 500.
var (
	ErrNotConfigured       = errors.New("no upstream configured")
	ErrInvalidBody         = errors.New("request body is not valid JSON")
	ErrCredentials         = errors.New("upstream credentials")
	ErrUpstreamUnavailable = errors.New("upstream request failed")
	ErrUpstreamStatus      = errors.New("upstream returned an error status")
	ErrUpstreamBody        = errors.New("upstream response is not valid JSON")
)

// NotConfiguredMessage is the operator guidance returned when neither the
// Vertex identifiers nor a service URL are set.
const NotConfiguredMessage = "Set either RFPROXY_VERTEX_* envs or RFPROXY_CLOUD_RUN_URL"

// genericMessage is used when an error carries no text.
const genericMessage = "proxy error"

// errorType classifies err for metrics labels.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrInvalidBody):
		return "invalid_body"
	case errors.Is(err, ErrCredentials):
		return "credential"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "network"
	case errors.Is(err, ErrUpstreamStatus):
		return "upstream_status"
	case errors.Is(err, ErrUpstreamBody):
		return "upstream_body"
	default:
		return "unknown"
	}
}

// credentialError marks err as a credential failure unless it already is one.
func credentialError(err error) error {
	if errors.Is(err, ErrCredentials) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCredentials, err)
}
