package upstream

import (
	"github.com/okian/rfcoverage/pkg/logger"
)

// Option applies a configuration option to the Router.
type Option func(*Router)

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(client Doer) Option {
	return func(r *Router) {
		if client != nil {
			r.client = client
		}
	}
}

// WithCredentials sets the token issuer for authenticated upstreams.
func WithCredentials(creds Credentials) Option {
	return func(r *Router) {
		if creds != nil {
			r.creds = creds
		}
	}
}

// WithLogger sets a custom logger for the router.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStrategies replaces the built-in strategy order.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Router) {
		if len(strategies) > 0 {
			r.strategies = strategies
		}
	}
}
