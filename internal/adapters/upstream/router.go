// Package upstream forwards prediction requests to the configured model
// backend: a managed Vertex AI endpoint, a loopback development service or an
// authenticated container service.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mdobak/go-xerrors"

	"github.com/okian/rfcoverage/pkg/logger"
	"github.com/okian/rfcoverage/pkg/metrics"
)

// StrategyNone is reported when no strategy matches the settings.
const StrategyNone = "none"

// Router picks the first strategy matching its settings and forwards to it.
type Router struct {
	settings   Settings
	client     Doer
	creds      Credentials
	strategies []Strategy
	logger     logger.Logger
}

// NewRouter builds a router over immutable settings. Without options it uses
// http.DefaultClient and Google credentials built from the settings.
func NewRouter(settings Settings, opts ...Option) *Router {
	r := &Router{
		settings: settings,
		client:   http.DefaultClient,
		creds:    NewGoogleCredentials(settings.ServiceAccountEmail, settings.ServiceAccountKey),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.strategies == nil {
		r.strategies = []Strategy{
			vertexStrategy{client: r.client, creds: r.creds},
			loopbackStrategy{client: r.client},
			identityStrategy{client: r.client, creds: r.creds},
		}
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("upstream")
	}
	return r
}

// Select returns the first strategy whose Matches accepts the settings.
func (r *Router) Select() (Strategy, error) {
	for _, s := range r.strategies {
		if s.Matches(r.settings) {
			return s, nil
		}
	}
	return nil, ErrNotConfigured
}

// Active names the selected strategy, or StrategyNone.
func (r *Router) Active() string {
	s, err := r.Select()
	if err != nil {
		return StrategyNone
	}
	return s.Name()
}

// Forward relays a JSON body to the selected upstream. Every error maps to a
// 500 reply through ErrorReply.
func (r *Router) Forward(ctx context.Context, body []byte) (Reply, error) {
	strategy, err := r.Select()
	if err != nil {
		metrics.RecordUpstreamError(StrategyNone, errorType(err))
		r.logger.Warn(ctx, "no upstream configured")
		return Reply{}, err
	}
	name := strategy.Name()

	if !json.Valid(body) {
		metrics.RecordUpstreamError(name, errorType(ErrInvalidBody))
		return Reply{}, ErrInvalidBody
	}

	start := time.Now()
	reply, err := strategy.Forward(ctx, r.settings, body)
	elapsed := time.Since(start)
	metrics.RecordUpstreamLatency(name, float64(elapsed.Milliseconds()))
	if err != nil {
		metrics.RecordUpstreamError(name, errorType(err))
		r.logger.Error(ctx, "upstream forward failed",
			logger.String("strategy", name),
			logger.Duration("elapsed", elapsed),
			logger.Error(xerrors.New(err)),
		)
		return Reply{}, err
	}

	metrics.RecordUpstreamRequest(name, strconv.Itoa(reply.Status))
	r.logger.Debug(ctx, "upstream forward completed",
		logger.String("strategy", name),
		logger.Int("status", reply.Status),
		logger.Duration("elapsed", elapsed),
	)
	return reply, nil
}

// ErrorReply renders err as a 500 reply with body {"error": <message>}.
func ErrorReply(err error) Reply {
	msg := genericMessage
	switch {
	case errors.Is(err, ErrNotConfigured):
		msg = NotConfiguredMessage
	case err != nil && err.Error() != "":
		msg = err.Error()
	}
	body, mErr := json.Marshal(map[string]string{"error": msg})
	if mErr != nil {
		body = []byte(`{"error":"` + genericMessage + `"}`)
	}
	return Reply{Status: http.StatusInternalServerError, Body: body}
}
