// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/rfcoverage/internal/adapters/upstream"
	"github.com/okian/rfcoverage/pkg/logger"
	"github.com/okian/rfcoverage/pkg/metrics"
)

// DefaultMaxBodyBytes bounds inbound predict bodies when no limit is set.
const DefaultMaxBodyBytes int64 = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Predict forwards a JSON body upstream. Failures are already rendered
	// into the reply.
	Predict(ctx context.Context, body []byte) upstream.Reply

	// UpstreamName names the active upstream strategy, or "none".
	UpstreamName() string
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBodyBytes limits the size of POST /api/predict bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	deps         Dependencies
	maxBodyBytes int64
	logger       logger.Logger

	predictHandler *PredictHandler
	healthHandler  *HealthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps, maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.predictHandler = NewPredictHandler(deps, s.maxBodyBytes, s.logger)
	s.healthHandler = NewHealthHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.Handle("/api/predict", RequestIDMiddleware(MetricsMiddleware(s.predictHandler.HandlePredict, "predict")))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeReply relays an upstream reply verbatim.
func writeReply(w http.ResponseWriter, reply upstream.Reply) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(reply.Status)
	_, _ = w.Write(reply.Body)
}
