// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the interaction page.
package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/okian/rfcoverage/internal/adapters/backend"
	"github.com/okian/rfcoverage/internal/adapters/upstream"
	"github.com/okian/rfcoverage/internal/config"
	"github.com/okian/rfcoverage/pkg/logger"
)

// ErrNotStarted is returned by calls made before Start.
var ErrNotStarted = errors.New("service not started")

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Service composes the upstream router and the backend client.
type Service struct {
	mu sync.RWMutex

	// Core components
	router  *upstream.Router
	backend *backend.Client

	// Configuration
	cfg    *config.Config
	client Doer
	creds  upstream.Credentials

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithHTTPClient sets the client used for upstream and backend calls.
func WithHTTPClient(client Doer) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithCredentials overrides the Google credential chain.
func WithCredentials(creds upstream.Credentials) Option {
	return func(s *Service) {
		if creds != nil {
			s.creds = creds
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service over cfg. A nil cfg means defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:    cfg,
		client: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Settings derives the immutable upstream settings from cfg.
func Settings(cfg *config.Config) upstream.Settings {
	return upstream.Settings{
		VertexProjectID:     cfg.VertexProjectID,
		VertexRegion:        cfg.VertexRegion,
		VertexEndpointID:    cfg.VertexEndpointID,
		ServiceURL:          cfg.CloudRunURL,
		ServiceAccountEmail: cfg.ServiceAccountEmail,
		ServiceAccountKey:   cfg.ServiceAccountKey,
	}
}

// Start builds the router and backend client.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	routerOpts := []upstream.Option{
		upstream.WithHTTPClient(s.client),
		upstream.WithLogger(s.logger.Named("upstream")),
	}
	if s.creds != nil {
		routerOpts = append(routerOpts, upstream.WithCredentials(s.creds))
	}
	s.router = upstream.NewRouter(Settings(s.cfg), routerOpts...)
	s.backend = backend.NewClient(s.cfg.BackendURL,
		backend.WithHTTPClient(s.client),
		backend.WithLogger(s.logger.Named("backend")),
	)

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.String("upstream", s.router.Active()),
		logger.String("backend", s.cfg.BackendURL),
	)
	partialVertex := s.cfg.VertexProjectID != "" || s.cfg.VertexRegion != "" || s.cfg.VertexEndpointID != ""
	if partialVertex && !s.cfg.VertexConfigured() {
		s.logger.Warn(ctx, "incomplete vertex settings ignored; project, region and endpoint are all required")
	}
	if s.router.Active() == upstream.StrategyNone {
		s.logger.Warn(ctx, upstream.NotConfiguredMessage)
	}

	return nil
}

// Stop marks the service stopped. Calls in flight complete normally.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "prediction service stopped")
}

func (s *Service) components() (*upstream.Router, *backend.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.router, s.backend, nil
}

// Predict forwards body upstream and renders any failure as a 500 reply.
func (s *Service) Predict(ctx context.Context, body []byte) upstream.Reply {
	router, _, err := s.components()
	if err != nil {
		return upstream.ErrorReply(err)
	}
	reply, err := router.Forward(ctx, body)
	if err != nil {
		return upstream.ErrorReply(err)
	}
	return reply
}

// UpstreamName names the active upstream strategy.
func (s *Service) UpstreamName() string {
	router, _, err := s.components()
	if err != nil {
		return upstream.StrategyNone
	}
	return router.Active()
}

// Ingest uploads a CSV file to the backend.
func (s *Service) Ingest(ctx context.Context, filename string, r io.Reader) (backend.IngestResult, error) {
	_, client, err := s.components()
	if err != nil {
		return backend.IngestResult{}, err
	}
	return client.Ingest(ctx, filename, r)
}

// SimulateRun starts a backend simulation.
func (s *Service) SimulateRun(ctx context.Context) (backend.SimulateResult, error) {
	_, client, err := s.components()
	if err != nil {
		return backend.SimulateResult{}, err
	}
	return client.SimulateRun(ctx)
}

// GetStats returns service state for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
		"backend": s.cfg.BackendURL,
	}
	if s.started {
		stats["upstream"] = s.router.Active()
	}
	return stats
}
