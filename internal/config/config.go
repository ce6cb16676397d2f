// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file and RFPROXY_* env vars.
// - External errors are wrapped with ErrLoadConfig / ErrInvalidConfig.
package config

// Config contains process configuration. It is read once at start and
// treated as read-only afterwards.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// MaxBodyBytes caps the inbound /api/predict body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// Vertex AI endpoint identifiers. All three must be set to enable the
	// managed-endpoint route.
	VertexProjectID  string `koanf:"vertex_project_id"`
	VertexRegion     string `koanf:"vertex_region"`
	VertexEndpointID string `koanf:"vertex_endpoint_id"`

	// CloudRunURL is the base URL of the containerized prediction service.
	// Loopback URLs are called without authentication.
	CloudRunURL string `koanf:"cloud_run_url"`

	// Service account used to mint identity tokens for CloudRunURL. The key
	// may carry literal "\n" sequences instead of newlines.
	ServiceAccountEmail string `koanf:"gcp_sa_email"`
	ServiceAccountKey   string `koanf:"gcp_sa_private_key"`

	// BackendURL is the ingest/simulate backend used by the page.
	BackendURL string `koanf:"backend_url"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":3000",
		MaxBodyBytes: 1 << 20,
		BackendURL:   "http://127.0.0.1:8080",
	}
}
