package upstream

import (
	"fmt"
	"net/url"
	"strings"
)

// Settings is the process-wide upstream configuration. It is built once at
// start and never mutated; strategy selection is a pure function of it.
type Settings struct {
	VertexProjectID  string
	VertexRegion     string
	VertexEndpointID string

	// ServiceURL is the base URL of the containerized prediction service.
	ServiceURL string

	ServiceAccountEmail string
	// ServiceAccountKey may contain literal `\n` sequences.
	ServiceAccountKey string
}

// VertexConfigured reports whether all three managed-endpoint identifiers are set.
func (s Settings) VertexConfigured() bool {
	return s.VertexProjectID != "" && s.VertexRegion != "" && s.VertexEndpointID != ""
}

// VertexURL is the managed-endpoint predict URL.
func (s Settings) VertexURL() string {
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/endpoints/%s:predict",
		s.VertexRegion, s.VertexProjectID, s.VertexRegion, s.VertexEndpointID,
	)
}

// ServiceIsLoopback reports whether ServiceURL is plain HTTP to localhost
// or 127.0.0.1.
func (s Settings) ServiceIsLoopback() bool {
	u, err := url.Parse(s.ServiceURL)
	if err != nil || u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return true
	}
	return false
}

// ServicePredictURL is <ServiceURL>/predict.
func (s Settings) ServicePredictURL() string {
	return strings.TrimRight(s.ServiceURL, "/") + "/predict"
}

// UnescapeKey turns literal `\n` sequences into newlines, the form private
// keys take when stored in a single-line environment variable.
func UnescapeKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}
