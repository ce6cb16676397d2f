package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/okian/rfcoverage/pkg/metrics"
)

// CloudPlatformScope is requested for managed-endpoint bearer tokens.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Credentials issues the authorization material attached to upstream calls.
type Credentials interface {
	// AcquireBearerHeaders returns headers carrying an access token from the
	// ambient platform credentials.
	AcquireBearerHeaders(ctx context.Context) (http.Header, error)

	// AcquireIdentityToken returns an identity token whose audience is the
	// given URL.
	AcquireIdentityToken(ctx context.Context, audience string) (string, error)
}

// GoogleCredentials resolves tokens through Google's credential chain. Each
// call acquires a fresh token; nothing is cached between requests.
type GoogleCredentials struct {
	email      string
	privateKey string
}

// NewGoogleCredentials builds credentials for the given service account. The
// email and key are only needed for identity tokens.
func NewGoogleCredentials(email, privateKey string) *GoogleCredentials {
	return &GoogleCredentials{email: email, privateKey: privateKey}
}

// AcquireBearerHeaders implements Credentials.
func (c *GoogleCredentials) AcquireBearerHeaders(ctx context.Context) (http.Header, error) {
	ts, err := google.DefaultTokenSource(ctx, CloudPlatformScope)
	if err != nil {
		metrics.RecordCredentialError("bearer")
		return nil, fmt.Errorf("%w: default credentials: %w", ErrCredentials, err)
	}
	tok, err := ts.Token()
	if err != nil {
		metrics.RecordCredentialError("bearer")
		return nil, fmt.Errorf("%w: access token: %w", ErrCredentials, err)
	}
	h := http.Header{}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return h, nil
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// AcquireIdentityToken implements Credentials.
func (c *GoogleCredentials) AcquireIdentityToken(ctx context.Context, audience string) (string, error) {
	if c.email == "" || c.privateKey == "" {
		metrics.RecordCredentialError("identity")
		return "", fmt.Errorf("%w: service account email and private key are required", ErrCredentials)
	}
	key, err := json.Marshal(serviceAccountKey{
		Type:        "service_account",
		ClientEmail: c.email,
		PrivateKey:  UnescapeKey(c.privateKey),
		TokenURI:    google.JWTTokenURL,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode service account: %w", ErrCredentials, err)
	}
	ts, err := idtoken.NewTokenSource(ctx, audience, option.WithCredentialsJSON(key))
	if err != nil {
		metrics.RecordCredentialError("identity")
		return "", fmt.Errorf("%w: identity token source: %w", ErrCredentials, err)
	}
	tok, err := ts.Token()
	if err != nil {
		metrics.RecordCredentialError("identity")
		return "", fmt.Errorf("%w: identity token: %w", ErrCredentials, err)
	}
	return tok.AccessToken, nil
}
