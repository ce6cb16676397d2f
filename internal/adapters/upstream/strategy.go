package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Strategy names, also used as metrics labels.
const (
	StrategyVertex   = "vertex"
	StrategyLoopback = "loopback"
	StrategyIdentity = "identity"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Strategy forwards a prediction body to one kind of upstream.
type Strategy interface {
	Name() string
	Matches(s Settings) bool
	Forward(ctx context.Context, s Settings, body []byte) (Reply, error)
}

// Reply is the status and JSON body relayed to the caller.
type Reply struct {
	Status int
	Body   []byte
}

type vertexStrategy struct {
	client Doer
	creds  Credentials
}

func (vertexStrategy) Name() string { return StrategyVertex }

func (vertexStrategy) Matches(s Settings) bool { return s.VertexConfigured() }

// Forward wraps the body as the single instance of {"instances":[...]}. The
// upstream status is relayed on failure, 200 otherwise.
func (v vertexStrategy) Forward(ctx context.Context, s Settings, body []byte) (Reply, error) {
	headers, err := v.creds.AcquireBearerHeaders(ctx)
	if err != nil {
		return Reply{}, credentialError(err)
	}
	payload, err := json.Marshal(struct {
		Instances []json.RawMessage `json:"instances"`
	}{Instances: []json.RawMessage{body}})
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	status, respBody, err := send(ctx, v.client, s.VertexURL(), headers, payload)
	if err != nil {
		return Reply{}, err
	}
	if !json.Valid(respBody) {
		return Reply{}, fmt.Errorf("%w: status %d", ErrUpstreamBody, status)
	}
	if status >= 200 && status < 300 {
		status = http.StatusOK
	}
	return Reply{Status: status, Body: respBody}, nil
}

type loopbackStrategy struct {
	client Doer
}

func (loopbackStrategy) Name() string { return StrategyLoopback }

func (loopbackStrategy) Matches(s Settings) bool {
	return s.ServiceURL != "" && s.ServiceIsLoopback()
}

// Forward posts the body unchanged without credentials. The reply is always
// 200 when the upstream answers with JSON, whatever its status.
func (l loopbackStrategy) Forward(ctx context.Context, s Settings, body []byte) (Reply, error) {
	_, respBody, err := send(ctx, l.client, s.ServicePredictURL(), nil, body)
	if err != nil {
		return Reply{}, err
	}
	if !json.Valid(respBody) {
		return Reply{}, ErrUpstreamBody
	}
	return Reply{Status: http.StatusOK, Body: respBody}, nil
}

type identityStrategy struct {
	client Doer
	creds  Credentials
}

func (identityStrategy) Name() string { return StrategyIdentity }

func (identityStrategy) Matches(s Settings) bool { return s.ServiceURL != "" }

// Forward attaches an identity token for the service URL. A non-2xx answer
// is an error; a non-JSON body is relayed as a JSON string.
func (i identityStrategy) Forward(ctx context.Context, s Settings, body []byte) (Reply, error) {
	token, err := i.creds.AcquireIdentityToken(ctx, s.ServiceURL)
	if err != nil {
		return Reply{}, credentialError(err)
	}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	status, respBody, err := send(ctx, i.client, s.ServicePredictURL(), headers, body)
	if err != nil {
		return Reply{}, err
	}
	if status < 200 || status >= 300 {
		return Reply{}, fmt.Errorf("%w: request failed with status code %d", ErrUpstreamStatus, status)
	}
	if !json.Valid(respBody) {
		quoted, err := json.Marshal(string(respBody))
		if err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrUpstreamBody, err)
		}
		respBody = quoted
	}
	return Reply{Status: http.StatusOK, Body: respBody}, nil
}

func send(ctx context.Context, client Doer, url string, headers http.Header, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %w", ErrUpstreamUnavailable, err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %w", ErrUpstreamUnavailable, err)
	}
	return resp.StatusCode, respBody, nil
}
