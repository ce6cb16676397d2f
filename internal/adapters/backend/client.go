// Package backend is the client for the data backend that stores uploaded
// CSV files and runs coverage simulations.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/mdobak/go-xerrors"

	"github.com/okian/rfcoverage/pkg/logger"
	"github.com/okian/rfcoverage/pkg/metrics"
)

// Operation names, also used as metrics labels.
const (
	OpIngest   = "ingest"
	OpSimulate = "simulate"
)

// IngestResult is the backend answer to an upload.
type IngestResult struct {
	SavedTo string `json:"saved_to"`
	Bytes   int64  `json:"bytes"`
}

// SimulateResult is the backend answer to a simulation run.
type SimulateResult struct {
	OutputCSV   string          `json:"output_csv"`
	LabelCounts json.RawMessage `json:"label_counts"`
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the client used for backend calls.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client talks to the backend at a fixed base URL.
type Client struct {
	baseURL string
	http    Doer
	logger  logger.Logger
}

// NewClient returns a client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("backend")
	}
	return c
}

// Ingest uploads a CSV file as the multipart field "file".
func (c *Client) Ingest(ctx context.Context, filename string, r io.Reader) (IngestResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%s: create form file: %w", OpIngest, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return IngestResult{}, fmt.Errorf("%s: read upload: %w", OpIngest, err)
	}
	if err := mw.Close(); err != nil {
		return IngestResult{}, fmt.Errorf("%s: close form: %w", OpIngest, err)
	}

	var out IngestResult
	if err := c.post(ctx, OpIngest, "/ingest", mw.FormDataContentType(), &buf, &out); err != nil {
		return IngestResult{}, err
	}
	return out, nil
}

// SimulateRun asks the backend to run a simulation.
func (c *Client) SimulateRun(ctx context.Context) (SimulateResult, error) {
	var out SimulateResult
	if err := c.post(ctx, OpSimulate, "/simulate-run", "", nil, &out); err != nil {
		return SimulateResult{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader, out any) error {
	err := c.do(ctx, op, path, contentType, body, out)
	if err != nil {
		metrics.RecordBackendRequest(op, "error")
		c.logger.Error(ctx, "backend call failed",
			logger.String("operation", op),
			logger.Error(xerrors.New(err)),
		)
		return err
	}
	metrics.RecordBackendRequest(op, "ok")
	return nil
}

func (c *Client) do(ctx context.Context, op, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %w", ErrBackendUnavailable, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &failure)
		return &RemoteError{Operation: op, Status: resp.StatusCode, Message: failure.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %w", ErrBackendUnavailable, op, err)
	}
	return nil
}
