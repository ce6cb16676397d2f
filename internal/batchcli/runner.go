// Package batchcli submits a CSV of candidate sites to a running gateway as
// a single batch prediction.
package batchcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/rfcoverage/internal/domain/csvrecords"
	"github.com/okian/rfcoverage/internal/domain/prediction"
	"github.com/okian/rfcoverage/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes a batch prediction and prints its summary.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if config.CSVFile == "" {
		return nil, fmt.Errorf("%w: -csv is required", ErrConfig)
	}
	out := config.Stdout
	if out == nil {
		out = os.Stdout
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(config.Timeout)

	logger.Get().Info(ctx, "starting batch prediction",
		logger.String("baseURL", baseURL),
		logger.String("csv", config.CSVFile),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check gateway health
	if err := checkServiceHealth(ctx, client, baseURL); err != nil {
		return nil, err
	}

	// Step 2: Read and parse the CSV
	body, err := loadBatch(config.CSVFile, stats)
	if err != nil {
		return nil, err
	}

	// Step 3: Submit the batch
	raw, err := submitBatch(ctx, client, baseURL, body, stats)
	if err != nil {
		return stats, err
	}

	// Step 4: Summarize
	resp, err := prediction.ParseResponse(raw)
	if err != nil {
		logger.Get().Warn(ctx, "response is not a JSON object", logger.Error(err))
	}
	stats.Predictions = resp.Predictions()
	if _, err := fmt.Fprintln(out, resp.BatchSummary()); err != nil {
		return stats, fmt.Errorf("write summary: %w", err)
	}

	// Step 5: Save the raw response
	if config.OutputFile != "" {
		if err := saveOutput(ctx, config.OutputFile, raw); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the gateway is running and logs its upstream.
func checkServiceHealth(ctx context.Context, client *HTTPClient, baseURL string) error {
	resp, err := client.Get(ctx, baseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}

	var health Health
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if health.Upstream == "none" {
		logger.Get().Warn(ctx, "gateway has no upstream configured")
	}
	logger.Get().Debug(ctx, "gateway is healthy", logger.String("upstream", health.Upstream))
	return nil
}

func loadBatch(path string, stats *Stats) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	defer f.Close()

	text, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}
	records, err := csvrecords.Parse(string(text))
	if err != nil {
		return nil, err
	}
	stats.Rows = len(records)
	return prediction.NewBatch(records)
}

func submitBatch(ctx context.Context, client *HTTPClient, baseURL string, body []byte, stats *Stats) ([]byte, error) {
	resp, id, err := client.PostJSON(ctx, baseURL+"/api/predict", body)
	stats.RequestID = id
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPredict, err)
	}
	raw, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPredict, err)
	}
	stats.Status = resp.StatusCode
	logger.Get().Debug(ctx, "batch submitted",
		logger.String("requestID", id),
		logger.Int("rows", stats.Rows),
		logger.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := "batch predict failed"
		if parsed, err := prediction.ParseResponse(raw); err == nil && parsed.ErrorMessage() != "" {
			msg = parsed.ErrorMessage()
		}
		return raw, fmt.Errorf("%w: status %d: %s", ErrPredict, resp.StatusCode, msg)
	}
	return raw, nil
}

// saveOutput writes the raw response, pretty-printed when it is valid JSON.
func saveOutput(ctx context.Context, filename string, raw []byte) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
	}

	data := raw
	var v any
	if json.Unmarshal(raw, &v) == nil {
		if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
			data = append(pretty, '\n')
		}
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	logger.Get().Info(ctx, "response saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("rows", stats.Rows),
		logger.Int("predictions", stats.Predictions),
		logger.Int("status", stats.Status),
		logger.String("requestID", stats.RequestID),
		logger.Duration("duration", stats.Duration))
}
