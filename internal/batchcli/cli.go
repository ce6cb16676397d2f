package batchcli

import (
	"fmt"
	"os"
	"strings"

	"github.com/okian/rfcoverage/internal/domain/prediction"
	"github.com/okian/rfcoverage/pkg/logger"
)

// SetupLogging initializes the logger on stderr, at debug level when verbose.
func SetupLogging(verbose bool) error {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the batch predict tool.
func ShowHelp() {
	os.Stdout.WriteString(`RF Coverage Batch Predict
=========================

Submits every row of a CSV file as one batch to a running gateway and prints
a one-line summary.

Usage:
  go run ./cmd/batch-predict -csv sites.csv [options]

Options:
  -url string
        Base URL of the gateway (default "http://localhost:3000")
  -csv string
        CSV file with a header row (required)
  -out string
        Write the raw JSON response to this file
  -timeout duration
        HTTP request timeout (default 30s)
  -verbose
        Enable verbose logging
  -help
        Show this help message

CSV columns:
  ` + strings.Join(prediction.FeatureColumns, ", ") + `, site_id optional

Examples:
  go run ./cmd/batch-predict -csv data/candidates.csv
  go run ./cmd/batch-predict -url http://localhost:8081 -csv sites.csv -out result.json
`)
}
