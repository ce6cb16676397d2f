package batchcli

import (
	"io"
	"time"
)

// Config holds configuration for a batch prediction run.
type Config struct {
	BaseURL    string        // Base URL of the gateway
	CSVFile    string        // CSV file with one site per row
	OutputFile string        // Optional file for the raw response
	Timeout    time.Duration // HTTP request timeout
	Verbose    bool          // Enable debug logging
	Stdout     io.Writer     // Destination for the summary line
}

// Health mirrors the gateway health response.
type Health struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream"`
}

// Stats holds run statistics.
type Stats struct {
	Rows        int
	Predictions int
	Status      int
	RequestID   string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}
