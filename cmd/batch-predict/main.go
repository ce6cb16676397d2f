package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/rfcoverage/internal/batchcli"
)

// Default configuration constants.
const (
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:3000", "Base URL of the gateway")
		csvFile    = flag.String("csv", "", "CSV file with a header row")
		outputFile = flag.String("out", "", "Write the raw JSON response to this file")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		batchcli.ShowHelp()
		return
	}

	if err := batchcli.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &batchcli.Config{
		BaseURL:    *baseURL,
		CSVFile:    *csvFile,
		OutputFile: *outputFile,
		Timeout:    *timeout,
		Verbose:    *verbose,
		Stdout:     os.Stdout,
	}

	if _, err := batchcli.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Batch predict failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
