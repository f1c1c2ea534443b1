package feedtool

import (
	"fmt"
	"os"

	"github.com/kestrelworks/sentinel/pkg/logger"
)

// SetupLogging initializes the logger for a CLI run.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the feed tool.
func ShowHelp() {
	os.Stdout.WriteString(`Sentinel Feed Tool
==================

Drives a running sentinel instance with simulated disruption traffic.

Usage:
  go run cmd/test-events/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -events int
        Number of records to generate and submit (default 1000)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed
        Seed the Chennai-Surat demo corridor and shipments first (default true)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run against a local instance with defaults
  go run cmd/test-events/main.go

  # Heavier run against a remote instance, no demo seeding
  go run cmd/test-events/main.go -events 50000 -workers 16 -seed=false -url http://sentinel:8080
`)
}
