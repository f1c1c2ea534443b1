package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/kestrelworks/sentinel/internal/feedtool"
)

// Default configuration constants.
const (
	defaultNumEvents  = 1000
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "Base URL of the service")
		numEvents = flag.Int("events", defaultNumEvents, "Number of records to generate and submit")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seedDemo  = flag.Bool("seed", true, "Seed the demo corridor and shipments first")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		feedtool.ShowHelp()
		return
	}

	if err := feedtool.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &feedtool.Config{
		BaseURL:   *baseURL,
		NumEvents: *numEvents,
		Workers:   *workers,
		Timeout:   *timeout,
		SeedDemo:  *seedDemo,
		Verbose:   *verbose,
	}

	if err := feedtool.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Feed run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
