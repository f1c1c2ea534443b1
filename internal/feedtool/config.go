// Package feedtool drives a running sentinel instance with simulated
// disruption traffic: it seeds a demo corridor, floods /v1/events, and
// reports what the pipeline made of it.
package feedtool

import "time"

// Config holds configuration for a feed run.
type Config struct {
	BaseURL   string        // Base URL of the service
	NumEvents int           // Number of records to generate
	Workers   int           // Number of concurrent submitters
	Timeout   time.Duration // HTTP request timeout
	SeedDemo  bool          // Seed the demo corridor and shipments first
	Verbose   bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	RecordsGenerated int
	RecordsAccepted  int64
	RecordsRefused   int64
	RecordsFailed    int64
	AuditRecords     int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
