// Package config defines process configuration and its loading.
//
// Conventions:
// - Defaults come from New(); Load layers file and env on top.
// - External errors are wrapped via this package's sentinel errors.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// TelemetryAddr configures the TCP telemetry listener; empty
	// disables the stream.
	TelemetryAddr string `koanf:"telemetry_addr"`

	// QueueSize bounds the in-memory intake queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the normalizer's duplicate cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DedupeWindow is how long a duplicate id stays remembered.
	DedupeWindow time.Duration `koanf:"dedupe_window"`

	// WatermarkGrace is how far behind the watermark an event may lag
	// before it is rejected as stale.
	WatermarkGrace time.Duration `koanf:"watermark_grace"`

	// Cooldown is the per-session suppression window after an action.
	Cooldown time.Duration `koanf:"cooldown"`

	// MinConfidence is the safety gate's confidence floor.
	MinConfidence float64 `koanf:"min_confidence"`

	// MaxActionsPerWindow and RateWindow bound per-scope action rate.
	MaxActionsPerWindow int           `koanf:"max_actions_per_window"`
	RateWindow          time.Duration `koanf:"rate_window"`

	// ContextRetention and ContextWindow shape the context store.
	ContextRetention time.Duration `koanf:"context_retention"`
	ContextWindow    time.Duration `koanf:"context_window"`

	// AuditBackend selects the trail: "file", "postgres", or "memory".
	AuditBackend string `koanf:"audit_backend"`

	// AuditPath is the trail file location for the file backend.
	AuditPath string `koanf:"audit_path"`

	// DatabaseURL is the Postgres DSN for the postgres backend.
	DatabaseURL string `koanf:"database_url"`

	// RoutingURL points at an OSRM-compatible backend; empty selects
	// the static planner.
	RoutingURL string `koanf:"routing_url"`

	// LLMEndpoint, LLMAPIKey, and LLMModel configure the LLM strategy;
	// an empty key selects the rule-based strategy alone.
	LLMEndpoint string `koanf:"llm_endpoint"`
	LLMAPIKey   string `koanf:"llm_api_key"`
	LLMModel    string `koanf:"llm_model"`

	// KafkaBrokers, KafkaTopic, and KafkaGroup configure the Kafka
	// source; no brokers disables it.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
	KafkaGroup   string   `koanf:"kafka_group"`

	// ActionWebhook is the endpoint for the webhook executor; empty
	// selects the logging-only executor.
	ActionWebhook string `koanf:"action_webhook"`

	// SimulatedFeeds starts the dev generators when true.
	SimulatedFeeds bool `koanf:"simulated_feeds"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":8080",
		TelemetryAddr:       ":8091",
		QueueSize:           10_000,
		DedupeSize:          50_000,
		DedupeWindow:        time.Hour,
		WatermarkGrace:      10 * time.Minute,
		Cooldown:            15 * time.Minute,
		MinConfidence:       0.70,
		MaxActionsPerWindow: 2,
		RateWindow:          time.Hour,
		ContextRetention:    7 * 24 * time.Hour,
		ContextWindow:       24 * time.Hour,
		AuditBackend:        "file",
		AuditPath:           "sentinel-audit.jsonl",
		KafkaGroup:          "sentinel",
		LLMModel:            "llama-3.3-70b-versatile",
		SimulatedFeeds:      true,
	}
}
