package feedtool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelworks/sentinel/internal/adapters/ingest"
	"github.com/kestrelworks/sentinel/internal/adapters/routing"
	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/logger"
)

// Settle time between submission and reading results back.
const processingDelay = 2 * time.Second

// Run executes the complete feed run.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting sentinel feed run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("events", config.NumEvents),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("seedDemo", config.SeedDemo))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	if config.SeedDemo {
		if err := seedDemo(ctx, config); err != nil {
			return fmt.Errorf("demo seeding failed: %w", err)
		}
	}

	records := generateRecords(config, stats)

	if err := submitRecords(ctx, config, records, stats); err != nil {
		return fmt.Errorf("record submission failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for records to be processed")
	time.Sleep(processingDelay)

	if err := collectResults(ctx, config, stats); err != nil {
		return fmt.Errorf("result collection failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	logger.Get().Info(ctx, "feed run completed",
		logger.Int("generated", stats.RecordsGenerated),
		logger.Int("accepted", int(stats.RecordsAccepted)),
		logger.Int("refused", int(stats.RecordsRefused)),
		logger.Int("failed", int(stats.RecordsFailed)),
		logger.Int("auditRecords", stats.AuditRecords),
		logger.String("duration", stats.Duration.String()))
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)

	resp, err := client.get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// seedDemo activates the Chennai-Surat demo corridor and two shipments
// so generated events near Indian hubs have something to disrupt.
func seedDemo(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)

	route := map[string]any{
		"id":                 "demo-chennai-surat",
		"origin_name":        "Chennai",
		"destination_name":   "Surat",
		"corridor_radius_km": 200,
	}
	resp, err := client.postJSON(ctx, config.BaseURL+"/v1/routes", route)
	if err != nil {
		return fmt.Errorf("failed to activate demo route: %w", err)
	}
	drainAndClose(resp)
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("demo route activation returned status %d", resp.StatusCode)
	}

	shipments := []model.Shipment{
		{ID: "demo-ship-1", RouteID: "demo-chennai-surat", Value: 750_000, Perishable: true, ETADays: 3},
		{ID: "demo-ship-2", RouteID: "demo-chennai-surat", Value: 120_000, Perishable: false, ETADays: 9},
	}
	for _, sh := range shipments {
		resp, err := client.putJSON(ctx, config.BaseURL+"/v1/shipments", sh)
		if err != nil {
			return fmt.Errorf("failed to register shipment %s: %w", sh.ID, err)
		}
		drainAndClose(resp)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("shipment registration returned status %d", resp.StatusCode)
		}
	}

	logger.Get().Info(ctx, "demo corridor seeded",
		logger.String("route", "demo-chennai-surat"),
		logger.Int("shipments", len(shipments)))
	return nil
}

// generateRecords produces the run's records across all feed kinds.
func generateRecords(config *Config, stats *Stats) []model.RawRecord {
	locate := routing.NewGazetteer().Locate
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	feeds := []*ingest.SimulatedFeed{
		ingest.NewSimulatedFeed(ingest.FeedNews, locate, ingest.WithRand(rng)),
		ingest.NewSimulatedFeed(ingest.FeedWeather, locate, ingest.WithRand(rng)),
		ingest.NewSimulatedFeed(ingest.FeedShipment, locate, ingest.WithRand(rng)),
	}

	records := make([]model.RawRecord, 0, config.NumEvents)
	for i := 0; i < config.NumEvents; i++ {
		rec := feeds[i%len(feeds)].Generate()
		// Generated ids collide at millisecond resolution under load.
		rec.SourceID = fmt.Sprintf("%s_%d", rec.SourceID, i)
		records = append(records, rec)
	}

	stats.RecordsGenerated = len(records)
	return records
}

// submitRecords posts records concurrently through a worker pool.
func submitRecords(ctx context.Context, config *Config, records []model.RawRecord, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/v1/events"

	recordChan := make(chan model.RawRecord, config.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range recordChan {
				resp, err := client.postJSON(ctx, url, rec)
				if err != nil {
					atomic.AddInt64(&stats.RecordsFailed, 1)
					continue
				}
				switch resp.StatusCode {
				case http.StatusAccepted:
					atomic.AddInt64(&stats.RecordsAccepted, 1)
				case http.StatusTooManyRequests:
					atomic.AddInt64(&stats.RecordsRefused, 1)
				default:
					atomic.AddInt64(&stats.RecordsFailed, 1)
					if config.Verbose {
						logger.Get().Warn(ctx, "unexpected intake status",
							logger.Int("status", resp.StatusCode),
							logger.String("source_id", rec.SourceID))
					}
				}
				drainAndClose(resp)
			}
		}()
	}

	for _, rec := range records {
		select {
		case <-ctx.Done():
			close(recordChan)
			wg.Wait()
			return ctx.Err()
		case recordChan <- rec:
		}
	}
	close(recordChan)
	wg.Wait()
	return nil
}

// collectResults reads the audit trail size back from the service.
func collectResults(ctx context.Context, config *Config, stats *Stats) error {
	client := newHTTPClient(config.Timeout)

	resp, err := client.get(ctx, config.BaseURL+"/v1/audit")
	if err != nil {
		return fmt.Errorf("failed to fetch audit trail: %w", err)
	}
	defer drainAndClose(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read audit response: %w", err)
	}

	var trail struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &trail); err != nil {
		return fmt.Errorf("failed to decode audit response: %w", err)
	}

	stats.AuditRecords = len(trail.Items)
	return nil
}
