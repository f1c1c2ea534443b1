package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/logger"
)

// DispatcherOption applies a configuration option to the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(c *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// Dispatcher delivers actions as JSON webhooks. One endpoint receives
// every action kind; the receiving side routes on the kind field.
type Dispatcher struct {
	endpoint string
	client   *http.Client
	log      logger.Logger
}

// NewDispatcher creates a webhook dispatcher targeting endpoint.
func NewDispatcher(endpoint string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		endpoint: endpoint,
		client:   &http.Client{},
		log:      logger.Named("actions"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements Executor.
func (d *Dispatcher) Name() string { return "webhook" }

// Execute implements Executor. Any non-2xx response is a failure; the
// caller owns retries.
func (d *Dispatcher) Execute(ctx context.Context, action model.Action) error {
	body, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("%w: marshal action: %w", ErrActionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrActionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: deliver %s: %w", ErrActionFailed, action.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: endpoint returned %d for %s", ErrActionFailed, resp.StatusCode, action.Kind)
	}

	d.log.Debug(ctx, "action delivered",
		logger.String("kind", string(action.Kind)),
		logger.String("shipment_id", action.ShipmentID))
	return nil
}
