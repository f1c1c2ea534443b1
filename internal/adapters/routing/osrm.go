package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/logger"
)

// Default OSRM client configuration constants.
const (
	defaultOSRMTimeout = 15 * time.Second
)

// OSRMOption applies a configuration option to the OSRMClient.
type OSRMOption func(*OSRMClient)

// WithOSRMHTTPClient overrides the HTTP client, for tests.
func WithOSRMHTTPClient(c *http.Client) OSRMOption {
	return func(o *OSRMClient) {
		if c != nil {
			o.client = c
		}
	}
}

// WithOSRMTimeout bounds a single routing call.
func WithOSRMTimeout(d time.Duration) OSRMOption {
	return func(o *OSRMClient) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// OSRMClient resolves routes against an OSRM-compatible HTTP backend.
// Coordinates go out lng,lat per the OSRM convention; the GeoJSON
// geometry comes back the same way and is flipped on ingestion.
type OSRMClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	log     logger.Logger
}

// NewOSRMClient creates a client for baseURL, e.g.
// "https://router.project-osrm.org".
func NewOSRMClient(baseURL string, opts ...OSRMOption) *OSRMClient {
	o := &OSRMClient{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: defaultOSRMTimeout,
		log:     logger.Named("routing"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"` // meters
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// PlanRoute implements Planner.
func (o *OSRMClient) PlanRoute(ctx context.Context, origin, destination model.Point) (Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		o.baseURL, origin.Lng, origin.Lat, destination.Lng, destination.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Plan{}, fmt.Errorf("build routing request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Plan{}, fmt.Errorf("routing call failed: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Plan{}, fmt.Errorf("routing status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var parsed osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Plan{}, fmt.Errorf("decode routing response: %w: %w", ErrUnavailable, err)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return Plan{}, fmt.Errorf("%w: %s", ErrNoRoute, parsed.Message)
	}

	route := parsed.Routes[0]
	waypoints := make([]model.Point, 0, len(route.Geometry.Coordinates))
	for _, c := range route.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		waypoints = append(waypoints, model.Point{Lat: c[1], Lng: c[0]})
	}
	if len(waypoints) == 0 {
		return Plan{}, ErrNoRoute
	}

	return Plan{
		Waypoints:  waypoints,
		DistanceKm: route.Distance / 1000,
	}, nil
}

// WithStaticFallback wraps primary so that the static planner answers
// when the backend is unavailable. Routing never hard-fails a route
// activation just because the collaborator is down.
func WithStaticFallback(primary Planner, fallback *StaticPlanner) Planner {
	return &fallbackPlanner{primary: primary, fallback: fallback, log: logger.Named("routing")}
}

type fallbackPlanner struct {
	primary  Planner
	fallback *StaticPlanner
	log      logger.Logger
}

func (f *fallbackPlanner) PlanRoute(ctx context.Context, origin, destination model.Point) (Plan, error) {
	plan, err := f.primary.PlanRoute(ctx, origin, destination)
	if err == nil {
		return plan, nil
	}
	f.log.Warn(ctx, "routing backend failed, using static interpolation", logger.Error(err))
	return f.fallback.PlanRoute(ctx, origin, destination)
}
