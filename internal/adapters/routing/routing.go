// Package routing obtains route polylines from an external routing
// collaborator, with a static great-circle planner for offline and dev
// use, and a gazetteer of known supply chain hubs for named locations.
package routing

import (
	"context"
	"errors"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Sentinel kinds for routing errors.
var (
	ErrNoRoute     = errors.New("no route found")
	ErrUnavailable = errors.New("routing backend unavailable")
)

// Plan is a resolved route between two coordinates.
type Plan struct {
	Waypoints  []model.Point `json:"waypoints"`
	DistanceKm float64       `json:"distance_km"`
}

// Planner resolves a polyline between an origin and a destination.
type Planner interface {
	PlanRoute(ctx context.Context, origin, destination model.Point) (Plan, error)
}
