package routing

import (
	"context"

	"github.com/kestrelworks/sentinel/internal/domain/geo"
	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Default static planner configuration constants.
const (
	defaultInterpolationPoints = 20
)

// StaticPlanner produces a great-circle interpolation between the
// endpoints. No external calls; used offline and as the fallback when
// the routing backend is unreachable.
type StaticPlanner struct {
	points int
}

// NewStaticPlanner creates a planner emitting n intermediate points
// per route (defaulted when n <= 0).
func NewStaticPlanner(n int) *StaticPlanner {
	if n <= 0 {
		n = defaultInterpolationPoints
	}
	return &StaticPlanner{points: n}
}

// PlanRoute implements Planner. It cannot fail.
func (s *StaticPlanner) PlanRoute(ctx context.Context, origin, destination model.Point) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	waypoints := geo.Interpolate(origin, destination, s.points)
	return Plan{
		Waypoints:  waypoints,
		DistanceKm: geo.PolylineLength(waypoints),
	}, nil
}
