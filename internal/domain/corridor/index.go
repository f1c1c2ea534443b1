// Package corridor maintains the buffered-polyline index used to test
// whether an event location is relevant to a monitored route.
//
// The index is read-heavy: registration and unregistration happen when
// monitoring starts or stops, membership queries happen on every
// located event. An RWMutex plus a per-route bounding box prefilter
// keeps queries cheap without a full spatial tree.
package corridor

import (
	"fmt"
	"math"
	"sync"

	"github.com/kestrelworks/sentinel/internal/domain/geo"
	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// boundingBox is a lat/lng rectangle expanded by the corridor radius,
// used to reject far-away points before the segment walk.
type boundingBox struct {
	minLat, maxLat float64
	minLng, maxLng float64
}

func (b boundingBox) contains(p model.Point) bool {
	return p.Lat >= b.minLat && p.Lat <= b.maxLat &&
		p.Lng >= b.minLng && p.Lng <= b.maxLng
}

type entry struct {
	route model.Route
	box   boundingBox
}

// Index answers corridor membership queries for registered routes.
// Safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	routes map[string]entry
}

// NewIndex creates an empty corridor index.
func NewIndex() *Index {
	return &Index{routes: make(map[string]entry)}
}

// Register adds or replaces a route. A route needs at least one
// waypoint and a positive corridor radius.
func (i *Index) Register(route model.Route) error {
	if route.ID == "" || len(route.Waypoints) == 0 || route.CorridorRadius <= 0 {
		return fmt.Errorf("route %q: %w", route.ID, ErrInvalidRoute)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.routes[route.ID] = entry{route: route, box: boxFor(route)}
	metrics.UpdateRoutesRegistered(len(i.routes))
	return nil
}

// Unregister removes a route. Removing an unknown route is not an
// error; teardown must be idempotent.
func (i *Index) Unregister(routeID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.routes, routeID)
	metrics.UpdateRoutesRegistered(len(i.routes))
}

// Route returns the registered route for id.
func (i *Index) Route(routeID string) (model.Route, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.routes[routeID]
	if !ok {
		return model.Route{}, fmt.Errorf("route %q: %w", routeID, ErrUnknownRoute)
	}
	return e.route, nil
}

// WithinCorridor reports whether p lies within routeID's corridor:
// the minimum distance from p to the route polyline is at most the
// corridor radius. A single-waypoint route degrades to a point-radius
// test.
func (i *Index) WithinCorridor(routeID string, p model.Point) (bool, error) {
	i.mu.RLock()
	e, ok := i.routes[routeID]
	i.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("route %q: %w", routeID, ErrUnknownRoute)
	}
	return within(e, p), nil
}

// AffectedRoutes returns the ids of every registered route whose
// corridor contains p. The result is a fresh slice; order is not
// specified.
func (i *Index) AffectedRoutes(p model.Point) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var affected []string
	for id, e := range i.routes {
		if !e.box.contains(p) {
			continue
		}
		if within(e, p) {
			affected = append(affected, id)
		}
	}
	return affected
}

// Routes returns every registered route. The result is a fresh slice;
// order is not specified.
func (i *Index) Routes() []model.Route {
	i.mu.RLock()
	defer i.mu.RUnlock()
	routes := make([]model.Route, 0, len(i.routes))
	for _, e := range i.routes {
		routes = append(routes, e.route)
	}
	return routes
}

// Count returns the number of registered routes.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.routes)
}

func within(e entry, p model.Point) bool {
	return geo.DistanceToPolyline(p, e.route.Waypoints) <= e.route.CorridorRadius
}

func boxFor(route model.Route) boundingBox {
	b := boundingBox{
		minLat: route.Waypoints[0].Lat, maxLat: route.Waypoints[0].Lat,
		minLng: route.Waypoints[0].Lng, maxLng: route.Waypoints[0].Lng,
	}
	for _, w := range route.Waypoints[1:] {
		if w.Lat < b.minLat {
			b.minLat = w.Lat
		}
		if w.Lat > b.maxLat {
			b.maxLat = w.Lat
		}
		if w.Lng < b.minLng {
			b.minLng = w.Lng
		}
		if w.Lng > b.maxLng {
			b.maxLng = w.Lng
		}
	}

	// Expand by the radius in degrees. Latitude degrees are ~111 km;
	// longitude degrees shrink with latitude, so pad by the worst-case
	// latitude of the box. The box only has to be conservative, never
	// tight.
	latPad := route.CorridorRadius / 111.0
	worstLat := math.Max(math.Abs(b.minLat), math.Abs(b.maxLat)) + latPad
	cosLat := math.Cos(worstLat * math.Pi / 180)
	if cosLat < 0.1 {
		cosLat = 0.1 // near-polar routes: cap the stretch instead of dividing by ~0
	}
	lngPad := latPad / cosLat
	b.minLat -= latPad
	b.maxLat += latPad
	b.minLng -= lngPad
	b.maxLng += lngPad
	return b
}
