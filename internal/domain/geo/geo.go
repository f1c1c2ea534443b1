// Package geo implements the spherical distance primitives used by the
// corridor index. Distances are kilometers on a WGS84 sphere.
package geo

import (
	"math"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b model.Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// PointToSegment returns the minimum distance in km from p to the
// segment (a, b). The projection uses a local equirectangular plane
// centered on the segment, which is accurate enough at corridor scales;
// the projection parameter is clamped so off-segment points measure to
// the nearest endpoint.
func PointToSegment(p, a, b model.Point) float64 {
	// Degenerate segment collapses to a point test.
	if a.Lat == b.Lat && a.Lng == b.Lng {
		return Haversine(p, a)
	}

	meanLat := radians((a.Lat + b.Lat + p.Lat) / 3)
	scale := math.Cos(meanLat)

	ax, ay := a.Lng*scale, a.Lat
	bx, by := b.Lng*scale, b.Lat
	px, py := p.Lng*scale, p.Lat

	dx, dy := bx-ax, by-ay
	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	closest := model.Point{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lng: a.Lng + t*(b.Lng-a.Lng),
	}
	return Haversine(p, closest)
}

// DistanceToPolyline returns the minimum distance in km from p to any
// segment of the polyline. A single-point polyline degrades to a plain
// point distance; an empty polyline returns +Inf.
func DistanceToPolyline(p model.Point, polyline []model.Point) float64 {
	switch len(polyline) {
	case 0:
		return math.Inf(1)
	case 1:
		return Haversine(p, polyline[0])
	}

	best := math.Inf(1)
	for i := 0; i < len(polyline)-1; i++ {
		if d := PointToSegment(p, polyline[i], polyline[i+1]); d < best {
			best = d
		}
	}
	return best
}

// Interpolate returns n evenly spaced points along the great-circle-ish
// straight line between a and b, inclusive of both endpoints. Used by
// the static route planner when no routing collaborator is configured.
func Interpolate(a, b model.Point, n int) []model.Point {
	if n < 2 {
		n = 2
	}
	pts := make([]model.Point, n)
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n-1)
		pts[i] = model.Point{
			Lat: a.Lat + f*(b.Lat-a.Lat),
			Lng: a.Lng + f*(b.Lng-a.Lng),
		}
	}
	return pts
}

// PolylineLength returns the cumulative haversine length of the
// polyline in km.
func PolylineLength(polyline []model.Point) float64 {
	total := 0.0
	for i := 0; i < len(polyline)-1; i++ {
		total += Haversine(polyline[i], polyline[i+1])
	}
	return total
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
