package routing

import (
	"strings"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// knownHubs maps supply chain hub names to coordinates. Covers the
// ports, canals, and straits the feeds talk about; anything else needs
// a coordinate on the record itself.
var knownHubs = map[string]model.Point{
	"suez canal":        {Lat: 30.5, Lng: 32.3},
	"panama canal":      {Lat: 9.1, Lng: -79.7},
	"singapore":         {Lat: 1.3, Lng: 103.8},
	"rotterdam":         {Lat: 51.9, Lng: 4.5},
	"hamburg":           {Lat: 53.5, Lng: 10.0},
	"los angeles":       {Lat: 33.7, Lng: -118.2},
	"shanghai":          {Lat: 31.2, Lng: 121.5},
	"mumbai":            {Lat: 19.0, Lng: 72.8},
	"hong kong":         {Lat: 22.3, Lng: 114.2},
	"dubai":             {Lat: 25.2, Lng: 55.3},
	"tokyo":             {Lat: 35.7, Lng: 139.7},
	"new york":          {Lat: 40.7, Lng: -74.0},
	"london":            {Lat: 51.5, Lng: -0.1},
	"sydney":            {Lat: -33.9, Lng: 151.2},
	"cape town":         {Lat: -33.9, Lng: 18.4},
	"strait of malacca": {Lat: 2.5, Lng: 101.0},
	"strait of hormuz":  {Lat: 26.5, Lng: 56.5},
	"red sea":           {Lat: 20.0, Lng: 38.0},
	"mediterranean":     {Lat: 35.0, Lng: 18.0},
	"north atlantic":    {Lat: 45.0, Lng: -40.0},
	"indian ocean":      {Lat: -10.0, Lng: 75.0},
	"south china sea":   {Lat: 12.0, Lng: 115.0},
	"chennai":           {Lat: 13.08, Lng: 80.27},
	"surat":             {Lat: 21.17, Lng: 72.83},
	"hyderabad":         {Lat: 17.38, Lng: 78.48},
	"coimbatore":        {Lat: 11.01, Lng: 76.95},
	"bangalore":         {Lat: 12.97, Lng: 77.59},
	"salem":             {Lat: 11.66, Lng: 78.14},
}

// Gazetteer resolves named places to coordinates via the known hub
// table. Matching is case-insensitive and tolerates the hub name
// appearing inside a longer phrase.
type Gazetteer struct{}

// NewGazetteer creates a Gazetteer over the built-in hub table.
func NewGazetteer() *Gazetteer {
	return &Gazetteer{}
}

// Locate resolves name to a coordinate. The second return is false
// when the place is unknown.
func (g *Gazetteer) Locate(name string) (model.Point, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return model.Point{}, false
	}
	if pt, ok := knownHubs[needle]; ok {
		return pt, true
	}
	for hub, pt := range knownHubs {
		if strings.Contains(needle, hub) || strings.Contains(hub, needle) {
			return pt, true
		}
	}
	return model.Point{}, false
}
