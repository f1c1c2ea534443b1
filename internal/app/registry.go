package service

import (
	"sync"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Registry tracks the shipments under monitoring. Write-rare,
// read-heavy; every disruption cycle reads it for the affected route.
type Registry struct {
	mu        sync.RWMutex
	shipments map[string]model.Shipment
}

// NewRegistry creates an empty shipment registry.
func NewRegistry() *Registry {
	return &Registry{shipments: make(map[string]model.Shipment)}
}

// Put inserts or replaces a shipment.
func (r *Registry) Put(s model.Shipment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipments[s.ID] = s
}

// Remove retires a shipment. Idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shipments, id)
}

// ShipmentsByID resolves ids to their current state, skipping unknown
// ids.
func (r *Registry) ShipmentsByID(ids []string) []model.Shipment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Shipment, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.shipments[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ShipmentsForRoute returns every shipment travelling routeID.
func (r *Registry) ShipmentsForRoute(routeID string) []model.Shipment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Shipment
	for _, s := range r.shipments {
		if s.RouteID == routeID {
			out = append(out, s)
		}
	}
	return out
}

// All returns every registered shipment.
func (r *Registry) All() []model.Shipment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Shipment, 0, len(r.shipments))
	for _, s := range r.shipments {
		out = append(out, s)
	}
	return out
}
