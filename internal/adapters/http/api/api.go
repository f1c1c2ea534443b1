// Package api exposes the service over HTTP: route activation,
// shipment registration, event intake, audit queries, stats, health,
// and the Prometheus scrape endpoint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/kestrelworks/sentinel/internal/app"
	"github.com/kestrelworks/sentinel/internal/domain/corridor"
	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// Default router configuration constants.
const (
	defaultRequestTimeout = 15 * time.Second
)

// Handler serves the HTTP API over the service.
type Handler struct {
	svc *service.Service
}

// NewRouter builds the chi router with the full endpoint surface.
func NewRouter(svc *service.Service) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(instrument)

	r.Get("/healthz", h.health)
	r.Get("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/routes", h.activateRoute)
		r.Get("/routes", h.listRoutes)
		r.Get("/routes/{id}", h.getRoute)
		r.Delete("/routes/{id}", h.deactivateRoute)

		r.Put("/shipments", h.putShipment)
		r.Get("/shipments", h.listShipments)
		r.Delete("/shipments/{id}", h.removeShipment)

		r.Post("/events", h.ingestEvent)

		r.Get("/audit", h.listAudit)
		r.Get("/stats", h.stats)
	})

	return r
}

// instrument records request counts and latency per endpoint.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		metrics.RecordHTTPRequest(pattern, r.Method, status)
		metrics.RecordHTTPRequestDuration(pattern, r.Method, status,
			float64(time.Since(start).Milliseconds()))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	if !h.svc.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "sentinel"})
}

type activateRouteRequest struct {
	ID              string       `json:"id"`
	Origin          *model.Point `json:"origin,omitempty"`
	OriginName      string       `json:"origin_name,omitempty"`
	Destination     *model.Point `json:"destination,omitempty"`
	DestinationName string       `json:"destination_name,omitempty"`
	CorridorRadius  float64      `json:"corridor_radius_km"`
}

func (h *Handler) activateRoute(w http.ResponseWriter, r *http.Request) {
	var req activateRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	origin, ok := h.resolveEndpoint(req.Origin, req.OriginName)
	if !ok {
		writeError(w, http.StatusBadRequest, "origin missing or unknown")
		return
	}
	destination, ok := h.resolveEndpoint(req.Destination, req.DestinationName)
	if !ok {
		writeError(w, http.StatusBadRequest, "destination missing or unknown")
		return
	}
	if req.CorridorRadius <= 0 {
		writeError(w, http.StatusBadRequest, "corridor_radius_km must be positive")
		return
	}

	route, err := h.svc.ActivateRoute(r.Context(), req.ID, origin, destination, req.CorridorRadius)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, route)
}

func (h *Handler) resolveEndpoint(pt *model.Point, name string) (model.Point, bool) {
	if pt != nil {
		return *pt, true
	}
	if name == "" {
		return model.Point{}, false
	}
	return h.svc.ResolveLocation(name)
}

func (h *Handler) listRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.svc.Routes()})
}

func (h *Handler) getRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.svc.Route(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, corridor.ErrUnknownRoute) {
			writeError(w, http.StatusNotFound, "route not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (h *Handler) deactivateRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.svc.DeactivateRoute(id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "deactivated"})
}

func (h *Handler) putShipment(w http.ResponseWriter, r *http.Request) {
	var sh model.Shipment
	if err := json.NewDecoder(r.Body).Decode(&sh); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if sh.ID == "" || sh.RouteID == "" {
		writeError(w, http.StatusBadRequest, "id and route_id are required")
		return
	}
	h.svc.PutShipment(sh)
	writeJSON(w, http.StatusOK, sh)
}

func (h *Handler) listShipments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.svc.Shipments()})
}

func (h *Handler) removeShipment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.svc.RemoveShipment(id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "removed"})
}

func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var rec model.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if !h.svc.Ingest(r.Context(), rec) {
		writeError(w, http.StatusTooManyRequests, "intake queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.AuditRecords(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": records})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats(r.Context()))
}
