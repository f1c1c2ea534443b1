package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kestrelworks/sentinel/internal/adapters/http/api"
	service "github.com/kestrelworks/sentinel/internal/app"
	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startedService() (*service.Service, func()) {
	svc := service.New()
	_ = svc.Start(context.Background())
	return svc, svc.Stop
}

func doJSON(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouteEndpoints(t *testing.T) {
	Convey("Given the API over a started service", t, func() {
		svc, stop := startedService()
		defer stop()
		handler := api.NewRouter(svc)

		Convey("Activating a route by coordinates returns the polyline", func() {
			rec := doJSON(handler, http.MethodPost, "/v1/routes", `{
				"id": "route-1",
				"origin": {"lat": 13.08, "lng": 80.27},
				"destination": {"lat": 21.17, "lng": 72.83},
				"corridor_radius_km": 200
			}`)
			So(rec.Code, ShouldEqual, http.StatusCreated)

			var route model.Route
			So(json.Unmarshal(rec.Body.Bytes(), &route), ShouldBeNil)
			So(route.ID, ShouldEqual, "route-1")
			So(len(route.Waypoints), ShouldBeGreaterThanOrEqualTo, 2)
			So(route.CorridorRadius, ShouldEqual, 200)
		})

		Convey("Activating a route by hub names resolves via the gazetteer", func() {
			rec := doJSON(handler, http.MethodPost, "/v1/routes", `{
				"origin_name": "Chennai",
				"destination_name": "Surat",
				"corridor_radius_km": 150
			}`)
			So(rec.Code, ShouldEqual, http.StatusCreated)
		})

		Convey("An unknown origin name is a bad request", func() {
			rec := doJSON(handler, http.MethodPost, "/v1/routes", `{
				"origin_name": "Atlantis",
				"destination_name": "Surat",
				"corridor_radius_km": 150
			}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A non-positive radius is a bad request", func() {
			rec := doJSON(handler, http.MethodPost, "/v1/routes", `{
				"origin_name": "Chennai",
				"destination_name": "Surat",
				"corridor_radius_km": 0
			}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Routes can be fetched, listed, and deactivated", func() {
			doJSON(handler, http.MethodPost, "/v1/routes", `{
				"id": "route-1",
				"origin_name": "Chennai",
				"destination_name": "Surat",
				"corridor_radius_km": 200
			}`)

			rec := doJSON(handler, http.MethodGet, "/v1/routes/route-1", "")
			So(rec.Code, ShouldEqual, http.StatusOK)

			rec = doJSON(handler, http.MethodGet, "/v1/routes", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "route-1")

			rec = doJSON(handler, http.MethodDelete, "/v1/routes/route-1", "")
			So(rec.Code, ShouldEqual, http.StatusOK)

			rec = doJSON(handler, http.MethodGet, "/v1/routes/route-1", "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestShipmentEndpoints(t *testing.T) {
	Convey("Given the API over a started service", t, func() {
		svc, stop := startedService()
		defer stop()
		handler := api.NewRouter(svc)

		Convey("Shipments round-trip through put, list, and remove", func() {
			rec := doJSON(handler, http.MethodPut, "/v1/shipments", `{
				"id": "ship-1", "route_id": "route-1",
				"value": 500000, "perishable": true, "eta_days": 4
			}`)
			So(rec.Code, ShouldEqual, http.StatusOK)

			rec = doJSON(handler, http.MethodGet, "/v1/shipments", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "ship-1")

			rec = doJSON(handler, http.MethodDelete, "/v1/shipments/ship-1", "")
			So(rec.Code, ShouldEqual, http.StatusOK)

			rec = doJSON(handler, http.MethodGet, "/v1/shipments", "")
			So(rec.Body.String(), ShouldNotContainSubstring, "ship-1")
		})

		Convey("A shipment without an id is a bad request", func() {
			rec := doJSON(handler, http.MethodPut, "/v1/shipments", `{"route_id": "route-1"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestEventIntake(t *testing.T) {
	Convey("Given the API over a started service", t, func() {
		svc, stop := startedService()
		defer stop()
		handler := api.NewRouter(svc)

		Convey("A well-formed record is accepted", func() {
			rec := doJSON(handler, http.MethodPost, "/v1/events", `{
				"source_id": "news-1",
				"source_kind": "news",
				"timestamp": "`+time.Now().Format(time.RFC3339)+`",
				"text": "port strike reported",
				"category": "strike",
				"severity": 7
			}`)
			So(rec.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("Malformed JSON is a bad request", func() {
			rec := doJSON(handler, http.MethodPost, "/v1/events", `{not json`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the API over a started service", t, func() {
		svc, stop := startedService()
		defer stop()
		handler := api.NewRouter(svc)

		Convey("Health reports ok once started", func() {
			rec := doJSON(handler, http.MethodGet, "/healthz", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"ok":true`)
		})

		Convey("Stats returns the operational snapshot", func() {
			rec := doJSON(handler, http.MethodGet, "/v1/stats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "engine")
		})

		Convey("The audit trail is queryable", func() {
			rec := doJSON(handler, http.MethodGet, "/v1/audit", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Prometheus metrics are exposed", func() {
			rec := doJSON(handler, http.MethodGet, "/metrics", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}
