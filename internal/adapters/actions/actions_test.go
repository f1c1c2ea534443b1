package actions_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kestrelworks/sentinel/internal/adapters/actions"
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

func sampleAction() model.Action {
	return model.Action{
		Kind:       model.ActionReroute,
		ShipmentID: "ship-1",
		RouteID:    "route-1",
		Detail:     "reroute around port strike",
	}
}

func TestLogOnly(t *testing.T) {
	Convey("Given the logging-only executor", t, func() {
		exec := actions.NewLogOnly()

		Convey("It names itself and always succeeds", func() {
			So(exec.Name(), ShouldEqual, "log-only")
			So(exec.Execute(context.Background(), sampleAction()), ShouldBeNil)
		})
	})
}

func TestDispatcher(t *testing.T) {
	Convey("Given a webhook dispatcher", t, func() {
		ctx := context.Background()

		Convey("A 2xx response is a successful delivery", func() {
			var got model.Action
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// Convey assertions cannot run on the server goroutine;
				// report through t instead.
				if r.Method != http.MethodPost {
					t.Errorf("method = %q, want %q", r.Method, http.MethodPost)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want %q", ct, "application/json")
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode body: %v", err)
				}
				w.WriteHeader(http.StatusAccepted)
			}))
			defer srv.Close()

			exec := actions.NewDispatcher(srv.URL, actions.WithHTTPClient(srv.Client()))
			So(exec.Name(), ShouldEqual, "webhook")
			So(exec.Execute(ctx, sampleAction()), ShouldBeNil)
			So(got.Kind, ShouldEqual, model.ActionReroute)
			So(got.ShipmentID, ShouldEqual, "ship-1")
		})

		Convey("A non-2xx response is an execution failure", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer srv.Close()

			exec := actions.NewDispatcher(srv.URL, actions.WithHTTPClient(srv.Client()))
			err := exec.Execute(ctx, sampleAction())
			So(err, ShouldNotBeNil)
			So(errors.Is(err, actions.ErrActionFailed), ShouldBeTrue)
		})

		Convey("An unreachable endpoint is an execution failure", func() {
			exec := actions.NewDispatcher("http://127.0.0.1:1/hooks")
			err := exec.Execute(ctx, sampleAction())
			So(err, ShouldNotBeNil)
			So(errors.Is(err, actions.ErrActionFailed), ShouldBeTrue)
		})

		Convey("A cancelled context aborts delivery", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			exec := actions.NewDispatcher(srv.URL, actions.WithHTTPClient(srv.Client()))
			So(exec.Execute(cancelled, sampleAction()), ShouldNotBeNil)
		})
	})
}
