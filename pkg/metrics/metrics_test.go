package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test-namespace")
				So(manager.subsystem, ShouldEqual, "test-subsystem")
			})
		})

		Convey("When empty option values are supplied", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should be preserved", func() {
				So(manager.namespace, ShouldEqual, "sentinel")
				So(manager.subsystem, ShouldEqual, "engine")
			})
		})
	})
}

func TestRecordingHelpers(t *testing.T) {
	Convey("Given the package-level recording helpers", t, func() {
		Convey("Then ingestion helpers should not panic", func() {
			So(func() {
				RecordEventIngested()
				RecordEventRejected("stale")
				RecordEventDuplicate()
				RecordDisruptionDetected()
				UpdateRoutesRegistered(3)
				RecordRiskScore(72.5)
			}, ShouldNotPanic)
		})

		Convey("Then decision helpers should not panic", func() {
			So(func() {
				RecordDecision("executed")
				RecordActionBlocked("low_confidence")
				RecordSuppression()
				RecordReasoningLatency(12.5)
				RecordReasoningFallback()
				RecordDetectionLag(4.2)
				RecordActionLag(0.8)
				RecordEstimatedDaysSaved(1.5)
			}, ShouldNotPanic)
		})

		Convey("Then audit and queue helpers should not panic", func() {
			So(func() {
				RecordAuditAppendLatency(3.1)
				RecordAuditAppendError()
				UpdateQueueSize(100)
				UpdateQueueCapacity(10_000)
				UpdateQueueUtilization(0.01)
				RecordQueueDropped()
				UpdateSessionsActive(2)
				UpdateContextStoreSize(40)
			}, ShouldNotPanic)
		})

		Convey("Then HTTP and system helpers should not panic", func() {
			So(func() {
				RecordHTTPRequest("/v1/events", "POST", "202")
				RecordHTTPRequestDuration("/v1/events", "POST", "202", 1.2)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("Then the registry should be exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
