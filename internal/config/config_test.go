package config_test

import (
	"testing"
	"time"

	"github.com/kestrelworks/sentinel/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.Cooldown, convey.ShouldEqual, 15*time.Minute)
			convey.So(cfg.MinConfidence, convey.ShouldEqual, 0.70)
			convey.So(cfg.MaxActionsPerWindow, convey.ShouldEqual, 2)
			convey.So(cfg.RateWindow, convey.ShouldEqual, time.Hour)
			convey.So(cfg.AuditBackend, convey.ShouldEqual, "file")
			convey.So(cfg.SimulatedFeeds, convey.ShouldBeTrue)
		})
	})
}
