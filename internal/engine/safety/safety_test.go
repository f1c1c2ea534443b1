package safety_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kestrelworks/sentinel/internal/engine/safety"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAuthorize(t *testing.T) {
	Convey("Given a gate with default thresholds", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		gate := safety.New(safety.WithClock(func() time.Time { return now }))

		Convey("A confident action on a fresh scope is permitted", func() {
			So(gate.Authorize("route-1", 0.85), ShouldEqual, safety.Permitted)
		})

		Convey("Confidence below the floor is blocked", func() {
			So(gate.Authorize("route-1", 0.55), ShouldEqual, safety.BlockedLowConfidence)
		})

		Convey("Confidence exactly at the floor passes", func() {
			So(gate.Authorize("route-1", 0.70), ShouldEqual, safety.Permitted)
		})

		Convey("The third action within the hour is rate limited", func() {
			So(gate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			So(gate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			So(gate.Authorize("route-1", 0.9), ShouldEqual, safety.BlockedRateLimited)
		})

		Convey("Scopes are limited independently", func() {
			So(gate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			So(gate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			So(gate.Authorize("route-1", 0.9), ShouldEqual, safety.BlockedRateLimited)
			So(gate.Authorize("route-2", 0.9), ShouldEqual, safety.Permitted)
		})

		Convey("The confidence check runs before the rate check", func() {
			So(gate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			So(gate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			// exhausted scope, but the low confidence reason wins
			So(gate.Authorize("route-1", 0.4), ShouldEqual, safety.BlockedLowConfidence)
		})

		Convey("A low confidence block does not consume rate budget", func() {
			So(gate.Authorize("route-1", 0.3), ShouldEqual, safety.BlockedLowConfidence)
			So(gate.Remaining("route-1"), ShouldEqual, 2)
		})

		Convey("The window slides rather than resets", func() {
			clock := now
			slidingGate := safety.New(safety.WithClock(func() time.Time { return clock }))

			So(slidingGate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			clock = clock.Add(30 * time.Minute)
			So(slidingGate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			So(slidingGate.Authorize("route-1", 0.9), ShouldEqual, safety.BlockedRateLimited)

			// 31 minutes later the first grant has aged out, the second has not
			clock = clock.Add(31 * time.Minute)
			So(slidingGate.Authorize("route-1", 0.9), ShouldEqual, safety.Permitted)
			So(slidingGate.Authorize("route-1", 0.9), ShouldEqual, safety.BlockedRateLimited)
		})

		Convey("Five rapid actions leave exactly two permitted", func() {
			permitted, limited := 0, 0
			for i := 0; i < 5; i++ {
				switch gate.Authorize("route-1", 0.9) {
				case safety.Permitted:
					permitted++
				case safety.BlockedRateLimited:
					limited++
				}
			}
			So(permitted, ShouldEqual, 2)
			So(limited, ShouldEqual, 3)
		})
	})
}

func TestCustomThresholds(t *testing.T) {
	Convey("Given a gate with custom thresholds", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		gate := safety.New(
			safety.WithClock(func() time.Time { return now }),
			safety.WithMinConfidence(0.9),
			safety.WithRateLimit(1, 10*time.Minute),
		)

		Convey("The custom confidence floor applies", func() {
			So(gate.Authorize("route-1", 0.85), ShouldEqual, safety.BlockedLowConfidence)
			So(gate.Authorize("route-1", 0.95), ShouldEqual, safety.Permitted)
		})

		Convey("The custom rate limit applies", func() {
			So(gate.Authorize("route-2", 0.95), ShouldEqual, safety.Permitted)
			So(gate.Authorize("route-2", 0.95), ShouldEqual, safety.BlockedRateLimited)
		})
	})
}

func TestConcurrentAuthorize(t *testing.T) {
	Convey("Given many goroutines contending for one scope", t, func() {
		gate := safety.New(safety.WithRateLimit(2, time.Hour))

		var mu sync.Mutex
		permitted := 0
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if gate.Authorize(fmt.Sprintf("scope-%d", n%2), 0.9) == safety.Permitted {
						mu.Lock()
						permitted++
						mu.Unlock()
					}
				}
			}(i)
		}
		wg.Wait()

		Convey("At most the limit is granted per scope", func() {
			So(permitted, ShouldEqual, 4)
		})
	})
}
