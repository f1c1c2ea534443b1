package telemetry_test

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/kestrelworks/sentinel/internal/adapters/telemetry"
	"github.com/kestrelworks/sentinel/internal/engine"
	"github.com/kestrelworks/sentinel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func sampleTransition(eventID string) engine.Transition {
	return engine.Transition{
		SessionID:  "sess-1",
		RouteID:    "route-1",
		EventID:    eventID,
		From:       engine.StateObserve,
		To:         engine.StateRetrieve,
		Confidence: 0.9,
		At:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBroadcaster(t *testing.T) {
	Convey("Given a broadcaster on an ephemeral port", t, func() {
		b, err := telemetry.Listen("127.0.0.1:0")
		So(err, ShouldBeNil)
		defer b.Close()

		Convey("A subscriber receives emitted transitions as NDJSON", func() {
			conn, err := net.Dial("tcp", b.Addr().String())
			So(err, ShouldBeNil)
			defer conn.Close()

			// emit until the frame lands; the subscriber registers
			// asynchronously after Accept
			So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
			reader := bufio.NewReader(conn)
			lineCh := make(chan string, 1)
			go func() {
				line, err := reader.ReadString('\n')
				if err == nil {
					lineCh <- line
				}
			}()

			var line string
			deadline := time.Now().Add(2 * time.Second)
			for line == "" && time.Now().Before(deadline) {
				b.Emit(sampleTransition("evt-1"))
				select {
				case line = <-lineCh:
				case <-time.After(20 * time.Millisecond):
				}
			}
			So(line, ShouldNotBeEmpty)

			var tr engine.Transition
			So(json.Unmarshal([]byte(line), &tr), ShouldBeNil)
			So(tr.EventID, ShouldEqual, "evt-1")
			So(tr.To, ShouldEqual, engine.StateRetrieve)
		})

		Convey("Emitting with no subscribers does not block", func() {
			done := make(chan struct{})
			go func() {
				for i := 0; i < 1000; i++ {
					b.Emit(sampleTransition("evt-n"))
				}
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				So("emit blocked", ShouldBeEmpty)
			}
		})

		Convey("A slow subscriber loses frames but the emitter never stalls", func() {
			conn, err := net.Dial("tcp", b.Addr().String())
			So(err, ShouldBeNil)
			defer conn.Close()
			// never read from conn

			done := make(chan struct{})
			go func() {
				for i := 0; i < 100000; i++ {
					b.Emit(sampleTransition("evt-flood"))
				}
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				So("emit stalled on slow subscriber", ShouldBeEmpty)
			}
		})

		Convey("Close disconnects subscribers", func() {
			conn, err := net.Dial("tcp", b.Addr().String())
			So(err, ShouldBeNil)
			defer conn.Close()

			So(b.Close(), ShouldBeNil)
			So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
			buf := make([]byte, 64)
			_, err = conn.Read(buf)
			So(err, ShouldNotBeNil)
		})
	})
}
