package normalize_test

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

func validRecord(ts time.Time) model.RawRecord {
	return model.RawRecord{
		SourceID:   "gdelt-123",
		SourceKind: model.SourceNews,
		Timestamp:  ts,
		Location:   &model.Point{Lat: 30.5, Lng: 32.3},
		Text:       "Reports of canal blockage affecting operations in Suez",
		Category:   "Canal Blockage",
		Severity:   8,
	}
}

func TestNormalizeAccepts(t *testing.T) {
	Convey("Given a normalizer with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		n := normalize.New(normalize.WithClock(func() time.Time { return now }))
		ctx := context.Background()

		Convey("A valid record becomes a canonical event", func() {
			event, err := n.Normalize(ctx, validRecord(now.Add(-time.Minute)))
			So(err, ShouldBeNil)
			So(event.ID, ShouldNotBeEmpty)
			So(event.Category, ShouldEqual, model.CategoryBlockage)
			So(event.Severity, ShouldEqual, 8)
			So(event.HasLocation(), ShouldBeTrue)
			So(n.Stats().Accepted, ShouldEqual, 1)
		})

		Convey("Severity is clamped onto the 1-10 scale", func() {
			raw := validRecord(now.Add(-time.Minute))
			raw.Severity = 99
			event, err := n.Normalize(ctx, raw)
			So(err, ShouldBeNil)
			So(event.Severity, ShouldEqual, 10)
		})

		Convey("The watermark advances with accepted event times", func() {
			_, err := n.Normalize(ctx, validRecord(now.Add(-time.Minute)))
			So(err, ShouldBeNil)
			So(n.Watermark(), ShouldEqual, now.Add(-time.Minute))
		})
	})
}

func TestNormalizeRejects(t *testing.T) {
	Convey("Given a normalizer with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		n := normalize.New(
			normalize.WithClock(func() time.Time { return now }),
			normalize.WithWatermarkGrace(10*time.Minute),
		)
		ctx := context.Background()

		Convey("A record without a source id is malformed", func() {
			raw := validRecord(now)
			raw.SourceID = "  "
			_, err := n.Normalize(ctx, raw)
			So(err, ShouldWrap, normalize.ErrMalformedInput)
			So(n.Stats().Malformed, ShouldEqual, 1)
		})

		Convey("A record with neither text nor category is malformed", func() {
			raw := validRecord(now)
			raw.Text = ""
			raw.Category = ""
			_, err := n.Normalize(ctx, raw)
			So(err, ShouldWrap, normalize.ErrMalformedInput)
		})

		Convey("A zero timestamp is malformed", func() {
			raw := validRecord(time.Time{})
			_, err := n.Normalize(ctx, raw)
			So(err, ShouldWrap, normalize.ErrMalformedInput)
		})

		Convey("A far-future timestamp is malformed", func() {
			raw := validRecord(now.Add(time.Hour))
			_, err := n.Normalize(ctx, raw)
			So(err, ShouldWrap, normalize.ErrMalformedInput)
		})

		Convey("An event older than the watermark grace is stale", func() {
			raw := validRecord(now.Add(-30 * time.Minute))
			_, err := n.Normalize(ctx, raw)
			So(err, ShouldWrap, normalize.ErrStaleBeyondWatermark)
			So(n.Stats().Stale, ShouldEqual, 1)
		})

		Convey("Lagging events inside the grace window still pass", func() {
			raw := validRecord(now.Add(-9 * time.Minute))
			_, err := n.Normalize(ctx, raw)
			So(err, ShouldBeNil)
		})

		Convey("Rejections never disturb the accepted counter", func() {
			_, _ = n.Normalize(ctx, model.RawRecord{})
			So(n.Stats().Accepted, ShouldEqual, 0)
		})
	})
}

func TestNormalizeDeduplication(t *testing.T) {
	Convey("Given a normalizer with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		n := normalize.New(normalize.WithClock(func() time.Time { return now }))
		ctx := context.Background()

		Convey("The same content twice inside the window is a duplicate", func() {
			ts := now.Add(-time.Minute)
			_, err := n.Normalize(ctx, validRecord(ts))
			So(err, ShouldBeNil)

			_, err = n.Normalize(ctx, validRecord(ts))
			So(err, ShouldWrap, normalize.ErrDuplicateID)
			So(n.Stats().Duplicates, ShouldEqual, 1)
		})

		Convey("The same content in the same hash bucket shares an id", func() {
			a, err := n.Normalize(ctx, validRecord(now.Add(-4*time.Minute)))
			So(err, ShouldBeNil)

			// same 5m bucket, 30s apart -> duplicate
			_, err = n.Normalize(ctx, validRecord(now.Add(-4*time.Minute).Add(30*time.Second)))
			if err == nil {
				// different bucket boundary fell between the two stamps;
				// the ids must then differ
				b, err2 := n.Normalize(ctx, validRecord(now.Add(-time.Minute)))
				So(err2, ShouldBeNil)
				So(b.ID, ShouldNotEqual, a.ID)
			} else {
				So(err, ShouldWrap, normalize.ErrDuplicateID)
			}
		})

		Convey("Different content is never deduplicated", func() {
			_, err := n.Normalize(ctx, validRecord(now.Add(-time.Minute)))
			So(err, ShouldBeNil)

			other := validRecord(now.Add(-time.Minute))
			other.Text = "Port strike announced in Rotterdam"
			_, err = n.Normalize(ctx, other)
			So(err, ShouldBeNil)
		})
	})
}

func TestCanonicalCategory(t *testing.T) {
	Convey("Category mapping prefers the category field over text", t, func() {
		So(normalize.CanonicalCategory("Port Strike", ""), ShouldEqual, model.CategoryStrike)
		So(normalize.CanonicalCategory("Trade Tariff", ""), ShouldEqual, model.CategoryTariff)
		So(normalize.CanonicalCategory("", "heavy fog closes the strait"), ShouldEqual, model.CategoryWeather)
		So(normalize.CanonicalCategory("something else", "no signal here"), ShouldEqual, model.CategoryOther)
	})
}
