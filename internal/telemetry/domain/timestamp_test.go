package telemetry

import (
	"testing"
	"time"
)

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2026, time.March, 4, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name  string
		value any
		want  time.Time
	}{
		{
			name:  "iso string with zone",
			value: "2026-03-04T10:59:59+00:00",
			want:  time.Date(2026, time.March, 4, 10, 59, 59, 0, time.UTC),
		},
		{
			name:  "iso string with z suffix",
			value: "2026-03-04T10:59:59Z",
			want:  time.Date(2026, time.March, 4, 10, 59, 59, 0, time.UTC),
		},
		{
			name:  "iso string without zone",
			value: "2026-03-04T10:59:59",
			want:  time.Date(2026, time.March, 4, 10, 59, 59, 0, time.UTC),
		},
		{
			name:  "epoch seconds",
			value: float64(1772536799),
			want:  time.Unix(1772536799, 0).UTC(),
		},
		{
			name:  "native instant",
			value: time.Date(2026, time.March, 4, 9, 15, 0, 0, time.FixedZone("CET", 3600)),
			want:  time.Date(2026, time.March, 4, 8, 15, 0, 0, time.UTC),
		},
		{
			name:  "garbage string falls back to now",
			value: "not-a-date",
			want:  now,
		},
		{
			name:  "missing value falls back to now",
			value: nil,
			want:  now,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeTimestamp(tc.value, now)
			if !got.Equal(tc.want) {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestFloorToHour(t *testing.T) {
	ts := time.Date(2026, time.March, 4, 10, 59, 59, 123456789, time.UTC)
	want := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	if got := FloorToHour(ts); !got.Equal(want) {
		t.Fatalf("got %s want %s", got, want)
	}

	// One second over the boundary lands in the next bucket.
	next := FloorToHour(time.Date(2026, time.March, 4, 11, 0, 1, 0, time.UTC))
	if !next.Equal(want.Add(time.Hour)) {
		t.Fatalf("got %s want %s", next, want.Add(time.Hour))
	}
}

func TestFloorToHourNormalizesZone(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2026, time.March, 4, 12, 30, 0, 0, zone)
	want := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	if got := FloorToHour(ts); !got.Equal(want) {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestNewIDLooksRandom(t *testing.T) {
	a := NewID()
	b := NewID()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if len(a) != 32 {
		t.Fatalf("unexpected id length: %d", len(a))
	}
}
