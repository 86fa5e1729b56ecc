package application

import (
	"context"
	"log"
	"testing"
	"time"

	telemetry "garden-cloud/internal/telemetry/domain"
	tmemory "garden-cloud/internal/telemetry/infrastructure/memory"
)

func newQueryFixture(t *testing.T) (*QueryService, *tmemory.BucketStore) {
	t.Helper()
	store := tmemory.NewBucketStore()
	service, err := NewQueryService(store, log.New(testWriter{t}, "", 0))
	if err != nil {
		t.Fatalf("new query service: %v", err)
	}
	return service, store
}

func appendReading(t *testing.T, store *tmemory.BucketStore, machineID, channelID, serial, readingType string, ts time.Time, value float64) {
	t.Helper()
	key := telemetry.BucketKey{
		MachineID:      machineID,
		ChannelID:      channelID,
		BaseDate:       telemetry.FloorToHour(ts),
		Type:           readingType,
		FrequencyLabel: "1_minutes",
	}
	reading := telemetry.Reading{
		Value:          value,
		Timestamp:      telemetry.FormatInstant(ts),
		FrequencyLabel: "1_minutes",
	}
	if _, err := store.AppendReading(context.Background(), key, serial, reading); err != nil {
		t.Fatalf("append reading: %v", err)
	}
}

func TestLatest_EmptyThenOverride(t *testing.T) {
	service, store := newQueryFixture(t)
	ctx := context.Background()

	latest, err := service.Latest(ctx, "S1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) != 0 {
		t.Fatalf("expected empty mapping before ingestion, got %v", latest)
	}

	base := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)
	appendReading(t, store, "m1", "ch1", "S1", "temp", base.Add(5*time.Minute), 20.0)
	appendReading(t, store, "m1", "ch1", "S1", "temp", base.Add(10*time.Minute), 21.0)

	latest, err = service.Latest(ctx, "S1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest["temp"].Value != 21.0 {
		t.Fatalf("latest temp=%v, want 21.0", latest["temp"].Value)
	}
}

func TestLatest_NewestBucketWins(t *testing.T) {
	service, store := newQueryFixture(t)

	early := time.Date(2026, time.March, 12, 9, 50, 0, 0, time.UTC)
	late := time.Date(2026, time.March, 12, 10, 5, 0, 0, time.UTC)
	appendReading(t, store, "m1", "ch1", "S1", "temp", early, 19.0)
	appendReading(t, store, "m1", "ch1", "S1", "temp", late, 22.0)
	appendReading(t, store, "m1", "ch2", "S1", "humidity", early, 40.0)

	latest, err := service.Latest(context.Background(), "S1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected two types, got %v", latest)
	}
	if latest["temp"].Value != 22.0 {
		t.Fatalf("temp must come from the newest bucket, got %v", latest["temp"].Value)
	}
	if latest["humidity"].Value != 40.0 {
		t.Fatalf("humidity=%v, want 40.0", latest["humidity"].Value)
	}
}

func TestLatest_MissingSerialRejected(t *testing.T) {
	service, _ := newQueryFixture(t)
	if _, err := service.Latest(context.Background(), ""); !telemetry.IsValidation(err) {
		t.Fatalf("err=%v, want validation error", err)
	}
}

func TestQuery_UnfilteredReturnsEverything(t *testing.T) {
	service, store := newQueryFixture(t)

	base := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)
	appendReading(t, store, "m1", "ch1", "S1", "temp", base.Add(1*time.Minute), 20.0)
	appendReading(t, store, "m1", "ch2", "S1", "humidity", base.Add(2*time.Minute), 40.0)
	appendReading(t, store, "m1", "ch1", "S1", "temp", base.Add(70*time.Minute), 21.0)
	appendReading(t, store, "m2", "ch1", "S2", "temp", base.Add(3*time.Minute), 99.0)

	records, err := service.Query(context.Background(), QueryParams{MachineID: "m1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records for m1, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		prev, _ := telemetry.ParseInstant(records[i-1].Timestamp)
		curr, _ := telemetry.ParseInstant(records[i].Timestamp)
		if curr.Before(prev) {
			t.Fatalf("records out of chronological order at %d: %v", i, records)
		}
	}
}

func TestQuery_RangeIsInclusive(t *testing.T) {
	service, store := newQueryFixture(t)

	base := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(1 * time.Minute),
		base.Add(2 * time.Minute),
		base.Add(3 * time.Minute),
		base.Add(4 * time.Minute),
	}
	for i, ts := range times {
		appendReading(t, store, "m1", "ch1", "S1", "temp", ts, float64(i))
	}

	records, err := service.Query(context.Background(), QueryParams{
		MachineID: "m1",
		Start:     &times[1],
		End:       &times[2],
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected the two boundary readings, got %d: %v", len(records), records)
	}
	if records[0].Value != 1 || records[1].Value != 2 {
		t.Fatalf("wrong readings selected: %v", records)
	}
}

func TestQuery_LimitKeepsLastN(t *testing.T) {
	service, store := newQueryFixture(t)

	base := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		appendReading(t, store, "m1", "ch1", "S1", "temp", base.Add(time.Duration(i)*time.Minute), float64(i+1))
	}

	records, err := service.Query(context.Background(), QueryParams{MachineID: "m1", Limit: 3})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []float64{3, 4, 5} {
		if records[i].Value != want {
			t.Fatalf("record %d value=%v, want %v", i, records[i].Value, want)
		}
	}
}

func TestQuery_ChannelNameBecomesType(t *testing.T) {
	service, store := newQueryFixture(t)
	store.SetChannelName("ch1", "Outdoor Temperature")

	base := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)
	appendReading(t, store, "m1", "ch1", "S1", "temp", base.Add(time.Minute), 20.0)
	appendReading(t, store, "m1", "", "S1", "humidity", base.Add(2*time.Minute), 40.0)

	records, err := service.Query(context.Background(), QueryParams{MachineID: "m1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	byValue := map[float64]string{}
	for _, record := range records {
		byValue[record.Value] = record.Type
	}
	if byValue[20.0] != "Outdoor Temperature" {
		t.Fatalf("configured channel should surface its display name, got %q", byValue[20.0])
	}
	if byValue[40.0] != "humidity" {
		t.Fatalf("channel-less bucket should fall back to the reading type, got %q", byValue[40.0])
	}
}

func TestQuery_MissingMachineIDRejected(t *testing.T) {
	service, _ := newQueryFixture(t)
	if _, err := service.Query(context.Background(), QueryParams{}); !telemetry.IsValidation(err) {
		t.Fatalf("err=%v, want validation error", err)
	}
}

func TestQuery_EndBeforeStartRejected(t *testing.T) {
	service, _ := newQueryFixture(t)
	start := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := service.Query(context.Background(), QueryParams{MachineID: "m1", Start: &start, End: &end})
	if !telemetry.IsValidation(err) {
		t.Fatalf("err=%v, want validation error", err)
	}
}
