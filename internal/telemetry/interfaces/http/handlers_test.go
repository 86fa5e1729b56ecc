package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mdapp "garden-cloud/internal/masterdata/application"
	masterdata "garden-cloud/internal/masterdata/domain"
	mdmemory "garden-cloud/internal/masterdata/infrastructure/memory"
	application "garden-cloud/internal/telemetry/application"
	telemetry "garden-cloud/internal/telemetry/domain"
	tmemory "garden-cloud/internal/telemetry/infrastructure/memory"
)

type fixture struct {
	ingest *IngestHandler
	data   *DataHandler
	export *ExportHandler
	store  *tmemory.BucketStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(testWriter{t}, "", 0)

	machines := mdmemory.NewMachineRepository()
	channels := mdmemory.NewChannelRepository()
	configs := mdmemory.NewConfigurationRepository()
	candidates := mdmemory.NewCandidateRepository()
	store := tmemory.NewBucketStore()

	ctx := context.Background()
	machine := &masterdata.Machine{ID: "m1", Serial: "S1", Name: "Greenhouse", DashboardFrequency: "1_minutes", CreatedAt: time.Now().UTC()}
	if err := machines.Create(ctx, machine); err != nil {
		t.Fatalf("create machine: %v", err)
	}
	if err := channels.Create(ctx, &masterdata.Channel{ID: "ch1", Name: "Temperature"}); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	err := configs.ReplaceForMachine(ctx, "m1", []masterdata.ChannelConfiguration{{
		ID: "cfg1", MachineID: "m1", Type: "temp", ChannelID: "ch1", Serial: "S1",
	}})
	if err != nil {
		t.Fatalf("install configuration: %v", err)
	}

	resolver, err := mdapp.NewChannelResolver(configs, channels, logger)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	tracker, err := mdapp.NewCandidateTracker(candidates, logger)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	ingestService, err := application.NewIngestService(machines, channels, resolver, tracker, store, nil, logger)
	if err != nil {
		t.Fatalf("new ingest service: %v", err)
	}
	queryService, err := application.NewQueryService(store, logger)
	if err != nil {
		t.Fatalf("new query service: %v", err)
	}

	ingestHandler, err := NewIngestHandler(ingestService)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	dataHandler, err := NewDataHandler(queryService)
	if err != nil {
		t.Fatalf("new data handler: %v", err)
	}
	exportHandler, err := NewExportHandler(queryService)
	if err != nil {
		t.Fatalf("new export handler: %v", err)
	}
	return &fixture{ingest: ingestHandler, data: dataHandler, export: exportHandler, store: store}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestIngestHandler_ExplicitPath(t *testing.T) {
	f := newFixture(t)

	body := `{"frequency":"1_minutes","value":20.5,"type":"temp","serial_machine":"S1","machineId":"m1","channelId":"ch1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	f.ingest.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var payload map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["message"] == "" || payload["id"] == "" {
		t.Fatalf("response must carry message and bucket id, got %v", payload)
	}
}

func TestIngestHandler_ExplicitPathUnknownMachine(t *testing.T) {
	f := newFixture(t)

	body := `{"frequency":"1_minutes","value":20.5,"type":"temp","serial_machine":"S1","machineId":"nope","channelId":"ch1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	f.ingest.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", resp.Code)
	}
	var payload errorBody
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload.Error == "" {
		t.Fatalf("error body missing error field: %s", resp.Body.String())
	}
}

func TestIngestHandler_SerialPath(t *testing.T) {
	f := newFixture(t)

	body := `{"date_of_capture":"2026-03-12T10:15:00Z","frequency":"5_second","value":220.0,"type":"temp","serial_machine":"S1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	f.ingest.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected one bucket, got %d", f.store.Len())
	}
}

func TestIngestHandler_SerialPathUnknownSerialStillAccepted(t *testing.T) {
	f := newFixture(t)

	body := `{"date_of_capture":"2026-03-12T10:15:00Z","frequency":"5_second","value":220.0,"type":"voltage","serial_machine":"GHOST"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	f.ingest.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	if f.store.Len() != 0 {
		t.Fatalf("unknown serial must not create buckets")
	}
}

func TestIngestHandler_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	body := `{"date_of_capture":"2026-03-12T10:15:00Z","frequency":"5_second","type":"temp","serial_machine":"S1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	f.ingest.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", resp.Code)
	}
}

func TestDataHandler_LatestRequiresSerial(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/data/latest/", nil)
	resp := httptest.NewRecorder()
	f.data.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", resp.Code)
	}
}

func TestDataHandler_LatestReturnsMapping(t *testing.T) {
	f := newFixture(t)
	seedReading(t, f.store, "m1", "ch1", "S1", "temp", time.Date(2026, time.March, 12, 10, 5, 0, 0, time.UTC), 21.0)

	req := httptest.NewRequest(http.MethodGet, "/api/data/latest/?serial=S1", nil)
	resp := httptest.NewRecorder()
	f.data.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}

	var latest map[string]map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &latest); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if latest["temp"]["v"] != 21.0 {
		t.Fatalf("latest temp=%v, want 21.0", latest["temp"]["v"])
	}
}

func TestDataHandler_QueryRequiresMachineID(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/data/query/", nil)
	resp := httptest.NewRecorder()
	f.data.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", resp.Code)
	}
}

func TestDataHandler_QueryFilters(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, time.March, 12, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedReading(t, f.store, "m1", "ch1", "S1", "temp", base.Add(time.Duration(i)*time.Minute), float64(i+1))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/data/query/?machineId=m1&channels=ch1&limit=2", nil)
	resp := httptest.NewRecorder()
	f.data.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}

	var records []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["value"] != 4.0 || records[1]["value"] != 5.0 {
		t.Fatalf("limit must keep the last readings: %v", records)
	}
}

func TestDataHandler_QueryBadLimit(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/data/query/?machineId=m1&limit=abc", nil)
	resp := httptest.NewRecorder()
	f.data.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", resp.Code)
	}
}

func TestExportHandler_CSV(t *testing.T) {
	f := newFixture(t)
	seedReading(t, f.store, "m1", "ch1", "S1", "temp", time.Date(2026, time.March, 12, 10, 5, 0, 0, time.UTC), 21.0)

	req := httptest.NewRequest(http.MethodGet, "/api/exports/readings.csv?machineId=m1", nil)
	resp := httptest.NewRecorder()
	f.export.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("content type=%q", got)
	}
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "machineId,") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
}

func TestExportHandler_UnknownFormat(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/exports/readings.tsv?machineId=m1", nil)
	resp := httptest.NewRecorder()
	f.export.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", resp.Code)
	}
}

func seedReading(t *testing.T, store *tmemory.BucketStore, machineID, channelID, serial, readingType string, ts time.Time, value float64) {
	t.Helper()
	key := telemetry.BucketKey{
		MachineID:      machineID,
		ChannelID:      channelID,
		BaseDate:       telemetry.FloorToHour(ts),
		Type:           readingType,
		FrequencyLabel: "1_minutes",
	}
	reading := telemetry.Reading{Value: value, Timestamp: telemetry.FormatInstant(ts), FrequencyLabel: "1_minutes"}
	if _, err := store.AppendReading(context.Background(), key, serial, reading); err != nil {
		t.Fatalf("seed reading: %v", err)
	}
}
