package application

import (
	"context"
	"errors"
	"log"
	"time"

	"garden-cloud/internal/eventing"
	mdapp "garden-cloud/internal/masterdata/application"
	masterdata "garden-cloud/internal/masterdata/domain"
	"garden-cloud/internal/observability/metrics"
	"garden-cloud/internal/telemetry/application/events"
	telemetry "garden-cloud/internal/telemetry/domain"
)

// RawEntry is one ingest entry as delivered by either transport, before
// validation. Timestamp carries whatever the payload had: ISO-8601
// string, numeric epoch seconds or a native instant.
type RawEntry struct {
	DataID         string
	Timestamp      any
	FrequencyLabel string
	Value          *float64
	Type           string
	SerialMachine  string
	MachineID      string
	ChannelID      string
}

// Entry outcomes. Candidate means the serial was unknown and the entry
// was routed to the candidate tracker instead of the bucket store.
const (
	OutcomeStored    = "stored"
	OutcomeCandidate = "candidate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// EntryResult reports how one batch entry was handled. Entries are
// processed independently; a failed entry never aborts the batch.
type EntryResult struct {
	Index    int
	Outcome  string
	BucketID string
	Err      error
}

// IngestService validates raw entries and fans them out to the channel
// resolver, the candidate tracker and the bucket store.
type IngestService struct {
	machines   masterdata.MachineRepository
	channels   masterdata.ChannelRepository
	resolver   *mdapp.ChannelResolver
	candidates *mdapp.CandidateTracker
	buckets    telemetry.BucketRepository
	bus        *eventing.Bus
	logger     *log.Logger
	now        func() time.Time
}

// NewIngestService constructs an ingest service.
func NewIngestService(
	machines masterdata.MachineRepository,
	channels masterdata.ChannelRepository,
	resolver *mdapp.ChannelResolver,
	candidates *mdapp.CandidateTracker,
	buckets telemetry.BucketRepository,
	bus *eventing.Bus,
	logger *log.Logger,
) (*IngestService, error) {
	if machines == nil {
		return nil, errors.New("ingest service: nil machine repository")
	}
	if channels == nil {
		return nil, errors.New("ingest service: nil channel repository")
	}
	if resolver == nil {
		return nil, errors.New("ingest service: nil channel resolver")
	}
	if candidates == nil {
		return nil, errors.New("ingest service: nil candidate tracker")
	}
	if buckets == nil {
		return nil, errors.New("ingest service: nil bucket repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestService{
		machines:   machines,
		channels:   channels,
		resolver:   resolver,
		candidates: candidates,
		buckets:    buckets,
		bus:        bus,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the service clock (tests).
func (s *IngestService) WithClock(now func() time.Time) *IngestService {
	if now != nil {
		s.now = now
	}
	return s
}

// IngestExplicit handles the explicit-reference path: the entry names a
// machine and a channel by id, and both must exist. Returns the id of
// the bucket the reading landed in.
func (s *IngestService) IngestExplicit(ctx context.Context, entry RawEntry) (string, error) {
	started := s.now()
	if err := validateEntry(entry, false); err != nil {
		metrics.ObserveEntry(OutcomeRejected, s.now().Sub(started))
		return "", err
	}
	if entry.MachineID == "" {
		metrics.ObserveEntry(OutcomeRejected, s.now().Sub(started))
		return "", telemetry.NewValidationError("machineId", "required")
	}
	if entry.ChannelID == "" {
		metrics.ObserveEntry(OutcomeRejected, s.now().Sub(started))
		return "", telemetry.NewValidationError("channelId", "required")
	}

	machine, err := s.machines.FindByID(ctx, entry.MachineID)
	if err != nil {
		return "", &telemetry.StorageError{Op: "machine lookup", Err: err}
	}
	if machine == nil {
		metrics.ObserveEntry(OutcomeRejected, s.now().Sub(started))
		return "", &telemetry.NotFoundError{Entity: "machine", ID: entry.MachineID}
	}
	channel, err := s.channels.FindByID(ctx, entry.ChannelID)
	if err != nil {
		return "", &telemetry.StorageError{Op: "channel lookup", Err: err}
	}
	if channel == nil {
		metrics.ObserveEntry(OutcomeRejected, s.now().Sub(started))
		return "", &telemetry.NotFoundError{Entity: "channel", ID: entry.ChannelID}
	}

	bucketID, err := s.store(ctx, machine, channel, entry)
	if err != nil {
		metrics.ObserveEntry(OutcomeFailed, s.now().Sub(started))
		return "", err
	}
	metrics.ObserveEntry(OutcomeStored, s.now().Sub(started))
	return bucketID, nil
}

// IngestBatch handles the serial-resolution path for one or more
// entries. Entries are processed in order and independently: a
// malformed entry or a storage failure is recorded in its result and
// the batch continues.
func (s *IngestService) IngestBatch(ctx context.Context, entries []RawEntry) []EntryResult {
	results := make([]EntryResult, 0, len(entries))
	for i, entry := range entries {
		result := s.ingestBySerial(ctx, entry)
		result.Index = i
		if result.Err != nil {
			s.logger.Printf("ingest: entry %d (serial %q): %v", i, entry.SerialMachine, result.Err)
		}
		results = append(results, result)
	}
	return results
}

func (s *IngestService) ingestBySerial(ctx context.Context, entry RawEntry) EntryResult {
	started := s.now()
	if err := validateEntry(entry, true); err != nil {
		metrics.ObserveEntry(OutcomeRejected, s.now().Sub(started))
		return EntryResult{Outcome: OutcomeRejected, Err: err}
	}

	machine, err := s.machines.FindBySerial(ctx, entry.SerialMachine)
	if err != nil {
		metrics.ObserveEntry(OutcomeFailed, s.now().Sub(started))
		return EntryResult{Outcome: OutcomeFailed, Err: &telemetry.StorageError{Op: "machine lookup", Err: err}}
	}

	if machine == nil {
		// Unknown serial is not an error: route to the candidate
		// tracker and drop the entry from the bucket store's
		// perspective.
		if err := s.candidates.Observe(ctx, entry.SerialMachine, entry.Type); err != nil {
			metrics.ObserveEntry(OutcomeFailed, s.now().Sub(started))
			return EntryResult{Outcome: OutcomeFailed, Err: &telemetry.StorageError{Op: "candidate observe", Err: err}}
		}
		metrics.ObserveCandidate()
		metrics.ObserveEntry(OutcomeCandidate, s.now().Sub(started))
		return EntryResult{Outcome: OutcomeCandidate}
	}

	channel := s.resolver.Resolve(ctx, machine, entry.Type, nil)
	bucketID, err := s.store(ctx, machine, channel, entry)
	if err != nil {
		metrics.ObserveEntry(OutcomeFailed, s.now().Sub(started))
		return EntryResult{Outcome: OutcomeFailed, Err: err}
	}
	metrics.ObserveEntry(OutcomeStored, s.now().Sub(started))
	return EntryResult{Outcome: OutcomeStored, BucketID: bucketID}
}

func (s *IngestService) store(ctx context.Context, machine *masterdata.Machine, channel *masterdata.Channel, entry RawEntry) (string, error) {
	ts := telemetry.NormalizeTimestamp(entry.Timestamp, s.now())
	key := telemetry.BucketKey{
		BaseDate:       telemetry.FloorToHour(ts),
		Type:           entry.Type,
		FrequencyLabel: entry.FrequencyLabel,
	}
	if machine != nil {
		key.MachineID = machine.ID
	}
	if channel != nil {
		key.ChannelID = channel.ID
	}
	reading := telemetry.Reading{
		Value:          *entry.Value,
		Timestamp:      telemetry.FormatInstant(ts),
		FrequencyLabel: entry.FrequencyLabel,
	}

	bucketID, err := s.buckets.AppendReading(ctx, key, entry.SerialMachine, reading)
	if err != nil {
		if telemetry.IsStorage(err) {
			return "", err
		}
		return "", &telemetry.StorageError{Op: "append reading", Err: err}
	}

	if s.bus != nil {
		event := events.ReadingStored{
			EventID:       telemetry.NewID(),
			BucketID:      bucketID,
			SerialMachine: entry.SerialMachine,
			MachineID:     key.MachineID,
			ChannelID:     key.ChannelID,
			Type:          entry.Type,
			BaseDate:      key.BaseDate,
			Reading:       reading,
			OccurredAt:    s.now(),
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			// Subscribers are advisory; the reading is already stored.
			s.logger.Printf("ingest: reading stored event: %v", err)
		}
	}
	return bucketID, nil
}

// validateEntry applies the per-entry validation that runs before any
// side effect. The serial-resolution path requires an explicit capture
// timestamp; the explicit-reference path defaults it to now.
func validateEntry(entry RawEntry, requireTimestamp bool) error {
	if entry.Type == "" {
		return telemetry.NewValidationError("type", "required")
	}
	if entry.SerialMachine == "" {
		return telemetry.NewValidationError("serial_machine", "required")
	}
	if entry.FrequencyLabel == "" {
		return telemetry.NewValidationError("frequency", "required")
	}
	if entry.Value == nil {
		return telemetry.NewValidationError("value", "numeric value required")
	}
	if requireTimestamp && entry.Timestamp == nil {
		return telemetry.NewValidationError("date_of_capture", "required")
	}
	return nil
}
