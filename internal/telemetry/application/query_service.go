package application

import (
	"context"
	"errors"
	"log"
	"time"

	"garden-cloud/internal/observability/metrics"
	telemetry "garden-cloud/internal/telemetry/domain"
)

// QueryParams filters a range query. MachineID is required; everything
// else is optional.
type QueryParams struct {
	MachineID      string
	ChannelIDs     []string
	Start          *time.Time
	End            *time.Time
	FrequencyLabel string
	Limit          int
}

// ReadingRecord is one emitted reading of a range query. Type carries
// the display name of the owning channel, falling back to the bucket's
// reading type when the bucket has no channel.
type ReadingRecord struct {
	MachineID      string  `json:"machineId"`
	ChannelID      string  `json:"channelId,omitempty"`
	Type           string  `json:"type"`
	Value          float64 `json:"value"`
	Timestamp      string  `json:"timestamp"`
	FrequencyLabel string  `json:"frequency_label"`
}

// QueryService serves the two read patterns over the bucket store.
type QueryService struct {
	buckets telemetry.BucketQuery
	logger  *log.Logger
}

// NewQueryService constructs a query service.
func NewQueryService(buckets telemetry.BucketQuery, logger *log.Logger) (*QueryService, error) {
	if buckets == nil {
		return nil, errors.New("query service: nil bucket query")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QueryService{buckets: buckets, logger: logger}, nil
}

// Latest returns the most recent reading per type for a serial: the
// last appended element of the bucket with the greatest base_date.
// Serials with no buckets yield an empty map.
func (s *QueryService) Latest(ctx context.Context, serial string) (map[string]telemetry.Reading, error) {
	started := time.Now()
	if serial == "" {
		metrics.ObserveQuery("latest", "rejected", time.Since(started))
		return nil, telemetry.NewValidationError("serial", "required")
	}

	latest, err := s.buckets.LatestBySerial(ctx, serial)
	if err != nil {
		metrics.ObserveQuery("latest", "error", time.Since(started))
		return nil, &telemetry.StorageError{Op: "latest by serial", Err: err}
	}
	if latest == nil {
		latest = map[string]telemetry.Reading{}
	}
	metrics.ObserveQuery("latest", "ok", time.Since(started))
	return latest, nil
}

// Query runs a filtered, ordered, limited range query: select buckets,
// flatten their readings in append order, filter each reading against
// the time range and frequency label, then keep the chronologically
// last Limit readings.
func (s *QueryService) Query(ctx context.Context, params QueryParams) ([]ReadingRecord, error) {
	started := time.Now()
	if params.MachineID == "" {
		metrics.ObserveQuery("range", "rejected", time.Since(started))
		return nil, telemetry.NewValidationError("machineId", "required")
	}
	if params.Start != nil && params.End != nil && params.End.Before(*params.Start) {
		metrics.ObserveQuery("range", "rejected", time.Since(started))
		return nil, telemetry.NewValidationError("end", "before start")
	}

	filter := telemetry.BucketFilter{
		MachineID:      params.MachineID,
		ChannelIDs:     params.ChannelIDs,
		FrequencyLabel: params.FrequencyLabel,
		End:            params.End,
	}
	if params.Start != nil {
		floored := telemetry.FloorToHour(*params.Start)
		filter.Start = &floored
	}

	buckets, err := s.buckets.BucketsForMachine(ctx, filter)
	if err != nil {
		metrics.ObserveQuery("range", "error", time.Since(started))
		return nil, &telemetry.StorageError{Op: "buckets for machine", Err: err}
	}

	records := make([]ReadingRecord, 0)
	for _, bucket := range buckets {
		displayType := bucket.ChannelName
		if displayType == "" {
			displayType = bucket.Type
		}
		for _, reading := range bucket.Readings {
			ts, err := telemetry.ParseInstant(reading.Timestamp)
			if err != nil {
				s.logger.Printf("query: bucket %s has unparseable reading timestamp %q", bucket.ID, reading.Timestamp)
				continue
			}
			if params.Start != nil && ts.Before(*params.Start) {
				continue
			}
			if params.End != nil && ts.After(*params.End) {
				continue
			}
			if params.FrequencyLabel != "" && reading.FrequencyLabel != params.FrequencyLabel {
				continue
			}
			records = append(records, ReadingRecord{
				MachineID:      bucket.MachineID,
				ChannelID:      bucket.ChannelID,
				Type:           displayType,
				Value:          reading.Value,
				Timestamp:      reading.Timestamp,
				FrequencyLabel: reading.FrequencyLabel,
			})
		}
	}

	// Limit keeps the chronologically last readings: drop from the
	// front, never the back.
	if params.Limit > 0 && len(records) > params.Limit {
		records = records[len(records)-params.Limit:]
	}
	metrics.ObserveQuery("range", "ok", time.Since(started))
	return records, nil
}
