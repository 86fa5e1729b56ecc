package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	telemetry "garden-cloud/internal/telemetry/domain"
)

// BucketStore is an in-memory bucket store implementing both the write
// and the read side. The store mutex stands in for the per-key
// atomicity the Postgres upsert provides.
type BucketStore struct {
	mu      sync.Mutex
	buckets map[telemetry.BucketKey]*telemetry.Bucket
	names   map[string]string
	order   int
	now     func() time.Time
}

// NewBucketStore constructs an empty store.
func NewBucketStore() *BucketStore {
	return &BucketStore{
		buckets: make(map[telemetry.BucketKey]*telemetry.Bucket),
		names:   make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetChannelName registers a channel display name for query joins.
func (s *BucketStore) SetChannelName(channelID, name string) {
	s.mu.Lock()
	s.names[channelID] = name
	s.mu.Unlock()
}

// AppendReading creates the bucket for the key on first write and
// appends on every later one.
func (s *BucketStore) AppendReading(ctx context.Context, key telemetry.BucketKey, serialMachine string, reading telemetry.Reading) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[key]
	if bucket == nil {
		s.order++
		bucket = &telemetry.Bucket{
			ID:             telemetry.NewID(),
			MachineID:      key.MachineID,
			ChannelID:      key.ChannelID,
			SerialMachine:  serialMachine,
			BaseDate:       key.BaseDate,
			Type:           key.Type,
			FrequencyLabel: key.FrequencyLabel,
			// Creation order is encoded in the timestamp so query
			// ordering matches the Postgres implementation.
			CreatedAt: s.now().Add(time.Duration(s.order) * time.Nanosecond),
		}
		s.buckets[key] = bucket
	}
	bucket.Readings = append(bucket.Readings, reading)
	bucket.Count++
	return bucket.ID, nil
}

// LatestBySerial returns the last appended reading of the newest bucket
// per type.
func (s *BucketStore) LatestBySerial(ctx context.Context, serial string) (map[string]telemetry.Reading, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	newest := make(map[string]*telemetry.Bucket)
	for _, bucket := range s.buckets {
		if bucket.SerialMachine != serial || bucket.Count == 0 {
			continue
		}
		current := newest[bucket.Type]
		if current == nil || bucket.BaseDate.After(current.BaseDate) ||
			(bucket.BaseDate.Equal(current.BaseDate) && bucket.CreatedAt.After(current.CreatedAt)) {
			newest[bucket.Type] = bucket
		}
	}

	latest := make(map[string]telemetry.Reading, len(newest))
	for readingType, bucket := range newest {
		latest[readingType] = bucket.Readings[len(bucket.Readings)-1]
	}
	return latest, nil
}

// BucketsForMachine filters and orders buckets like the Postgres query.
func (s *BucketStore) BucketsForMachine(ctx context.Context, filter telemetry.BucketFilter) ([]telemetry.QueriedBucket, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []telemetry.QueriedBucket
	for _, bucket := range s.buckets {
		if bucket.MachineID != filter.MachineID {
			continue
		}
		if len(filter.ChannelIDs) > 0 && !contains(filter.ChannelIDs, bucket.ChannelID) {
			continue
		}
		if filter.FrequencyLabel != "" && bucket.FrequencyLabel != filter.FrequencyLabel {
			continue
		}
		if filter.Start != nil && bucket.BaseDate.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && bucket.BaseDate.After(*filter.End) {
			continue
		}
		clone := *bucket
		clone.Readings = append([]telemetry.Reading(nil), bucket.Readings...)
		result = append(result, telemetry.QueriedBucket{Bucket: clone, ChannelName: s.names[bucket.ChannelID]})
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].BaseDate.Equal(result[j].BaseDate) {
			return result[i].BaseDate.Before(result[j].BaseDate)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Bucket returns the stored bucket for a key (assertion convenience).
func (s *BucketStore) Bucket(key telemetry.BucketKey) *telemetry.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.buckets[key]
	if bucket == nil {
		return nil
	}
	clone := *bucket
	clone.Readings = append([]telemetry.Reading(nil), bucket.Readings...)
	return &clone
}

// Len returns the number of buckets in the store.
func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
