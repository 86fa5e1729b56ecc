package telemetry

import (
	"context"
	"time"
)

// Reading is a single sensor observation stored inside a bucket.
// Field names follow the wire format used by the dashboards.
type Reading struct {
	Value          float64 `json:"v"`
	Timestamp      string  `json:"t"`
	FrequencyLabel string  `json:"f"`
}

// BucketKey identifies the hourly accumulation document a reading
// belongs to. MachineID and ChannelID may be empty ("no machine" /
// "no channel" are valid resolved states).
type BucketKey struct {
	MachineID      string
	ChannelID      string
	BaseDate       time.Time
	Type           string
	FrequencyLabel string
}

// Bucket is one hourly accumulation document. Readings is append-only
// and Count always equals len(Readings).
type Bucket struct {
	ID             string
	MachineID      string
	ChannelID      string
	SerialMachine  string
	BaseDate       time.Time
	Type           string
	FrequencyLabel string
	Readings       []Reading
	Count          int
	CreatedAt      time.Time
}

// Key returns the identity key of the bucket.
func (b Bucket) Key() BucketKey {
	return BucketKey{
		MachineID:      b.MachineID,
		ChannelID:      b.ChannelID,
		BaseDate:       b.BaseDate,
		Type:           b.Type,
		FrequencyLabel: b.FrequencyLabel,
	}
}

// BucketFilter selects buckets for a range query. Start is applied to
// base_date after flooring to the hour; End is applied as-is.
type BucketFilter struct {
	MachineID      string
	ChannelIDs     []string
	FrequencyLabel string
	Start          *time.Time
	End            *time.Time
}

// QueriedBucket is a bucket joined with the display name of its channel.
type QueriedBucket struct {
	Bucket
	ChannelName string
}

// BucketRepository owns bucket documents. AppendReading performs the
// atomic create-or-append upsert for the given key and returns the id
// of the bucket the reading landed in.
type BucketRepository interface {
	AppendReading(ctx context.Context, key BucketKey, serialMachine string, reading Reading) (string, error)
}

// BucketQuery is the read side of the bucket store.
type BucketQuery interface {
	// LatestBySerial returns, for every reading type recorded under the
	// serial, the last appended reading of the bucket with the greatest
	// base_date.
	LatestBySerial(ctx context.Context, serial string) (map[string]Reading, error)
	// BucketsForMachine returns buckets matching the filter ordered by
	// base_date ascending, creation time ascending.
	BucketsForMachine(ctx context.Context, filter BucketFilter) ([]QueriedBucket, error)
}
