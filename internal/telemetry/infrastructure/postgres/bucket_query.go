package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	telemetry "garden-cloud/internal/telemetry/domain"
)

const defaultChannelsJoinTable = "channels"

// BucketQuery is the Postgres read side of the bucket store.
type BucketQuery struct {
	db            *sql.DB
	table         string
	channelsTable string
}

// NewBucketQuery constructs a query with default table names.
func NewBucketQuery(db *sql.DB, opts ...QueryOption) *BucketQuery {
	query := &BucketQuery{db: db, table: defaultBucketsTable, channelsTable: defaultChannelsJoinTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryOption configures the bucket query.
type QueryOption func(*BucketQuery)

// WithQueryTable overrides the default bucket table name.
func WithQueryTable(table string) QueryOption {
	return func(query *BucketQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

// WithChannelsTable overrides the channels table joined for display
// names.
func WithChannelsTable(table string) QueryOption {
	return func(query *BucketQuery) {
		if query != nil && table != "" {
			query.channelsTable = table
		}
	}
}

// LatestBySerial returns, per reading type recorded under the serial,
// the last appended element of the bucket with the greatest base_date.
// The per-reading timestamps are not consulted: newest bucket, newest
// append.
func (q *BucketQuery) LatestBySerial(ctx context.Context, serial string) (map[string]telemetry.Reading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("bucket query: nil db")
	}
	if serial == "" {
		return nil, errors.New("bucket query: empty serial")
	}

	query := fmt.Sprintf(`
SELECT DISTINCT ON (type) type, readings -> -1
FROM %s
WHERE serial_machine = $1 AND count > 0
ORDER BY type, base_date DESC, created_at DESC`, q.table)

	rows, err := q.db.QueryContext(ctx, query, serial)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[string]telemetry.Reading)
	for rows.Next() {
		var readingType string
		var raw []byte
		if err := rows.Scan(&readingType, &raw); err != nil {
			return nil, err
		}
		var reading telemetry.Reading
		if err := json.Unmarshal(raw, &reading); err != nil {
			return nil, fmt.Errorf("bucket query: decode reading: %w", err)
		}
		latest[readingType] = reading
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return latest, nil
}

// BucketsForMachine returns buckets matching the filter, joined with
// their channel display name, ordered by base_date then creation time.
func (q *BucketQuery) BucketsForMachine(ctx context.Context, filter telemetry.BucketFilter) ([]telemetry.QueriedBucket, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("bucket query: nil db")
	}
	if filter.MachineID == "" {
		return nil, errors.New("bucket query: empty machine id")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `
SELECT b.id, b.machine_id, b.channel_id, b.serial_machine, b.base_date, b.type, b.frequency_label, b.readings, b.count, b.created_at, COALESCE(c.name, '')
FROM %s b
LEFT JOIN %s c ON c.id = b.channel_id
WHERE b.machine_id = $1`, q.table, q.channelsTable)

	args := []any{filter.MachineID}
	if len(filter.ChannelIDs) > 0 {
		placeholders := make([]string, 0, len(filter.ChannelIDs))
		for _, channelID := range filter.ChannelIDs {
			args = append(args, channelID)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		fmt.Fprintf(&sb, " AND b.channel_id IN (%s)", strings.Join(placeholders, ", "))
	}
	if filter.FrequencyLabel != "" {
		args = append(args, filter.FrequencyLabel)
		fmt.Fprintf(&sb, " AND b.frequency_label = $%d", len(args))
	}
	if filter.Start != nil {
		args = append(args, filter.Start.UTC())
		fmt.Fprintf(&sb, " AND b.base_date >= $%d", len(args))
	}
	if filter.End != nil {
		args = append(args, filter.End.UTC())
		fmt.Fprintf(&sb, " AND b.base_date <= $%d", len(args))
	}
	sb.WriteString("\nORDER BY b.base_date ASC, b.created_at ASC")

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []telemetry.QueriedBucket
	for rows.Next() {
		var bucket telemetry.QueriedBucket
		var readings []byte
		if err := rows.Scan(
			&bucket.ID,
			&bucket.MachineID,
			&bucket.ChannelID,
			&bucket.SerialMachine,
			&bucket.BaseDate,
			&bucket.Type,
			&bucket.FrequencyLabel,
			&readings,
			&bucket.Count,
			&bucket.CreatedAt,
			&bucket.ChannelName,
		); err != nil {
			return nil, err
		}
		if len(readings) > 0 {
			if err := json.Unmarshal(readings, &bucket.Readings); err != nil {
				return nil, fmt.Errorf("bucket query: decode readings: %w", err)
			}
		}
		bucket.BaseDate = bucket.BaseDate.UTC()
		bucket.CreatedAt = bucket.CreatedAt.UTC()
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buckets, nil
}
