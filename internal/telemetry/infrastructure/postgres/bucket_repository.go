package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	telemetry "garden-cloud/internal/telemetry/domain"
)

const defaultBucketsTable = "data_buckets"

// BucketRepository is the Postgres write side of the bucket store. The
// nullable machine/channel parts of the key are stored as empty strings
// so the unique constraint covers "no machine" and "no channel".
type BucketRepository struct {
	db    *sql.DB
	table string
}

// NewBucketRepository constructs a repository.
func NewBucketRepository(db *sql.DB, opts ...RepositoryOption) *BucketRepository {
	repo := &BucketRepository{db: db, table: defaultBucketsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*BucketRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *BucketRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// AppendReading performs the create-or-append upsert for the key in a
// single statement: the first reading for a key creates its bucket
// with count 1 and set-once metadata; every later reading for the same
// key appends to the jsonb array and increments count atomically, so
// concurrent writers never lose an append and count never diverges
// from the array length. Returns the id of the bucket the reading
// landed in.
func (r *BucketRepository) AppendReading(ctx context.Context, key telemetry.BucketKey, serialMachine string, reading telemetry.Reading) (string, error) {
	if r == nil || r.db == nil {
		return "", errors.New("bucket repo: nil db")
	}
	if key.Type == "" || key.FrequencyLabel == "" || key.BaseDate.IsZero() {
		return "", errors.New("bucket repo: incomplete bucket key")
	}

	payload, err := json.Marshal(reading)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	machine_id,
	channel_id,
	serial_machine,
	base_date,
	type,
	frequency_label,
	readings,
	count
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, jsonb_build_array($8::jsonb), 1
)
ON CONFLICT (machine_id, channel_id, base_date, type, frequency_label)
DO UPDATE SET
	readings = %s.readings || EXCLUDED.readings,
	count = %s.count + 1
RETURNING id`, r.table, r.table, r.table)

	var bucketID string
	if err := r.db.QueryRowContext(
		ctx,
		query,
		telemetry.NewID(),
		key.MachineID,
		key.ChannelID,
		serialMachine,
		key.BaseDate.UTC(),
		key.Type,
		key.FrequencyLabel,
		string(payload),
	).Scan(&bucketID); err != nil {
		return "", &telemetry.StorageError{Op: "bucket upsert", Err: err}
	}
	return bucketID, nil
}
