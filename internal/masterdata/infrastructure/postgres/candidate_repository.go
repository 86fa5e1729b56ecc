package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	masterdata "garden-cloud/internal/masterdata/domain"
	telemetry "garden-cloud/internal/telemetry/domain"
)

const defaultCandidatesTable = "machine_candidates"

// CandidateRepository is a Postgres implementation for machine
// candidates.
type CandidateRepository struct {
	db    DBTX
	table string
}

// NewCandidateRepository constructs a repository.
func NewCandidateRepository(db DBTX, opts ...CandidateOption) *CandidateRepository {
	repo := &CandidateRepository{db: db, table: defaultCandidatesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CandidateOption configures the repository.
type CandidateOption func(*CandidateRepository)

// WithCandidateTable overrides the default table name.
func WithCandidateTable(table string) CandidateOption {
	return func(repo *CandidateRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ObserveType records the type for the serial in a single atomic
// statement: insert with types = [type], or add the type to the jsonb
// set when the candidate exists and does not contain it yet. Two
// concurrent first sightings collapse into the serial's unique
// constraint instead of racing.
func (r *CandidateRepository) ObserveType(ctx context.Context, serial, readingType string) error {
	if r == nil || r.db == nil {
		return errors.New("candidate repo: nil db")
	}
	if serial == "" || readingType == "" {
		return errors.New("candidate repo: empty serial or type")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, serial, types)
VALUES ($1, $2, jsonb_build_array($3::text))
ON CONFLICT (serial)
DO UPDATE SET types = CASE
	WHEN %s.types ? $3::text THEN %s.types
	ELSE %s.types || to_jsonb($3::text)
END`, r.table, r.table, r.table, r.table)

	_, err := r.db.ExecContext(ctx, query, telemetry.NewID(), serial, readingType)
	return err
}

// FindBySerial loads a candidate, nil when absent.
func (r *CandidateRepository) FindBySerial(ctx context.Context, serial string) (*masterdata.MachineCandidate, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("candidate repo: nil db")
	}
	if serial == "" {
		return nil, errors.New("candidate repo: empty serial")
	}

	query := fmt.Sprintf(`
SELECT id, serial, types, created_at
FROM %s
WHERE serial = $1
LIMIT 1`, r.table)

	var candidate masterdata.MachineCandidate
	var types []byte
	if err := r.db.QueryRowContext(ctx, query, serial).Scan(
		&candidate.ID,
		&candidate.Serial,
		&types,
		&candidate.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(types) > 0 {
		if err := json.Unmarshal(types, &candidate.Types); err != nil {
			return nil, fmt.Errorf("candidate repo: decode types: %w", err)
		}
	}
	candidate.CreatedAt = candidate.CreatedAt.UTC()
	return &candidate, nil
}

// DeleteBySerial removes the candidate for a serial.
func (r *CandidateRepository) DeleteBySerial(ctx context.Context, serial string) error {
	if r == nil || r.db == nil {
		return errors.New("candidate repo: nil db")
	}
	if serial == "" {
		return errors.New("candidate repo: empty serial")
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE serial = $1", r.table)
	_, err := r.db.ExecContext(ctx, query, serial)
	return err
}
