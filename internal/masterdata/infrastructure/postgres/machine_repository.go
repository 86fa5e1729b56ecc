package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	masterdata "garden-cloud/internal/masterdata/domain"
)

const defaultMachinesTable = "machines"

// MachineRepository is a Postgres implementation for machines.
type MachineRepository struct {
	db    DBTX
	table string
}

// NewMachineRepository constructs a repository.
func NewMachineRepository(db DBTX, opts ...MachineOption) *MachineRepository {
	repo := &MachineRepository{db: db, table: defaultMachinesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MachineOption configures the repository.
type MachineOption func(*MachineRepository)

// WithMachineTable overrides the default table name.
func WithMachineTable(table string) MachineOption {
	return func(repo *MachineRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// FindByID loads a machine by id, nil when absent.
func (r *MachineRepository) FindByID(ctx context.Context, id string) (*masterdata.Machine, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("machine repo: nil db")
	}
	if id == "" {
		return nil, errors.New("machine repo: empty id")
	}
	return r.findOne(ctx, "id = $1", id)
}

// FindBySerial loads a machine by its serial, nil when absent.
func (r *MachineRepository) FindBySerial(ctx context.Context, serial string) (*masterdata.Machine, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("machine repo: nil db")
	}
	if serial == "" {
		return nil, errors.New("machine repo: empty serial")
	}
	return r.findOne(ctx, "serial = $1", serial)
}

func (r *MachineRepository) findOne(ctx context.Context, where string, arg any) (*masterdata.Machine, error) {
	query := fmt.Sprintf(`
SELECT id, serial, name, garden_id, supported_frequencies, dashboard_frequency, created_at
FROM %s
WHERE %s
LIMIT 1`, r.table, where)

	var machine masterdata.Machine
	var gardenID sql.NullString
	var frequencies []byte
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&machine.ID,
		&machine.Serial,
		&machine.Name,
		&gardenID,
		&frequencies,
		&machine.DashboardFrequency,
		&machine.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if gardenID.Valid {
		machine.GardenID = gardenID.String
	}
	if len(frequencies) > 0 {
		if err := json.Unmarshal(frequencies, &machine.SupportedFrequencies); err != nil {
			return nil, fmt.Errorf("machine repo: decode supported_frequencies: %w", err)
		}
	}
	machine.CreatedAt = machine.CreatedAt.UTC()
	return &machine, nil
}

// Create inserts a machine; a duplicate serial maps to
// ErrDuplicateSerial.
func (r *MachineRepository) Create(ctx context.Context, machine *masterdata.Machine) error {
	if r == nil || r.db == nil {
		return errors.New("machine repo: nil db")
	}
	if machine == nil {
		return errors.New("machine repo: nil machine")
	}
	if err := machine.Validate(); err != nil {
		return err
	}

	frequencies, err := json.Marshal(machine.SupportedFrequencies)
	if err != nil {
		return err
	}
	var gardenID sql.NullString
	if machine.GardenID != "" {
		gardenID = sql.NullString{String: machine.GardenID, Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	serial,
	name,
	garden_id,
	supported_frequencies,
	dashboard_frequency
) VALUES (
	$1, $2, $3, $4, $5::jsonb, $6
)`, r.table)

	if _, err := r.db.ExecContext(
		ctx,
		query,
		machine.ID,
		machine.Serial,
		machine.Name,
		gardenID,
		string(frequencies),
		machine.DashboardFrequency,
	); err != nil {
		if isUniqueViolation(err) {
			return masterdata.ErrDuplicateSerial
		}
		return err
	}
	return nil
}

// Delete removes a machine by id.
func (r *MachineRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("machine repo: nil db")
	}
	if id == "" {
		return errors.New("machine repo: empty id")
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE
// without depending on driver error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key")
}
