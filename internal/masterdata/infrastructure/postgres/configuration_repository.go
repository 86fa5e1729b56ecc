package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "garden-cloud/internal/masterdata/domain"
)

const defaultConfigurationsTable = "channel_configurations"

// ConfigurationRepository is a Postgres implementation for the
// per-machine type-to-channel mapping.
type ConfigurationRepository struct {
	db    *sql.DB
	table string
}

// NewConfigurationRepository constructs a repository.
func NewConfigurationRepository(db *sql.DB, opts ...ConfigurationOption) *ConfigurationRepository {
	repo := &ConfigurationRepository{db: db, table: defaultConfigurationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ConfigurationOption configures the repository.
type ConfigurationOption func(*ConfigurationRepository)

// WithConfigurationTable overrides the default table name.
func WithConfigurationTable(table string) ConfigurationOption {
	return func(repo *ConfigurationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// FindByMachineAndType resolves the configuration for (machine, type),
// nil when none exists.
func (r *ConfigurationRepository) FindByMachineAndType(ctx context.Context, machineID, readingType string) (*masterdata.ChannelConfiguration, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("configuration repo: nil db")
	}
	if machineID == "" || readingType == "" {
		return nil, errors.New("configuration repo: empty machine id or type")
	}

	query := fmt.Sprintf(`
SELECT id, machine_id, type, channel_id, serial
FROM %s
WHERE machine_id = $1 AND type = $2
LIMIT 1`, r.table)

	var config masterdata.ChannelConfiguration
	if err := r.db.QueryRowContext(ctx, query, machineID, readingType).Scan(
		&config.ID,
		&config.MachineID,
		&config.Type,
		&config.ChannelID,
		&config.Serial,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// ReplaceForMachine deletes the machine's configurations and installs
// the given set in one transaction.
func (r *ConfigurationRepository) ReplaceForMachine(ctx context.Context, machineID string, configurations []masterdata.ChannelConfiguration) error {
	if r == nil || r.db == nil {
		return errors.New("configuration repo: nil db")
	}
	if machineID == "" {
		return errors.New("configuration repo: empty machine id")
	}
	for _, config := range configurations {
		if err := config.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE machine_id = $1", r.table)
	if _, err := tx.ExecContext(ctx, deleteQuery, machineID); err != nil {
		_ = tx.Rollback()
		return err
	}

	insertQuery := fmt.Sprintf(`
INSERT INTO %s (id, machine_id, type, channel_id, serial)
VALUES ($1, $2, $3, $4, $5)`, r.table)

	for _, config := range configurations {
		if _, err := tx.ExecContext(ctx, insertQuery, config.ID, config.MachineID, config.Type, config.ChannelID, config.Serial); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
