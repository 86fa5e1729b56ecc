package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "garden-cloud/internal/masterdata/domain"
)

const defaultChannelsTable = "channels"

// ChannelRepository is a Postgres implementation for channels.
type ChannelRepository struct {
	db    DBTX
	table string
}

// NewChannelRepository constructs a repository.
func NewChannelRepository(db DBTX, opts ...ChannelOption) *ChannelRepository {
	repo := &ChannelRepository{db: db, table: defaultChannelsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ChannelOption configures the repository.
type ChannelOption func(*ChannelRepository)

// WithChannelTable overrides the default table name.
func WithChannelTable(table string) ChannelOption {
	return func(repo *ChannelRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// FindByID loads a channel by id, nil when absent.
func (r *ChannelRepository) FindByID(ctx context.Context, id string) (*masterdata.Channel, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("channel repo: nil db")
	}
	if id == "" {
		return nil, errors.New("channel repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, name, unit, color, icon, business_id
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var channel masterdata.Channel
	var businessID sql.NullString
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&channel.ID,
		&channel.Name,
		&channel.Unit,
		&channel.Color,
		&channel.Icon,
		&businessID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if businessID.Valid {
		channel.BusinessID = businessID.String
	}
	return &channel, nil
}

// Create inserts a channel.
func (r *ChannelRepository) Create(ctx context.Context, channel *masterdata.Channel) error {
	if r == nil || r.db == nil {
		return errors.New("channel repo: nil db")
	}
	if channel == nil {
		return errors.New("channel repo: nil channel")
	}
	if err := channel.Validate(); err != nil {
		return err
	}

	var businessID sql.NullString
	if channel.BusinessID != "" {
		businessID = sql.NullString{String: channel.BusinessID, Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, name, unit, color, icon, business_id)
VALUES ($1, $2, $3, $4, $5, $6)`, r.table)

	_, err := r.db.ExecContext(ctx, query, channel.ID, channel.Name, channel.Unit, channel.Color, channel.Icon, businessID)
	return err
}
