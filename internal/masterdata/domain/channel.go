package masterdata

import (
	"context"
	"errors"
)

// Channel is a named measurement channel readings are attributed to.
type Channel struct {
	ID         string
	Name       string
	Unit       string
	Color      string
	Icon       string
	BusinessID string
}

// Validate checks channel invariants.
func (c Channel) Validate() error {
	if c.ID == "" {
		return errors.New("channel: empty id")
	}
	if c.Name == "" {
		return errors.New("channel: empty name")
	}
	return nil
}

// ChannelRepository manages channel persistence. FindByID returns nil
// without error when the channel does not exist.
type ChannelRepository interface {
	FindByID(ctx context.Context, id string) (*Channel, error)
	Create(ctx context.Context, channel *Channel) error
}
