package application

import (
	"context"
	"errors"
	"log"

	masterdata "garden-cloud/internal/masterdata/domain"
)

// ChannelResolver maps a (machine, reading type) pair to the channel
// that should own the value. Absence of a configuration is not a
// failure: the caller-supplied fallback (possibly nil) is returned.
type ChannelResolver struct {
	configurations masterdata.ConfigurationRepository
	channels       masterdata.ChannelRepository
	logger         *log.Logger
}

// NewChannelResolver constructs a resolver.
func NewChannelResolver(configurations masterdata.ConfigurationRepository, channels masterdata.ChannelRepository, logger *log.Logger) (*ChannelResolver, error) {
	if configurations == nil {
		return nil, errors.New("channel resolver: nil configuration repository")
	}
	if channels == nil {
		return nil, errors.New("channel resolver: nil channel repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ChannelResolver{configurations: configurations, channels: channels, logger: logger}, nil
}

// Resolve returns the configured channel for (machine, readingType),
// or fallback when the machine is nil, no configuration exists, or the
// configured channel cannot be loaded. "No channel" (nil) is a valid
// resolved value.
func (r *ChannelResolver) Resolve(ctx context.Context, machine *masterdata.Machine, readingType string, fallback *masterdata.Channel) *masterdata.Channel {
	if machine == nil || readingType == "" {
		return fallback
	}

	config, err := r.configurations.FindByMachineAndType(ctx, machine.ID, readingType)
	if err != nil {
		r.logger.Printf("channel resolver: configuration lookup for machine %s type %s: %v", machine.ID, readingType, err)
		return fallback
	}
	if config == nil {
		return fallback
	}

	channel, err := r.channels.FindByID(ctx, config.ChannelID)
	if err != nil {
		r.logger.Printf("channel resolver: channel lookup %s: %v", config.ChannelID, err)
		return fallback
	}
	if channel == nil {
		return fallback
	}
	return channel
}
