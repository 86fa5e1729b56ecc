package masterdata

import (
	"context"
	"errors"
)

// ChannelConfiguration maps a (machine, reading type) pair to the
// channel that owns its values. Unique per (machine, type).
type ChannelConfiguration struct {
	ID        string
	MachineID string
	Type      string
	ChannelID string
	Serial    string
}

// Validate checks configuration invariants.
func (c ChannelConfiguration) Validate() error {
	if c.MachineID == "" {
		return errors.New("channel configuration: empty machine id")
	}
	if c.Type == "" {
		return errors.New("channel configuration: empty type")
	}
	if c.ChannelID == "" {
		return errors.New("channel configuration: empty channel id")
	}
	return nil
}

// ConfigurationRepository manages the per-machine type-to-channel
// mapping. FindByMachineAndType returns nil without error on a miss;
// ReplaceForMachine deletes the machine's existing configurations and
// installs the given set wholesale.
type ConfigurationRepository interface {
	FindByMachineAndType(ctx context.Context, machineID, readingType string) (*ChannelConfiguration, error)
	ReplaceForMachine(ctx context.Context, machineID string, configurations []ChannelConfiguration) error
}
