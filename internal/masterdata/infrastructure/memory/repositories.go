package memory

import (
	"context"
	"sync"
	"time"

	masterdata "garden-cloud/internal/masterdata/domain"
	telemetry "garden-cloud/internal/telemetry/domain"
)

// MachineRepository is an in-memory machine store.
type MachineRepository struct {
	mu       sync.RWMutex
	byID     map[string]*masterdata.Machine
	bySerial map[string]string
}

// NewMachineRepository constructs an empty repository.
func NewMachineRepository() *MachineRepository {
	return &MachineRepository{
		byID:     make(map[string]*masterdata.Machine),
		bySerial: make(map[string]string),
	}
}

// FindByID returns the machine or nil.
func (r *MachineRepository) FindByID(ctx context.Context, id string) (*masterdata.Machine, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	machine := r.byID[id]
	if machine == nil {
		return nil, nil
	}
	clone := *machine
	return &clone, nil
}

// FindBySerial returns the machine with the serial or nil.
func (r *MachineRepository) FindBySerial(ctx context.Context, serial string) (*masterdata.Machine, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySerial[serial]
	if !ok {
		return nil, nil
	}
	clone := *r.byID[id]
	return &clone, nil
}

// Create stores a new machine; duplicate serials are rejected.
func (r *MachineRepository) Create(ctx context.Context, machine *masterdata.Machine) error {
	_ = ctx
	if err := machine.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bySerial[machine.Serial]; exists {
		return masterdata.ErrDuplicateSerial
	}
	clone := *machine
	r.byID[machine.ID] = &clone
	r.bySerial[machine.Serial] = machine.ID
	return nil
}

// Delete removes a machine by id.
func (r *MachineRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if machine, ok := r.byID[id]; ok {
		delete(r.bySerial, machine.Serial)
		delete(r.byID, id)
	}
	return nil
}

// ChannelRepository is an in-memory channel store.
type ChannelRepository struct {
	mu   sync.RWMutex
	byID map[string]*masterdata.Channel
}

// NewChannelRepository constructs an empty repository.
func NewChannelRepository() *ChannelRepository {
	return &ChannelRepository{byID: make(map[string]*masterdata.Channel)}
}

// FindByID returns the channel or nil.
func (r *ChannelRepository) FindByID(ctx context.Context, id string) (*masterdata.Channel, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	channel := r.byID[id]
	if channel == nil {
		return nil, nil
	}
	clone := *channel
	return &clone, nil
}

// Create stores a channel.
func (r *ChannelRepository) Create(ctx context.Context, channel *masterdata.Channel) error {
	_ = ctx
	if err := channel.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *channel
	r.byID[channel.ID] = &clone
	return nil
}

// ConfigurationRepository is an in-memory configuration store keyed by
// (machine, type).
type ConfigurationRepository struct {
	mu        sync.RWMutex
	byMachine map[string][]masterdata.ChannelConfiguration
}

// NewConfigurationRepository constructs an empty repository.
func NewConfigurationRepository() *ConfigurationRepository {
	return &ConfigurationRepository{byMachine: make(map[string][]masterdata.ChannelConfiguration)}
}

// FindByMachineAndType resolves a configuration or returns nil.
func (r *ConfigurationRepository) FindByMachineAndType(ctx context.Context, machineID, readingType string) (*masterdata.ChannelConfiguration, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, config := range r.byMachine[machineID] {
		if config.Type == readingType {
			clone := config
			return &clone, nil
		}
	}
	return nil, nil
}

// ReplaceForMachine swaps the machine's configuration set wholesale.
func (r *ConfigurationRepository) ReplaceForMachine(ctx context.Context, machineID string, configurations []masterdata.ChannelConfiguration) error {
	_ = ctx
	for _, config := range configurations {
		if err := config.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMachine[machineID] = append([]masterdata.ChannelConfiguration(nil), configurations...)
	return nil
}

// CandidateRepository is an in-memory candidate store. ObserveType is
// atomic under the repository mutex, mirroring the single-statement
// set-add of the Postgres implementation.
type CandidateRepository struct {
	mu       sync.Mutex
	bySerial map[string]*masterdata.MachineCandidate
}

// NewCandidateRepository constructs an empty repository.
func NewCandidateRepository() *CandidateRepository {
	return &CandidateRepository{bySerial: make(map[string]*masterdata.MachineCandidate)}
}

// ObserveType creates the candidate or unions the type into its set.
func (r *CandidateRepository) ObserveType(ctx context.Context, serial, readingType string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate := r.bySerial[serial]
	if candidate == nil {
		r.bySerial[serial] = &masterdata.MachineCandidate{
			ID:        telemetry.NewID(),
			Serial:    serial,
			Types:     []string{readingType},
			CreatedAt: time.Now().UTC(),
		}
		return nil
	}
	if !candidate.HasType(readingType) {
		candidate.Types = append(candidate.Types, readingType)
	}
	return nil
}

// FindBySerial returns the candidate or nil.
func (r *CandidateRepository) FindBySerial(ctx context.Context, serial string) (*masterdata.MachineCandidate, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate := r.bySerial[serial]
	if candidate == nil {
		return nil, nil
	}
	clone := *candidate
	clone.Types = append([]string(nil), candidate.Types...)
	return &clone, nil
}

// DeleteBySerial removes the candidate if present.
func (r *CandidateRepository) DeleteBySerial(ctx context.Context, serial string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySerial, serial)
	return nil
}
