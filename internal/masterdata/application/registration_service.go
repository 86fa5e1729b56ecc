package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	masterdata "garden-cloud/internal/masterdata/domain"
	telemetry "garden-cloud/internal/telemetry/domain"
)

// RegistrationRequest carries the payload of an explicit machine
// registration.
type RegistrationRequest struct {
	Serial               string
	Name                 string
	GardenID             string
	SupportedFrequencies []string
	DashboardFrequency   string
	Configurations       []ConfigurationItem
}

// ConfigurationItem maps one reading type to a channel id.
type ConfigurationItem struct {
	Type      string
	ChannelID string
}

// RegistrationResult reports the created machine and its installed
// configurations.
type RegistrationResult struct {
	Machine        masterdata.Machine
	Configurations []masterdata.ChannelConfiguration
}

// RegistrationService creates machines together with their channel
// configurations and clears the candidate entry for the serial.
type RegistrationService struct {
	machines       masterdata.MachineRepository
	channels       masterdata.ChannelRepository
	configurations masterdata.ConfigurationRepository
	candidates     masterdata.CandidateRepository
	logger         *log.Logger
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	machines masterdata.MachineRepository,
	channels masterdata.ChannelRepository,
	configurations masterdata.ConfigurationRepository,
	candidates masterdata.CandidateRepository,
	logger *log.Logger,
) (*RegistrationService, error) {
	if machines == nil {
		return nil, errors.New("registration service: nil machine repository")
	}
	if channels == nil {
		return nil, errors.New("registration service: nil channel repository")
	}
	if configurations == nil {
		return nil, errors.New("registration service: nil configuration repository")
	}
	if candidates == nil {
		return nil, errors.New("registration service: nil candidate repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RegistrationService{
		machines:       machines,
		channels:       channels,
		configurations: configurations,
		candidates:     candidates,
		logger:         logger,
	}, nil
}

// Register validates the request, creates the machine, installs its
// channel configurations wholesale and deletes any machine candidate
// for the serial. When installing configurations fails, the machine is
// removed again so a retry starts clean.
func (s *RegistrationService) Register(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error) {
	if req.Serial == "" {
		return nil, errors.New("registration: serial is required")
	}
	if req.Name == "" {
		return nil, errors.New("registration: name is required")
	}

	existing, err := s.machines.FindBySerial(ctx, req.Serial)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, masterdata.ErrDuplicateSerial
	}

	// Resolve all referenced channels up front so a bad id fails the
	// request before anything is written.
	for _, item := range req.Configurations {
		channel, err := s.channels.FindByID(ctx, item.ChannelID)
		if err != nil {
			return nil, err
		}
		if channel == nil {
			return nil, fmt.Errorf("registration: channel %s does not exist", item.ChannelID)
		}
	}

	dashboard := req.DashboardFrequency
	if dashboard == "" {
		dashboard = masterdata.DefaultDashboardFrequency
	}
	machine := masterdata.Machine{
		ID:                   telemetry.NewID(),
		Serial:               req.Serial,
		Name:                 req.Name,
		GardenID:             req.GardenID,
		SupportedFrequencies: req.SupportedFrequencies,
		DashboardFrequency:   dashboard,
		CreatedAt:            time.Now().UTC(),
	}
	if err := machine.Validate(); err != nil {
		return nil, err
	}
	if err := s.machines.Create(ctx, &machine); err != nil {
		return nil, err
	}

	configs := make([]masterdata.ChannelConfiguration, 0, len(req.Configurations))
	for _, item := range req.Configurations {
		configs = append(configs, masterdata.ChannelConfiguration{
			ID:        telemetry.NewID(),
			MachineID: machine.ID,
			Type:      item.Type,
			ChannelID: item.ChannelID,
			Serial:    machine.Serial,
		})
	}
	if err := s.configurations.ReplaceForMachine(ctx, machine.ID, configs); err != nil {
		if delErr := s.machines.Delete(ctx, machine.ID); delErr != nil {
			s.logger.Printf("registration: rollback of machine %s failed: %v", machine.ID, delErr)
		}
		return nil, err
	}

	if err := s.candidates.DeleteBySerial(ctx, machine.Serial); err != nil {
		// The candidate entry is advisory; registration already
		// succeeded.
		s.logger.Printf("registration: candidate cleanup for %s failed: %v", machine.Serial, err)
	}

	s.logger.Printf("registration: machine %s registered with serial %s and %d configurations", machine.ID, machine.Serial, len(configs))
	return &RegistrationResult{Machine: machine, Configurations: configs}, nil
}
