package application

import (
	"context"
	"errors"
	"log"
	"testing"

	masterdata "garden-cloud/internal/masterdata/domain"
	"garden-cloud/internal/masterdata/infrastructure/memory"
)

type registrationFixture struct {
	service    *RegistrationService
	machines   *memory.MachineRepository
	channels   *memory.ChannelRepository
	configs    *memory.ConfigurationRepository
	candidates *memory.CandidateRepository
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()
	machines := memory.NewMachineRepository()
	channels := memory.NewChannelRepository()
	configs := memory.NewConfigurationRepository()
	candidates := memory.NewCandidateRepository()

	service, err := NewRegistrationService(machines, channels, configs, candidates, log.New(regTestWriter{t}, "", 0))
	if err != nil {
		t.Fatalf("new registration service: %v", err)
	}
	return &registrationFixture{
		service:    service,
		machines:   machines,
		channels:   channels,
		configs:    configs,
		candidates: candidates,
	}
}

type regTestWriter struct{ t *testing.T }

func (w regTestWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestRegister_CreatesMachineAndConfigurations(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	if err := f.channels.Create(ctx, &masterdata.Channel{ID: "ch-temp", Name: "Temperature"}); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	result, err := f.service.Register(ctx, RegistrationRequest{
		Serial:               "S1",
		Name:                 "Greenhouse North",
		SupportedFrequencies: []string{"1_minutes", "10_minutes"},
		Configurations:       []ConfigurationItem{{Type: "temp", ChannelID: "ch-temp"}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.Machine.ID == "" {
		t.Fatalf("machine id not assigned")
	}
	if result.Machine.DashboardFrequency != masterdata.DefaultDashboardFrequency {
		t.Fatalf("dashboard frequency=%q, want default", result.Machine.DashboardFrequency)
	}

	stored, err := f.machines.FindBySerial(ctx, "S1")
	if err != nil || stored == nil {
		t.Fatalf("machine not stored: %v", err)
	}
	config, err := f.configs.FindByMachineAndType(ctx, stored.ID, "temp")
	if err != nil || config == nil {
		t.Fatalf("configuration not installed: %v", err)
	}
	if config.ChannelID != "ch-temp" {
		t.Fatalf("configuration channel=%q", config.ChannelID)
	}
}

func TestRegister_DuplicateSerialRejected(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	if _, err := f.service.Register(ctx, RegistrationRequest{Serial: "S1", Name: "First"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := f.service.Register(ctx, RegistrationRequest{Serial: "S1", Name: "Second"})
	if !errors.Is(err, masterdata.ErrDuplicateSerial) {
		t.Fatalf("err=%v, want duplicate serial", err)
	}
}

func TestRegister_UnknownChannelFailsBeforeWriting(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	_, err := f.service.Register(ctx, RegistrationRequest{
		Serial:         "S1",
		Name:           "Greenhouse",
		Configurations: []ConfigurationItem{{Type: "temp", ChannelID: "no-such-channel"}},
	})
	if err == nil {
		t.Fatalf("expected an error for the unknown channel")
	}
	machine, findErr := f.machines.FindBySerial(ctx, "S1")
	if findErr != nil {
		t.Fatalf("find by serial: %v", findErr)
	}
	if machine != nil {
		t.Fatalf("machine must not be created when a channel is missing")
	}
}

func TestRegister_ClearsCandidateEntry(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	if err := f.candidates.ObserveType(ctx, "S1", "voltage"); err != nil {
		t.Fatalf("observe type: %v", err)
	}
	if _, err := f.service.Register(ctx, RegistrationRequest{Serial: "S1", Name: "Greenhouse"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	candidate, err := f.candidates.FindBySerial(ctx, "S1")
	if err != nil {
		t.Fatalf("find candidate: %v", err)
	}
	if candidate != nil {
		t.Fatalf("candidate should be removed after registration, got %+v", candidate)
	}
}
