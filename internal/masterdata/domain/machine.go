package masterdata

import (
	"context"
	"errors"
	"time"
)

// DefaultDashboardFrequency is assigned when a registration omits the
// dashboard frequency label.
const DefaultDashboardFrequency = "1_minutes"

// Machine represents a registered physical device. Serial is the
// natural key: globally unique and immutable once readings reference it.
type Machine struct {
	ID                   string
	Serial               string
	Name                 string
	GardenID             string
	SupportedFrequencies []string
	DashboardFrequency   string
	CreatedAt            time.Time
}

// Validate checks machine invariants.
func (m Machine) Validate() error {
	if m.ID == "" {
		return errors.New("machine: empty id")
	}
	if m.Serial == "" {
		return errors.New("machine: empty serial")
	}
	if m.Name == "" {
		return errors.New("machine: empty name")
	}
	return nil
}

// ErrDuplicateSerial is returned when a machine with the same serial
// already exists.
var ErrDuplicateSerial = errors.New("machine: serial already registered")

// MachineRepository manages machine persistence. Lookups return nil
// without error when nothing matches.
type MachineRepository interface {
	FindByID(ctx context.Context, id string) (*Machine, error)
	FindBySerial(ctx context.Context, serial string) (*Machine, error)
	Create(ctx context.Context, machine *Machine) error
	Delete(ctx context.Context, id string) error
}
