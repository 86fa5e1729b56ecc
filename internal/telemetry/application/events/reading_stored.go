package events

import (
	"time"

	telemetry "garden-cloud/internal/telemetry/domain"
)

// ReadingStored is raised after a reading has been appended to its
// hourly bucket.
type ReadingStored struct {
	EventID       string            `json:"event_id"`
	BucketID      string            `json:"bucket_id"`
	SerialMachine string            `json:"serial_machine"`
	MachineID     string            `json:"machine_id,omitempty"`
	ChannelID     string            `json:"channel_id,omitempty"`
	Type          string            `json:"type"`
	BaseDate      time.Time         `json:"base_date"`
	Reading       telemetry.Reading `json:"reading"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
