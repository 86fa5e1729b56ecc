package masterdata

import (
	"context"
	"time"
)

// MachineCandidate is a serial observed via ingestion that has not been
// registered as a machine yet. It exists purely as an operator-visible
// "device waiting to be registered" signal.
type MachineCandidate struct {
	ID        string
	Serial    string
	Types     []string
	CreatedAt time.Time
}

// HasType reports whether the candidate already observed the type.
func (c MachineCandidate) HasType(readingType string) bool {
	for _, t := range c.Types {
		if t == readingType {
			return true
		}
	}
	return false
}

// CandidateRepository manages machine candidates. ObserveType must be
// atomic: create the candidate with types = {type} when absent,
// otherwise add the type to the set if it is not there yet, in a single
// storage operation.
type CandidateRepository interface {
	ObserveType(ctx context.Context, serial, readingType string) error
	FindBySerial(ctx context.Context, serial string) (*MachineCandidate, error)
	DeleteBySerial(ctx context.Context, serial string) error
}
