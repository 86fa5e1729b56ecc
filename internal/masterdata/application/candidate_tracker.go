package application

import (
	"context"
	"errors"
	"log"

	masterdata "garden-cloud/internal/masterdata/domain"
)

// CandidateTracker records readings from serials that are not yet
// registered as machines, so ingestion attempts from unknown devices
// surface to operators instead of vanishing.
type CandidateTracker struct {
	candidates masterdata.CandidateRepository
	logger     *log.Logger
}

// NewCandidateTracker constructs a tracker.
func NewCandidateTracker(candidates masterdata.CandidateRepository, logger *log.Logger) (*CandidateTracker, error) {
	if candidates == nil {
		return nil, errors.New("candidate tracker: nil candidate repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CandidateTracker{candidates: candidates, logger: logger}, nil
}

// Observe records that readingType was seen for serial. The candidate
// is created on first sight; subsequent sightings union the type into
// its set. The repository performs this as one atomic operation, so
// concurrent first sightings of the same serial cannot race.
func (t *CandidateTracker) Observe(ctx context.Context, serial, readingType string) error {
	if serial == "" {
		return errors.New("candidate tracker: empty serial")
	}
	if readingType == "" {
		return errors.New("candidate tracker: empty type")
	}
	if err := t.candidates.ObserveType(ctx, serial, readingType); err != nil {
		return err
	}
	t.logger.Printf("candidate tracker: observed type %s for unregistered serial %s", readingType, serial)
	return nil
}
