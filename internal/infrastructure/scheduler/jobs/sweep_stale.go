package jobs

import (
	"context"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/pkg/logger"
)

// SweepStale force-closes sessions that never received a stop event.
type SweepStale struct {
	tracker *session.Tracker
	log     *logger.Logger
}

// NewSweepStale creates the job.
func NewSweepStale(tracker *session.Tracker, log *logger.Logger) *SweepStale {
	return &SweepStale{
		tracker: tracker,
		log:     log.With(logger.Component("sweep_stale")),
	}
}

func (j *SweepStale) Name() string { return "sweep_stale" }

func (j *SweepStale) Run(ctx context.Context) error {
	closed, err := j.tracker.SweepStale(ctx)
	if err != nil {
		return err
	}
	if closed > 0 {
		j.log.Info("swept stale sessions", logger.Sessions(closed))
	}
	return nil
}
