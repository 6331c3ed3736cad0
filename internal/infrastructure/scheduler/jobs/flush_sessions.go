package jobs

import (
	"context"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/pkg/logger"
)

// FlushSessions releases flap-buffered sessions whose window has passed
// and replays the tracker's write backlog.
type FlushSessions struct {
	tracker *session.Tracker
	log     *logger.Logger
}

// NewFlushSessions creates the job.
func NewFlushSessions(tracker *session.Tracker, log *logger.Logger) *FlushSessions {
	return &FlushSessions{
		tracker: tracker,
		log:     log.With(logger.Component("flush_sessions")),
	}
}

func (j *FlushSessions) Name() string { return "flush_sessions" }

func (j *FlushSessions) Run(ctx context.Context) error {
	if err := j.tracker.Flush(ctx); err != nil {
		j.log.Warn("flush incomplete",
			logger.Sessions(j.tracker.BacklogSize()),
			logger.Err(err))
		return err
	}
	return nil
}
