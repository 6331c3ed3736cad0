// Package command contains the write-side application handlers.
package command

import (
	"context"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/pkg/logger"
)

// Presence mirrors live streaming state for external readers. Implemented
// by the Redis presence tracker; nil disables mirroring.
type Presence interface {
	MarkStreaming(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, game string) error
	ClearStreaming(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID) error
}

// RecordSessionEvent is a raw presence transition to apply.
type RecordSessionEvent struct {
	GuildID   string
	MemberID  string
	Type      string
	Game      string
	Timestamp time.Time
	Source    string
}

// RecordSessionEventHandler feeds events into the tracker and keeps the
// presence mirror in sync.
type RecordSessionEventHandler struct {
	tracker  *session.Tracker
	presence Presence
	log      *logger.Logger
	disabled map[shared.GuildID]struct{}
}

// RecordOption customizes the handler.
type RecordOption func(*RecordSessionEventHandler)

// WithDisabledGuilds drops all events for the listed guilds.
func WithDisabledGuilds(guildIDs []string) RecordOption {
	return func(h *RecordSessionEventHandler) {
		for _, id := range guildIDs {
			h.disabled[shared.GuildID(id)] = struct{}{}
		}
	}
}

// NewRecordSessionEventHandler creates the handler. presence may be nil.
func NewRecordSessionEventHandler(tracker *session.Tracker, presence Presence, log *logger.Logger, opts ...RecordOption) *RecordSessionEventHandler {
	h := &RecordSessionEventHandler{
		tracker:  tracker,
		presence: presence,
		log:      log.With(logger.Component("record_session_event")),
		disabled: make(map[shared.GuildID]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle applies the event. Presence mirror failures are logged but do not
// fail the command: the session data is what must not be lost.
func (h *RecordSessionEventHandler) Handle(ctx context.Context, cmd RecordSessionEvent) error {
	if _, off := h.disabled[shared.GuildID(cmd.GuildID)]; off {
		h.log.Debug("tracking disabled for guild", logger.GuildID(cmd.GuildID))
		return nil
	}

	ev := session.StreamEvent{
		GuildID:   shared.GuildID(cmd.GuildID),
		MemberID:  shared.MemberID(cmd.MemberID),
		Type:      session.EventType(cmd.Type),
		Game:      cmd.Game,
		Timestamp: cmd.Timestamp,
		Source:    session.Source(cmd.Source),
	}

	if err := h.tracker.HandleEvent(ctx, ev); err != nil {
		return err
	}

	if h.presence != nil {
		h.mirrorPresence(ctx, ev)
	}
	return nil
}

func (h *RecordSessionEventHandler) mirrorPresence(ctx context.Context, ev session.StreamEvent) {
	var err error
	switch ev.Type {
	case session.EventStart, session.EventUpdate:
		err = h.presence.MarkStreaming(ctx, ev.GuildID, ev.MemberID, ev.Game)
	case session.EventStop:
		err = h.presence.ClearStreaming(ctx, ev.GuildID, ev.MemberID)
	}
	if err != nil {
		h.log.Warn("presence mirror out of sync",
			logger.GuildID(string(ev.GuildID)),
			logger.MemberID(string(ev.MemberID)),
			logger.Err(err))
	}
}
