package command

import (
	"context"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/pkg/clock"
	"github.com/streamhub/stream-community-hub/pkg/logger"
)

// ResetGuild wipes a guild's stored streaming history.
type ResetGuild struct {
	GuildID string
}

// ResetGuildHandler executes guild resets.
type ResetGuildHandler struct {
	store     session.Store
	publisher shared.EventPublisher
	clock     clock.Clock
	log       *logger.Logger
}

// NewResetGuildHandler creates the handler.
func NewResetGuildHandler(store session.Store, publisher shared.EventPublisher, clk clock.Clock, log *logger.Logger) *ResetGuildHandler {
	return &ResetGuildHandler{
		store:     store,
		publisher: publisher,
		clock:     clk,
		log:       log.With(logger.Component("reset_guild")),
	}
}

// Handle removes all sessions of the guild and announces the reset.
func (h *ResetGuildHandler) Handle(ctx context.Context, cmd ResetGuild) error {
	guildID := shared.GuildID(cmd.GuildID)
	if !guildID.IsValid() {
		return shared.NewInvalidEventError("command", "ResetGuildHandler.Handle", "missing guild id")
	}

	if err := h.store.ResetGuild(ctx, guildID); err != nil {
		return err
	}
	h.log.Info("guild history reset", logger.GuildID(cmd.GuildID))

	if h.publisher != nil {
		event := shared.GuildReset{GuildID: guildID, At: h.clock.Now()}
		if err := h.publisher.Publish(ctx, event); err != nil {
			h.log.Warn("failed to publish guild.reset", logger.GuildID(cmd.GuildID), logger.Err(err))
		}
	}
	return nil
}
