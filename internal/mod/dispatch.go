package mod

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"warden/internal/storage"
)

// maxEscalationDepth bounds chained threshold escalations. A warn that
// escalates to a mute that escalates to a kick is depth 2; anything
// that would recurse further is dropped.
const maxEscalationDepth = 3

// Dispatch runs the configured action against the target with the bot
// as moderator. Cycles in threshold configuration terminate here.
func (s *Services) Dispatch(ctx context.Context, kind storage.ActionKind, guildID string, target User, reason string, duration time.Duration, depth int) {
	if depth >= maxEscalationDepth {
		s.logger.Warn("escalation chain terminated",
			zap.String("guild_id", guildID),
			zap.String("user_id", target.ID),
			zap.Stringer("action", kind),
			zap.Int("depth", depth))
		return
	}

	var err error
	switch kind {
	case storage.ActionNothing:
		return
	case storage.ActionWarn:
		_, err = s.IssueWarn(ctx, ActionRequest{
			GuildID: guildID, Moderator: s.botUser, Target: target,
			Reason: reason, CallDepth: depth,
		})
	case storage.ActionMute:
		_, err = s.IssueMute(ctx, ActionRequest{
			GuildID: guildID, Moderator: s.botUser, Target: target,
			Reason: reason, Duration: duration, CallDepth: depth,
		})
	case storage.ActionKick:
		_, err = s.IssueKick(ctx, ActionRequest{
			GuildID: guildID, Moderator: s.botUser, Target: target,
			Reason: reason, CallDepth: depth,
		})
	case storage.ActionBan:
		_, err = s.IssueBan(ctx, ActionRequest{
			GuildID: guildID, Moderator: s.botUser, Target: target,
			Reason: reason, Duration: duration, CallDepth: depth,
		})
	case storage.ActionSoftban:
		_, err = s.IssueSoftban(ctx, ActionRequest{
			GuildID: guildID, Moderator: s.botUser, Target: target,
			Reason: reason, CallDepth: depth,
		})
	case storage.ActionHardban:
		_, err = s.IssueHardban(ctx, ActionRequest{
			GuildID: guildID, Moderator: s.botUser, Target: target,
			Reason: reason, CallDepth: depth,
		})
	default:
		s.logger.Warn("unrecognized escalation action",
			zap.String("guild_id", guildID),
			zap.Int("action", int(kind)))
		return
	}
	if err != nil {
		var modLogErr *ModLogError
		if errors.As(err, &modLogErr) {
			// The action itself succeeded.
			return
		}
		s.logger.Warn("escalated action failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", target.ID),
			zap.Stringer("action", kind),
			zap.Error(err))
	}
}
