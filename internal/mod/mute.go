package mod

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/storage"
)

// mutedRole finds the guild's muted role, creating it and denying it
// send, react and speak across all channels on first use.
func (s *Services) mutedRole(guildID string) (*discordgo.Role, error) {
	roles, err := s.guilds.Roles(guildID)
	if err != nil {
		if isUnauthorized(err) {
			return nil, ErrUnauthorizedFetchRoles
		}
		return nil, err
	}
	for _, role := range roles {
		if role.Name == mutedRoleName {
			return role, nil
		}
	}

	role, err := s.enforcer.CreateRole(guildID, mutedRoleName)
	if err != nil {
		if isUnauthorized(err) {
			return nil, ErrUnauthorizedCreateRole
		}
		return nil, err
	}
	s.guilds.InvalidateRoles(guildID)

	channels, err := s.guilds.Channels(guildID)
	if err != nil {
		if isUnauthorized(err) {
			return nil, ErrUnauthorizedChannelOverride
		}
		return nil, err
	}
	for _, channel := range channels {
		if err := s.enforcer.DenySendOverride(channel.ID, role.ID); err != nil {
			if isUnauthorized(err) {
				return nil, ErrUnauthorizedChannelOverride
			}
			s.logger.Warn("channel override failed during muted role setup",
				zap.String("guild_id", guildID),
				zap.String("channel_id", channel.ID),
				zap.Error(err))
		}
	}
	return role, nil
}

// IssueMute assigns the muted role, records the mute and invalidates
// any previous active mute so at most one is live per user per guild.
func (s *Services) IssueMute(ctx context.Context, req ActionRequest) (*storage.Mute, error) {
	reason, err := normalizeReason(req.Reason)
	if err != nil {
		return nil, err
	}

	role, err := s.mutedRole(req.GuildID)
	if err != nil {
		return nil, err
	}

	var expireTime int64
	expires := req.Duration > 0
	if expires {
		expireTime = s.clock.Now().Add(req.Duration).Unix()
	}

	s.notifyUser(req.Target, req.GuildID,
		fmt.Sprintf("You were muted in a server for: %s", reason), reason, formatExpiry(expireTime))

	if err := s.enforcer.AddRole(req.GuildID, req.Target.ID, role.ID); err != nil {
		if isUnauthorized(err) {
			return nil, ErrUnauthorized
		}
		s.logger.Error("mute enforcement failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
		return nil, err
	}

	mute := &storage.Mute{
		UserID:          req.Target.ID,
		ModeratorUserID: req.Moderator.ID,
		GuildID:         req.GuildID,
		MuteTime:        s.clock.Now().Unix(),
		ExpireTime:      expireTime,
		Reason:          reason,
		Expires:         expires,
	}
	if err := s.store.InvalidatePreviousMutes(ctx, req.GuildID, req.Target.ID); err != nil {
		s.logger.Error("could not invalidate previous mutes",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
	}
	id, err := s.store.InsertMute(ctx, mute)
	if err != nil {
		s.logger.Error("mute record insert failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
	}
	mute.ID = id

	logErr := s.reportToModLog(ctx, req.GuildID,
		s.actionEmbed("mute", req.Target, req.Moderator, reason, formatExpiry(expireTime)))

	s.checkThreshold(ctx, req.GuildID, req.Target, categoryMute, req.CallDepth)
	return mute, logErr
}

// Unmute removes the muted role and retires the user's active mutes.
// Unlike IssueMute it never creates the role; a guild without one has
// nothing to reverse.
func (s *Services) Unmute(ctx context.Context, guildID string, target User) error {
	roles, err := s.guilds.Roles(guildID)
	if err != nil {
		if isUnauthorized(err) {
			return ErrUnauthorizedFetchRoles
		}
		return err
	}
	var role *discordgo.Role
	for _, candidate := range roles {
		if candidate.Name == mutedRoleName {
			role = candidate
			break
		}
	}
	if role == nil {
		return ErrRoleNotFound
	}
	if err := s.enforcer.RemoveRole(guildID, target.ID, role.ID); err != nil {
		if isUnauthorized(err) {
			return ErrUnauthorized
		}
		return err
	}
	return s.store.InvalidatePreviousMutes(ctx, guildID, target.ID)
}

// Mutes pages through a guild's mute history, newest first.
func (s *Services) Mutes(ctx context.Context, guildID string, page int) ([]storage.Mute, int, error) {
	mutes, err := s.store.GetGuildMutes(ctx, guildID, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountGuildMutes(ctx, guildID)
	if err != nil {
		return nil, 0, err
	}
	return mutes, total, nil
}

// UpdateMute edits a mute record. Lifting a mute through an update is
// one way.
func (s *Services) UpdateMute(ctx context.Context, id int64, reason string, expireTime int64, expires, unmuted bool) error {
	existing, err := s.store.GetMute(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	if existing.Unmuted && !unmuted {
		return ErrReversalFinal
	}
	reason, err = normalizeReason(reason)
	if err != nil {
		return err
	}
	existing.Reason = reason
	existing.ExpireTime = expireTime
	existing.Expires = expires
	existing.Unmuted = unmuted
	return s.store.UpdateMute(ctx, existing)
}
