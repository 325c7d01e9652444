package mod

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/storage"
)

// IssueBan bans the target and records it, invalidating any previous
// active ban so at most one is live per user per guild.
func (s *Services) IssueBan(ctx context.Context, req ActionRequest) (*storage.Ban, error) {
	reason, err := normalizeReason(req.Reason)
	if err != nil {
		return nil, err
	}

	var expireTime int64
	expires := req.Duration > 0
	if expires {
		expireTime = s.clock.Now().Add(req.Duration).Unix()
	}

	s.notifyUser(req.Target, req.GuildID,
		fmt.Sprintf("You were banned from a server for: %s", reason), reason, formatExpiry(expireTime))

	if err := s.enforcer.BanUser(req.GuildID, req.Target.ID, reason, 0); err != nil {
		if isUnauthorized(err) {
			return nil, ErrUnauthorized
		}
		s.logger.Error("ban enforcement failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
		return nil, err
	}

	ban := &storage.Ban{
		UserID:          req.Target.ID,
		ModeratorUserID: req.Moderator.ID,
		GuildID:         req.GuildID,
		BanTime:         s.clock.Now().Unix(),
		ExpireTime:      expireTime,
		Reason:          reason,
		Expires:         expires,
	}
	if err := s.store.InvalidatePreviousBans(ctx, req.GuildID, req.Target.ID); err != nil {
		s.logger.Error("could not invalidate previous bans",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
	}
	id, err := s.store.InsertBan(ctx, ban)
	if err != nil {
		s.logger.Error("ban record insert failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
	}
	ban.ID = id

	logErr := s.reportToModLog(ctx, req.GuildID,
		s.actionEmbed("ban", req.Target, req.Moderator, reason, formatExpiry(expireTime)))
	return ban, logErr
}

// Unban lifts the target's Discord ban and retires active ban records.
func (s *Services) Unban(ctx context.Context, guildID string, target User) error {
	if err := s.enforcer.UnbanUser(guildID, target.ID); err != nil {
		switch discordErrCode(err) {
		case discordgo.ErrCodeUnknownBan:
			return ErrUserNotBanned
		case discordgo.ErrCodeMissingPermissions:
			return ErrUnauthorized
		}
		return err
	}
	return s.store.InvalidatePreviousBans(ctx, guildID, target.ID)
}

// Bans pages through a guild's ban history, newest first.
func (s *Services) Bans(ctx context.Context, guildID string, page int) ([]storage.Ban, int, error) {
	bans, err := s.store.GetGuildBans(ctx, guildID, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountGuildBans(ctx, guildID)
	if err != nil {
		return nil, 0, err
	}
	return bans, total, nil
}

// UpdateBan edits a ban record. Lifting a ban through an update is one
// way.
func (s *Services) UpdateBan(ctx context.Context, id int64, reason string, expireTime int64, expires, unbanned bool) error {
	existing, err := s.store.GetBan(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	if existing.Unbanned && !unbanned {
		return ErrReversalFinal
	}
	reason, err = normalizeReason(reason)
	if err != nil {
		return err
	}
	existing.Reason = reason
	existing.ExpireTime = expireTime
	existing.Expires = expires
	existing.Unbanned = unbanned
	return s.store.UpdateBan(ctx, existing)
}
