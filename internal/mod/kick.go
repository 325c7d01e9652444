package mod

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"warden/internal/storage"
)

// IssueKick removes the member from the guild and records it. The DM
// goes out before enforcement since a kicked user may no longer share
// a guild with the bot.
func (s *Services) IssueKick(ctx context.Context, req ActionRequest) (*storage.Kick, error) {
	reason, err := normalizeReason(req.Reason)
	if err != nil {
		return nil, err
	}

	s.notifyUser(req.Target, req.GuildID,
		fmt.Sprintf("You were kicked from a server for: %s", reason), reason, "")

	if err := s.enforcer.KickUser(req.GuildID, req.Target.ID, reason); err != nil {
		if isUnauthorized(err) {
			return nil, ErrUnauthorized
		}
		s.logger.Error("kick enforcement failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
		return nil, err
	}

	kick := &storage.Kick{
		UserID:          req.Target.ID,
		ModeratorUserID: req.Moderator.ID,
		GuildID:         req.GuildID,
		KickTime:        s.clock.Now().Unix(),
		Reason:          reason,
	}
	id, err := s.store.InsertKick(ctx, kick)
	if err != nil {
		s.logger.Error("kick record insert failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
	}
	kick.ID = id

	logErr := s.reportToModLog(ctx, req.GuildID,
		s.actionEmbed("kick", req.Target, req.Moderator, reason, ""))

	s.checkThreshold(ctx, req.GuildID, req.Target, categoryKick, req.CallDepth)
	return kick, logErr
}

// Kicks pages through a guild's kick history, newest first.
func (s *Services) Kicks(ctx context.Context, guildID string, page int) ([]storage.Kick, int, error) {
	kicks, err := s.store.GetGuildKicks(ctx, guildID, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountGuildKicks(ctx, guildID)
	if err != nil {
		return nil, 0, err
	}
	return kicks, total, nil
}

// UpdateKick edits a kick record. Pardons are final.
func (s *Services) UpdateKick(ctx context.Context, id int64, reason string, pardoned bool) error {
	existing, err := s.store.GetKick(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	if existing.Pardoned && !pardoned {
		return ErrReversalFinal
	}
	reason, err = normalizeReason(reason)
	if err != nil {
		return err
	}
	existing.Reason = reason
	existing.Pardoned = pardoned
	return s.store.UpdateKick(ctx, existing)
}
