package mod

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"warden/internal/storage"
)

// IssueHardban permanently bans the target and purges a week of their
// messages. Hardbans never expire and never escalate further.
func (s *Services) IssueHardban(ctx context.Context, req ActionRequest) (*storage.Hardban, error) {
	reason, err := normalizeReason(req.Reason)
	if err != nil {
		return nil, err
	}

	s.notifyUser(req.Target, req.GuildID,
		fmt.Sprintf("You were permanently banned from a server for: %s", reason), reason, "")

	if err := s.enforcer.BanUser(req.GuildID, req.Target.ID, reason, hardbanDeleteDays); err != nil {
		if isUnauthorized(err) {
			return nil, ErrUnauthorized
		}
		s.logger.Error("hardban enforcement failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
		return nil, err
	}

	hardban := &storage.Hardban{
		UserID:          req.Target.ID,
		ModeratorUserID: req.Moderator.ID,
		GuildID:         req.GuildID,
		HardbanTime:     s.clock.Now().Unix(),
		Reason:          reason,
	}
	id, err := s.store.InsertHardban(ctx, hardban)
	if err != nil {
		s.logger.Error("hardban record insert failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
	}
	hardban.ID = id

	logErr := s.reportToModLog(ctx, req.GuildID,
		s.actionEmbed("hardban", req.Target, req.Moderator, reason, ""))
	return hardban, logErr
}

// Hardbans pages through a guild's hardban history, newest first.
func (s *Services) Hardbans(ctx context.Context, guildID string, page int) ([]storage.Hardban, int, error) {
	hardbans, err := s.store.GetGuildHardbans(ctx, guildID, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountGuildHardbans(ctx, guildID)
	if err != nil {
		return nil, 0, err
	}
	return hardbans, total, nil
}

// UpdateHardban can only touch the reason; hardbans have no pardon.
func (s *Services) UpdateHardban(ctx context.Context, id int64, reason string) error {
	existing, err := s.store.GetHardban(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	reason, err = normalizeReason(reason)
	if err != nil {
		return err
	}
	existing.Reason = reason
	return s.store.UpdateHardban(ctx, existing)
}
