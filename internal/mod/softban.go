package mod

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"warden/internal/storage"
)

// IssueSoftban bans and immediately unbans the target to purge their
// last day of messages, then records it.
func (s *Services) IssueSoftban(ctx context.Context, req ActionRequest) (*storage.Softban, error) {
	return s.issueSoftbanDays(ctx, req, 1)
}

// IssueSoftbanDays is IssueSoftban with an explicit message purge
// window in days (1 through 7).
func (s *Services) IssueSoftbanDays(ctx context.Context, req ActionRequest, deleteDays int) (*storage.Softban, error) {
	return s.issueSoftbanDays(ctx, req, deleteDays)
}

func (s *Services) issueSoftbanDays(ctx context.Context, req ActionRequest, deleteDays int) (*storage.Softban, error) {
	reason, err := normalizeReason(req.Reason)
	if err != nil {
		return nil, err
	}
	if deleteDays < 1 {
		deleteDays = 1
	}
	if deleteDays > 7 {
		deleteDays = 7
	}

	s.notifyUser(req.Target, req.GuildID,
		fmt.Sprintf("You were softbanned from a server for: %s", reason), reason, "")

	if err := s.enforcer.BanUser(req.GuildID, req.Target.ID, reason, deleteDays); err != nil {
		if isUnauthorized(err) {
			return nil, ErrUnauthorized
		}
		s.logger.Error("softban enforcement failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
		return nil, err
	}
	if err := s.enforcer.UnbanUser(req.GuildID, req.Target.ID); err != nil {
		// The ban landed but the unban did not; the operator has to
		// lift it manually, so this is a real failure.
		s.logger.Error("softban unban failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
		if isUnauthorized(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	softban := &storage.Softban{
		UserID:          req.Target.ID,
		ModeratorUserID: req.Moderator.ID,
		GuildID:         req.GuildID,
		SoftbanTime:     s.clock.Now().Unix(),
		DeleteDays:      deleteDays,
		Reason:          reason,
	}
	id, err := s.store.InsertSoftban(ctx, softban)
	if err != nil {
		s.logger.Error("softban record insert failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
	}
	softban.ID = id

	logErr := s.reportToModLog(ctx, req.GuildID,
		s.actionEmbed("softban", req.Target, req.Moderator, reason, ""))

	s.checkThreshold(ctx, req.GuildID, req.Target, categorySoftban, req.CallDepth)
	return softban, logErr
}

// Softbans pages through a guild's softban history, newest first.
func (s *Services) Softbans(ctx context.Context, guildID string, page int) ([]storage.Softban, int, error) {
	softbans, err := s.store.GetGuildSoftbans(ctx, guildID, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountGuildSoftbans(ctx, guildID)
	if err != nil {
		return nil, 0, err
	}
	return softbans, total, nil
}

// UpdateSoftban edits a softban record. Pardons are final.
func (s *Services) UpdateSoftban(ctx context.Context, id int64, reason string, pardoned bool) error {
	existing, err := s.store.GetSoftban(ctx, id)
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
	return s.store.UpdateSoftban(ctx, existing)
}
