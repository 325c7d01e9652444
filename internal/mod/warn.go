package mod

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"warden/internal/storage"
)

// IssueWarn records a warning. Warnings carry no Discord enforcement;
// the pipeline is notify, persist, report, escalate.
func (s *Services) IssueWarn(ctx context.Context, req ActionRequest) (*storage.Warn, error) {
	reason, err := normalizeReason(req.Reason)
	if err != nil {
		return nil, err
	}

	s.notifyUser(req.Target, req.GuildID,
		fmt.Sprintf("You were warned in a server for: %s", reason), reason, "")

	warn := &storage.Warn{
		UserID:          req.Target.ID,
		ModeratorUserID: req.Moderator.ID,
		GuildID:         req.GuildID,
		WarnTime:        s.clock.Now().Unix(),
		Reason:          reason,
	}
	id, err := s.store.InsertWarn(ctx, warn)
	if err != nil {
		// The user was already notified; losing the record is worth a
		// log line but not a failed command.
		s.logger.Error("warn record insert failed",
			zap.String("guild_id", req.GuildID),
			zap.String("user_id", req.Target.ID),
			zap.Error(err))
	}
	warn.ID = id

	logErr := s.reportToModLog(ctx, req.GuildID,
		s.actionEmbed("warn", req.Target, req.Moderator, reason, ""))

	s.checkThreshold(ctx, req.GuildID, req.Target, categoryWarn, req.CallDepth)
	return warn, logErr
}

// Warns pages through a guild's warning history, newest first.
func (s *Services) Warns(ctx context.Context, guildID string, page int) ([]storage.Warn, int, error) {
	warns, err := s.store.GetGuildWarns(ctx, guildID, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountGuildWarns(ctx, guildID)
	if err != nil {
		return nil, 0, err
	}
	return warns, total, nil
}

// UpdateWarn changes a warning's reason or pardons it. Pardons are
// final.
func (s *Services) UpdateWarn(ctx context.Context, id int64, reason string, pardoned bool) error {
	existing, err := s.store.GetWarn(ctx, id)
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
	return s.store.UpdateWarn(ctx, existing)
}
