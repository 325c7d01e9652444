package storage

import (
	"context"
	"database/sql"
	"errors"
)

type Mute struct {
	ID              int64  `db:"id"`
	UserID          string `db:"user_id"`
	ModeratorUserID string `db:"moderator_user_id"`
	GuildID         string `db:"guild_id"`
	MuteTime        int64  `db:"mute_time"`
	ExpireTime      int64  `db:"expire_time"`
	Reason          string `db:"reason"`
	Expires         bool   `db:"expires"`
	Unmuted         bool   `db:"unmuted"`
}

func (s *Store) InsertMute(ctx context.Context, mute *Mute) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO mutes (user_id, moderator_user_id, guild_id, mute_time, expire_time, reason, expires, unmuted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mute.UserID, mute.ModeratorUserID, mute.GuildID, mute.MuteTime, mute.ExpireTime, mute.Reason, mute.Expires, mute.Unmuted)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetMute(ctx context.Context, id int64) (*Mute, error) {
	var mute Mute
	err := s.db.GetContext(ctx, &mute, `SELECT * FROM mutes WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &mute, nil
}

func (s *Store) GetGuildMutes(ctx context.Context, guildID string, page int) ([]Mute, error) {
	var mutes []Mute
	err := s.db.SelectContext(ctx, &mutes, `
		SELECT * FROM mutes WHERE guild_id = ?
		ORDER BY mute_time DESC, id DESC LIMIT ? OFFSET ?`,
		guildID, PageSize, pageOffset(page))
	return mutes, err
}

func (s *Store) CountGuildMutes(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM mutes WHERE guild_id = ?`, guildID)
	return count, err
}

func (s *Store) CountActionableMutes(ctx context.Context, guildID, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM mutes WHERE guild_id = ? AND user_id = ?`,
		guildID, userID)
	return count, err
}

// GetActiveMutes returns the not-yet-reversed mutes for a user, newest first.
func (s *Store) GetActiveMutes(ctx context.Context, guildID, userID string) ([]Mute, error) {
	var mutes []Mute
	err := s.db.SelectContext(ctx, &mutes, `
		SELECT * FROM mutes WHERE guild_id = ? AND user_id = ? AND unmuted = 0
		ORDER BY mute_time DESC, id DESC`,
		guildID, userID)
	return mutes, err
}

// InvalidatePreviousMutes marks every active mute for the user as reversed.
// Callers run this before inserting a new mute so that exactly one row stays
// active per (guild, user).
func (s *Store) InvalidatePreviousMutes(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mutes SET unmuted = 1 WHERE guild_id = ? AND user_id = ? AND unmuted = 0`,
		guildID, userID)
	return err
}

func (s *Store) InvalidateMute(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE mutes SET unmuted = 1 WHERE id = ?`, id)
	return err
}

func (s *Store) GetExpiredMutes(ctx context.Context, now int64) ([]Mute, error) {
	var mutes []Mute
	err := s.db.SelectContext(ctx, &mutes, `
		SELECT * FROM mutes WHERE expires = 1 AND unmuted = 0 AND expire_time > 0 AND expire_time <= ?`,
		now)
	return mutes, err
}

func (s *Store) UpdateMute(ctx context.Context, mute *Mute) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE mutes SET reason = ?, expire_time = ?, expires = ?, unmuted = ? WHERE id = ?`,
		mute.Reason, mute.ExpireTime, mute.Expires, mute.Unmuted, mute.ID)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}
