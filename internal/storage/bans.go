package storage

import (
	"context"
	"database/sql"
	"errors"
)

type Ban struct {
	ID              int64  `db:"id"`
	UserID          string `db:"user_id"`
	ModeratorUserID string `db:"moderator_user_id"`
	GuildID         string `db:"guild_id"`
	BanTime         int64  `db:"ban_time"`
	ExpireTime      int64  `db:"expire_time"`
	Reason          string `db:"reason"`
	Expires         bool   `db:"expires"`
	Unbanned        bool   `db:"unbanned"`
}

func (s *Store) InsertBan(ctx context.Context, ban *Ban) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO bans (user_id, moderator_user_id, guild_id, ban_time, expire_time, reason, expires, unbanned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ban.UserID, ban.ModeratorUserID, ban.GuildID, ban.BanTime, ban.ExpireTime, ban.Reason, ban.Expires, ban.Unbanned)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetBan(ctx context.Context, id int64) (*Ban, error) {
	var ban Ban
	err := s.db.GetContext(ctx, &ban, `SELECT * FROM bans WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ban, nil
}

func (s *Store) GetGuildBans(ctx context.Context, guildID string, page int) ([]Ban, error) {
	var bans []Ban
	err := s.db.SelectContext(ctx, &bans, `
		SELECT * FROM bans WHERE guild_id = ?
		ORDER BY ban_time DESC, id DESC LIMIT ? OFFSET ?`,
		guildID, PageSize, pageOffset(page))
	return bans, err
}

func (s *Store) CountGuildBans(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM bans WHERE guild_id = ?`, guildID)
	return count, err
}

func (s *Store) GetActiveBans(ctx context.Context, guildID, userID string) ([]Ban, error) {
	var bans []Ban
	err := s.db.SelectContext(ctx, &bans, `
		SELECT * FROM bans WHERE guild_id = ? AND user_id = ? AND unbanned = 0
		ORDER BY ban_time DESC, id DESC`,
		guildID, userID)
	return bans, err
}

func (s *Store) InvalidatePreviousBans(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bans SET unbanned = 1 WHERE guild_id = ? AND user_id = ? AND unbanned = 0`,
		guildID, userID)
	return err
}

func (s *Store) InvalidateBan(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE bans SET unbanned = 1 WHERE id = ?`, id)
	return err
}

func (s *Store) GetExpiredBans(ctx context.Context, now int64) ([]Ban, error) {
	var bans []Ban
	err := s.db.SelectContext(ctx, &bans, `
		SELECT * FROM bans WHERE expires = 1 AND unbanned = 0 AND expire_time > 0 AND expire_time <= ?`,
		now)
	return bans, err
}

func (s *Store) UpdateBan(ctx context.Context, ban *Ban) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bans SET reason = ?, expire_time = ?, expires = ?, unbanned = ? WHERE id = ?`,
		ban.Reason, ban.ExpireTime, ban.Expires, ban.Unbanned, ban.ID)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}
