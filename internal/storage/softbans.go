package storage

import (
	"context"
	"database/sql"
	"errors"
)

type Softban struct {
	ID              int64  `db:"id"`
	UserID          string `db:"user_id"`
	ModeratorUserID string `db:"moderator_user_id"`
	GuildID         string `db:"guild_id"`
	SoftbanTime     int64  `db:"softban_time"`
	DeleteDays      int    `db:"delete_days"`
	Reason          string `db:"reason"`
	Pardoned        bool   `db:"pardoned"`
}

func (s *Store) InsertSoftban(ctx context.Context, softban *Softban) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO softbans (user_id, moderator_user_id, guild_id, softban_time, delete_days, reason, pardoned)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		softban.UserID, softban.ModeratorUserID, softban.GuildID, softban.SoftbanTime, softban.DeleteDays, softban.Reason, softban.Pardoned)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetSoftban(ctx context.Context, id int64) (*Softban, error) {
	var softban Softban
	err := s.db.GetContext(ctx, &softban, `SELECT * FROM softbans WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &softban, nil
}

func (s *Store) GetGuildSoftbans(ctx context.Context, guildID string, page int) ([]Softban, error) {
	var softbans []Softban
	err := s.db.SelectContext(ctx, &softbans, `
		SELECT * FROM softbans WHERE guild_id = ?
		ORDER BY softban_time DESC, id DESC LIMIT ? OFFSET ?`,
		guildID, PageSize, pageOffset(page))
	return softbans, err
}

func (s *Store) CountGuildSoftbans(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM softbans WHERE guild_id = ?`, guildID)
	return count, err
}

func (s *Store) CountActionableSoftbans(ctx context.Context, guildID, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM softbans WHERE guild_id = ? AND user_id = ? AND pardoned = 0`,
		guildID, userID)
	return count, err
}

func (s *Store) UpdateSoftban(ctx context.Context, softban *Softban) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE softbans SET reason = ?, pardoned = ? WHERE id = ?`,
		softban.Reason, softban.Pardoned, softban.ID)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}
