package storage

import (
	"context"
	"database/sql"
	"errors"
)

type Hardban struct {
	ID              int64  `db:"id"`
	UserID          string `db:"user_id"`
	ModeratorUserID string `db:"moderator_user_id"`
	GuildID         string `db:"guild_id"`
	HardbanTime     int64  `db:"hardban_time"`
	Reason          string `db:"reason"`
}

func (s *Store) InsertHardban(ctx context.Context, hardban *Hardban) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO hardbans (user_id, moderator_user_id, guild_id, hardban_time, reason)
		VALUES (?, ?, ?, ?, ?)`,
		hardban.UserID, hardban.ModeratorUserID, hardban.GuildID, hardban.HardbanTime, hardban.Reason)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetHardban(ctx context.Context, id int64) (*Hardban, error) {
	var hardban Hardban
	err := s.db.GetContext(ctx, &hardban, `SELECT * FROM hardbans WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &hardban, nil
}

func (s *Store) GetGuildHardbans(ctx context.Context, guildID string, page int) ([]Hardban, error) {
	var hardbans []Hardban
	err := s.db.SelectContext(ctx, &hardbans, `
		SELECT * FROM hardbans WHERE guild_id = ?
		ORDER BY hardban_time DESC, id DESC LIMIT ? OFFSET ?`,
		guildID, PageSize, pageOffset(page))
	return hardbans, err
}

func (s *Store) CountGuildHardbans(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM hardbans WHERE guild_id = ?`, guildID)
	return count, err
}

func (s *Store) UpdateHardban(ctx context.Context, hardban *Hardban) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE hardbans SET reason = ? WHERE id = ?`,
		hardban.Reason, hardban.ID)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}
