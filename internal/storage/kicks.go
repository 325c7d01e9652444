package storage

import (
	"context"
	"database/sql"
	"errors"
)

type Kick struct {
	ID              int64  `db:"id"`
	UserID          string `db:"user_id"`
	ModeratorUserID string `db:"moderator_user_id"`
	GuildID         string `db:"guild_id"`
	KickTime        int64  `db:"kick_time"`
	Reason          string `db:"reason"`
	Pardoned        bool   `db:"pardoned"`
}

func (s *Store) InsertKick(ctx context.Context, kick *Kick) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO kicks (user_id, moderator_user_id, guild_id, kick_time, reason, pardoned)
		VALUES (?, ?, ?, ?, ?, ?)`,
		kick.UserID, kick.ModeratorUserID, kick.GuildID, kick.KickTime, kick.Reason, kick.Pardoned)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetKick(ctx context.Context, id int64) (*Kick, error) {
	var kick Kick
	err := s.db.GetContext(ctx, &kick, `SELECT * FROM kicks WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &kick, nil
}

func (s *Store) GetGuildKicks(ctx context.Context, guildID string, page int) ([]Kick, error) {
	var kicks []Kick
	err := s.db.SelectContext(ctx, &kicks, `
		SELECT * FROM kicks WHERE guild_id = ?
		ORDER BY kick_time DESC, id DESC LIMIT ? OFFSET ?`,
		guildID, PageSize, pageOffset(page))
	return kicks, err
}

func (s *Store) CountGuildKicks(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM kicks WHERE guild_id = ?`, guildID)
	return count, err
}

func (s *Store) CountActionableKicks(ctx context.Context, guildID, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM kicks WHERE guild_id = ? AND user_id = ? AND pardoned = 0`,
		guildID, userID)
	return count, err
}

func (s *Store) UpdateKick(ctx context.Context, kick *Kick) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE kicks SET reason = ?, pardoned = ? WHERE id = ?`,
		kick.Reason, kick.Pardoned, kick.ID)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}
