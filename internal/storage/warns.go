package storage

import (
	"context"
	"database/sql"
	"errors"
)

type Warn struct {
	ID              int64  `db:"id"`
	UserID          string `db:"user_id"`
	ModeratorUserID string `db:"moderator_user_id"`
	GuildID         string `db:"guild_id"`
	WarnTime        int64  `db:"warn_time"`
	Reason          string `db:"reason"`
	Pardoned        bool   `db:"pardoned"`
}

func (s *Store) InsertWarn(ctx context.Context, warn *Warn) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO warns (user_id, moderator_user_id, guild_id, warn_time, reason, pardoned)
		VALUES (?, ?, ?, ?, ?, ?)`,
		warn.UserID, warn.ModeratorUserID, warn.GuildID, warn.WarnTime, warn.Reason, warn.Pardoned)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetWarn(ctx context.Context, id int64) (*Warn, error) {
	var warn Warn
	err := s.db.GetContext(ctx, &warn, `SELECT * FROM warns WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &warn, nil
}

func (s *Store) GetGuildWarns(ctx context.Context, guildID string, page int) ([]Warn, error) {
	var warns []Warn
	err := s.db.SelectContext(ctx, &warns, `
		SELECT * FROM warns WHERE guild_id = ?
		ORDER BY warn_time DESC, id DESC LIMIT ? OFFSET ?`,
		guildID, PageSize, pageOffset(page))
	return warns, err
}

func (s *Store) CountGuildWarns(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM warns WHERE guild_id = ?`, guildID)
	return count, err
}

// CountActionableWarns counts warns that still count toward the escalation
// threshold: pardoned warns are forgiven.
func (s *Store) CountActionableWarns(ctx context.Context, guildID, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM warns WHERE guild_id = ? AND user_id = ? AND pardoned = 0`,
		guildID, userID)
	return count, err
}

// UpdateWarn writes the mutable columns only; identity fields never change.
func (s *Store) UpdateWarn(ctx context.Context, warn *Warn) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE warns SET reason = ?, pardoned = ? WHERE id = ?`,
		warn.Reason, warn.Pardoned, warn.ID)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}
