package storage

import "context"

type Join struct {
	ID        int64  `db:"id"`
	UserID    string `db:"user_id"`
	GuildID   string `db:"guild_id"`
	JoinTime  int64  `db:"join_time"`
	AllowTime int64  `db:"allow_time"`
	Allowed   bool   `db:"allowed"`
}

func (s *Store) InsertJoin(ctx context.Context, join *Join) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO joins (user_id, guild_id, join_time, allow_time, allowed)
		VALUES (?, ?, ?, ?, ?)`,
		join.UserID, join.GuildID, join.JoinTime, join.AllowTime, join.Allowed)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetExpiredJoins(ctx context.Context, now int64) ([]Join, error) {
	var joins []Join
	err := s.db.SelectContext(ctx, &joins, `
		SELECT * FROM joins WHERE allowed = 0 AND allow_time <= ?`, now)
	return joins, err
}

func (s *Store) MarkJoinAllowed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE joins SET allowed = 1 WHERE id = ?`, id)
	return err
}

func (s *Store) DeleteJoin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM joins WHERE id = ?`, id)
	return err
}

func (s *Store) DeleteGuildUserJoins(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM joins WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return err
}
