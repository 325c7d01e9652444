package storage

import "context"

type Reminder struct {
	ID         int64  `db:"id"`
	UserID     string `db:"user_id"`
	ChannelID  string `db:"channel_id"`
	GuildID    string `db:"guild_id"`
	CreateTime int64  `db:"create_time"`
	RemindTime int64  `db:"remind_time"`
	Reminded   bool   `db:"reminded"`
	Message    string `db:"message"`
}

func (s *Store) InsertReminder(ctx context.Context, reminder *Reminder) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (user_id, channel_id, guild_id, create_time, remind_time, reminded, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reminder.UserID, reminder.ChannelID, reminder.GuildID, reminder.CreateTime, reminder.RemindTime, reminder.Reminded, reminder.Message)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetExpiredReminders(ctx context.Context, now int64) ([]Reminder, error) {
	var reminders []Reminder
	err := s.db.SelectContext(ctx, &reminders, `
		SELECT * FROM reminders WHERE reminded = 0 AND remind_time <= ?`, now)
	return reminders, err
}

func (s *Store) MarkReminded(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET reminded = 1 WHERE id = ?`, id)
	return err
}
