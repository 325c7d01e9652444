package storage

import (
	"context"
	"database/sql"
	"errors"
)

// ActionKind is the taxonomy of moderation enforcement severities. The zero
// value means "take no action" so an unconfigured category stays inert.
type ActionKind int

const (
	ActionNothing ActionKind = iota
	ActionWarn
	ActionMute
	ActionKick
	ActionBan
	ActionSoftban
	ActionHardban
)

func (k ActionKind) String() string {
	switch k {
	case ActionNothing:
		return "nothing"
	case ActionWarn:
		return "warn"
	case ActionMute:
		return "mute"
	case ActionKick:
		return "kick"
	case ActionBan:
		return "ban"
	case ActionSoftban:
		return "softban"
	case ActionHardban:
		return "hardban"
	default:
		return "unknown"
	}
}

// HasDuration reports whether the kind carries an expiration.
func (k ActionKind) HasDuration() bool {
	return k == ActionMute || k == ActionBan
}

type DurationUnit int

const (
	UnitSeconds DurationUnit = iota
	UnitMinutes
	UnitHours
	UnitDays
)

// Privacy gates read access from the dashboard API.
type Privacy int

const (
	PrivacyEveryone Privacy = iota
	PrivacyStaffOnly
	PrivacyAdminOnly
)

type Setting struct {
	GuildID string `db:"guild_id"`

	ModLog          bool   `db:"mod_log"`
	ModLogChannelID string `db:"mod_log_channel_id"`

	HoldingRoom        bool   `db:"holding_room"`
	HoldingRoomRoleID  string `db:"holding_room_role_id"`
	HoldingRoomMinutes int    `db:"holding_room_minutes"`

	WelcomeMessage          bool   `db:"welcome_message"`
	WelcomeMessageChannelID string `db:"welcome_message_channel_id"`
	WelcomeMessageText      string `db:"welcome_message_text"`

	InviteLinkRemover                   bool         `db:"invite_link_remover"`
	InviteLinkRemoverAction             ActionKind   `db:"invite_link_remover_action"`
	InviteLinkRemoverActionDuration     int          `db:"invite_link_remover_action_duration"`
	InviteLinkRemoverActionDurationUnit DurationUnit `db:"invite_link_remover_action_duration_unit"`

	WordFilter                   bool         `db:"word_filter"`
	WordFilterBlocklist          string       `db:"word_filter_blocklist"`
	WordFilterLevel              string       `db:"word_filter_level"`
	WordFilterAction             ActionKind   `db:"word_filter_action"`
	WordFilterActionDuration     int          `db:"word_filter_action_duration"`
	WordFilterActionDurationUnit DurationUnit `db:"word_filter_action_duration_unit"`

	SpamFilter  bool `db:"spam_filter"`
	JoinCaptcha bool `db:"join_captcha"`

	WarnThreshold          int          `db:"warn_threshold"`
	WarnAction             ActionKind   `db:"warn_action"`
	WarnActionDuration     int          `db:"warn_action_duration"`
	WarnActionDurationUnit DurationUnit `db:"warn_action_duration_unit"`

	MuteThreshold          int          `db:"mute_threshold"`
	MuteAction             ActionKind   `db:"mute_action"`
	MuteActionDuration     int          `db:"mute_action_duration"`
	MuteActionDurationUnit DurationUnit `db:"mute_action_duration_unit"`

	KickThreshold          int          `db:"kick_threshold"`
	KickAction             ActionKind   `db:"kick_action"`
	KickActionDuration     int          `db:"kick_action_duration"`
	KickActionDurationUnit DurationUnit `db:"kick_action_duration_unit"`

	SoftbanThreshold          int          `db:"softban_threshold"`
	SoftbanAction             ActionKind   `db:"softban_action"`
	SoftbanActionDuration     int          `db:"softban_action_duration"`
	SoftbanActionDurationUnit DurationUnit `db:"softban_action_duration_unit"`

	PrivacySettings   Privacy `db:"privacy_settings"`
	PrivacyModLog     Privacy `db:"privacy_mod_log"`
	PrivacyMemberList Privacy `db:"privacy_member_list"`
}

// DefaultSetting returns the documented defaults for a guild with no
// persisted configuration: everything disabled, no escalation thresholds,
// settings readable by everyone.
func DefaultSetting(guildID string) *Setting {
	return &Setting{
		GuildID:            guildID,
		HoldingRoomMinutes: 3,
		WordFilterLevel:    "low",
	}
}

var settingColumns = `
	guild_id, mod_log, mod_log_channel_id,
	holding_room, holding_room_role_id, holding_room_minutes,
	welcome_message, welcome_message_channel_id, welcome_message_text,
	invite_link_remover, invite_link_remover_action, invite_link_remover_action_duration, invite_link_remover_action_duration_unit,
	word_filter, word_filter_blocklist, word_filter_level, word_filter_action, word_filter_action_duration, word_filter_action_duration_unit,
	spam_filter, join_captcha,
	warn_threshold, warn_action, warn_action_duration, warn_action_duration_unit,
	mute_threshold, mute_action, mute_action_duration, mute_action_duration_unit,
	kick_threshold, kick_action, kick_action_duration, kick_action_duration_unit,
	softban_threshold, softban_action, softban_action_duration, softban_action_duration_unit,
	privacy_settings, privacy_mod_log, privacy_member_list`

func (s *Store) GetSetting(ctx context.Context, guildID string) (*Setting, error) {
	var setting Setting
	err := s.db.GetContext(ctx, &setting, `SELECT`+settingColumns+` FROM settings WHERE guild_id = ?`, guildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &setting, nil
}

func (s *Store) InsertSetting(ctx context.Context, setting *Setting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (`+settingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settingArgs(setting)...)
	return err
}

func (s *Store) UpdateSetting(ctx context.Context, setting *Setting) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE settings SET
			mod_log = ?, mod_log_channel_id = ?,
			holding_room = ?, holding_room_role_id = ?, holding_room_minutes = ?,
			welcome_message = ?, welcome_message_channel_id = ?, welcome_message_text = ?,
			invite_link_remover = ?, invite_link_remover_action = ?, invite_link_remover_action_duration = ?, invite_link_remover_action_duration_unit = ?,
			word_filter = ?, word_filter_blocklist = ?, word_filter_level = ?, word_filter_action = ?, word_filter_action_duration = ?, word_filter_action_duration_unit = ?,
			spam_filter = ?, join_captcha = ?,
			warn_threshold = ?, warn_action = ?, warn_action_duration = ?, warn_action_duration_unit = ?,
			mute_threshold = ?, mute_action = ?, mute_action_duration = ?, mute_action_duration_unit = ?,
			kick_threshold = ?, kick_action = ?, kick_action_duration = ?, kick_action_duration_unit = ?,
			softban_threshold = ?, softban_action = ?, softban_action_duration = ?, softban_action_duration_unit = ?,
			privacy_settings = ?, privacy_mod_log = ?, privacy_member_list = ?
		WHERE guild_id = ?`,
		append(settingArgs(setting)[1:], setting.GuildID)...)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE guild_id = ?`, guildID)
	return err
}

func settingArgs(setting *Setting) []any {
	return []any{
		setting.GuildID, setting.ModLog, setting.ModLogChannelID,
		setting.HoldingRoom, setting.HoldingRoomRoleID, setting.HoldingRoomMinutes,
		setting.WelcomeMessage, setting.WelcomeMessageChannelID, setting.WelcomeMessageText,
		setting.InviteLinkRemover, setting.InviteLinkRemoverAction, setting.InviteLinkRemoverActionDuration, setting.InviteLinkRemoverActionDurationUnit,
		setting.WordFilter, setting.WordFilterBlocklist, setting.WordFilterLevel, setting.WordFilterAction, setting.WordFilterActionDuration, setting.WordFilterActionDurationUnit,
		setting.SpamFilter, setting.JoinCaptcha,
		setting.WarnThreshold, setting.WarnAction, setting.WarnActionDuration, setting.WarnActionDurationUnit,
		setting.MuteThreshold, setting.MuteAction, setting.MuteActionDuration, setting.MuteActionDurationUnit,
		setting.KickThreshold, setting.KickAction, setting.KickActionDuration, setting.KickActionDurationUnit,
		setting.SoftbanThreshold, setting.SoftbanAction, setting.SoftbanActionDuration, setting.SoftbanActionDurationUnit,
		setting.PrivacySettings, setting.PrivacyModLog, setting.PrivacyMemberList,
	}
}
