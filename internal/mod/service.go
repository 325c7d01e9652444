// Package mod implements the moderation action pipeline: enforce on
// Discord, notify the target, persist the record, report to the mod
// log channel and escalate when configured thresholds trip.
package mod

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/config"
	"warden/internal/settings"
	"warden/internal/storage"
)

const (
	defaultReason   = "No reason specified"
	maxReasonLength = 512

	mutedRoleName = "Muted"

	hardbanDeleteDays = 7
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Enforcer is the Discord write surface the pipeline acts through.
// The bot package adapts *discordgo.Session to it.
type Enforcer interface {
	BanUser(guildID, userID, reason string, deleteDays int) error
	UnbanUser(guildID, userID string) error
	KickUser(guildID, userID, reason string) error
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	CreateRole(guildID, name string) (*discordgo.Role, error)
	DenySendOverride(channelID, roleID string) error
	SendDM(userID string, embed *discordgo.MessageEmbed) error
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
	DeleteMessage(channelID, messageID string) error
}

// GuildSource is the cached guild state the pipeline reads.
// *cache.GuildCache satisfies it.
type GuildSource interface {
	Roles(guildID string) ([]*discordgo.Role, error)
	Channels(guildID string) ([]*discordgo.Channel, error)
	InvalidateRoles(guildID string)
}

// ActionRequest is the common input for issuing a moderation action.
// CallDepth is zero for operator-initiated actions and grows by one
// for each threshold escalation.
type ActionRequest struct {
	GuildID   string
	Moderator User
	Target    User
	Reason    string
	Duration  time.Duration
	CallDepth int
}

// User carries the identifiers the pipeline needs about a Discord
// user without dragging the whole discordgo.User around.
type User struct {
	ID       string
	Username string
}

// Services wires the moderation pipeline together.
type Services struct {
	store    *storage.Store
	settings *settings.Resolver
	guilds   GuildSource
	enforcer Enforcer
	logger   *zap.Logger
	clock    Clock
	embeds   config.EmbedColors

	botUser User
}

func NewServices(store *storage.Store, resolver *settings.Resolver, guilds GuildSource, enforcer Enforcer, embeds config.EmbedColors, logger *zap.Logger) *Services {
	return &Services{
		store:    store,
		settings: resolver,
		guilds:   guilds,
		enforcer: enforcer,
		logger:   logger,
		clock:    realClock{},
		embeds:   embeds,
	}
}

// SetBotUser records the bot's own identity, used as the moderator on
// escalated actions. Called once the gateway is ready.
func (s *Services) SetBotUser(user User) {
	s.botUser = user
}

func normalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return defaultReason, nil
	}
	if len(reason) > maxReasonLength {
		return "", ErrReasonTooLong
	}
	return reason, nil
}

// notifyUser DMs the target about the action. Failures are expected
// (closed DMs, blocked bot) and never abort the pipeline.
func (s *Services) notifyUser(target User, guildID, title, reason string, expires string) {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Color:       s.embeds.Warning,
		Description: fmt.Sprintf("Reason: %s", reason),
	}
	if expires != "" {
		embed.Description += "\nExpires: " + expires
	}
	if err := s.enforcer.SendDM(target.ID, embed); err != nil {
		s.logger.Debug("could not notify user",
			zap.String("guild_id", guildID),
			zap.String("user_id", target.ID),
			zap.Error(err))
	}
}

// reportToModLog writes the action embed to the guild's mod log
// channel when one is configured. A nil return means posted or not
// configured; a *ModLogError means the action succeeded but the
// report did not.
func (s *Services) reportToModLog(ctx context.Context, guildID string, embed *discordgo.MessageEmbed) error {
	setting := s.settings.Get(ctx, guildID)
	if !setting.ModLog || setting.ModLogChannelID == "" {
		return nil
	}
	err := s.enforcer.SendEmbed(setting.ModLogChannelID, embed)
	if err == nil {
		return nil
	}
	switch discordErrCode(err) {
	case discordgo.ErrCodeUnknownChannel:
		return &ModLogError{Failure: ModLogChannelMissing, Err: err}
	case discordgo.ErrCodeMissingPermissions:
		return &ModLogError{Failure: ModLogUnauthorized, Err: err}
	default:
		s.logger.Warn("mod log post failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return &ModLogError{Failure: ModLogUnknown, Err: err}
	}
}

func (s *Services) actionEmbed(action string, target, moderator User, reason string, expires string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s | %s", strings.ToUpper(action[:1])+action[1:], target.Username),
		Color: s.embeds.Action,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", target.ID, target.ID), Inline: false},
			{Name: "Reason", Value: reason, Inline: false},
			{Name: "Responsible Moderator", Value: fmt.Sprintf("<@%s>", moderator.ID), Inline: false},
		},
		Timestamp: s.clock.Now().UTC().Format(time.RFC3339),
	}
	if expires != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Expires", Value: expires, Inline: false,
		})
	}
	return embed
}

func formatExpiry(expireTime int64) string {
	if expireTime == 0 {
		return ""
	}
	return fmt.Sprintf("<t:%d:F>", expireTime)
}

// thresholdCategory names the record families that participate in
// threshold escalation.
type thresholdCategory int

const (
	categoryWarn thresholdCategory = iota
	categoryMute
	categoryKick
	categorySoftban
)

// checkThreshold counts the target's actionable records in the given
// category and dispatches the configured escalation when the count
// reaches the threshold. Runs after the triggering action succeeded.
func (s *Services) checkThreshold(ctx context.Context, guildID string, target User, category thresholdCategory, depth int) {
	setting := s.settings.Get(ctx, guildID)

	var threshold int
	var action storage.ActionKind
	var unit storage.DurationUnit
	var amount int
	var count int
	var err error

	switch category {
	case categoryWarn:
		threshold, action = setting.WarnThreshold, setting.WarnAction
		unit, amount = setting.WarnActionDurationUnit, setting.WarnActionDuration
		count, err = s.store.CountActionableWarns(ctx, guildID, target.ID)
	case categoryMute:
		threshold, action = setting.MuteThreshold, setting.MuteAction
		unit, amount = setting.MuteActionDurationUnit, setting.MuteActionDuration
		count, err = s.store.CountActionableMutes(ctx, guildID, target.ID)
	case categoryKick:
		threshold, action = setting.KickThreshold, setting.KickAction
		unit, amount = setting.KickActionDurationUnit, setting.KickActionDuration
		count, err = s.store.CountActionableKicks(ctx, guildID, target.ID)
	case categorySoftban:
		threshold, action = setting.SoftbanThreshold, setting.SoftbanAction
		unit, amount = setting.SoftbanActionDurationUnit, setting.SoftbanActionDuration
		count, err = s.store.CountActionableSoftbans(ctx, guildID, target.ID)
	}
	if err != nil {
		s.logger.Warn("threshold count failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", target.ID),
			zap.Error(err))
		return
	}
	if threshold <= 0 || count < threshold || action == storage.ActionNothing {
		return
	}

	duration, expires := s.settings.ActionDuration(action, unit, amount)
	if !expires {
		duration = 0
	}
	reason := fmt.Sprintf("Automatic %s: reached %d %ss", action, threshold, categoryName(category))
	s.Dispatch(ctx, action, guildID, target, reason, duration, depth+1)
}

func categoryName(category thresholdCategory) string {
	switch category {
	case categoryWarn:
		return "warning"
	case categoryMute:
		return "mute"
	case categoryKick:
		return "kick"
	default:
		return "softban"
	}
}
