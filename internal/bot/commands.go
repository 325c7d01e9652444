package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/mod"
	"warden/internal/storage"
)

var durationUnits = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "seconds", Value: "seconds"},
	{Name: "minutes", Value: "minutes"},
	{Name: "hours", Value: "hours"},
	{Name: "days", Value: "days"},
}

func targetOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: "Target user",
		Required:    true,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason for the action",
	}
}

func durationOptions() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "duration",
			Description: "How long the action lasts (omit for indefinite)",
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "unit",
			Description: "Duration unit",
			Choices:     durationUnits,
		},
	}
}

// commandPermissions maps each command to the permission its invoker
// needs.
var commandPermissions = map[string]int64{
	"warn":    discordgo.PermissionManageMessages,
	"mute":    discordgo.PermissionManageRoles,
	"unmute":  discordgo.PermissionManageRoles,
	"kick":    discordgo.PermissionKickMembers,
	"softban": discordgo.PermissionKickMembers,
	"ban":     discordgo.PermissionBanMembers,
	"unban":   discordgo.PermissionBanMembers,
	"hardban": discordgo.PermissionBanMembers,
	"remind":  0,
}

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "warn",
			Description: "Warn a user",
			Options:     []*discordgo.ApplicationCommandOption{targetOption(), reasonOption()},
		},
		{
			Name:        "mute",
			Description: "Mute a user",
			Options:     append([]*discordgo.ApplicationCommandOption{targetOption(), reasonOption()}, durationOptions()...),
		},
		{
			Name:        "unmute",
			Description: "Unmute a user",
			Options:     []*discordgo.ApplicationCommandOption{targetOption()},
		},
		{
			Name:        "kick",
			Description: "Kick a user from the server",
			Options:     []*discordgo.ApplicationCommandOption{targetOption(), reasonOption()},
		},
		{
			Name:        "ban",
			Description: "Ban a user from the server",
			Options:     append([]*discordgo.ApplicationCommandOption{targetOption(), reasonOption()}, durationOptions()...),
		},
		{
			Name:        "unban",
			Description: "Lift a user's ban",
			Options:     []*discordgo.ApplicationCommandOption{targetOption()},
		},
		{
			Name:        "softban",
			Description: "Kick a user and delete their recent messages",
			Options: []*discordgo.ApplicationCommandOption{
				targetOption(),
				reasonOption(),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "days",
					Description: "Days of messages to delete (1-7)",
				},
			},
		},
		{
			Name:        "hardban",
			Description: "Permanently ban a user and delete a week of their messages",
			Options:     []*discordgo.ApplicationCommandOption{targetOption(), reasonOption()},
		},
		{
			Name:        "remind",
			Description: "Set a reminder",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "What to be reminded of",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "How long from now",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "unit",
					Description: "Duration unit",
					Choices:     durationUnits,
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := interaction.ApplicationCommandData()

	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}
	invoker := interactionUser(interaction)
	if invoker == nil {
		return
	}

	required, ok := commandPermissions[data.Name]
	if !ok {
		return
	}
	if required != 0 {
		perms, err := b.memberPermissions(interaction.GuildID, invoker.ID)
		if err != nil {
			b.respond(session, interaction, "Something went wrong, try again later.", true)
			return
		}
		if perms&required == 0 && perms&discordgo.PermissionAdministrator == 0 {
			b.respond(session, interaction, "You don't have enough permissions to use this command.", true)
			return
		}
	}

	ctx := context.Background()
	switch data.Name {
	case "warn", "mute", "kick", "ban", "softban", "hardban":
		b.handleModAction(ctx, session, interaction, data)
	case "unmute":
		b.handleUnmute(ctx, session, interaction, data)
	case "unban":
		b.handleUnban(ctx, session, interaction, data)
	case "remind":
		b.handleRemind(ctx, session, interaction, data)
	}
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

type commandOptions map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsByName(data discordgo.ApplicationCommandInteractionData) commandOptions {
	opts := make(commandOptions, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}
	return opts
}

func (o commandOptions) stringValue(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (o commandOptions) intValue(name string) int {
	if opt, ok := o[name]; ok {
		return int(opt.IntValue())
	}
	return 0
}

func parseUnit(value string) storage.DurationUnit {
	switch value {
	case "seconds":
		return storage.UnitSeconds
	case "hours":
		return storage.UnitHours
	case "days":
		return storage.UnitDays
	default:
		return storage.UnitMinutes
	}
}

// checkTarget rejects the usual self-inflicted mistakes before the
// pipeline runs.
func (b *Bot) checkTarget(session *discordgo.Session, interaction *discordgo.InteractionCreate, target *discordgo.User) bool {
	if target == nil {
		b.respond(session, interaction, "I couldn't find that user.", true)
		return false
	}
	invoker := interactionUser(interaction)
	if invoker != nil && target.ID == invoker.ID {
		b.respond(session, interaction, "You can't do that to yourself, you know.", true)
		return false
	}
	if session.State.User != nil && target.ID == session.State.User.ID {
		b.respond(session, interaction, "Now that would be a weird way to go.", true)
		return false
	}
	guild, err := b.cache.Guild(interaction.GuildID)
	if err == nil && guild.OwnerID == target.ID {
		b.respond(session, interaction, "You can't moderate the server owner.", true)
		return false
	}
	return true
}

func (b *Bot) handleModAction(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	opts := optionsByName(data)
	target := resolveTargetUser(session, opts)
	if !b.checkTarget(session, interaction, target) {
		return
	}
	invoker := interactionUser(interaction)

	req := mod.ActionRequest{
		GuildID:   interaction.GuildID,
		Moderator: mod.User{ID: invoker.ID, Username: invoker.Username},
		Target:    mod.User{ID: target.ID, Username: target.Username},
		Reason:    opts.stringValue("reason"),
	}

	var kind storage.ActionKind
	var err error
	switch data.Name {
	case "warn":
		kind = storage.ActionWarn
		_, err = b.services.IssueWarn(ctx, req)
	case "mute":
		kind = storage.ActionMute
		req.Duration = b.commandDuration(opts, kind)
		_, err = b.services.IssueMute(ctx, req)
	case "kick":
		kind = storage.ActionKick
		_, err = b.services.IssueKick(ctx, req)
	case "ban":
		kind = storage.ActionBan
		req.Duration = b.commandDuration(opts, kind)
		_, err = b.services.IssueBan(ctx, req)
	case "softban":
		kind = storage.ActionSoftban
		_, err = b.services.IssueSoftbanDays(ctx, req, opts.intValue("days"))
	case "hardban":
		kind = storage.ActionHardban
		_, err = b.services.IssueHardban(ctx, req)
	}

	b.respondActionResult(session, interaction, kind, target, err)
}

func (b *Bot) commandDuration(opts commandOptions, kind storage.ActionKind) time.Duration {
	amount := opts.intValue("duration")
	if amount <= 0 {
		return 0
	}
	duration, ok := b.settings.ActionDuration(kind, parseUnit(opts.stringValue("unit")), amount)
	if !ok {
		return 0
	}
	return duration
}

func resolveTargetUser(session *discordgo.Session, opts commandOptions) *discordgo.User {
	opt, ok := opts["user"]
	if !ok {
		return nil
	}
	return opt.UserValue(session)
}

func (b *Bot) respondActionResult(session *discordgo.Session, interaction *discordgo.InteractionCreate, kind storage.ActionKind, target *discordgo.User, err error) {
	var modLogErr *mod.ModLogError
	switch {
	case err == nil:
		b.respond(session, interaction,
			fmt.Sprintf("Done, %s has been issued against %s.", kind, target.Username), false)
	case errors.As(err, &modLogErr):
		b.respond(session, interaction,
			fmt.Sprintf("Done, %s has been issued against %s, but I couldn't report it: %s.", kind, target.Username, modLogErr.Error()), false)
	default:
		b.respond(session, interaction, b.actionErrorMessage(err), true)
	}
}

func (b *Bot) actionErrorMessage(err error) string {
	switch {
	case errors.Is(err, mod.ErrUnauthorized):
		return "I don't have enough permissions to do that."
	case errors.Is(err, mod.ErrUnauthorizedFetchRoles):
		return "I can't list this server's roles; give me the Manage Roles permission."
	case errors.Is(err, mod.ErrUnauthorizedCreateRole):
		return "I couldn't create the Muted role; give me the Manage Roles permission."
	case errors.Is(err, mod.ErrUnauthorizedChannelOverride):
		return "I couldn't set up channel overrides for the Muted role."
	case errors.Is(err, mod.ErrUserNotBanned):
		return "That user isn't banned."
	case errors.Is(err, mod.ErrRoleNotFound):
		return "This server has no Muted role, so there is nothing to lift."
	case errors.Is(err, mod.ErrReasonTooLong):
		return "That reason is too long, keep it under 512 characters."
	default:
		b.logger.Error("command failed", zap.Error(err))
		return "Something went wrong, try again later."
	}
}

func (b *Bot) handleUnmute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	opts := optionsByName(data)
	target := resolveTargetUser(session, opts)
	if target == nil {
		b.respond(session, interaction, "I couldn't find that user.", true)
		return
	}
	err := b.services.Unmute(ctx, interaction.GuildID, mod.User{ID: target.ID, Username: target.Username})
	if err != nil {
		b.respond(session, interaction, b.actionErrorMessage(err), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Done, %s is no longer muted.", target.Username), false)
}

func (b *Bot) handleUnban(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	opts := optionsByName(data)
	target := resolveTargetUser(session, opts)
	if target == nil {
		b.respond(session, interaction, "I couldn't find that user.", true)
		return
	}
	err := b.services.Unban(ctx, interaction.GuildID, mod.User{ID: target.ID, Username: target.Username})
	if err != nil {
		b.respond(session, interaction, b.actionErrorMessage(err), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Done, %s is no longer banned.", target.Username), false)
}

func (b *Bot) handleRemind(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	opts := optionsByName(data)
	invoker := interactionUser(interaction)

	message := opts.stringValue("message")
	amount := opts.intValue("duration")
	if amount <= 0 {
		amount = 10
	}
	var delta time.Duration
	switch parseUnit(opts.stringValue("unit")) {
	case storage.UnitSeconds:
		delta = time.Duration(amount) * time.Second
	case storage.UnitHours:
		delta = time.Duration(amount) * time.Hour
	case storage.UnitDays:
		delta = time.Duration(amount) * 24 * time.Hour
	default:
		delta = time.Duration(amount) * time.Minute
	}

	now := time.Now()
	reminder := &storage.Reminder{
		UserID:     invoker.ID,
		ChannelID:  interaction.ChannelID,
		GuildID:    interaction.GuildID,
		CreateTime: now.Unix(),
		RemindTime: now.Add(delta).Unix(),
		Message:    message,
	}
	if _, err := b.store.InsertReminder(ctx, reminder); err != nil {
		b.logger.Error("reminder insert failed", zap.Error(err))
		b.respond(session, interaction, "Something went wrong, try again later.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Okay, I'll remind you <t:%d:R>.", reminder.RemindTime), true)
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}
