package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/automod"
	"warden/internal/cache"
	"warden/internal/mod"
	"warden/internal/storage"
)

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.cache.SetSession(session)
	b.services.SetBotUser(mod.User{
		ID:       session.State.User.ID,
		Username: session.State.User.Username,
	})
	if err := b.registerCommands(); err != nil {
		b.logger.Error("command registration failed", zap.Error(err))
	}
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}

	perms, err := b.memberPermissions(msg.GuildID, msg.Author.ID)
	if err != nil {
		b.logger.Debug("permission lookup failed, skipping filters",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.Author.ID),
			zap.Error(err))
		return
	}
	if automod.IsStaff(perms) {
		return
	}

	b.chain.HandleMessage(context.Background(), &automod.Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		Author:    mod.User{ID: msg.Author.ID, Username: msg.Author.Username},
		Content:   msg.Content,
	})
}

// memberPermissions resolves guild-wide permissions, retrying once
// after a role-cache invalidation when the member references roles
// the cache no longer knows.
func (b *Bot) memberPermissions(guildID, userID string) (int64, error) {
	perms, err := b.cache.GetPermissions(guildID, userID)
	if errors.Is(err, cache.ErrStaleRoles) {
		b.cache.InvalidateRoles(guildID)
		b.cache.InvalidateMember(guildID, userID)
		perms, err = b.cache.GetPermissions(guildID, userID)
	}
	return perms, err
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil || event.User.Bot {
		return
	}
	ctx := context.Background()
	setting := b.settings.Get(ctx, event.GuildID)

	if setting.HoldingRoom {
		now := time.Now().Unix()
		join := &storage.Join{
			UserID:    event.User.ID,
			GuildID:   event.GuildID,
			JoinTime:  now,
			AllowTime: now + int64(setting.HoldingRoomMinutes)*60,
		}
		if _, err := b.store.InsertJoin(ctx, join); err != nil {
			b.logger.Warn("holding room join insert failed",
				zap.String("guild_id", event.GuildID),
				zap.String("user_id", event.User.ID),
				zap.Error(err))
		}
	}

	if setting.WelcomeMessage && setting.WelcomeMessageChannelID != "" {
		text := setting.WelcomeMessageText
		if text == "" {
			text = "Welcome to the server, $user!"
		}
		text = strings.ReplaceAll(text, "$user", "<@"+event.User.ID+">")
		if _, err := session.ChannelMessageSend(setting.WelcomeMessageChannelID, text); err != nil {
			b.logger.Debug("welcome message failed",
				zap.String("guild_id", event.GuildID),
				zap.Error(err))
		}
	}
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	b.cache.InvalidateMember(event.GuildID, event.User.ID)
	// A pending holding-room row for a user who already left would
	// fail its role grant on every sweep.
	if err := b.store.DeleteGuildUserJoins(context.Background(), event.GuildID, event.User.ID); err != nil {
		b.logger.Warn("could not clear pending joins",
			zap.String("guild_id", event.GuildID),
			zap.String("user_id", event.User.ID),
			zap.Error(err))
	}
}

func (b *Bot) onGuildMemberUpdate(session *discordgo.Session, event *discordgo.GuildMemberUpdate) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	b.cache.InvalidateMember(event.GuildID, event.User.ID)
}

func (b *Bot) onGuildUpdate(session *discordgo.Session, event *discordgo.GuildUpdate) {
	if event.Guild == nil || event.Guild.ID == "" {
		return
	}
	b.cache.InvalidateGuild(event.Guild.ID)
}

func (b *Bot) onGuildDelete(session *discordgo.Session, event *discordgo.GuildDelete) {
	if event.Guild == nil || event.Guild.ID == "" {
		return
	}
	b.cache.InvalidateGuild(event.Guild.ID)
	b.cache.InvalidateRoles(event.Guild.ID)
	b.cache.InvalidateChannels(event.Guild.ID)
	b.settings.Invalidate(event.Guild.ID)
}

func (b *Bot) onRoleCreate(session *discordgo.Session, event *discordgo.GuildRoleCreate) {
	if event.GuildID != "" {
		b.cache.InvalidateRoles(event.GuildID)
	}
}

func (b *Bot) onRoleUpdate(session *discordgo.Session, event *discordgo.GuildRoleUpdate) {
	if event.GuildID != "" {
		b.cache.InvalidateRoles(event.GuildID)
	}
}

func (b *Bot) onRoleDelete(session *discordgo.Session, event *discordgo.GuildRoleDelete) {
	if event.GuildID != "" {
		b.cache.InvalidateRoles(event.GuildID)
	}
}

func (b *Bot) onChannelCreate(session *discordgo.Session, event *discordgo.ChannelCreate) {
	if event.Channel != nil && event.Channel.GuildID != "" {
		b.cache.InvalidateChannels(event.Channel.GuildID)
	}
}

func (b *Bot) onChannelUpdate(session *discordgo.Session, event *discordgo.ChannelUpdate) {
	if event.Channel != nil && event.Channel.GuildID != "" {
		b.cache.InvalidateChannels(event.Channel.GuildID)
	}
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	if event.Channel != nil && event.Channel.GuildID != "" {
		b.cache.InvalidateChannels(event.Channel.GuildID)
	}
}

func (b *Bot) onUserUpdate(session *discordgo.Session, event *discordgo.UserUpdate) {
	if event.User != nil {
		b.cache.InvalidateUser(event.User.ID)
	}
}
