package bot

import "github.com/bwmarrin/discordgo"

// mutedDeny is the permission set withheld from the muted role in
// every channel.
const mutedDeny = discordgo.PermissionSendMessages |
	discordgo.PermissionAddReactions |
	discordgo.PermissionVoiceSpeak

// discordEnforcer adapts *discordgo.Session to the write surface the
// moderation pipeline and sweepers act through.
type discordEnforcer struct {
	session *discordgo.Session
}

func (e *discordEnforcer) BanUser(guildID, userID, reason string, deleteDays int) error {
	return e.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays)
}

func (e *discordEnforcer) UnbanUser(guildID, userID string) error {
	return e.session.GuildBanDelete(guildID, userID)
}

func (e *discordEnforcer) KickUser(guildID, userID, reason string) error {
	return e.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (e *discordEnforcer) AddRole(guildID, userID, roleID string) error {
	return e.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (e *discordEnforcer) RemoveRole(guildID, userID, roleID string) error {
	return e.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (e *discordEnforcer) CreateRole(guildID, name string) (*discordgo.Role, error) {
	return e.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name})
}

func (e *discordEnforcer) DenySendOverride(channelID, roleID string) error {
	return e.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, 0, mutedDeny)
}

func (e *discordEnforcer) SendDM(userID string, embed *discordgo.MessageEmbed) error {
	channel, err := e.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = e.session.ChannelMessageSendEmbed(channel.ID, embed)
	return err
}

func (e *discordEnforcer) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := e.session.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (e *discordEnforcer) DeleteMessage(channelID, messageID string) error {
	return e.session.ChannelMessageDelete(channelID, messageID)
}
