package cache

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrStaleRoles means a member references a role the cached role list
// does not contain. Callers should invalidate and retry.
var ErrStaleRoles = errors.New("cache: member references unknown role")

// GetPermissions computes a member's guild-wide permission set from
// cached data. The guild owner and administrators get everything.
func (c *GuildCache) GetPermissions(guildID, userID string) (int64, error) {
	guild, err := c.Guild(guildID)
	if err != nil {
		return 0, err
	}
	if guild.OwnerID == userID {
		return discordgo.PermissionAll, nil
	}

	roles, err := c.Roles(guildID)
	if err != nil {
		return 0, err
	}
	member, err := c.Member(guildID, userID)
	if err != nil {
		return 0, err
	}

	byID := make(map[string]*discordgo.Role, len(roles))
	var perms int64
	for _, role := range roles {
		byID[role.ID] = role
		// @everyone uses the guild ID as its role ID.
		if role.ID == guildID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		role, ok := byID[roleID]
		if !ok {
			return 0, ErrStaleRoles
		}
		perms |= role.Permissions
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll, nil
	}
	return perms, nil
}
