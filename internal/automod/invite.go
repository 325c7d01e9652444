package automod

import (
	"context"
	"strings"

	"warden/internal/storage"
	"warden/internal/utils"
)

var inviteHosts = map[string]struct{}{
	"discord.gg":     {},
	"discord.com":    {},
	"discordapp.com": {},
	"discord.me":     {},
}

// inviteFilter removes messages carrying Discord invite links.
type inviteFilter struct {
	*actions
}

func newInviteFilter(shared *actions) *inviteFilter {
	return &inviteFilter{actions: shared}
}

func (f *inviteFilter) Name() string { return "invite" }

func (f *inviteFilter) Handle(ctx context.Context, msg *Message, setting *storage.Setting) (bool, error) {
	if !setting.InviteLinkRemover {
		return false, nil
	}
	if !containsInvite(msg.Content) {
		return false, nil
	}

	f.deleteMessage(msg)
	f.punish(ctx, msg, setting.InviteLinkRemoverAction,
		setting.InviteLinkRemoverActionDurationUnit, setting.InviteLinkRemoverActionDuration,
		"Posting invite links")
	return true, nil
}

func containsInvite(content string) bool {
	for _, raw := range utils.ExtractURLs(content) {
		host, err := utils.NormalizeHost(raw)
		if err != nil {
			continue
		}
		if _, ok := inviteHosts[host]; ok {
			if host == "discord.gg" || strings.Contains(strings.ToLower(raw), "/invite") {
				return true
			}
		}
	}
	// Lookalike hosts can defeat parsing; the raw substring catches
	// plain invite spam regardless.
	return strings.Contains(strings.ToLower(content), "discord.gg/")
}
