// Package automod screens guild messages through a chain of filters.
// Each filter deletes the offending message and dispatches the
// configured moderation action; staff members are exempt upstream.
package automod

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/mod"
	"warden/internal/settings"
	"warden/internal/storage"
)

// Message is the slice of a gateway message the filters care about.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Author    mod.User
	Content   string
}

// Handler is a single filter. A true return means the message was
// flagged and handled; the chain stops there.
type Handler interface {
	Name() string
	Handle(ctx context.Context, msg *Message, setting *storage.Setting) (bool, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// staffPermissions exempts holders from all filters.
const staffPermissions = discordgo.PermissionAdministrator |
	discordgo.PermissionBanMembers |
	discordgo.PermissionKickMembers |
	discordgo.PermissionManageRoles |
	discordgo.PermissionManageMessages

// IsStaff reports whether a permission set marks its holder as
// moderation staff.
func IsStaff(perms int64) bool {
	return perms&staffPermissions != 0
}

// actions is the shared toolkit filters punish through.
type actions struct {
	services *mod.Services
	settings *settings.Resolver
	enforcer mod.Enforcer
	logger   *zap.Logger
}

// deleteMessage removes the flagged message. Missing permissions are
// tolerated; the action still fires.
func (a *actions) deleteMessage(msg *Message) {
	err := a.enforcer.DeleteMessage(msg.ChannelID, msg.ID)
	if err == nil {
		return
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil &&
		restErr.Message.Code == discordgo.ErrCodeMissingPermissions {
		return
	}
	a.logger.Warn("could not delete flagged message",
		zap.String("guild_id", msg.GuildID),
		zap.String("channel_id", msg.ChannelID),
		zap.Error(err))
}

// punish dispatches the configured action against the author.
func (a *actions) punish(ctx context.Context, msg *Message, kind storage.ActionKind, unit storage.DurationUnit, amount int, reason string) {
	duration, _ := a.settings.ActionDuration(kind, unit, amount)
	a.services.Dispatch(ctx, kind, msg.GuildID, msg.Author, reason, duration, 0)
}

// Chain runs messages through the filters in order.
type Chain struct {
	handlers []Handler
	settings *settings.Resolver
	logger   *zap.Logger
}

func NewChain(services *mod.Services, resolver *settings.Resolver, enforcer mod.Enforcer, defaultWords []string, logger *zap.Logger) *Chain {
	return newChainWithClock(services, resolver, enforcer, defaultWords, logger, realClock{})
}

func newChainWithClock(services *mod.Services, resolver *settings.Resolver, enforcer mod.Enforcer, defaultWords []string, logger *zap.Logger, clock Clock) *Chain {
	shared := &actions{services: services, settings: resolver, enforcer: enforcer, logger: logger}
	return &Chain{
		handlers: []Handler{
			newSpamFilter(shared, clock),
			newInviteFilter(shared),
			newWordFilter(shared, defaultWords),
		},
		settings: resolver,
		logger:   logger,
	}
}

// HandleMessage runs the filters. The first filter to flag the
// message wins.
func (c *Chain) HandleMessage(ctx context.Context, msg *Message) {
	setting := c.settings.Get(ctx, msg.GuildID)
	for _, handler := range c.handlers {
		flagged, err := handler.Handle(ctx, msg, setting)
		if err != nil {
			c.logger.Warn("message filter failed",
				zap.String("filter", handler.Name()),
				zap.String("guild_id", msg.GuildID),
				zap.Error(err))
			continue
		}
		if flagged {
			return
		}
	}
}
