// Package sweeper runs the periodic reaping loops: expired mutes and
// bans get lifted, holding-room joins get their role, and due
// reminders get delivered.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/config"
	"warden/internal/mod"
	"warden/internal/settings"
	"warden/internal/storage"
)

const mutedRoleName = "Muted"

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Runner owns the sweep loops. Each loop ticks on its own interval
// and stops when Stop closes the done channel.
type Runner struct {
	store    *storage.Store
	settings *settings.Resolver
	guilds   mod.GuildSource
	enforcer mod.Enforcer
	logger   *zap.Logger
	clock    Clock
	cfg      config.SweeperConfig

	done chan struct{}
	wg   sync.WaitGroup
}

func NewRunner(store *storage.Store, resolver *settings.Resolver, guilds mod.GuildSource, enforcer mod.Enforcer, cfg config.SweeperConfig, logger *zap.Logger) *Runner {
	return &Runner{
		store:    store,
		settings: resolver,
		guilds:   guilds,
		enforcer: enforcer,
		logger:   logger,
		clock:    realClock{},
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loops. Intervals of zero or below disable
// the corresponding loop.
func (r *Runner) Start() {
	r.startLoop(r.cfg.JoinSeconds, r.reapJoins)
	r.startLoop(r.cfg.MuteSeconds, r.reapMutes)
	r.startLoop(r.cfg.BanSeconds, r.reapBans)
	r.startLoop(r.cfg.ReminderSeconds, r.reapReminders)
}

func (r *Runner) startLoop(seconds int, sweep func(context.Context)) {
	if seconds <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(time.Duration(seconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				sweep(context.Background())
			}
		}
	}()
}

// Stop halts the loops and waits for in-flight sweeps.
func (r *Runner) Stop() {
	close(r.done)
	r.wg.Wait()
}

// validSnowflake rejects the obviously malformed ids that sometimes
// land in the joins table when guilds disappear mid-write.
func validSnowflake(id string) bool {
	if len(id) < 15 || len(id) > 21 {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// reapJoins grants the holding-room role to members whose probation
// elapsed. Malformed rows are dropped rather than retried forever.
func (r *Runner) reapJoins(ctx context.Context) {
	if r.enforcer == nil || r.settings == nil {
		return
	}
	joins, err := r.store.GetExpiredJoins(ctx, r.clock.Now().Unix())
	if err != nil {
		r.logger.Warn("join sweep query failed", zap.Error(err))
		return
	}
	for _, join := range joins {
		if !validSnowflake(join.GuildID) || !validSnowflake(join.UserID) {
			r.logger.Warn("dropping malformed join row",
				zap.Int64("id", join.ID),
				zap.String("guild_id", join.GuildID),
				zap.String("user_id", join.UserID))
			if err := r.store.DeleteJoin(ctx, join.ID); err != nil {
				r.logger.Warn("could not delete join row", zap.Int64("id", join.ID), zap.Error(err))
			}
			continue
		}
		setting := r.settings.Get(ctx, join.GuildID)
		if setting.HoldingRoom && setting.HoldingRoomRoleID != "" {
			if err := r.enforcer.AddRole(join.GuildID, join.UserID, setting.HoldingRoomRoleID); err != nil {
				r.logger.Warn("holding room role grant failed",
					zap.String("guild_id", join.GuildID),
					zap.String("user_id", join.UserID),
					zap.Error(err))
			}
		}
		if err := r.store.DeleteJoin(ctx, join.ID); err != nil {
			r.logger.Warn("could not delete join row", zap.Int64("id", join.ID), zap.Error(err))
		}
	}
}

// reapMutes lifts expired mutes. The record is retired even when the
// muted role no longer exists so it does not haunt every sweep.
func (r *Runner) reapMutes(ctx context.Context) {
	if r.enforcer == nil || r.guilds == nil {
		return
	}
	mutes, err := r.store.GetExpiredMutes(ctx, r.clock.Now().Unix())
	if err != nil {
		r.logger.Warn("mute sweep query failed", zap.Error(err))
		return
	}
	for _, mute := range mutes {
		if role := r.findMutedRole(mute.GuildID); role != nil {
			if err := r.enforcer.RemoveRole(mute.GuildID, mute.UserID, role.ID); err != nil {
				r.logger.Warn("unmute role removal failed",
					zap.String("guild_id", mute.GuildID),
					zap.String("user_id", mute.UserID),
					zap.Error(err))
			}
		}
		if err := r.store.InvalidateMute(ctx, mute.ID); err != nil {
			r.logger.Warn("could not invalidate mute", zap.Int64("id", mute.ID), zap.Error(err))
		}
	}
}

func (r *Runner) findMutedRole(guildID string) *discordgo.Role {
	roles, err := r.guilds.Roles(guildID)
	if err != nil {
		r.logger.Warn("could not list roles for unmute sweep",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return nil
	}
	for _, role := range roles {
		if role.Name == mutedRoleName {
			return role
		}
	}
	return nil
}

// reapBans lifts expired temporary bans.
func (r *Runner) reapBans(ctx context.Context) {
	if r.enforcer == nil {
		return
	}
	bans, err := r.store.GetExpiredBans(ctx, r.clock.Now().Unix())
	if err != nil {
		r.logger.Warn("ban sweep query failed", zap.Error(err))
		return
	}
	for _, ban := range bans {
		if err := r.enforcer.UnbanUser(ban.GuildID, ban.UserID); err != nil {
			r.logger.Warn("unban failed",
				zap.String("guild_id", ban.GuildID),
				zap.String("user_id", ban.UserID),
				zap.Error(err))
		}
		if err := r.store.InvalidateBan(ctx, ban.ID); err != nil {
			r.logger.Warn("could not invalidate ban", zap.Int64("id", ban.ID), zap.Error(err))
		}
	}
}

// reapReminders delivers due reminders to their channel, falling back
// to a DM. Delivery failures do not keep the reminder alive.
func (r *Runner) reapReminders(ctx context.Context) {
	if r.enforcer == nil {
		return
	}
	reminders, err := r.store.GetExpiredReminders(ctx, r.clock.Now().Unix())
	if err != nil {
		r.logger.Warn("reminder sweep query failed", zap.Error(err))
		return
	}
	for _, reminder := range reminders {
		embed := &discordgo.MessageEmbed{
			Title:       "Reminder",
			Description: "<@" + reminder.UserID + "> " + reminder.Message,
		}
		if err := r.enforcer.SendEmbed(reminder.ChannelID, embed); err != nil {
			if dmErr := r.enforcer.SendDM(reminder.UserID, embed); dmErr != nil {
				r.logger.Debug("reminder delivery failed on both paths",
					zap.String("user_id", reminder.UserID),
					zap.Error(dmErr))
			}
		}
		if err := r.store.MarkReminded(ctx, reminder.ID); err != nil {
			r.logger.Warn("could not mark reminder delivered", zap.Int64("id", reminder.ID), zap.Error(err))
		}
	}
}
