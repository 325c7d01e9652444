// Package bot wires the gateway session to the moderation pipeline:
// event handlers, slash commands, cache invalidation and the
// connection watchdog.
package bot

import (
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/automod"
	"warden/internal/cache"
	"warden/internal/config"
	"warden/internal/mod"
	"warden/internal/settings"
	"warden/internal/storage"
)

type Bot struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *storage.Store
	cache    *cache.GuildCache
	settings *settings.Resolver
	services *mod.Services
	chain    *automod.Chain
	session  *discordgo.Session
	enforcer *discordEnforcer

	lastEvent    atomic.Int64
	watchdogDone chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, guildCache *cache.GuildCache, resolver *settings.Resolver) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		cache:        guildCache,
		settings:     resolver,
		session:      session,
		enforcer:     &discordEnforcer{session: session},
		watchdogDone: make(chan struct{}),
	}
	return b, nil
}

// Enforcer exposes the Discord write surface. The moderation services
// and sweepers act through it, which is why they are constructed after
// the bot and attached separately.
func (b *Bot) Enforcer() mod.Enforcer {
	return b.enforcer
}

// Attach hands the bot the moderation services and filter chain built
// around its enforcer. Must be called before Start.
func (b *Bot) Attach(services *mod.Services, chain *automod.Chain) {
	b.services = services
	b.chain = chain
}

func (b *Bot) Start() error {
	// Any gateway traffic feeds the watchdog.
	b.session.AddHandler(func(session *discordgo.Session, event *discordgo.Event) {
		b.lastEvent.Store(time.Now().Unix())
	})

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onGuildMemberUpdate)
	b.session.AddHandler(b.onGuildUpdate)
	b.session.AddHandler(b.onGuildDelete)
	b.session.AddHandler(b.onRoleCreate)
	b.session.AddHandler(b.onRoleUpdate)
	b.session.AddHandler(b.onRoleDelete)
	b.session.AddHandler(b.onChannelCreate)
	b.session.AddHandler(b.onChannelUpdate)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onUserUpdate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	b.lastEvent.Store(time.Now().Unix())
	if b.cfg.Watchdog.Enabled {
		go b.watchGateway()
	}
	return nil
}

func (b *Bot) Close() {
	close(b.watchdogDone)
	if b.session != nil {
		_ = b.session.Close()
	}
}

// watchGateway kills the process when the gateway goes silent for too
// long. A supervisor restart is the recovery path; everything else in
// the bot degrades without exiting.
func (b *Bot) watchGateway() {
	silence := time.Duration(b.cfg.Watchdog.SilenceMinutes) * time.Minute
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-b.watchdogDone:
			return
		case <-ticker.C:
			last := time.Unix(b.lastEvent.Load(), 0)
			if elapsed := time.Since(last); elapsed > silence {
				b.logger.Fatal("gateway silent, exiting for supervisor restart",
					zap.Duration("elapsed", elapsed))
			}
		}
	}
}
