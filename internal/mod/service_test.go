package mod

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/config"
	"warden/internal/settings"
	"warden/internal/storage"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func restError(code int) error {
	return &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: code}}
}

type banCall struct {
	guildID, userID, reason string
	deleteDays              int
}

type roleCall struct {
	guildID, userID, roleID string
}

type fakeEnforcer struct {
	banErr, unbanErr, kickErr, addRoleErr error
	dmErr, sendEmbedErr, createRoleErr    error
	overrideErr                           error

	bans      []banCall
	unbans    []string
	kicks     []string
	added     []roleCall
	removed   []roleCall
	created   []string
	overrides []string
	dms       []string
	embeds    []string
}

func (f *fakeEnforcer) BanUser(guildID, userID, reason string, deleteDays int) error {
	if f.banErr != nil {
		return f.banErr
	}
	f.bans = append(f.bans, banCall{guildID, userID, reason, deleteDays})
	return nil
}

func (f *fakeEnforcer) UnbanUser(guildID, userID string) error {
	if f.unbanErr != nil {
		return f.unbanErr
	}
	f.unbans = append(f.unbans, userID)
	return nil
}

func (f *fakeEnforcer) KickUser(guildID, userID, reason string) error {
	if f.kickErr != nil {
		return f.kickErr
	}
	f.kicks = append(f.kicks, userID)
	return nil
}

func (f *fakeEnforcer) AddRole(guildID, userID, roleID string) error {
	if f.addRoleErr != nil {
		return f.addRoleErr
	}
	f.added = append(f.added, roleCall{guildID, userID, roleID})
	return nil
}

func (f *fakeEnforcer) RemoveRole(guildID, userID, roleID string) error {
	f.removed = append(f.removed, roleCall{guildID, userID, roleID})
	return nil
}

func (f *fakeEnforcer) CreateRole(guildID, name string) (*discordgo.Role, error) {
	if f.createRoleErr != nil {
		return nil, f.createRoleErr
	}
	f.created = append(f.created, name)
	return &discordgo.Role{ID: "muted-role", Name: name}, nil
}

func (f *fakeEnforcer) DenySendOverride(channelID, roleID string) error {
	if f.overrideErr != nil {
		return f.overrideErr
	}
	f.overrides = append(f.overrides, channelID)
	return nil
}

func (f *fakeEnforcer) SendDM(userID string, embed *discordgo.MessageEmbed) error {
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms = append(f.dms, userID)
	return nil
}

func (f *fakeEnforcer) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	if f.sendEmbedErr != nil {
		return f.sendEmbedErr
	}
	f.embeds = append(f.embeds, channelID)
	return nil
}

func (f *fakeEnforcer) DeleteMessage(channelID, messageID string) error { return nil }

type fakeGuilds struct {
	roles    []*discordgo.Role
	channels []*discordgo.Channel
	rolesErr error
}

func (f *fakeGuilds) Roles(guildID string) ([]*discordgo.Role, error) {
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return f.roles, nil
}

func (f *fakeGuilds) Channels(guildID string) ([]*discordgo.Channel, error) {
	return f.channels, nil
}

func (f *fakeGuilds) InvalidateRoles(guildID string) {}

func newTestServices(t *testing.T) (*Services, *fakeEnforcer, *fakeGuilds, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := zap.NewNop()
	resolver := settings.NewResolver(store, logger)
	enforcer := &fakeEnforcer{}
	guilds := &fakeGuilds{
		roles: []*discordgo.Role{{ID: "muted-role", Name: "Muted"}},
	}
	services := NewServices(store, resolver, guilds, enforcer, config.EmbedColors{}, logger)
	services.clock = &fakeClock{now: time.Unix(5000, 0)}
	services.SetBotUser(User{ID: "bot", Username: "warden"})
	return services, enforcer, guilds, store
}

var (
	mod1  = User{ID: "mod1", Username: "moderator"}
	user1 = User{ID: "user1", Username: "target"}
)

func TestWarnRecordsAndNotifies(t *testing.T) {
	services, enforcer, _, store := newTestServices(t)
	ctx := context.Background()

	warn, err := services.IssueWarn(ctx, ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Reason: "spamming",
	})
	if err != nil {
		t.Fatalf("issue warn: %v", err)
	}
	if warn.ID == 0 {
		t.Fatal("warn not persisted")
	}
	if warn.Reason != "spamming" {
		t.Fatalf("reason = %q", warn.Reason)
	}
	if len(enforcer.dms) != 1 || enforcer.dms[0] != "user1" {
		t.Fatalf("dms = %v", enforcer.dms)
	}
	count, err := store.CountGuildWarns(ctx, "guild1")
	if err != nil || count != 1 {
		t.Fatalf("count = %d, err = %v", count, err)
	}
}

func TestWarnDMFailureNotFatal(t *testing.T) {
	services, enforcer, _, _ := newTestServices(t)
	enforcer.dmErr = restError(50007)

	warn, err := services.IssueWarn(context.Background(), ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1,
	})
	if err != nil {
		t.Fatalf("issue warn: %v", err)
	}
	if warn.Reason != "No reason specified" {
		t.Fatalf("default reason = %q", warn.Reason)
	}
}

func TestReasonTooLong(t *testing.T) {
	services, _, _, _ := newTestServices(t)

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	_, err := services.IssueWarn(context.Background(), ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Reason: string(long),
	})
	if !errors.Is(err, ErrReasonTooLong) {
		t.Fatalf("expected ErrReasonTooLong, got %v", err)
	}
}

func TestWarnThresholdEscalatesToMute(t *testing.T) {
	services, enforcer, _, store := newTestServices(t)
	ctx := context.Background()

	setting := services.settings.Get(ctx, "guild1")
	setting.WarnThreshold = 3
	setting.WarnAction = storage.ActionMute
	setting.WarnActionDuration = 30
	setting.WarnActionDurationUnit = storage.UnitMinutes
	if err := services.settings.Update(ctx, setting); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := services.IssueWarn(ctx, ActionRequest{
			GuildID: "guild1", Moderator: mod1, Target: user1, Reason: "again",
		}); err != nil {
			t.Fatalf("issue warn %d: %v", i, err)
		}
	}

	if len(enforcer.added) != 1 {
		t.Fatalf("role adds = %v, want one mute", enforcer.added)
	}
	active, err := store.GetActiveMutes(ctx, "guild1", "user1")
	if err != nil {
		t.Fatalf("get active mutes: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active mutes = %d, want 1", len(active))
	}
	if active[0].ModeratorUserID != "bot" {
		t.Fatalf("escalation moderator = %q, want bot", active[0].ModeratorUserID)
	}
	if !active[0].Expires {
		t.Fatal("escalated mute should carry the configured duration")
	}
}

func TestEscalationCycleTerminates(t *testing.T) {
	services, _, _, store := newTestServices(t)
	ctx := context.Background()

	// Every warn escalates to another warn. The depth guard has to
	// stop the chain.
	setting := services.settings.Get(ctx, "guild1")
	setting.WarnThreshold = 1
	setting.WarnAction = storage.ActionWarn
	if err := services.settings.Update(ctx, setting); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	if _, err := services.IssueWarn(ctx, ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Reason: "loop",
	}); err != nil {
		t.Fatalf("issue warn: %v", err)
	}

	count, err := store.CountGuildWarns(ctx, "guild1")
	if err != nil {
		t.Fatalf("count warns: %v", err)
	}
	if count != maxEscalationDepth {
		t.Fatalf("warns after cycle = %d, want %d", count, maxEscalationDepth)
	}
}

func TestBanUnauthorizedLeavesNoRecord(t *testing.T) {
	services, enforcer, _, store := newTestServices(t)
	enforcer.banErr = restError(discordgo.ErrCodeMissingPermissions)
	ctx := context.Background()

	_, err := services.IssueBan(ctx, ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Reason: "raid",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	count, err := store.CountGuildBans(ctx, "guild1")
	if err != nil || count != 0 {
		t.Fatalf("ban records = %d, err = %v, want none", count, err)
	}
}

func TestModLogFailureIsCaveat(t *testing.T) {
	services, enforcer, _, store := newTestServices(t)
	ctx := context.Background()

	setting := services.settings.Get(ctx, "guild1")
	setting.ModLog = true
	setting.ModLogChannelID = "gone-channel"
	if err := services.settings.Update(ctx, setting); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	enforcer.sendEmbedErr = restError(discordgo.ErrCodeUnknownChannel)

	warn, err := services.IssueWarn(ctx, ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Reason: "spam",
	})
	var modLogErr *ModLogError
	if !errors.As(err, &modLogErr) {
		t.Fatalf("expected *ModLogError, got %v", err)
	}
	if modLogErr.Failure != ModLogChannelMissing {
		t.Fatalf("failure = %d, want channel missing", modLogErr.Failure)
	}
	if warn == nil || warn.ID == 0 {
		t.Fatal("warn should persist despite mod log failure")
	}
	count, _ := store.CountGuildWarns(ctx, "guild1")
	if count != 1 {
		t.Fatalf("warn count = %d, want 1", count)
	}
}

func TestMuteInvalidatesPrevious(t *testing.T) {
	services, _, _, store := newTestServices(t)
	ctx := context.Background()

	if _, err := services.IssueMute(ctx, ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Duration: time.Hour,
	}); err != nil {
		t.Fatalf("first mute: %v", err)
	}
	if _, err := services.IssueMute(ctx, ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1,
	}); err != nil {
		t.Fatalf("second mute: %v", err)
	}

	active, err := store.GetActiveMutes(ctx, "guild1", "user1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active mutes = %d, want 1", len(active))
	}
	if active[0].Expires {
		t.Fatal("surviving mute should be the indefinite one")
	}
}

func TestMutedRoleLazySetup(t *testing.T) {
	services, enforcer, guilds, _ := newTestServices(t)
	guilds.roles = nil
	guilds.channels = []*discordgo.Channel{{ID: "chan1"}, {ID: "chan2"}}

	if _, err := services.IssueMute(context.Background(), ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1,
	}); err != nil {
		t.Fatalf("issue mute: %v", err)
	}
	if len(enforcer.created) != 1 || enforcer.created[0] != "Muted" {
		t.Fatalf("created roles = %v", enforcer.created)
	}
	if len(enforcer.overrides) != 2 {
		t.Fatalf("overrides = %v, want both channels", enforcer.overrides)
	}
}

func TestMutedRoleSetupUnauthorized(t *testing.T) {
	services, enforcer, guilds, _ := newTestServices(t)
	guilds.roles = nil
	enforcer.createRoleErr = restError(discordgo.ErrCodeMissingPermissions)

	_, err := services.IssueMute(context.Background(), ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1,
	})
	if !errors.Is(err, ErrUnauthorizedCreateRole) {
		t.Fatalf("expected ErrUnauthorizedCreateRole, got %v", err)
	}
}

func TestUnmuteRemovesRole(t *testing.T) {
	services, enforcer, _, store := newTestServices(t)
	ctx := context.Background()

	if _, err := services.IssueMute(ctx, ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1,
	}); err != nil {
		t.Fatalf("issue mute: %v", err)
	}
	if err := services.Unmute(ctx, "guild1", user1); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	if len(enforcer.removed) != 1 {
		t.Fatalf("role removals = %v", enforcer.removed)
	}
	active, _ := store.GetActiveMutes(ctx, "guild1", "user1")
	if len(active) != 0 {
		t.Fatalf("active mutes after unmute = %d, want 0", len(active))
	}
}

func TestUnmuteWithoutMutedRole(t *testing.T) {
	services, _, guilds, _ := newTestServices(t)
	guilds.roles = nil

	err := services.Unmute(context.Background(), "guild1", user1)
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestSoftbanBansAndUnbans(t *testing.T) {
	services, enforcer, _, _ := newTestServices(t)

	softban, err := services.IssueSoftbanDays(context.Background(), ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Reason: "spam",
	}, 3)
	if err != nil {
		t.Fatalf("issue softban: %v", err)
	}
	if len(enforcer.bans) != 1 || enforcer.bans[0].deleteDays != 3 {
		t.Fatalf("bans = %+v", enforcer.bans)
	}
	if len(enforcer.unbans) != 1 {
		t.Fatalf("unbans = %v", enforcer.unbans)
	}
	if softban.DeleteDays != 3 {
		t.Fatalf("delete days = %d", softban.DeleteDays)
	}
}

func TestHardbanPurgesWeek(t *testing.T) {
	services, enforcer, _, _ := newTestServices(t)

	if _, err := services.IssueHardban(context.Background(), ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Reason: "bot account",
	}); err != nil {
		t.Fatalf("issue hardban: %v", err)
	}
	if len(enforcer.bans) != 1 || enforcer.bans[0].deleteDays != hardbanDeleteDays {
		t.Fatalf("bans = %+v", enforcer.bans)
	}
	if len(enforcer.unbans) != 0 {
		t.Fatal("hardban must not unban")
	}
}

func TestUnbanUnknownBan(t *testing.T) {
	services, enforcer, _, _ := newTestServices(t)
	enforcer.unbanErr = restError(discordgo.ErrCodeUnknownBan)

	err := services.Unban(context.Background(), "guild1", user1)
	if !errors.Is(err, ErrUserNotBanned) {
		t.Fatalf("expected ErrUserNotBanned, got %v", err)
	}
}

func TestPardonIsFinal(t *testing.T) {
	services, _, _, _ := newTestServices(t)
	ctx := context.Background()

	warn, err := services.IssueWarn(ctx, ActionRequest{
		GuildID: "guild1", Moderator: mod1, Target: user1, Reason: "spam",
	})
	if err != nil {
		t.Fatalf("issue warn: %v", err)
	}
	if err := services.UpdateWarn(ctx, warn.ID, "spam", true); err != nil {
		t.Fatalf("pardon: %v", err)
	}
	if err := services.UpdateWarn(ctx, warn.ID, "spam", false); !errors.Is(err, ErrReversalFinal) {
		t.Fatalf("expected ErrReversalFinal, got %v", err)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	services, _, _, _ := newTestServices(t)
	if err := services.UpdateWarn(context.Background(), 999, "x", false); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestDispatchDepthGuard(t *testing.T) {
	services, enforcer, _, _ := newTestServices(t)

	services.Dispatch(context.Background(), storage.ActionBan, "guild1", user1, "looped", 0, maxEscalationDepth)
	if len(enforcer.bans) != 0 {
		t.Fatal("dispatch at max depth must be a no-op")
	}
}
