package storage

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSettingLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetSetting(ctx, "guild1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	setting := DefaultSetting("guild1")
	if err := store.InsertSetting(ctx, setting); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetSetting(ctx, "guild1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HoldingRoomMinutes != 3 {
		t.Fatalf("holding room minutes = %d, want 3", got.HoldingRoomMinutes)
	}
	if got.WordFilterLevel != "low" {
		t.Fatalf("word filter level = %q, want low", got.WordFilterLevel)
	}

	got.WarnThreshold = 3
	got.WarnAction = ActionMute
	got.SpamFilter = true
	if err := store.UpdateSetting(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = store.GetSetting(ctx, "guild1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.WarnThreshold != 3 || got.WarnAction != ActionMute || !got.SpamFilter {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := store.DeleteSetting(ctx, "guild1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetSetting(ctx, "guild1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUpdateMissingSetting(t *testing.T) {
	store := newTestStore(t)
	setting := DefaultSetting("nope")
	if err := store.UpdateSetting(context.Background(), setting); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWarnCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.InsertWarn(ctx, &Warn{
			UserID: "user1", ModeratorUserID: "mod1", GuildID: "guild1",
			WarnTime: int64(100 + i), Reason: "spamming",
		})
		if err != nil {
			t.Fatalf("insert warn: %v", err)
		}
	}
	id, err := store.InsertWarn(ctx, &Warn{
		UserID: "user1", ModeratorUserID: "mod1", GuildID: "guild1",
		WarnTime: 200, Reason: "pardoned later",
	})
	if err != nil {
		t.Fatalf("insert warn: %v", err)
	}

	warn, err := store.GetWarn(ctx, id)
	if err != nil {
		t.Fatalf("get warn: %v", err)
	}
	warn.Pardoned = true
	if err := store.UpdateWarn(ctx, warn); err != nil {
		t.Fatalf("update warn: %v", err)
	}

	count, err := store.CountActionableWarns(ctx, "guild1", "user1")
	if err != nil {
		t.Fatalf("count actionable: %v", err)
	}
	if count != 3 {
		t.Fatalf("actionable warns = %d, want 3", count)
	}

	total, err := store.CountGuildWarns(ctx, "guild1")
	if err != nil {
		t.Fatalf("count guild: %v", err)
	}
	if total != 4 {
		t.Fatalf("guild warns = %d, want 4", total)
	}
}

func TestWarnPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := store.InsertWarn(ctx, &Warn{
			UserID: "user1", ModeratorUserID: "mod1", GuildID: "guild1",
			WarnTime: int64(i), Reason: "r",
		})
		if err != nil {
			t.Fatalf("insert warn: %v", err)
		}
	}

	page1, err := store.GetGuildWarns(ctx, "guild1", 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != PageSize {
		t.Fatalf("page 1 size = %d, want %d", len(page1), PageSize)
	}
	if page1[0].WarnTime != 14 {
		t.Fatalf("page 1 starts at warn_time %d, want newest first", page1[0].WarnTime)
	}

	page2, err := store.GetGuildWarns(ctx, "guild1", 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 5 {
		t.Fatalf("page 2 size = %d, want 5", len(page2))
	}

	// Out-of-range pages clamp rather than error.
	page0, err := store.GetGuildWarns(ctx, "guild1", 0)
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if len(page0) != PageSize {
		t.Fatalf("page 0 size = %d, want %d", len(page0), PageSize)
	}
}

func TestMuteSingleActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.InsertMute(ctx, &Mute{
		UserID: "user1", ModeratorUserID: "mod1", GuildID: "guild1",
		MuteTime: 100, ExpireTime: 200, Expires: true,
	})
	if err != nil {
		t.Fatalf("insert mute: %v", err)
	}

	if err := store.InvalidatePreviousMutes(ctx, "guild1", "user1"); err != nil {
		t.Fatalf("invalidate previous: %v", err)
	}
	second, err := store.InsertMute(ctx, &Mute{
		UserID: "user1", ModeratorUserID: "mod1", GuildID: "guild1",
		MuteTime: 150, ExpireTime: 0, Expires: false,
	})
	if err != nil {
		t.Fatalf("insert second mute: %v", err)
	}

	active, err := store.GetActiveMutes(ctx, "guild1", "user1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(active) != 1 || active[0].ID != second {
		t.Fatalf("active mutes = %+v, want only id %d", active, second)
	}

	old, err := store.GetMute(ctx, first)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if !old.Unmuted {
		t.Fatal("first mute should be invalidated")
	}
}

func TestExpiredMutes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expired, err := store.InsertMute(ctx, &Mute{
		UserID: "user1", GuildID: "guild1", MuteTime: 100, ExpireTime: 200, Expires: true,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.InsertMute(ctx, &Mute{
		UserID: "user2", GuildID: "guild1", MuteTime: 100, ExpireTime: 900, Expires: true,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.InsertMute(ctx, &Mute{
		UserID: "user3", GuildID: "guild1", MuteTime: 100, Expires: false,
	}); err != nil {
		t.Fatalf("insert indefinite: %v", err)
	}

	due, err := store.GetExpiredMutes(ctx, 500)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if len(due) != 1 || due[0].ID != expired {
		t.Fatalf("expired mutes = %+v, want only id %d", due, expired)
	}

	if err := store.InvalidateMute(ctx, expired); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	due, err = store.GetExpiredMutes(ctx, 500)
	if err != nil {
		t.Fatalf("get expired again: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expired mutes after invalidate = %+v, want none", due)
	}
}

func TestBanSingleActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.InsertBan(ctx, &Ban{
		UserID: "user1", ModeratorUserID: "mod1", GuildID: "guild1",
		BanTime: 100, ExpireTime: 500, Expires: true,
	})
	if err != nil {
		t.Fatalf("insert ban: %v", err)
	}
	if err := store.InvalidatePreviousBans(ctx, "guild1", "user1"); err != nil {
		t.Fatalf("invalidate previous: %v", err)
	}
	second, err := store.InsertBan(ctx, &Ban{
		UserID: "user1", ModeratorUserID: "mod1", GuildID: "guild1",
		BanTime: 150, Expires: false,
	})
	if err != nil {
		t.Fatalf("insert second ban: %v", err)
	}

	active, err := store.GetActiveBans(ctx, "guild1", "user1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(active) != 1 || active[0].ID != second {
		t.Fatalf("active bans = %+v, want only id %d", active, second)
	}

	old, err := store.GetBan(ctx, first)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if !old.Unbanned {
		t.Fatal("first ban should be invalidated")
	}
}

func TestJoinLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.InsertJoin(ctx, &Join{
		UserID: "user1", GuildID: "guild1", JoinTime: 100, AllowTime: 280,
	})
	if err != nil {
		t.Fatalf("insert join: %v", err)
	}

	due, err := store.GetExpiredJoins(ctx, 300)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("expired joins = %+v, want only id %d", due, id)
	}

	early, err := store.GetExpiredJoins(ctx, 200)
	if err != nil {
		t.Fatalf("get early: %v", err)
	}
	if len(early) != 0 {
		t.Fatalf("expired joins before allow_time = %+v, want none", early)
	}

	if err := store.DeleteJoin(ctx, id); err != nil {
		t.Fatalf("delete join: %v", err)
	}
	due, err = store.GetExpiredJoins(ctx, 300)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("joins after delete = %+v, want none", due)
	}
}

func TestReminderLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.InsertReminder(ctx, &Reminder{
		UserID: "user1", ChannelID: "chan1", GuildID: "guild1",
		CreateTime: 100, RemindTime: 200, Message: "check the oven",
	})
	if err != nil {
		t.Fatalf("insert reminder: %v", err)
	}

	due, err := store.GetExpiredReminders(ctx, 250)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if len(due) != 1 || due[0].Message != "check the oven" {
		t.Fatalf("expired reminders = %+v", due)
	}

	if err := store.MarkReminded(ctx, id); err != nil {
		t.Fatalf("mark reminded: %v", err)
	}
	due, err = store.GetExpiredReminders(ctx, 250)
	if err != nil {
		t.Fatalf("get after mark: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("reminders after mark = %+v, want none", due)
	}
}

func TestActionKindStrings(t *testing.T) {
	cases := []struct {
		kind ActionKind
		want string
	}{
		{ActionNothing, "nothing"},
		{ActionWarn, "warn"},
		{ActionMute, "mute"},
		{ActionKick, "kick"},
		{ActionBan, "ban"},
		{ActionSoftban, "softban"},
		{ActionHardban, "hardban"},
		{ActionKind(42), "unknown"},
	}
	for _, c := range cases {
		if got := c.kind.String(); got != c.want {
			t.Errorf("ActionKind(%d).String() = %q, want %q", c.kind, got, c.want)
		}
	}
	if !ActionMute.HasDuration() || !ActionBan.HasDuration() {
		t.Error("mute and ban should carry durations")
	}
	if ActionKick.HasDuration() || ActionHardban.HasDuration() {
		t.Error("kick and hardban should not carry durations")
	}
}
