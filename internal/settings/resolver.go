// Package settings resolves per-guild configuration, creating rows
// lazily and caching them briefly so every message does not cost a
// database round trip.
package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"warden/internal/storage"
)

const cacheTTL = 60 * time.Second

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cached struct {
	setting *storage.Setting
	addedAt time.Time
}

// Resolver hands out guild settings. Get never fails: a guild with no
// row gets one created from defaults, and a broken database read falls
// back to in-memory defaults.
type Resolver struct {
	store  *storage.Store
	logger *zap.Logger
	clock  Clock

	mu    sync.Mutex
	cache map[string]cached
}

func NewResolver(store *storage.Store, logger *zap.Logger) *Resolver {
	return newResolverWithClock(store, logger, realClock{})
}

func newResolverWithClock(store *storage.Store, logger *zap.Logger, clock Clock) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
		clock:  clock,
		cache:  make(map[string]cached),
	}
}

// Get returns the guild's settings, inserting the default row on first
// contact with a guild.
func (r *Resolver) Get(ctx context.Context, guildID string) *storage.Setting {
	r.mu.Lock()
	if entry, ok := r.cache[guildID]; ok {
		if r.clock.Now().Sub(entry.addedAt) <= cacheTTL {
			r.mu.Unlock()
			return entry.setting
		}
		delete(r.cache, guildID)
	}
	r.mu.Unlock()

	setting, err := r.store.GetSetting(ctx, guildID)
	if errors.Is(err, storage.ErrNotFound) {
		setting = storage.DefaultSetting(guildID)
		if insertErr := r.store.InsertSetting(ctx, setting); insertErr != nil {
			// Another writer may have won the race; re-read before
			// giving up on the database.
			setting, err = r.store.GetSetting(ctx, guildID)
			if err != nil {
				r.logger.Warn("settings insert and re-read failed, serving defaults",
					zap.String("guild_id", guildID),
					zap.Error(insertErr))
				return storage.DefaultSetting(guildID)
			}
		}
	} else if err != nil {
		r.logger.Warn("settings read failed, serving defaults",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return storage.DefaultSetting(guildID)
	}

	r.mu.Lock()
	r.cache[guildID] = cached{setting: setting, addedAt: r.clock.Now()}
	r.mu.Unlock()
	return setting
}

// Update persists the setting and drops the cached copy so the next
// read observes the new values.
func (r *Resolver) Update(ctx context.Context, setting *storage.Setting) error {
	if err := r.store.UpdateSetting(ctx, setting); err != nil {
		return err
	}
	r.Invalidate(setting.GuildID)
	return nil
}

// Reset deletes the guild's row; the next Get recreates defaults.
func (r *Resolver) Reset(ctx context.Context, guildID string) error {
	if err := r.store.DeleteSetting(ctx, guildID); err != nil {
		return err
	}
	r.Invalidate(guildID)
	return nil
}

func (r *Resolver) Invalidate(guildID string) {
	r.mu.Lock()
	delete(r.cache, guildID)
	r.mu.Unlock()
}

// ActionDuration converts a configured duration into a time.Duration.
// The second return is false when the action does not expire: kinds
// without durations, a zero amount, or an unrecognized unit.
func (r *Resolver) ActionDuration(kind storage.ActionKind, unit storage.DurationUnit, amount int) (time.Duration, bool) {
	if !kind.HasDuration() || amount <= 0 {
		return 0, false
	}
	switch unit {
	case storage.UnitSeconds:
		return time.Duration(amount) * time.Second, true
	case storage.UnitMinutes:
		return time.Duration(amount) * time.Minute, true
	case storage.UnitHours:
		return time.Duration(amount) * time.Hour, true
	case storage.UnitDays:
		return time.Duration(amount) * 24 * time.Hour, true
	default:
		r.logger.Warn("unrecognized duration unit, treating action as indefinite",
			zap.Int("unit", int(unit)))
		return 0, false
	}
}
