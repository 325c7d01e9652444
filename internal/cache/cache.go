// Package cache keeps short-lived copies of Discord entities so hot
// paths do not hammer the REST API. Entries expire on read and are
// evicted reactively when gateway events signal a change.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrSessionNotReady = errors.New("cache: discord session not attached yet")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fetcher is the REST surface the cache falls back to on a miss.
// *discordgo.Session satisfies it.
type Fetcher interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

const (
	idleTTL     = 2 * time.Minute
	lifetimeTTL = 5 * time.Minute

	guildCapacity = 2048
	otherCapacity = 1024
)

type item struct {
	value      any
	addedAt    time.Time
	lastAccess time.Time
}

// ttlMap is a capacity-bounded map whose entries die after idleTTL
// without reads or lifetimeTTL since insertion, whichever comes first.
type ttlMap struct {
	mu       sync.Mutex
	items    map[string]*item
	capacity int
	clock    Clock
}

func newTTLMap(capacity int, clock Clock) *ttlMap {
	return &ttlMap{items: make(map[string]*item), capacity: capacity, clock: clock}
}

func (m *ttlMap) get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	now := m.clock.Now()
	if now.Sub(it.addedAt) > lifetimeTTL || now.Sub(it.lastAccess) > idleTTL {
		delete(m.items, key)
		return nil, false
	}
	it.lastAccess = now
	return it.value, true
}

func (m *ttlMap) set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	if _, ok := m.items[key]; !ok && len(m.items) >= m.capacity {
		m.evictOldestLocked()
	}
	m.items[key] = &item{value: value, addedAt: now, lastAccess: now}
}

func (m *ttlMap) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, it := range m.items {
		if oldestKey == "" || it.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = it.lastAccess
		}
	}
	if oldestKey != "" {
		delete(m.items, oldestKey)
	}
}

func (m *ttlMap) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// GuildCache serves guilds, roles, members, channels and users with a
// REST fallback. Concurrent misses for the same key collapse into a
// single fetch.
type GuildCache struct {
	mu      sync.RWMutex
	fetcher Fetcher

	guilds   *ttlMap
	roles    *ttlMap
	members  *ttlMap
	channels *ttlMap
	users    *ttlMap

	group  singleflight.Group
	logger *zap.Logger
}

func New(logger *zap.Logger) *GuildCache {
	return newWithClock(logger, realClock{})
}

func newWithClock(logger *zap.Logger, clock Clock) *GuildCache {
	return &GuildCache{
		guilds:   newTTLMap(guildCapacity, clock),
		roles:    newTTLMap(otherCapacity, clock),
		members:  newTTLMap(otherCapacity, clock),
		channels: newTTLMap(otherCapacity, clock),
		users:    newTTLMap(guildCapacity, clock),
		logger:   logger,
	}
}

// SetSession attaches the REST fallback once the gateway is ready.
func (c *GuildCache) SetSession(fetcher Fetcher) {
	c.mu.Lock()
	c.fetcher = fetcher
	c.mu.Unlock()
}

func (c *GuildCache) session() (Fetcher, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetcher == nil {
		return nil, ErrSessionNotReady
	}
	return c.fetcher, nil
}

func (c *GuildCache) Guild(guildID string) (*discordgo.Guild, error) {
	if v, ok := c.guilds.get(guildID); ok {
		return v.(*discordgo.Guild), nil
	}
	v, err, _ := c.group.Do("guild:"+guildID, func() (any, error) {
		fetcher, err := c.session()
		if err != nil {
			return nil, err
		}
		guild, err := fetcher.Guild(guildID)
		if err != nil {
			return nil, err
		}
		c.guilds.set(guildID, guild)
		return guild, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discordgo.Guild), nil
}

func (c *GuildCache) Roles(guildID string) ([]*discordgo.Role, error) {
	if v, ok := c.roles.get(guildID); ok {
		return v.([]*discordgo.Role), nil
	}
	v, err, _ := c.group.Do("roles:"+guildID, func() (any, error) {
		fetcher, err := c.session()
		if err != nil {
			return nil, err
		}
		roles, err := fetcher.GuildRoles(guildID)
		if err != nil {
			return nil, err
		}
		c.roles.set(guildID, roles)
		return roles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*discordgo.Role), nil
}

func (c *GuildCache) Member(guildID, userID string) (*discordgo.Member, error) {
	key := guildID + ":" + userID
	if v, ok := c.members.get(key); ok {
		return v.(*discordgo.Member), nil
	}
	v, err, _ := c.group.Do("member:"+key, func() (any, error) {
		fetcher, err := c.session()
		if err != nil {
			return nil, err
		}
		member, err := fetcher.GuildMember(guildID, userID)
		if err != nil {
			return nil, err
		}
		c.members.set(key, member)
		return member, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discordgo.Member), nil
}

func (c *GuildCache) Channels(guildID string) ([]*discordgo.Channel, error) {
	if v, ok := c.channels.get(guildID); ok {
		return v.([]*discordgo.Channel), nil
	}
	v, err, _ := c.group.Do("channels:"+guildID, func() (any, error) {
		fetcher, err := c.session()
		if err != nil {
			return nil, err
		}
		channels, err := fetcher.GuildChannels(guildID)
		if err != nil {
			return nil, err
		}
		c.channels.set(guildID, channels)
		return channels, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*discordgo.Channel), nil
}

func (c *GuildCache) User(userID string) (*discordgo.User, error) {
	if v, ok := c.users.get(userID); ok {
		return v.(*discordgo.User), nil
	}
	v, err, _ := c.group.Do("user:"+userID, func() (any, error) {
		fetcher, err := c.session()
		if err != nil {
			return nil, err
		}
		user, err := fetcher.User(userID)
		if err != nil {
			return nil, err
		}
		c.users.set(userID, user)
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discordgo.User), nil
}

func (c *GuildCache) InvalidateGuild(guildID string) {
	c.guilds.delete(guildID)
}

func (c *GuildCache) InvalidateRoles(guildID string) {
	c.roles.delete(guildID)
}

func (c *GuildCache) InvalidateMember(guildID, userID string) {
	c.members.delete(guildID + ":" + userID)
}

func (c *GuildCache) InvalidateChannels(guildID string) {
	c.channels.delete(guildID)
}

func (c *GuildCache) InvalidateUser(userID string) {
	c.users.delete(userID)
}
