package automod

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"warden/internal/storage"
)

const (
	spamRepeatLimit = 4
	spamIdleTTL     = 10 * time.Second
)

type spamEntry struct {
	contentHash uint64
	count       int
	lastSeen    time.Time
}

// spamFilter hardbans users who repeat the same message. Changing the
// message resets the count.
type spamFilter struct {
	*actions
	clock Clock

	mu      sync.Mutex
	entries map[string]*spamEntry
}

func newSpamFilter(shared *actions, clock Clock) *spamFilter {
	return &spamFilter{actions: shared, clock: clock, entries: make(map[string]*spamEntry)}
}

func (f *spamFilter) Name() string { return "spam" }

func (f *spamFilter) Handle(ctx context.Context, msg *Message, setting *storage.Setting) (bool, error) {
	if !setting.SpamFilter {
		return false, nil
	}

	hasher := fnv.New64a()
	hasher.Write([]byte(msg.Content))
	contentHash := hasher.Sum64()
	key := msg.GuildID + ":" + msg.Author.ID

	f.mu.Lock()
	now := f.clock.Now()
	entry, ok := f.entries[key]
	if !ok || now.Sub(entry.lastSeen) > spamIdleTTL || entry.contentHash != contentHash {
		f.entries[key] = &spamEntry{contentHash: contentHash, count: 1, lastSeen: now}
		f.mu.Unlock()
		return false, nil
	}
	entry.count++
	entry.lastSeen = now
	if entry.count < spamRepeatLimit {
		f.mu.Unlock()
		return false, nil
	}
	delete(f.entries, key)
	f.mu.Unlock()

	f.deleteMessage(msg)
	f.punish(ctx, msg, storage.ActionHardban, storage.UnitSeconds, 0,
		fmt.Sprintf("Spamming the same message %d times", spamRepeatLimit))
	return true, nil
}
