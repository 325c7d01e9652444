package automod

import (
	"context"
	"strings"

	"warden/internal/storage"
)

// wordFilter flags messages containing blocked words. Level "low"
// requires an exact whitespace-delimited token; "high" also catches
// blocked words buried inside longer tokens.
type wordFilter struct {
	*actions
	defaultWords []string
}

func newWordFilter(shared *actions, defaultWords []string) *wordFilter {
	words := make([]string, 0, len(defaultWords))
	for _, word := range defaultWords {
		if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
			words = append(words, word)
		}
	}
	return &wordFilter{actions: shared, defaultWords: words}
}

func (f *wordFilter) Name() string { return "word" }

func (f *wordFilter) Handle(ctx context.Context, msg *Message, setting *storage.Setting) (bool, error) {
	if !setting.WordFilter {
		return false, nil
	}

	blocklist := f.defaultWords
	if csv := strings.TrimSpace(setting.WordFilterBlocklist); csv != "" {
		blocklist = make([]string, 0, 8)
		for _, word := range strings.Split(csv, ",") {
			if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
				blocklist = append(blocklist, word)
			}
		}
	}
	if len(blocklist) == 0 {
		return false, nil
	}

	if !matchesBlocklist(msg.Content, blocklist, setting.WordFilterLevel == "high") {
		return false, nil
	}

	f.deleteMessage(msg)
	f.punish(ctx, msg, setting.WordFilterAction,
		setting.WordFilterActionDurationUnit, setting.WordFilterActionDuration,
		"Use of blocked words")
	return true, nil
}

func matchesBlocklist(content string, blocklist []string, substring bool) bool {
	tokens := strings.Fields(strings.ToLower(content))
	for _, token := range tokens {
		for _, word := range blocklist {
			if substring {
				if strings.Contains(token, word) {
					return true
				}
			} else if token == word {
				return true
			}
		}
	}
	return false
}
