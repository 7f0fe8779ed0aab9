// Package activity counts chat activity over a lookback window: messages per
// channel and whole-word uses of the community's custom emoji across all
// channels. It only sees the platform through the Source interface.
package activity

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Channel struct {
	ID   string
	Name string
}

// Source is the slice of the chat platform the aggregator needs. Channels
// must come back in stable platform order; EachMessage must page through
// history newer than after, however long it is.
type Source interface {
	Channels(ctx context.Context) ([]Channel, error)
	Emojis(ctx context.Context) ([]string, error)
	EachMessage(ctx context.Context, channelID string, after time.Time, fn func(content string) error) error
}

// Report holds order-independent counts from one scan.
type Report struct {
	ChannelCounts map[string]int
	EmojiCounts   map[string]int
}

type Aggregator struct {
	src Source
	log *slog.Logger

	// the community emoji set is captured once, on the first scan
	emoji map[string]struct{}
}

func New(src Source, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{src: src, log: logger}
}

// Scan counts messages per channel and emoji uses community-wide over the
// window. A channel the source refuses access to is logged and skipped; the
// scan keeps going over the rest.
func (a *Aggregator) Scan(ctx context.Context, window time.Duration) (Report, error) {
	report := Report{
		ChannelCounts: make(map[string]int),
		EmojiCounts:   make(map[string]int),
	}

	if a.emoji == nil {
		tokens, err := a.src.Emojis(ctx)
		if err != nil {
			return report, err
		}
		a.emoji = make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			a.emoji[t] = struct{}{}
		}
	}

	channels, err := a.src.Channels(ctx)
	if err != nil {
		return report, err
	}
	after := time.Now().Add(-window)

	for _, ch := range channels {
		count := 0
		emojiCounts := make(map[string]int)
		err := a.src.EachMessage(ctx, ch.ID, after, func(content string) error {
			count++
			for _, word := range strings.Fields(content) {
				if _, ok := a.emoji[word]; ok {
					emojiCounts[word]++
				}
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			a.log.Warn("skipping channel", "channel", ch.Name, "err", err)
			continue
		}
		report.ChannelCounts[ch.Name] += count
		for token, n := range emojiCounts {
			report.EmojiCounts[token] += n
		}
	}
	return report, nil
}

// EmojiTokens returns the captured emoji set, loading it if no scan has run
// yet.
func (a *Aggregator) EmojiTokens(ctx context.Context) ([]string, error) {
	if a.emoji == nil {
		tokens, err := a.src.Emojis(ctx)
		if err != nil {
			return nil, err
		}
		a.emoji = make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			a.emoji[t] = struct{}{}
		}
		return tokens, nil
	}
	out := make([]string, 0, len(a.emoji))
	for t := range a.emoji {
		out = append(out, t)
	}
	return out, nil
}
