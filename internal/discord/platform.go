package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"stonkd/internal/activity"
)

const historyPageSize = 100

// Platform adapts a discordgo session to activity.Source for one guild.
// History paging is rate-limited so a long seed scan doesn't hammer the API.
type Platform struct {
	session *discordgo.Session
	guildID string
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewPlatform(session *discordgo.Session, guildID string, logger *slog.Logger) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	return &Platform{
		session: session,
		guildID: guildID,
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
		log:     logger,
	}
}

// Channels returns the guild's text channels sorted by position, id breaking
// ties. The REST listing comes back in no guaranteed order, and ticker
// allocation replays this list, so the sort is what keeps tickers stable
// across restarts.
func (p *Platform) Channels(ctx context.Context) ([]activity.Channel, error) {
	chans, err := p.session.GuildChannels(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return textChannelsInOrder(chans), nil
}

func textChannelsInOrder(chans []*discordgo.Channel) []activity.Channel {
	text := make([]*discordgo.Channel, 0, len(chans))
	for _, ch := range chans {
		if ch.Type == discordgo.ChannelTypeGuildText {
			text = append(text, ch)
		}
	}
	sort.Slice(text, func(i, j int) bool {
		if text[i].Position != text[j].Position {
			return text[i].Position < text[j].Position
		}
		return snowflakeLess(text[i].ID, text[j].ID)
	})
	out := make([]activity.Channel, 0, len(text))
	for _, ch := range text {
		out = append(out, activity.Channel{ID: ch.ID, Name: ch.Name})
	}
	return out
}

// snowflakeLess orders decimal snowflake ids numerically.
func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Emojis returns the guild's custom emoji as canonical <a?:name:id> tokens,
// the exact form they appear in as message text.
func (p *Platform) Emojis(ctx context.Context) ([]string, error) {
	emojis, err := p.session.GuildEmojis(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list emojis: %w", err)
	}
	out := make([]string, 0, len(emojis))
	for _, e := range emojis {
		out = append(out, EmojiToken(e.Animated, e.Name, e.ID))
	}
	return out, nil
}

func EmojiToken(animated bool, name, id string) string {
	flag := ""
	if animated {
		flag = "a"
	}
	return fmt.Sprintf("<%s:%s:%s>", flag, name, id)
}

// EachMessage pages backwards through channel history, newest first, calling
// fn for every message sent after the cutoff.
func (p *Platform) EachMessage(ctx context.Context, channelID string, after time.Time, fn func(content string) error) error {
	beforeID := ""
	pages := 0
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		msgs, err := p.session.ChannelMessages(channelID, historyPageSize, beforeID, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("channel history: %w", err)
		}
		pages++
		done := len(msgs) == 0
		for _, m := range msgs {
			if m.Timestamp.Before(after) {
				done = true
				break
			}
			if err := fn(m.Content); err != nil {
				return err
			}
		}
		if done {
			p.log.Debug("scanned channel history", "channel", channelID, "pages", pages)
			return nil
		}
		beforeID = msgs[len(msgs)-1].ID
	}
}

// DisplayName resolves a platform user id for leaderboard rendering.
func (p *Platform) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := p.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if u.GlobalName != "" {
		return u.GlobalName, nil
	}
	return u.Username, nil
}
