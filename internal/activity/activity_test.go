package activity

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type fakeSource struct {
	channels []Channel
	emojis   []string
	messages map[string][]string
	denied   map[string]bool
}

func (f *fakeSource) Channels(context.Context) ([]Channel, error) {
	return f.channels, nil
}

func (f *fakeSource) Emojis(context.Context) ([]string, error) {
	return f.emojis, nil
}

func (f *fakeSource) EachMessage(_ context.Context, channelID string, _ time.Time, fn func(string) error) error {
	if f.denied[channelID] {
		return errors.New("missing access")
	}
	for _, m := range f.messages[channelID] {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func TestScanCountsMessagesAndEmoji(t *testing.T) {
	src := &fakeSource{
		channels: []Channel{{ID: "1", Name: "general"}, {ID: "2", Name: "memes"}},
		emojis:   []string{"<a:pog:123>", "<:kek:9>"},
		messages: map[string][]string{
			"1": {
				"hello <a:pog:123>",
				"<a:pog:123> <a:pog:123> twice in one message",
				"no emoji here",
			},
			"2": {
				"<:kek:9>",
			},
		},
	}
	agg := New(src, slog.Default())
	report, err := agg.Scan(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if got := report.ChannelCounts["general"]; got != 3 {
		t.Fatalf("general count = %d, want 3", got)
	}
	if got := report.ChannelCounts["memes"]; got != 1 {
		t.Fatalf("memes count = %d, want 1", got)
	}
	if got := report.EmojiCounts["<a:pog:123>"]; got != 3 {
		t.Fatalf("pog count = %d, want 3", got)
	}
	if got := report.EmojiCounts["<:kek:9>"]; got != 1 {
		t.Fatalf("kek count = %d, want 1", got)
	}
}

func TestScanRequiresWholeWordMatches(t *testing.T) {
	src := &fakeSource{
		channels: []Channel{{ID: "1", Name: "general"}},
		emojis:   []string{"<:kek:9>"},
		messages: map[string][]string{
			"1": {
				"x<:kek:9>y glued to other text",
				"<:kek:99> different id",
				"kek bare name",
			},
		},
	}
	agg := New(src, slog.Default())
	report, err := agg.Scan(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := report.EmojiCounts["<:kek:9>"]; got != 0 {
		t.Fatalf("kek count = %d, want 0", got)
	}
	if got := report.ChannelCounts["general"]; got != 3 {
		t.Fatalf("general count = %d, want 3", got)
	}
}

func TestScanSkipsDeniedChannels(t *testing.T) {
	src := &fakeSource{
		channels: []Channel{{ID: "1", Name: "secret"}, {ID: "2", Name: "public"}},
		emojis:   []string{"<:kek:9>"},
		messages: map[string][]string{
			"2": {"hi", "hi again"},
		},
		denied: map[string]bool{"1": true},
	}
	agg := New(src, slog.Default())
	report, err := agg.Scan(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("scan should not fail on a denied channel: %v", err)
	}
	if _, ok := report.ChannelCounts["secret"]; ok {
		t.Fatalf("denied channel should not be counted")
	}
	if got := report.ChannelCounts["public"]; got != 2 {
		t.Fatalf("public count = %d, want 2", got)
	}
}

func TestEmojiSetCapturedOnce(t *testing.T) {
	src := &fakeSource{
		channels: []Channel{{ID: "1", Name: "general"}},
		emojis:   []string{"<:kek:9>"},
		messages: map[string][]string{"1": {"<:kek:9>", "<:new:10>"}},
	}
	agg := New(src, slog.Default())
	if _, err := agg.Scan(context.Background(), time.Hour); err != nil {
		t.Fatalf("scan: %v", err)
	}

	// Emoji added after the first scan must not be recognized.
	src.emojis = append(src.emojis, "<:new:10>")
	report, err := agg.Scan(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := report.EmojiCounts["<:new:10>"]; got != 0 {
		t.Fatalf("late emoji counted %d times, want 0", got)
	}
}
