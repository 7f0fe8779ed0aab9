package game

import "testing"

func TestValidateGamertag(t *testing.T) {
	valid := []string{"alice1", "bob2", "x", "abcdefghij0"}
	for _, tag := range valid {
		if err := ValidateGamertag(tag); err != nil {
			t.Fatalf("expected gamertag %q to be valid: %v", tag, err)
		}
	}

	invalid := []string{"", "Alice", "with space", "waytoolongname", "emoji💀", "under_score"}
	for _, tag := range invalid {
		if err := ValidateGamertag(tag); err == nil {
			t.Fatalf("expected gamertag %q to fail", tag)
		}
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"general", "GENERAL"},
		{"off-topic", "OFFTOPIC"},
		{"memes 2", "MEMES2"},
		{"<a:pog:123>", "APOG123"},
		{"!!!", ""},
	}
	for _, tc := range tests {
		if got := CleanName(tc.in); got != tc.want {
			t.Fatalf("CleanName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEmojiName(t *testing.T) {
	if got := EmojiName("<a:pog:123>"); got != "pog" {
		t.Fatalf("got %q", got)
	}
	if got := EmojiName("<:kek:9>"); got != "kek" {
		t.Fatalf("got %q", got)
	}
	if got := EmojiName("plain"); got != "plain" {
		t.Fatalf("got %q", got)
	}
}
