package game

import "testing"

func TestAllocateFirstSubsequence(t *testing.T) {
	r := NewRegistry()
	ticker, err := r.Allocate(PrefixChannel, "general", "general")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if ticker != "CGENER" {
		t.Fatalf("got %q, want CGENER", ticker)
	}
}

func TestAllocateCollisionTakesNextCandidate(t *testing.T) {
	r := NewRegistry()
	first, err := r.Allocate(PrefixChannel, "general", "general")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	second, err := r.Allocate(PrefixChannel, "generally", "generally")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first == second {
		t.Fatalf("distinct names got the same ticker %q", first)
	}
	// GENERALLY's (0,1,2,3,4) subsequence collides with general's ticker,
	// so the (0,1,2,3,5) one wins.
	if second != "CGENEA" {
		t.Fatalf("got %q, want CGENEA", second)
	}
}

func TestAllocateShortNameUsesSuffix(t *testing.T) {
	r := NewRegistry()
	ticker, err := r.Allocate(PrefixChannel, "ab", "ab")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	// "AB" + "AAAAA" extension, first five characters.
	if ticker != "CABAAA" {
		t.Fatalf("got %q, want CABAAA", ticker)
	}
}

func TestAllocateEmojiFromNamePart(t *testing.T) {
	r := NewRegistry()
	token := "<a:pog:123>"
	ticker, err := r.Allocate(PrefixEmoji, token, EmojiName(token))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	// Derived from "pog"; the animated flag and id digits in the token are
	// not symbol material.
	if ticker != "EPOGAA" {
		t.Fatalf("got %q, want EPOGAA", ticker)
	}
	if name, ok := r.NameFor(ticker); !ok || name != token {
		t.Fatalf("NameFor(%q) = %q, %v; want the full token", ticker, name, ok)
	}
}

func TestAllocateIdempotentPerName(t *testing.T) {
	r := NewRegistry()
	a, err := r.Allocate(PrefixEmoji, "<a:pog:123>", EmojiName("<a:pog:123>"))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	b, err := r.Allocate(PrefixEmoji, "<a:pog:123>", EmojiName("<a:pog:123>"))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if a != b {
		t.Fatalf("same name got %q then %q", a, b)
	}
	if r.Len() != 1 {
		t.Fatalf("registry has %d entries, want 1", r.Len())
	}
}

func TestAllocateDeterministicReplay(t *testing.T) {
	names := []string{"general", "generally", "generals", "off-topic", "memes", "meemes", "ab", "a-b"}

	run := func() []string {
		r := NewRegistry()
		out := make([]string, 0, len(names))
		for _, n := range names {
			ticker, err := r.Allocate(PrefixChannel, n, n)
			if err != nil {
				t.Fatalf("allocate %q: %v", n, err)
			}
			out = append(out, ticker)
		}
		return out
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay diverged at %q: %q vs %q", names[i], first[i], second[i])
		}
	}
}

func TestAllocateUniqueness(t *testing.T) {
	r := NewRegistry()
	names := []string{"general", "generally", "generals", "generale", "genres", "greens"}
	seen := make(map[string]string)
	for _, n := range names {
		ticker, err := r.Allocate(PrefixChannel, n, n)
		if err != nil {
			t.Fatalf("allocate %q: %v", n, err)
		}
		if prev, dup := seen[ticker]; dup {
			t.Fatalf("ticker %q assigned to both %q and %q", ticker, prev, n)
		}
		seen[ticker] = n
	}
}

func TestAllocateLookups(t *testing.T) {
	r := NewRegistry()
	ticker, err := r.Allocate(PrefixChannel, "general", "general")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if name, ok := r.NameFor(ticker); !ok || name != "general" {
		t.Fatalf("NameFor(%q) = %q, %v", ticker, name, ok)
	}
	if got, ok := r.TickerFor("general"); !ok || got != ticker {
		t.Fatalf("TickerFor = %q, %v", got, ok)
	}
	if _, ok := r.NameFor("CZZZZZ"); ok {
		t.Fatalf("unexpected hit for unallocated ticker")
	}
}
