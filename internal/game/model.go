package game

import (
	"errors"
	"regexp"
	"strings"
)

const (
	// StarterBalance is credited once on registration.
	StarterBalance = 100_000.0

	// InitialAvailable is the purchasable quantity a freshly listed stock gets.
	InitialAvailable = int64(10_000)

	// TargetAvailable is the soft ceiling availability drifts back toward each cycle.
	TargetAvailable = int64(25_000)

	// SeedWindowHours is the history lookback used to price stocks at first listing.
	SeedWindowHours = 120

	GamertagMaxLen = 11

	// Category prefixes baked into every ticker.
	PrefixChannel = byte('C')
	PrefixEmoji   = byte('E')
)

var (
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrNotRegistered      = errors.New("not registered")
	ErrInvalidGamertag    = errors.New("gamertag must be 1-11 lowercase letters or digits")
	ErrGamertagTaken      = errors.New("gamertag already taken")
	ErrGamertagUnknown    = errors.New("no user with that gamertag")
	ErrStockNotFound      = errors.New("unknown ticker")
	ErrStockUnlisted      = errors.New("stock is not tradable")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidAmount      = errors.New("amount must be > 0")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInsufficientAvail  = errors.New("not enough shares available")
	ErrTickerExhausted    = errors.New("ticker space exhausted")
)

var gamertagRE = regexp.MustCompile(`^[a-z0-9]{1,11}$`)

func ValidateGamertag(tag string) error {
	if !gamertagRE.MatchString(tag) {
		return ErrInvalidGamertag
	}
	return nil
}

var nonAlnumRE = regexp.MustCompile(`[^a-zA-Z0-9]`)

// CleanName reduces a channel or emoji name to the uppercase alphanumeric
// form the ticker allocator works from.
func CleanName(s string) string {
	return strings.ToUpper(nonAlnumRE.ReplaceAllString(s, ""))
}

// EmojiName extracts the name part of a canonical emoji token <a?:name:id>.
func EmojiName(token string) string {
	parts := strings.Split(token, ":")
	if len(parts) < 2 {
		return token
	}
	return parts[1]
}
