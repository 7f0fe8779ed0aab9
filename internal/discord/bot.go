package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"stonkd/internal/game"
)

const renameCooldown = 24 * time.Hour

// Bot is the command surface: it maps prefixed chat commands onto ledger and
// valuation operations and renders replies.
type Bot struct {
	session  *discordgo.Session
	platform *Platform
	svc      *game.Service
	log      *slog.Logger
	prefix   string
	guildID  string

	// ready gates commands until stock initialization has finished
	ready  func() bool
	remove func()

	mu          sync.Mutex
	lastRenames map[string]time.Time
}

func NewBot(session *discordgo.Session, platform *Platform, svc *game.Service, logger *slog.Logger, prefix, guildID string, ready func() bool) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Bot{
		session:     session,
		platform:    platform,
		svc:         svc,
		log:         logger,
		prefix:      prefix,
		guildID:     guildID,
		ready:       ready,
		lastRenames: make(map[string]time.Time),
	}
}

func (b *Bot) Start() {
	b.remove = b.session.AddHandler(b.onMessage)
}

func (b *Bot) Stop() {
	if b.remove != nil {
		b.remove()
	}
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || !strings.HasPrefix(m.Content, b.prefix) {
		return
	}
	if !b.ready() {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(fields) == 0 {
		return
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "stocks":
		b.cmdStocks(ctx, m)
	case "details":
		b.cmdDetails(ctx, m, args)
	case "register":
		b.cmdRegister(ctx, m, args)
	case "buy":
		b.cmdBuy(ctx, m, args)
	case "sell":
		b.cmdSell(ctx, m, args)
	case "portfolio":
		b.cmdPortfolio(ctx, m)
	case "leaderboard":
		b.cmdLeaderboard(ctx, m)
	case "networth":
		b.cmdNetWorth(ctx, m)
	case "rename":
		b.cmdRename(ctx, m, args)
	case "givemoney":
		b.cmdGiveMoney(ctx, m, args)
	case "givestocks":
		b.cmdGiveStocks(ctx, m, args)
	}
}

func (b *Bot) cmdStocks(ctx context.Context, m *discordgo.MessageCreate) {
	channels, err := b.svc.ListStocks(ctx, game.PrefixChannel, 25)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	emojis, err := b.svc.ListStocks(ctx, game.PrefixEmoji, 20)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "Stock Market",
		Color: 0x3498db,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Channel (`details c[hannels]`)", Value: stockLines(channels, false), Inline: true},
			{Name: "Emoji (`details e[moji]`)", Value: stockLines(emojis, false), Inline: true},
		},
	}
	if last, err := b.svc.LastCycleAt(ctx, b.guildID); err == nil && !last.IsZero() {
		mins := time.Since(last).Minutes()
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Last update was %.2f minutes ago, next update in %.2f minutes.", mins, 60-mins),
		}
	}
	b.sendEmbed(m.ChannelID, embed)
}

func (b *Bot) cmdDetails(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) != 1 {
		b.reply(m.ChannelID, "Usage: `details c[hannels]` or `details e[moji]`")
		return
	}
	var prefix byte
	var title string
	switch strings.ToLower(args[0]) {
	case "c", "channels":
		prefix, title = game.PrefixChannel, "Channels detailed view, top 25"
	case "e", "emoji":
		prefix, title = game.PrefixEmoji, "Emojis detailed view, top 25"
	default:
		b.reply(m.ChannelID, "Usage: `details c[hannels]` or `details e[moji]`")
		return
	}

	stocks, err := b.svc.ListStocks(ctx, prefix, 25)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: 0x5865f2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Source | Ticker | Price | # Available to buy", Value: stockLines(stocks, true)},
		},
	}
	b.sendEmbed(m.ChannelID, embed)
}

func (b *Bot) cmdRegister(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) != 1 {
		b.reply(m.ChannelID, "You must provide a gamertag! Max 11 characters, lowercase and numbers only.")
		return
	}
	if err := b.svc.Register(ctx, m.Author.ID, args[0]); err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("Welcome! You have been registered with an initial balance of $%.0f.", game.StarterBalance))
}

func (b *Bot) cmdBuy(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	qty, ticker, ok := parseQtyTicker(args)
	if !ok {
		b.reply(m.ChannelID, "Usage: `buy 10 CABCDE`")
		return
	}
	res, err := b.svc.Buy(ctx, m.Author.ID, ticker, qty)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf(
		"You bought %d shares of %s for $%.2f. Your new balance is $%.2f. There are %d left for purchase.",
		res.Quantity, res.Ticker, res.Total, res.Balance, res.Available))
}

func (b *Bot) cmdSell(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	qty, ticker, ok := parseQtyTicker(args)
	if !ok {
		b.reply(m.ChannelID, "Usage: `sell 10 CABCDE`")
		return
	}
	res, err := b.svc.Sell(ctx, m.Author.ID, ticker, qty)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf(
		"You sold %d shares of %s for $%.2f. Your new balance is $%.2f.",
		res.Quantity, res.Ticker, res.Total, res.Balance))
}

func (b *Bot) cmdPortfolio(ctx context.Context, m *discordgo.MessageCreate) {
	p, err := b.svc.Portfolio(ctx, m.Author.ID)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Your Portfolio**\nBalance: $%.2f\n\nStock Holdings:\n", p.Balance)
	if len(p.Holdings) == 0 {
		sb.WriteString("You don't own any stocks.")
	}
	for _, h := range p.Holdings {
		fmt.Fprintf(&sb, "%s: %d shares\n", h.Ticker, h.Quantity)
	}
	b.reply(m.ChannelID, sb.String())
}

func (b *Bot) cmdLeaderboard(ctx context.Context, m *discordgo.MessageCreate) {
	rows, err := b.svc.Leaderboard(ctx, 15)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	var sb strings.Builder
	for _, r := range rows {
		display, err := b.platform.DisplayName(ctx, r.UserID)
		if err != nil {
			display = "Unknown User"
		}
		fmt.Fprintf(&sb, "`%2d. %-15s (%s) $%.2f`\n", r.Rank, display, r.Gamertag, r.NetWorth)
	}
	if sb.Len() == 0 {
		sb.WriteString("Nobody is registered yet.")
	}
	b.sendEmbed(m.ChannelID, &discordgo.MessageEmbed{
		Title: "Net Worth Leaderboard",
		Color: 0xf1c40f,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Top Users", Value: sb.String()},
		},
	})
}

func (b *Bot) cmdNetWorth(ctx context.Context, m *discordgo.MessageCreate) {
	nw, err := b.svc.NetWorth(ctx, m.Author.ID)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("Your net worth is %.2f.", nw))
}

// cmdRename enforces the once-per-day cooldown here, at the surface; the
// ledger itself only validates and applies the change.
func (b *Bot) cmdRename(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) != 1 {
		b.reply(m.ChannelID, "You must provide a gamertag! Max 11 characters, lowercase and numbers only.")
		return
	}
	b.mu.Lock()
	last, seen := b.lastRenames[m.Author.ID]
	b.mu.Unlock()
	if seen && time.Since(last) < renameCooldown {
		wait := renameCooldown - time.Since(last)
		b.reply(m.ChannelID, fmt.Sprintf("Max once per day, you can change your gamertag again in %d:%02d.",
			int(wait.Hours()), int(wait.Minutes())%60))
		return
	}
	if err := b.svc.Rename(ctx, m.Author.ID, args[0]); err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	b.mu.Lock()
	b.lastRenames[m.Author.ID] = time.Now()
	b.mu.Unlock()
	b.reply(m.ChannelID, fmt.Sprintf("Your gamertag has been successfully changed to `%s`.", args[0]))
}

func (b *Bot) cmdGiveMoney(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	// givemoney 420.69 to gamertag
	if len(args) != 3 || !strings.EqualFold(args[1], "to") {
		b.reply(m.ChannelID, "Usage: `givemoney 420.69 to [gamertag]`, use $leaderboard to find gamertags")
		return
	}
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		b.reply(m.ChannelID, "Usage: `givemoney 420.69 to [gamertag]`, use $leaderboard to find gamertags")
		return
	}
	balance, err := b.svc.GiftCurrency(ctx, m.Author.ID, args[2], amount)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("Successfully gave $%.2f to %s. Your new balance: $%.2f", amount, args[2], balance))
}

func (b *Bot) cmdGiveStocks(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	// givestocks 69 CABCDE to gamertag
	if len(args) != 4 || !strings.EqualFold(args[2], "to") {
		b.reply(m.ChannelID, "Usage: `givestocks 69 [ticker] to [gamertag]`, use $leaderboard to find gamertags")
		return
	}
	qty, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(m.ChannelID, "Usage: `givestocks 69 [ticker] to [gamertag]`, use $leaderboard to find gamertags")
		return
	}
	remaining, err := b.svc.GiftStock(ctx, m.Author.ID, args[1], args[3], qty)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("Successfully gave %d %s stocks to %s. Your new stock balance: %d.",
		qty, strings.ToUpper(args[1]), args[3], remaining))
}

func parseQtyTicker(args []string) (int64, string, bool) {
	if len(args) != 2 {
		return 0, "", false
	}
	qty, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return qty, args[1], true
}

func stockLines(stocks []game.StockView, withName bool) string {
	if len(stocks) == 0 {
		return "`(nothing tradable)`"
	}
	var sb strings.Builder
	for _, st := range stocks {
		if withName {
			name := st.Name
			if len(name) > 20 {
				name = name[:20]
			}
			fmt.Fprintf(&sb, "`%-20s: %-10s $%-8.2f | %d`\n", name, st.Ticker, st.Price, st.Available)
		} else {
			fmt.Fprintf(&sb, "`%-10s $%-8.2f | %d`\n", st.Ticker, st.Price, st.Available)
		}
	}
	return sb.String()
}

var domainErrors = []error{
	game.ErrAlreadyRegistered,
	game.ErrNotRegistered,
	game.ErrInvalidGamertag,
	game.ErrGamertagTaken,
	game.ErrGamertagUnknown,
	game.ErrStockNotFound,
	game.ErrStockUnlisted,
	game.ErrInvalidQuantity,
	game.ErrInvalidAmount,
	game.ErrInsufficientFunds,
	game.ErrInsufficientShares,
	game.ErrInsufficientAvail,
}

func (b *Bot) replyErr(channelID string, err error) {
	for _, domain := range domainErrors {
		if errors.Is(err, domain) {
			b.reply(channelID, upperFirst(err.Error()))
			return
		}
	}
	b.log.Error("command failed", "err", err)
	b.reply(channelID, "Something went wrong, try again later.")
}

func (b *Bot) reply(channelID, text string) {
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		b.log.Warn("reply failed", "channel", channelID, "err", err)
	}
}

func (b *Bot) sendEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.log.Warn("embed reply failed", "channel", channelID, "err", err)
	}
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
