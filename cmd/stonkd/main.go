package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"stonkd/internal/activity"
	"stonkd/internal/api"
	"stonkd/internal/config"
	"stonkd/internal/db"
	"stonkd/internal/discord"
	"stonkd/internal/game"
	"stonkd/internal/sched"
)

func main() {
	root := &cobra.Command{
		Use:          "stonkd",
		Short:        "Chat-activity stock market bot",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newTickCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot, the hourly valuation cycle and the read-only API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
}

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one valuation cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return tickOnce(ctx)
		},
	}
}

type app struct {
	cfg      config.Config
	log      *slog.Logger
	session  *discordgo.Session
	platform *discord.Platform
	agg      *activity.Aggregator
	svc      *game.Service
	close    func()
}

// setup wires config, db, session and the core service, then seeds the
// ticker registry and any missing stock rows from seed-window activity.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		pool.Close()
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	if err := session.Open(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gateway: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      logger,
		session:  session,
		platform: discord.NewPlatform(session, cfg.GuildID, logger),
		svc:      game.NewService(pool, logger, game.NewValuation(nil)),
		close: func() {
			_ = session.Close()
			pool.Close()
		},
	}
	a.agg = activity.New(a.platform, logger)

	if err := a.svc.EnsureSchema(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.initStocks(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) initStocks(ctx context.Context) error {
	a.log.Info("seeding stocks", "window", a.cfg.SeedWindow.String())
	report, err := a.agg.Scan(ctx, a.cfg.SeedWindow)
	if err != nil {
		return fmt.Errorf("seed scan: %w", err)
	}
	channels, err := a.platform.Channels(ctx)
	if err != nil {
		return err
	}
	channelNames := make([]string, 0, len(channels))
	for _, ch := range channels {
		channelNames = append(channelNames, ch.Name)
	}
	emojiTokens, err := a.agg.EmojiTokens(ctx)
	if err != nil {
		return err
	}
	if err := a.svc.InitStocks(ctx, channelNames, emojiTokens, report.ChannelCounts, report.EmojiCounts); err != nil {
		return err
	}
	a.log.Info("stock initialization complete", "tickers", a.svc.Registry().Len())
	return nil
}

func (a *app) runCycle(ctx context.Context) error {
	report, err := a.agg.Scan(ctx, a.cfg.CycleEvery)
	if err != nil {
		return err
	}
	return a.svc.RunCycle(ctx, a.cfg.GuildID, report.ChannelCounts, report.EmojiCounts)
}

func run(ctx context.Context) error {
	// commands and the scheduler attach only after setup, so neither can
	// observe a half-initialized ledger
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	bot := discord.NewBot(a.session, a.platform, a.svc, a.log, a.cfg.CommandPrefix, a.cfg.GuildID, nil)
	bot.Start()
	defer bot.Stop()

	scheduler := sched.New(a.log)
	if err := scheduler.AddCycle(a.cfg.CycleEvery, a.runCycle); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := api.New(a.log, a.svc)
	httpServer := &http.Server{
		Addr:              a.cfg.APIAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	a.log.Info("stonkd running", "api_addr", a.cfg.APIAddr, "cycle_every", a.cfg.CycleEvery.String())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func tickOnce(ctx context.Context) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.runCycle(ctx); err != nil {
		return err
	}
	a.log.Info("tick completed")
	return nil
}
