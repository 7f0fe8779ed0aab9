package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken      string
	GuildID       string
	DatabaseURL   string
	APIAddr       string
	CommandPrefix string
	CycleEvery    time.Duration
	SeedWindow    time.Duration
}

func LoadFromEnv() (Config, error) {
	// .env is a convenience for local runs; absence is fine
	_ = godotenv.Load()

	cfg := Config{
		BotToken:      strings.TrimSpace(os.Getenv("STONKD_BOT_TOKEN")),
		GuildID:       strings.TrimSpace(os.Getenv("STONKD_GUILD_ID")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		APIAddr:       envDefault("STONKD_API_ADDR", ":8080"),
		CommandPrefix: envDefault("STONKD_COMMAND_PREFIX", "$"),
		CycleEvery:    envDurationDefault("STONKD_CYCLE_EVERY", time.Hour),
		SeedWindow:    envDurationDefault("STONKD_SEED_WINDOW", 120*time.Hour),
	}
	if cfg.BotToken == "" {
		return cfg, fmt.Errorf("STONKD_BOT_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return cfg, fmt.Errorf("STONKD_GUILD_ID is required")
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
