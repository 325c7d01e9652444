package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken    string         `yaml:"discord_token"`
	DatabasePath    string         `yaml:"database_path"`
	LogLevel        string         `yaml:"log_level"`
	DefaultWordList []string       `yaml:"default_word_list"`
	Sweeper         SweeperConfig  `yaml:"sweeper"`
	Watchdog        WatchdogConfig `yaml:"watchdog"`
	Embeds          EmbedColors    `yaml:"embed_colors"`
}

type SweeperConfig struct {
	JoinSeconds     int `yaml:"join_seconds"`
	MuteSeconds     int `yaml:"mute_seconds"`
	BanSeconds      int `yaml:"ban_seconds"`
	ReminderSeconds int `yaml:"reminder_seconds"`
}

type WatchdogConfig struct {
	Enabled        bool `yaml:"enabled"`
	SilenceMinutes int  `yaml:"silence_minutes"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/warden.db",
		LogLevel:     "info",
		Sweeper: SweeperConfig{
			JoinSeconds:     10,
			MuteSeconds:     10,
			BanSeconds:      30,
			ReminderSeconds: 5,
		},
		Watchdog: WatchdogConfig{Enabled: true, SilenceMinutes: 10},
		Embeds: EmbedColors{
			Action:  0x4286F4,
			Warning: 0xF59E0B,
			Error:   0xEF4444,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Watchdog.SilenceMinutes <= 0 {
		cfg.Watchdog.SilenceMinutes = 10
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	if value := os.Getenv("DEFAULT_WORD_LIST"); value != "" {
		words := strings.Split(value, ",")
		for i := range words {
			words[i] = strings.TrimSpace(words[i])
		}
		cfg.DefaultWordList = words
	}
	cfg.Sweeper.JoinSeconds = envInt("SWEEPER_JOIN_SECONDS", cfg.Sweeper.JoinSeconds)
	cfg.Sweeper.MuteSeconds = envInt("SWEEPER_MUTE_SECONDS", cfg.Sweeper.MuteSeconds)
	cfg.Sweeper.BanSeconds = envInt("SWEEPER_BAN_SECONDS", cfg.Sweeper.BanSeconds)
	cfg.Sweeper.ReminderSeconds = envInt("SWEEPER_REMINDER_SECONDS", cfg.Sweeper.ReminderSeconds)
	cfg.Watchdog.Enabled = envBool("WATCHDOG_ENABLED", cfg.Watchdog.Enabled)
	cfg.Watchdog.SilenceMinutes = envInt("WATCHDOG_SILENCE_MINUTES", cfg.Watchdog.SilenceMinutes)
	cfg.Embeds.Action = envInt("EMBED_COLOR_ACTION", cfg.Embeds.Action)
	cfg.Embeds.Warning = envInt("EMBED_COLOR_WARNING", cfg.Embeds.Warning)
	cfg.Embeds.Error = envInt("EMBED_COLOR_ERROR", cfg.Embeds.Error)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
