package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the board.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	TelegramToken   string
	AnthropicAPIKey string
	AnthropicModel  string
	Timezone        string
	ResetTime       string
	Location        *time.Location
}

const envPrefix = "MISSIONBOARD"

// Load reads an optional YAML file, then environment variables, with sane defaults.
// MISSIONBOARD_* variables win over the file; TELEGRAM_TOKEN, DATABASE_URL and
// ANTHROPIC_API_KEY are honoured as well.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", "mission_board.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("timezone", "Local")
	v.SetDefault("reset_time", "00:05")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telegram_token", envPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")
	_ = v.BindEnv("database_url", envPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("anthropic_api_key", envPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		DatabaseURL:     strings.TrimSpace(v.GetString("database_url")),
		HTTPAddr:        strings.TrimSpace(v.GetString("http_addr")),
		TelegramToken:   strings.TrimSpace(v.GetString("telegram_token")),
		AnthropicAPIKey: strings.TrimSpace(v.GetString("anthropic_api_key")),
		AnthropicModel:  strings.TrimSpace(v.GetString("anthropic_model")),
		Timezone:        strings.TrimSpace(v.GetString("timezone")),
		ResetTime:       strings.TrimSpace(v.GetString("reset_time")),
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return cfg, err
	}
	cfg.Location = loc

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("database_url is required")
	}
	return cfg, nil
}

// Now returns the current time in the configured zone.
func (c Config) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
