package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"flow-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// FeedConfig selects and tunes the row source.
type FeedConfig struct {
	URL          string        `mapstructure:"url"`
	Mock         bool          `mapstructure:"mock"`
	MockInterval time.Duration `mapstructure:"mock_interval"`
	MockSeed     int64         `mapstructure:"mock_seed"`
}

// EngineConfig governs admission and aggregation cadence.
type EngineConfig struct {
	DebounceDelay   time.Duration `mapstructure:"debounce_delay"`
	MinEntries      int           `mapstructure:"min_entries"`
	PendingTimeout  time.Duration `mapstructure:"pending_timeout"`
	CacheResetEvery time.Duration `mapstructure:"cache_reset_every"`
	InitialCutoff   bool          `mapstructure:"initial_cutoff"`
}

// NotifyConfig tunes alert emission and routing.
type NotifyConfig struct {
	Debounce        time.Duration  `mapstructure:"debounce"`
	DismissAfter    time.Duration  `mapstructure:"dismiss_after"`
	ShownResetEvery time.Duration  `mapstructure:"shown_reset_every"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ReferenceConfig fixes the reference zone used to resolve "today" and
// clock-qualified expiry labels.
type ReferenceConfig struct {
	TodayHour      int `mapstructure:"today_hour"`
	UTCOffsetHours int `mapstructure:"utc_offset_hours"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxAlerts int `mapstructure:"max_alerts"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FLOWWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flowwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("feed.mock", false)
	v.SetDefault("feed.mock_interval", "500ms")

	v.SetDefault("engine.debounce_delay", "2s")
	v.SetDefault("engine.min_entries", 2)
	v.SetDefault("engine.pending_timeout", "5s")
	v.SetDefault("engine.cache_reset_every", "4m")
	v.SetDefault("engine.initial_cutoff", false)

	v.SetDefault("notify.debounce", "100ms")
	v.SetDefault("notify.dismiss_after", "8s")
	v.SetDefault("notify.shown_reset_every", "3m")
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("reference.today_hour", 16)
	v.SetDefault("reference.utc_offset_hours", -4)

	v.SetDefault("export.max_alerts", 10000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxAlerts <= 0 {
		return fmt.Errorf("export.max_alerts must be greater than zero")
	}
	if c.Engine.DebounceDelay <= 0 {
		return fmt.Errorf("engine.debounce_delay must be greater than zero")
	}
	if c.Engine.MinEntries < 1 {
		return fmt.Errorf("engine.min_entries must be at least 1")
	}
	if c.Engine.CacheResetEvery <= 0 {
		return fmt.Errorf("engine.cache_reset_every must be greater than zero")
	}
	if c.Reference.TodayHour < 0 || c.Reference.TodayHour > 23 {
		return fmt.Errorf("reference.today_hour must be within 0..23")
	}
	if !c.Feed.Mock && c.Feed.URL == "" {
		return fmt.Errorf("feed.url must be set unless feed.mock is enabled")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token 必须配置")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxAlerts returns either the CLI override or config default.
func (c *Config) ResolveMaxAlerts(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxAlerts
}
