// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Reconcile policies for balances reported by clients.
const (
	ReconcileHigher = "higher"
	ReconcileServer = "server"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Daily     DailyConfig     `mapstructure:"daily"`
	Craps     CrapsConfig     `mapstructure:"craps"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Balance   BalanceConfig   `mapstructure:"balance"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	BasePath        string        `mapstructure:"base_path"`
	AnonKey         string        `mapstructure:"anon_key"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// BotConfig holds Telegram bot configuration. An empty token disables the bot.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// DailyConfig holds daily bonus configuration.
type DailyConfig struct {
	Reward        int64 `mapstructure:"reward"`
	CooldownHours int   `mapstructure:"cooldown_hours"`
}

// Cooldown returns the claim cooldown as a duration.
func (d DailyConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownHours) * time.Hour
}

// CrapsConfig holds table configuration.
type CrapsConfig struct {
	BettingDurationSeconds int     `mapstructure:"betting_duration_seconds"`
	BroadcastEverySeconds  int     `mapstructure:"broadcast_every_seconds"`
	HistoryDisplayLimit    int     `mapstructure:"history_display_limit"`
	StartingBalance        int64   `mapstructure:"starting_balance"`
	MaxSeats               int     `mapstructure:"max_seats"`
	JackpotRate            float64 `mapstructure:"jackpot_rate"`
	JackpotSeed            int64   `mapstructure:"jackpot_seed"`
}

// BettingDuration returns the countdown length for one betting window.
func (c CrapsConfig) BettingDuration() time.Duration {
	return time.Duration(c.BettingDurationSeconds) * time.Second
}

// RealtimeConfig holds websocket hub configuration.
type RealtimeConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// BalanceConfig holds balance persistence configuration.
type BalanceConfig struct {
	ReconcilePolicy string        `mapstructure:"reconcile_policy"`
	SyncAttempts    int           `mapstructure:"sync_attempts"`
	SyncInitial     time.Duration `mapstructure:"sync_initial"`
	SyncMax         time.Duration `mapstructure:"sync_max"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, SERVER_ANON_KEY, DATABASE_HOST
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	switch c.Balance.ReconcilePolicy {
	case ReconcileHigher, ReconcileServer:
	default:
		return fmt.Errorf("invalid balance.reconcile_policy %q", c.Balance.ReconcilePolicy)
	}
	if c.Craps.BettingDurationSeconds <= 0 {
		return fmt.Errorf("craps.betting_duration_seconds must be positive")
	}
	if c.Balance.SyncAttempts < 1 {
		return fmt.Errorf("balance.sync_attempts must be at least 1")
	}
	if c.Craps.JackpotRate < 0 || c.Craps.JackpotRate > 1 {
		return fmt.Errorf("craps.jackpot_rate must be within [0,1]")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_path", "/functions/v1/make-server-67091a4f")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.log_level", "info")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "craps")
	v.SetDefault("database.name", "craps")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Daily bonus defaults
	v.SetDefault("daily.reward", 1000)
	v.SetDefault("daily.cooldown_hours", 24)

	// Table defaults
	v.SetDefault("craps.betting_duration_seconds", 30)
	v.SetDefault("craps.broadcast_every_seconds", 5)
	v.SetDefault("craps.history_display_limit", 20)
	v.SetDefault("craps.starting_balance", 10000)
	v.SetDefault("craps.max_seats", 8)
	v.SetDefault("craps.jackpot_rate", 0.01)
	v.SetDefault("craps.jackpot_seed", 10000)

	// Realtime defaults
	v.SetDefault("realtime.enabled", true)
	v.SetDefault("realtime.buffer_size", 256)

	// Balance sync defaults
	v.SetDefault("balance.reconcile_policy", ReconcileHigher)
	v.SetDefault("balance.sync_attempts", 3)
	v.SetDefault("balance.sync_initial", "500ms")
	v.SetDefault("balance.sync_max", "2s")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
