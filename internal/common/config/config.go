// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Bot           BotConfig          `mapstructure:"bot"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Session       SessionConfig      `mapstructure:"session"`
	APIs          APIsConfig         `mapstructure:"apis"`
	Generation    GenerationConfig   `mapstructure:"generation"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Server        ServerConfig       `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// IsProduction reports whether the app runs in production mode. The read-only
// table guard logs instead of failing when this is true.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// BotConfig holds conversation-level settings.
type BotConfig struct {
	Number string `mapstructure:"number"` // bot line number, digits only
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig holds flow-session persistence settings.
type SessionConfig struct {
	TTLMinutes int    `mapstructure:"ttl_minutes"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	AI struct {
		BaseURL     string  `mapstructure:"base_url"`
		APIKey      string  `mapstructure:"api_key"`
		Model       string  `mapstructure:"model"`
		Timeout     int     `mapstructure:"timeout"` // milliseconds
		MaxRetries  int     `mapstructure:"max_retries"`
		Temperature float64 `mapstructure:"temperature"`
	} `mapstructure:"ai"`

	Generator struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"generator"`

	Payments struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"payments"`
}

// GenerationConfig holds settings for the admission-controlled job submitter.
// Durations are seconds.
type GenerationConfig struct {
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests"`
	MaxRetries            int `mapstructure:"max_retries"`
	AttemptTimeout        int `mapstructure:"attempt_timeout"`
	QueuePollInterval     int `mapstructure:"queue_poll_interval"`
	QueueWaitLimit        int `mapstructure:"queue_wait_limit"`
	ProgressInterval      int `mapstructure:"progress_interval"`
}

// NotificationConfig holds settings for the notifier.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig holds settings for the webhook/health HTTP server.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	OutboundURL string `mapstructure:"outbound_url"` // transport endpoint replies are POSTed to
}
