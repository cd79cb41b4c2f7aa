// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like AI_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, e.g. config.production.yaml
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.App.Environment == "" {
		cfg.App.Environment = env
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env from several locations so the binary and the tests
// can both pick it up.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills secrets straight from the environment when the
// YAML expansion left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.AI.APIKey == "" {
		if val := os.Getenv("AI_API_KEY"); val != "" {
			cfg.APIs.AI.APIKey = val
		}
	}
	if cfg.APIs.Generator.APIKey == "" {
		if val := os.Getenv("GENERATOR_API_KEY"); val != "" {
			cfg.APIs.Generator.APIKey = val
		}
	}
	if cfg.APIs.Payments.APIKey == "" {
		if val := os.Getenv("PAYMENTS_API_KEY"); val != "" {
			cfg.APIs.Payments.APIKey = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("POSTGRES_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Bot.Number == "" {
		if val := os.Getenv("BOT_NUMBER"); val != "" {
			cfg.Bot.Number = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Session defaults
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 30
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "session:"
	}

	// Generation defaults mirror the production limits of the generation
	// pipeline; tests shrink them through config.
	if cfg.Generation.MaxConcurrentRequests == 0 {
		cfg.Generation.MaxConcurrentRequests = 3
	}
	if cfg.Generation.MaxRetries == 0 {
		cfg.Generation.MaxRetries = 3
	}
	if cfg.Generation.AttemptTimeout == 0 {
		cfg.Generation.AttemptTimeout = 600
	}
	if cfg.Generation.QueuePollInterval == 0 {
		cfg.Generation.QueuePollInterval = 5
	}
	if cfg.Generation.QueueWaitLimit == 0 {
		cfg.Generation.QueueWaitLimit = 300
	}
	if cfg.Generation.ProgressInterval == 0 {
		cfg.Generation.ProgressInterval = 45
	}

	// Bot defaults
	if cfg.Bot.Number == "" {
		cfg.Bot.Number = "573138381310"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// API timeout defaults
	if cfg.APIs.AI.Timeout == 0 {
		cfg.APIs.AI.Timeout = 60000
	}
	if cfg.APIs.AI.MaxRetries == 0 {
		cfg.APIs.AI.MaxRetries = 2
	}
	if cfg.APIs.AI.Model == "" {
		cfg.APIs.AI.Model = "gpt-4o-mini"
	}
	if cfg.APIs.AI.Temperature == 0 {
		cfg.APIs.AI.Temperature = 0.7
	}
	if cfg.APIs.Generator.Timeout == 0 {
		cfg.APIs.Generator.Timeout = 600000
	}
	if cfg.APIs.Generator.Model == "" {
		cfg.APIs.Generator.Model = "v0-1.5-md"
	}
	if cfg.APIs.Payments.Timeout == 0 {
		cfg.APIs.Payments.Timeout = 30000
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.APIs.AI.BaseURL == "" {
		return fmt.Errorf("apis.ai.base_url is required")
	}
	if cfg.APIs.Generator.BaseURL == "" {
		return fmt.Errorf("apis.generator.base_url is required")
	}

	return nil
}
