package ai

import "time"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
}

func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		Temperature: 0.7,
	}
}
