package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Session SessionConfig `mapstructure:"session"`
	Records RecordsConfig `mapstructure:"records"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// BackendConfig points the console at the clinic gateway.
type BackendConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

// SessionConfig selects where the bearer token is durably stored.
// Store is "file" or "redis".
type SessionConfig struct {
	Store     string      `mapstructure:"store"`
	TokenFile string      `mapstructure:"token_file"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RecordsConfig picks the default reconciliation mode for record
// loads that do not name one explicitly.
type RecordsConfig struct {
	AutoCreateOnMissing bool `mapstructure:"auto_create_on_missing"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("backend.base_url", "http://localhost:8080")
	viper.SetDefault("backend.timeout_seconds", 20)
	viper.SetDefault("backend.rate_limit", 0)
	viper.SetDefault("backend.rate_burst", 1)
	viper.SetDefault("session.store", "file")
	viper.SetDefault("session.token_file", ".clinic-console/token")
	viper.SetDefault("session.redis.addr", "localhost:6379")
	viper.SetDefault("records.auto_create_on_missing", false)
	viper.SetDefault("log.level", "info")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
