/*
Package config handles configuration management for the service. It uses
Viper to read settings from environment variables (with an optional .env
file for local development), providing one place where every tunable
lives.

PAYOUT LIMITS:
  MIN_PAYOUT_MINOR and MAX_PAYOUT_MINOR are hard business limits in
  minor currency units. Lowering the minimum is a legitimate operation
  (e.g. in test environments); the workflow takes whatever is configured.

CACHE:
  REDIS_URL is optional. When empty, the availability cache falls back
  to a process-local TTL cache, which is correct but not shared across
  instances.
*/
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the session engine.
type Config struct {
	Env        string `mapstructure:"ENV"`
	ServerPort string `mapstructure:"SERVER_PORT"`
	DBPath     string `mapstructure:"DB_PATH"`
	RedisURL   string `mapstructure:"REDIS_URL"`

	MinPayoutMinor int64 `mapstructure:"MIN_PAYOUT_MINOR"`
	MaxPayoutMinor int64 `mapstructure:"MAX_PAYOUT_MINOR"`

	BookingHorizonDays      int `mapstructure:"BOOKING_HORIZON_DAYS"`
	AvailabilityCacheTTLSec int `mapstructure:"AVAILABILITY_CACHE_TTL_SECONDS"`
}

// CacheTTL returns the availability cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.AvailabilityCacheTTLSec) * time.Second
}

// Load reads configuration from environment variables, with defaults for
// everything that has a sensible one. path is where an optional .env
// file may live (usually ".").
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_PATH", "solace.db")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("MIN_PAYOUT_MINOR", 500)
	viper.SetDefault("MAX_PAYOUT_MINOR", 50000)
	viper.SetDefault("BOOKING_HORIZON_DAYS", 7)
	viper.SetDefault("AVAILABILITY_CACHE_TTL_SECONDS", 120)

	// The .env file is optional; env vars alone are fine.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
