package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/courtside/rsvpd/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the rsvpd configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Environment variables take precedence: RSVPD_SERVER_PORT etc.
	v.SetEnvPrefix("RSVPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("rsvpd")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/rsvpd")

	// Config file is optional; defaults and env vars are enough to run
	_ = v.ReadInConfig()

	viperInstance = v
	return v
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{"http://localhost", "https://localhost"})

	// Meetup API defaults
	v.SetDefault("meetup.graphql_url", "https://www.meetup.com/gql")
	v.SetDefault("meetup.gql2_url", "https://www.meetup.com/gql2")
	v.SetDefault("meetup.group_urlname", "pick-up-basketball-amsterdam")
	v.SetDefault("meetup.timeout_seconds", 30)
	v.SetDefault("meetup.requests_per_minute", 30)

	// Scheduling defaults
	v.SetDefault("scheduling.test_delay_ms", 5000)   // 5 seconds for test mode
	v.SetDefault("scheduling.remove_delay_ms", 2500) // 2.5 seconds for remove action
	v.SetDefault("scheduling.advance_days", 7)       // RSVP 7 days before event
	v.SetDefault("scheduling.max_extras", 10)
	v.SetDefault("scheduling.max_events", 50)
	v.SetDefault("scheduling.ledger_size", 100)

	// Flag file defaults
	v.SetDefault("flags.path", "flags.toml")
}
