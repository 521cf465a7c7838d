// Package config loads the rsvpd configuration from TOML files and the
// environment using Viper.
package config

// Config represents the core rsvpd configuration
type Config struct {
	Server     ServerConfig          `mapstructure:"server"`
	Meetup     MeetupConfig          `mapstructure:"meetup"`
	Scheduling SchedulingConfig      `mapstructure:"scheduling"`
	Flags      FlagsConfig           `mapstructure:"flags"`
	Users      map[string]UserConfig `mapstructure:"users"`
}

// ServerConfig configures the rsvpd control-plane HTTP server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MeetupConfig configures the outbound Meetup GraphQL client
type MeetupConfig struct {
	GraphQLURL        string `mapstructure:"graphql_url"`
	Gql2URL           string `mapstructure:"gql2_url"` // persisted-query endpoint (event details, attendees)
	GroupURLName      string `mapstructure:"group_urlname"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"` // outbound rate limit
}

// SchedulingConfig configures RSVP fire-time computation and the job ledger
type SchedulingConfig struct {
	TestDelayMillis   int `mapstructure:"test_delay_ms"`   // fire delay in test mode
	RemoveDelayMillis int `mapstructure:"remove_delay_ms"` // fire delay for remove actions
	AdvanceDays       int `mapstructure:"advance_days"`    // RSVP this many days before the event
	MaxExtras         int `mapstructure:"max_extras"`
	MaxEvents         int `mapstructure:"max_events"`
	LedgerSize        int `mapstructure:"ledger_size"` // executed-job history bound
}

// FlagsConfig configures the live flag file watched for mode changes
type FlagsConfig struct {
	Path string `mapstructure:"path"`
}

// UserConfig holds per-user Meetup session credentials.
// The cookie header is the user's auth token and must never be logged.
type UserConfig struct {
	Cookie string `mapstructure:"cookie"`
}

// Default server port
const DefaultServerPort = 3001
