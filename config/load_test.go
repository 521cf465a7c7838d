package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "https://www.meetup.com/gql", cfg.Meetup.GraphQLURL)
	assert.Equal(t, "https://www.meetup.com/gql2", cfg.Meetup.Gql2URL)
	assert.Equal(t, "pick-up-basketball-amsterdam", cfg.Meetup.GroupURLName)
	assert.Equal(t, 30, cfg.Meetup.TimeoutSeconds)
	assert.Equal(t, 5000, cfg.Scheduling.TestDelayMillis)
	assert.Equal(t, 2500, cfg.Scheduling.RemoveDelayMillis)
	assert.Equal(t, 7, cfg.Scheduling.AdvanceDays)
	assert.Equal(t, 10, cfg.Scheduling.MaxExtras)
	assert.Equal(t, 50, cfg.Scheduling.MaxEvents)
	assert.Equal(t, 100, cfg.Scheduling.LedgerSize)
	assert.Equal(t, "flags.toml", cfg.Flags.Path)
}

func TestLoadCachesConfig(t *testing.T) {
	Reset()
	defer Reset()

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsvpd.toml")
	content := `
[server]
port = 8080
allowed_origins = ["http://example.com"]

[meetup]
group_urlname = "another-group"

[scheduling]
advance_days = 3

[users.alice]
cookie = "session=alice"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "another-group", cfg.Meetup.GroupURLName)
	assert.Equal(t, 3, cfg.Scheduling.AdvanceDays)

	// Defaults still fill unspecified keys
	assert.Equal(t, "https://www.meetup.com/gql", cfg.Meetup.GraphQLURL)
	assert.Equal(t, 5000, cfg.Scheduling.TestDelayMillis)

	require.Contains(t, cfg.Users, "alice")
	assert.Equal(t, "session=alice", cfg.Users["alice"].Cookie)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
