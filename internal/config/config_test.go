package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[server]
name = "irc.example.net"
network = "ExampleNet"

[classes.clients]
max_sendq = 1048576
max_clients = 500
ping_frequency_seconds = 120

[[listeners]]
address = ":6667"
class = "clients"

[[links]]
name = "hub.example.net"
password = "linksecret"
address = "10.0.0.1:7000"
services = false
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := writeTemp(t, "ircd.toml", sampleTOML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "irc.example.net", cfg.Server.Name)
	assert.Equal(t, "ExampleNet", cfg.Server.Network)
	assert.Equal(t, "info", cfg.Logging.Level, "unset sections keep their default")

	clients := cfg.Class("clients")
	assert.Equal(t, 1048576, clients.MaxSendQ)
	assert.Equal(t, 500, clients.MaxClients)
	assert.Equal(t, 120*time.Second, clients.PingFrequency())

	require.Len(t, cfg.Listeners, 1)
	assert.Equal(t, ":6667", cfg.Listeners[0].Address)

	require.Len(t, cfg.Links, 1)
	assert.Equal(t, "hub.example.net", cfg.Links[0].Name)
}

func TestClassFallsBackToDefault(t *testing.T) {
	cfg := defaults()
	got := cfg.Class("nonexistent")
	assert.Equal(t, cfg.Classes["default"], got)
}

func TestLoadEnvOverlay(t *testing.T) {
	path := writeTemp(t, "ircd.toml", sampleTOML)
	t.Setenv("IRCD_SERVER_NAME", "override.example.net")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override.example.net", cfg.Server.Name)
}

func TestManagerReloadPicksUpChanges(t *testing.T) {
	path := writeTemp(t, "ircd.toml", sampleTOML)
	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, "irc.example.net", m.Get().Server.Name)

	var reloaded *Config
	m.OnReload(func(c *Config) { reloaded = c })

	require.NoError(t, os.WriteFile(path, []byte(`
[server]
name = "renamed.example.net"
`), 0o600))

	require.NoError(t, m.Reload())
	assert.Equal(t, "renamed.example.net", m.Get().Server.Name)
	require.NotNil(t, reloaded)
	assert.Equal(t, "renamed.example.net", reloaded.Server.Name)
}

func TestManagerReloadKeepsOldConfigOnParseError(t *testing.T) {
	path := writeTemp(t, "ircd.toml", sampleTOML)
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not valid toml [[["), 0o600))
	assert.Error(t, m.Reload())
	assert.Equal(t, "irc.example.net", m.Get().Server.Name, "failed reload must not clobber the live config")
}

func TestLoadMOTD(t *testing.T) {
	path := writeTemp(t, "motd.txt", "line one\nline two\n")
	lines, err := LoadMOTD(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two"}, lines)
}

func TestLoadMOTDMissingFileIsNotAnError(t *testing.T) {
	lines, err := LoadMOTD(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	assert.Nil(t, lines)
}
