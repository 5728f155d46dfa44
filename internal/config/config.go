// Package config loads the server's TOML (or YAML) configuration
// document, overlays environment variables, and watches the source file
// for REHASH-driven hot reload. Grounded on
// _examples/presbrey-pkg/irc/config/config.go's Config struct and
// loadFromSource dispatch, and on irc/server.go's flat env-tagged Config
// for the environment-overlay shape (spec.md §4.11).
package config

import "time"

// Config is the top-level configuration document. The core never parses
// this itself (spec.md §6): internal/connio and internal/peer consume
// the pieces they need by name, looked up through the accessors below.
type Config struct {
	Server    ServerConfig           `toml:"server" yaml:"server"`
	TLS       TLSConfig              `toml:"tls" yaml:"tls"`
	WebPortal WebPortalConfig        `toml:"web_portal" yaml:"web_portal"`
	AdminAPI  AdminAPIConfig         `toml:"admin_api" yaml:"admin_api"`
	Metrics   MetricsConfig          `toml:"metrics" yaml:"metrics"`
	Logging   LoggingConfig          `toml:"logging" yaml:"logging"`
	Classes   map[string]ClassConfig `toml:"classes" yaml:"classes"`
	Listeners []ListenerConfig       `toml:"listeners" yaml:"listeners"`
	Links     []LinkConfig           `toml:"links" yaml:"links"`
	Operators []OperatorConfig       `toml:"operators" yaml:"operators"`

	// Source is the file the document was loaded from, retained for
	// Reload with no argument. Not a struct tag target for any format.
	Source string `toml:"-" yaml:"-"`
}

// ServerConfig identifies this server on the network.
type ServerConfig struct {
	Name        string `toml:"name" yaml:"name" env:"IRCD_SERVER_NAME"`
	Network     string `toml:"network" yaml:"network" env:"IRCD_NETWORK"`
	Description string `toml:"description" yaml:"description" env:"IRCD_DESCRIPTION"`
	MOTDFile    string `toml:"motd_file" yaml:"motd_file" env:"IRCD_MOTD_FILE"`
	Password    string `toml:"password" yaml:"password" env:"IRCD_PASSWORD"`

	// PeerAddress is the inbound server-to-server listener address
	// (spec.md §4.8). Empty disables inbound peer links; outgoing links
	// configured with auto_connect still dial out regardless.
	PeerAddress string `toml:"peer_address" yaml:"peer_address" env:"IRCD_PEER_ADDRESS"`
}

// TLSConfig controls client-facing TLS termination, grounded on the
// teacher's TLS block (irc/config/config.go).
type TLSConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" env:"IRCD_TLS_ENABLED"`
	Cert    string `toml:"cert" yaml:"cert" env:"IRCD_TLS_CERT"`
	Key     string `toml:"key" yaml:"key" env:"IRCD_TLS_KEY"`
}

// WebPortalConfig controls internal/webportal's listener.
type WebPortalConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" env:"IRCD_WEB_ENABLED"`
	Address string `toml:"address" yaml:"address" env:"IRCD_WEB_ADDRESS"`
}

// MetricsConfig controls the standalone Prometheus listener, grounded on
// echoprom.Config's MetricsPath/MetricsPort split (presbrey-pkg/echoprom).
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" env:"IRCD_METRICS_ENABLED"`
	Address string `toml:"address" yaml:"address" env:"IRCD_METRICS_ADDRESS"`
}

// AdminAPIConfig controls internal/adminapi's listener and auth.
type AdminAPIConfig struct {
	Enabled     bool     `toml:"enabled" yaml:"enabled" env:"IRCD_ADMIN_ENABLED"`
	Address     string   `toml:"address" yaml:"address" env:"IRCD_ADMIN_ADDRESS"`
	BearerToken string   `toml:"bearer_token" yaml:"bearer_token" env:"IRCD_ADMIN_TOKEN"`
	Operators   []string `toml:"operators" yaml:"operators"`
}

// LoggingConfig controls the logrus root logger (spec.md §4.11 ambient
// stack), grounded on nabbar-golib's level/format split.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" env:"IRCD_LOG_LEVEL"`
	Format string `toml:"format" yaml:"format" env:"IRCD_LOG_FORMAT"`
}

// ClassConfig is one named connection class (spec.md §6), referenced by
// name from ListenerConfig and LinkConfig rather than inlined, so many
// listeners/links can share one policy. Durations are plain seconds
// rather than time.Duration fields: BurntSushi/toml has no special-cased
// duration-string decoding, so "120s"-style values would fail to parse
// where an integer seconds field parses the same TOML/YAML/env value
// (caarlos0/env) with no extra code.
type ClassConfig struct {
	MaxSendQ                 int `toml:"max_sendq" yaml:"max_sendq"`
	MaxRecvQ                 int `toml:"max_recvq" yaml:"max_recvq"`
	PingFrequencySeconds     int `toml:"ping_frequency_seconds" yaml:"ping_frequency_seconds"`
	ConnectionTimeoutSeconds int `toml:"connection_timeout_seconds" yaml:"connection_timeout_seconds"`
	MaxClients               int `toml:"max_clients" yaml:"max_clients"`
}

// PingFrequency returns the class's ping interval as a time.Duration.
func (c ClassConfig) PingFrequency() time.Duration {
	return time.Duration(c.PingFrequencySeconds) * time.Second
}

// ConnectionTimeout returns the class's idle timeout as a time.Duration.
func (c ClassConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutSeconds) * time.Second
}

// ListenerConfig is one client-facing listening socket.
type ListenerConfig struct {
	Address string `toml:"address" yaml:"address"`
	TLS     bool   `toml:"tls" yaml:"tls"`
	Class   string `toml:"class" yaml:"class"`
}

// LinkConfig is one configured peer-server link entry, the on-disk
// counterpart of internal/peer.LinkConfig.
type LinkConfig struct {
	Name        string `toml:"name" yaml:"name"`
	Password    string `toml:"password" yaml:"password"`
	Address     string `toml:"address" yaml:"address"`
	Class       string `toml:"class" yaml:"class"`
	Services    bool   `toml:"services" yaml:"services"`
	AutoConnect bool   `toml:"auto_connect" yaml:"auto_connect"`
}

// OperatorConfig is one configured IRC operator credential, consumed by
// internal/auth's static provider.
type OperatorConfig struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	Mask     string `toml:"mask" yaml:"mask"`
}

// defaults mirrors the teacher's Load's pre-unmarshal default assignment
// so a document that omits a section still produces a runnable config.
func defaults() *Config {
	cfg := &Config{Classes: map[string]ClassConfig{}}
	cfg.Server.Name = "irc.local"
	cfg.Server.Network = "IRCNet"
	cfg.Server.Description = "Go IRC daemon"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Metrics.Address = ":7070"
	cfg.Classes["default"] = ClassConfig{
		MaxSendQ:                 256 * 1024,
		MaxRecvQ:                 8 * 1024,
		PingFrequencySeconds:     90,
		ConnectionTimeoutSeconds: 240,
		MaxClients:               1000,
	}
	return cfg
}

// Class looks up a named connection class, falling back to "default".
func (c *Config) Class(name string) ClassConfig {
	if cl, ok := c.Classes[name]; ok {
		return cl
	}
	return c.Classes["default"]
}
