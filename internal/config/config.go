package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/emiago/sipgo/sip"
)

// Config holds all runtime configuration for the voicebridge server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	HTTPPort          int
	LogLevel          string
	LogFormat         string // "text" or "json"
	DatabaseURL       string // PostgreSQL DSN for the assistant/number lookup store
	ProviderURL       string // SIP control-plane API base URL (e.g. "https://sip.example.com")
	ProviderAPIKey    string
	ProviderAPISecret string
	DefaultTrunkID    string // trunk used when a request supplies neither id nor name
	DefaultTrunkName  string // trunk looked up (or lazily created) by name
	DefaultAgentName  string // agent used when auto-assign requests omit agentName
	SIPBridgeURI      string // fixed sips: target the inbound router dials (e.g. "sips:agents.example.com;transport=tls")
	PublicBaseURL     string // externally reachable base URL for call status callbacks
	RoomPrefix        string
	DialTimeoutSecs   int    // ring timeout for the bridge <Dial>
	AdminTokenSecret  string // hex-encoded 32-byte secret for admin API bearer tokens
}

// defaults
const (
	defaultHTTPPort    = 8080
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultRoomPrefix  = "call"
	defaultDialTimeout = 30
)

// envPrefix is the prefix for all voicebridge environment variables.
const envPrefix = "VOICEBRIDGE_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("voicebridge", flag.ContinueOnError)

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL DSN for the assistant/number lookup store")
	fs.StringVar(&cfg.ProviderURL, "provider-url", "", "SIP control-plane API base URL")
	fs.StringVar(&cfg.ProviderAPIKey, "provider-api-key", "", "SIP control-plane API key")
	fs.StringVar(&cfg.ProviderAPISecret, "provider-api-secret", "", "SIP control-plane API secret")
	fs.StringVar(&cfg.DefaultTrunkID, "default-trunk-id", "", "default inbound trunk id for number assignment")
	fs.StringVar(&cfg.DefaultTrunkName, "default-trunk-name", "", "default inbound trunk name (looked up or created if no id is configured)")
	fs.StringVar(&cfg.DefaultAgentName, "default-agent-name", "", "agent name used when auto-assign requests omit one")
	fs.StringVar(&cfg.SIPBridgeURI, "sip-bridge-uri", "", "SIP URI of the voice-agent runtime that inbound calls are bridged to")
	fs.StringVar(&cfg.PublicBaseURL, "public-base-url", "", "externally reachable base URL for call status callbacks")
	fs.StringVar(&cfg.RoomPrefix, "room-prefix", defaultRoomPrefix, "room name prefix for dispatch rules")
	fs.IntVar(&cfg.DialTimeoutSecs, "dial-timeout", defaultDialTimeout, "ring timeout in seconds for the call bridge")
	fs.StringVar(&cfg.AdminTokenSecret, "admin-token-secret", "", "hex-encoded 32-byte secret for admin API bearer tokens (auto-generated if empty)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"http-port":           envPrefix + "HTTP_PORT",
		"log-level":           envPrefix + "LOG_LEVEL",
		"log-format":          envPrefix + "LOG_FORMAT",
		"database-url":        envPrefix + "DATABASE_URL",
		"provider-url":        envPrefix + "PROVIDER_URL",
		"provider-api-key":    envPrefix + "PROVIDER_API_KEY",
		"provider-api-secret": envPrefix + "PROVIDER_API_SECRET",
		"default-trunk-id":    envPrefix + "DEFAULT_TRUNK_ID",
		"default-trunk-name":  envPrefix + "DEFAULT_TRUNK_NAME",
		"default-agent-name":  envPrefix + "DEFAULT_AGENT_NAME",
		"sip-bridge-uri":      envPrefix + "SIP_BRIDGE_URI",
		"public-base-url":     envPrefix + "PUBLIC_BASE_URL",
		"room-prefix":         envPrefix + "ROOM_PREFIX",
		"dial-timeout":        envPrefix + "DIAL_TIMEOUT",
		"admin-token-secret":  envPrefix + "ADMIN_TOKEN_SECRET",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "database-url":
			cfg.DatabaseURL = val
		case "provider-url":
			cfg.ProviderURL = val
		case "provider-api-key":
			cfg.ProviderAPIKey = val
		case "provider-api-secret":
			cfg.ProviderAPISecret = val
		case "default-trunk-id":
			cfg.DefaultTrunkID = val
		case "default-trunk-name":
			cfg.DefaultTrunkName = val
		case "default-agent-name":
			cfg.DefaultAgentName = val
		case "sip-bridge-uri":
			cfg.SIPBridgeURI = val
		case "public-base-url":
			cfg.PublicBaseURL = val
		case "room-prefix":
			cfg.RoomPrefix = val
		case "dial-timeout":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.DialTimeoutSecs = v
			}
		case "admin-token-secret":
			cfg.AdminTokenSecret = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	// Provider key and secret must both be set or both be empty. Credentials
	// are never silently defaulted: a missing credential surfaces as a
	// configuration error on the endpoints that need it.
	if (c.ProviderAPIKey == "") != (c.ProviderAPISecret == "") {
		return fmt.Errorf("provider-api-key and provider-api-secret must both be provided or both be omitted")
	}
	if c.ProviderURL != "" && c.ProviderAPIKey == "" {
		return fmt.Errorf("provider-url requires provider-api-key and provider-api-secret")
	}

	if c.DialTimeoutSecs < 1 || c.DialTimeoutSecs > 600 {
		return fmt.Errorf("dial-timeout must be between 1 and 600 seconds, got %d", c.DialTimeoutSecs)
	}

	if c.SIPBridgeURI != "" {
		var uri sip.Uri
		if err := sip.ParseUri(c.SIPBridgeURI, &uri); err != nil {
			return fmt.Errorf("sip-bridge-uri is not a valid SIP URI: %w", err)
		}
	}

	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	return nil
}

// ProviderConfigured reports whether the SIP control-plane credentials are set.
func (c *Config) ProviderConfigured() bool {
	return c.ProviderURL != "" && c.ProviderAPIKey != "" && c.ProviderAPISecret != ""
}

// StatusCallbackURL returns the absolute URL the PSTN provider should post
// call-lifecycle events to, or "" when no public base URL is configured.
func (c *Config) StatusCallbackURL() string {
	if c.PublicBaseURL == "" {
		return ""
	}
	return c.PublicBaseURL + "/twilio/status"
}

// AdminTokenSecretBytes returns the decoded 32-byte admin token secret.
// If no secret is configured, it generates a random 32-byte key and stores
// the hex-encoded value back in the config for the process lifetime.
func (c *Config) AdminTokenSecretBytes() ([]byte, error) {
	if c.AdminTokenSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating admin token secret: %w", err)
		}
		c.AdminTokenSecret = hex.EncodeToString(key)
		slog.Warn("no admin-token-secret configured, generated ephemeral key (tokens will not survive restart)")
		return key, nil
	}
	key, err := hex.DecodeString(c.AdminTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding admin token secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("admin token secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
