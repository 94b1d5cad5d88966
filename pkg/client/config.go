package client

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aeolun/forumchat/pkg/forum"
	"github.com/pkg/errors"
)

// DefaultConfigPath is where the client looks for its config file
const DefaultConfigPath = "~/.forumchat/config.toml"

// Config represents the structure of the client config file
type Config struct {
	Server        ServerSection        `toml:"server"`
	Client        ClientSection        `toml:"client"`
	Limits        LimitsSection        `toml:"limits"`
	Notifications NotificationsSection `toml:"notifications"`
	Metrics       MetricsSection       `toml:"metrics"`
}

type ServerSection struct {
	URL                   string `toml:"url"`
	Namespace             string `toml:"namespace"`
	Transport             string `toml:"transport"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

type ClientSection struct {
	DataDir  string `toml:"data_dir"`
	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`
}

type LimitsSection struct {
	Username    int `toml:"username"`
	ThreadTitle int `toml:"thread_title"`
	PostContent int `toml:"post_content"`
}

type NotificationsSection struct {
	Enabled     bool `toml:"enabled"`
	IdleMinutes int  `toml:"idle_minutes"`
}

type MetricsSection struct {
	Listen string `toml:"listen"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	limits := forum.DefaultLimits()
	return Config{
		Server: ServerSection{
			URL:                   "http://localhost:5000",
			Namespace:             "/chat",
			Transport:             TransportSocketIO,
			RequestTimeoutSeconds: 10,
		},
		Client: ClientSection{
			DataDir:  "~/.forumchat",
			LogFile:  "forumchat.log",
			LogLevel: "info",
		},
		Limits: LimitsSection{
			Username:    limits.Username,
			ThreadTitle: limits.ThreadTitle,
			PostContent: limits.PostContent,
		},
		Notifications: NotificationsSection{
			Enabled:     true,
			IdleMinutes: 5,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found,
// and applies environment variable overrides
func LoadConfig(path string) (Config, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultConfig()
		// Not being able to write the file is no reason to refuse to start
		_ = writeDefaultConfig(path, config)
		config = applyEnvOverrides(config)
		if err := config.Validate(); err != nil {
			return Config{}, err
		}
		return config, nil
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config file")
	}

	config = applyEnvOverrides(config)
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate rejects settings the client cannot run with
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return errors.New("server.url must be set")
	}
	if _, err := c.RealtimeEndpoint(); err != nil {
		return errors.Wrap(err, "server.url")
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return errors.New("server.request_timeout_seconds must not be negative")
	}
	if c.Limits.Username < 0 || c.Limits.ThreadTitle < 0 || c.Limits.PostContent < 0 {
		return errors.New("limits must not be negative")
	}
	return nil
}

// RealtimeEndpoint returns the websocket URL for the configured transport
func (c Config) RealtimeEndpoint() (string, error) {
	switch c.Server.Transport {
	case TransportSocketIO:
		return SocketIOURL(c.Server.URL)
	case TransportWebSocket:
		return RealtimeURL(c.Server.URL, c.Server.Namespace)
	}
	return "", errors.Errorf("unknown transport %q (want %s or %s)",
		c.Server.Transport, TransportSocketIO, TransportWebSocket)
}

// RequestTimeout returns the per-request timeout; zero means no timeout
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// IdleThreshold returns how long the user must be idle before a desktop
// notification is shown
func (c Config) IdleThreshold() time.Duration {
	return time.Duration(c.Notifications.IdleMinutes) * time.Minute
}

// ForumLimits converts the limits section
func (c Config) ForumLimits() forum.Limits {
	return forum.Limits{
		Username:    c.Limits.Username,
		ThreadTitle: c.Limits.ThreadTitle,
		PostContent: c.Limits.PostContent,
	}
}

// DataDir returns the expanded data directory
func (c Config) DataDir() (string, error) {
	return ExpandPath(c.Client.DataDir)
}

// StatePath returns the path of the sqlite state database
func (c Config) StatePath() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// LogPath returns the log file path; relative names live in the data dir
func (c Config) LogPath() (string, error) {
	p, err := ExpandPath(c.Client.LogFile)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// ExpandPath expands a leading ~/ to the user's home directory
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(homeDir, path[2:]), nil
}

// applyEnvOverrides applies environment variable overrides to the config
// Environment variables follow the pattern: FORUMCHAT_SECTION_KEY
func applyEnvOverrides(config Config) Config {
	if val := os.Getenv("FORUMCHAT_SERVER_URL"); val != "" {
		config.Server.URL = val
	}
	if val := os.Getenv("FORUMCHAT_SERVER_NAMESPACE"); val != "" {
		config.Server.Namespace = val
	}
	if val := os.Getenv("FORUMCHAT_SERVER_TRANSPORT"); val != "" {
		config.Server.Transport = val
	}
	if val := os.Getenv("FORUMCHAT_SERVER_REQUEST_TIMEOUT_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			config.Server.RequestTimeoutSeconds = secs
		}
	}
	if val := os.Getenv("FORUMCHAT_DATA_DIR"); val != "" {
		config.Client.DataDir = val
	}
	if val := os.Getenv("FORUMCHAT_LOG_LEVEL"); val != "" {
		config.Client.LogLevel = val
	}
	if val := os.Getenv("FORUMCHAT_NOTIFICATIONS_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			config.Notifications.Enabled = enabled
		}
	}
	if val := os.Getenv("FORUMCHAT_METRICS_LISTEN"); val != "" {
		config.Metrics.Listen = val
	}
	return config
}

const configHeader = `# forumchat client configuration
# This file was auto-generated with default values.
#
# Environment variables can override these settings:
# FORUMCHAT_SERVER_URL, FORUMCHAT_SERVER_NAMESPACE, FORUMCHAT_SERVER_TRANSPORT,
# FORUMCHAT_SERVER_REQUEST_TIMEOUT_SECONDS, FORUMCHAT_DATA_DIR,
# FORUMCHAT_LOG_LEVEL, FORUMCHAT_NOTIFICATIONS_ENABLED, FORUMCHAT_METRICS_LISTEN
#
# server.transport is "socketio" for Socket.IO servers such as Flask-SocketIO,
# or "websocket" for bare JSON frames on /ws/<namespace>.
# limits are checked locally before a request is sent; 0 disables a check.
# metrics.listen exposes Prometheus metrics, e.g. "127.0.0.1:9464".

`

// writeDefaultConfig writes the default config to path
func writeDefaultConfig(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}
	defer f.Close()

	if _, err := f.WriteString(configHeader); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return errors.Wrap(err, "failed to encode config file")
	}
	return nil
}
