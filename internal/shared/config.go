package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Skill    SkillConfig    `toml:"skill"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// SpotifyConfig contains Spotify API credentials and the token cache user key.
type SpotifyConfig struct {
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	RedirectURI  string  `toml:"redirect_uri"`
	Scope        string  `toml:"scope"`
	User         string  `toml:"user"`
	RateLimit    float64 `toml:"rate_limit"`
	Timeout      string  `toml:"timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MQTTConfig contains message bus connection settings.
type MQTTConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	TLS         bool   `toml:"tls"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	ClientID    string `toml:"client_id"`
	IntentTopic string `toml:"intent_topic"`
	OutputTopic string `toml:"output_topic"`
}

// SkillConfig tunes command handling and the playlist/device cache.
type SkillConfig struct {
	Name               string  `toml:"name"`
	CertaintyThreshold float64 `toml:"certainty_threshold"`
	CacheTTL           string  `toml:"cache_ttl"`
	RefreshInterval    string  `toml:"refresh_interval"`
	ActivationDelay    string  `toml:"activation_delay"`
	TemplatesPath      string  `toml:"templates_path"`
	QueueSize          int     `toml:"queue_size"`
	DefaultRoom        string  `toml:"default_room"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file are taken from the embedded defaults, then environment overrides are applied.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv(os.Getenv)
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides credentials and broker settings from the environment.
//
// lookup is usually [os.Getenv]; empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) string) {
	if v := lookup("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := lookup("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := lookup("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Spotify.RedirectURI = v
	}
	if v := lookup("MQTT_HOST"); v != "" {
		c.MQTT.Host = v
	}
	if v := lookup("MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTT.Port = port
		}
	}
	if v := lookup("SPOTSKILL_DATABASE"); v != "" {
		c.Database.Path = v
	}
}

// Validate checks that the settings required to run the skill are present.
func (c *Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "spotify.client_id")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "spotify.client_secret")
	}
	if c.MQTT.Host == "" {
		missing = append(missing, "mqtt.host")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	for name, raw := range map[string]string{
		"skill.cache_ttl":        c.Skill.CacheTTL,
		"skill.refresh_interval": c.Skill.RefreshInterval,
		"skill.activation_delay": c.Skill.ActivationDelay,
		"spotify.timeout":        c.Spotify.Timeout,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}

	if c.Skill.CertaintyThreshold < 0 || c.Skill.CertaintyThreshold > 1 {
		return fmt.Errorf("%w: skill.certainty_threshold must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Scopes splits the configured OAuth scope string.
func (s SpotifyConfig) Scopes() []string {
	return strings.Fields(s.Scope)
}

// Duration parses a duration setting, falling back when it is empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BrokerURL returns the MQTT broker URL in the form paho expects.
func (m MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if m.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.Host, m.Port)
}
