package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Cache    CacheConfig    `toml:"cache"`
	Feed     FeedConfig     `toml:"feed"`
	Player   PlayerConfig   `toml:"player"`
}

// ServerConfig contains proxy HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// UpstreamConfig controls how the proxy talks to the listing API.
//
// ClientID/ClientSecret are optional; when both are set the proxy fetches
// through the authenticated API host with an OAuth2 client-credentials
// token, otherwise it sends anonymous browser-like requests.
type UpstreamConfig struct {
	BaseURL        string  `toml:"base_url"`
	OAuthBaseURL   string  `toml:"oauth_base_url"`
	TokenURL       string  `toml:"token_url"`
	ClientID       string  `toml:"client_id"`
	ClientSecret   string  `toml:"client_secret"`
	UserAgent      string  `toml:"user_agent"`
	TimeoutSecs    int     `toml:"timeout_secs"`
	MaxRetries     int     `toml:"max_retries"`
	RequestsPerSec float64 `toml:"requests_per_sec"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	Path          string `toml:"path"`
	FreshnessSecs int    `toml:"freshness_secs"`
}

// FeedConfig contains defaults for feed fetches.
type FeedConfig struct {
	ProxyURL   string   `toml:"proxy_url"`
	Subreddits []string `toml:"subreddits"`
	Sort       string   `toml:"sort"`
	PageLimit  int      `toml:"page_limit"`
}

// PlayerConfig contains playback settings.
type PlayerConfig struct {
	Volume     int    `toml:"volume"`
	MpvBinary  string `toml:"mpv_binary"`
	IPCSocket  string `toml:"ipc_socket"`
	SampleRate int    `toml:"sample_rate"`
}

// Timeout returns the upstream request timeout as a [time.Duration].
func (u UpstreamConfig) Timeout() time.Duration {
	if u.TimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(u.TimeoutSecs) * time.Second
}

// Freshness returns the cache freshness window as a [time.Duration].
func (c CacheConfig) Freshness() time.Duration {
	if c.FreshnessSecs <= 0 {
		return time.Minute
	}
	return time.Duration(c.FreshnessSecs) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &config, nil
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
