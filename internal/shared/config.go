package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Ingestion   IngestionConfig   `toml:"ingestion"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	SendGrid SendGridConfig `toml:"sendgrid"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Map returns the Spotify credentials as a string map for service constructors.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// SendGridConfig contains outbound email delivery settings.
type SendGridConfig struct {
	APIKey      string `toml:"api_key"`
	FromAddress string `toml:"from_address"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the auth front end.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// IngestionConfig controls the recurring pull of recently played items.
//
// RetryAttempts bounds retries on transient upstream failures within a
// single run; 1 disables retrying entirely. Expired refresh tokens are
// never retried regardless of this setting.
type IngestionConfig struct {
	RecentLimit     int     `toml:"recent_limit"`
	RetryAttempts   int     `toml:"retry_attempts"`
	RetryBackoff    int     `toml:"retry_backoff"`
	ArtistRateLimit float64 `toml:"artist_rate_limit"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// A .env file in the working directory and process environment variables
// override file values for secrets.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded
// example config, with environment overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
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

// Validate checks that the settings required before any pipeline work can
// begin are present. A missing Spotify client id or secret is fatal.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientID == "your_spotify_client_id" {
		return fmt.Errorf("%w: spotify client_id", ErrMissingCredentials)
	}
	if c.Credentials.Spotify.ClientSecret == "" || c.Credentials.Spotify.ClientSecret == "your_spotify_client_secret" {
		return fmt.Errorf("%w: spotify client_secret", ErrMissingCredentials)
	}
	if c.Credentials.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify redirect_uri", ErrMissingCredentials)
	}
	return nil
}

// applyEnv loads a .env file if present and overlays environment variables
// onto the config. Only secrets and connection settings are overridable.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		c.Credentials.SendGrid.APIKey = v
	}
	if v := os.Getenv("REWIND_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("REWIND_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}
