package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	AI          AIConfig          `toml:"ai"`
	Matching    MatchingConfig    `toml:"matching"`
	Limits      LimitsConfig      `toml:"limits"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify OAuthAppConfig `toml:"spotify" env-prefix:"CROSSFADE_SPOTIFY_"`
	YouTube OAuthAppConfig `toml:"youtube" env-prefix:"CROSSFADE_YOUTUBE_"`
}

// OAuthAppConfig is an OAuth client registration plus the endpoints it talks to.
type OAuthAppConfig struct {
	ClientID     string `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"REDIRECT_URI"`
	APIURL       string `toml:"api_url" env:"API_URL"`
	TokenURL     string `toml:"token_url" env:"TOKEN_URL"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver" env:"CROSSFADE_DATABASE_DRIVER"`
	Path         string `toml:"path" env:"CROSSFADE_DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string        `toml:"host" env:"CROSSFADE_SERVER_HOST"`
	Port         int           `toml:"port" env:"CROSSFADE_SERVER_PORT"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AIConfig configures the completion endpoint used by the AI fallback.
type AIConfig struct {
	APIKey      string        `toml:"api_key" env:"CROSSFADE_AI_API_KEY"`
	BaseURL     string        `toml:"base_url" env:"CROSSFADE_AI_BASE_URL"`
	Model       string        `toml:"model" env:"CROSSFADE_AI_MODEL"`
	Temperature float32       `toml:"temperature"`
	Timeout     time.Duration `toml:"timeout"`
}

// Enabled reports whether an API key is configured.
func (a AIConfig) Enabled() bool {
	return a.APIKey != ""
}

// MatchingConfig tunes the track matcher.
type MatchingConfig struct {
	MaxConcurrency   int           `toml:"max_concurrency" env:"CROSSFADE_MATCHING_MAX_CONCURRENCY"`
	SearchTimeout    time.Duration `toml:"search_timeout"`
	DescriptionWords int           `toml:"description_words"`
}

// LimitsConfig holds platform throttling and circuit breaker settings.
type LimitsConfig struct {
	RequestsPerSecond  float64       `toml:"requests_per_second"`
	Burst              int           `toml:"burst"`
	SpotifyBatchSize   int           `toml:"spotify_batch_size"`
	SpotifyBatchDelay  time.Duration `toml:"spotify_batch_delay"`
	YouTubeInsertDelay time.Duration `toml:"youtube_insert_delay"`
	BreakerFailures    uint32        `toml:"breaker_failures"`
	BreakerCooldown    time.Duration `toml:"breaker_cooldown"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level" env:"CROSSFADE_LOG_LEVEL"`
}

// LoadConfig reads a TOML configuration file on top of the embedded defaults, then applies
// CROSSFADE_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return config, config.Validate()
}

// LoadOrDefault loads path when it exists and falls back to the defaults (plus environment) otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	config := DefaultConfig()
	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return config, config.Validate()
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects settings the transfer pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Database.Driver != "sqlite" && c.Database.Driver != "bolt":
		return fmt.Errorf("%w: database.driver must be sqlite or bolt, got %q", ErrInvalidConfig, c.Database.Driver)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	case c.Matching.MaxConcurrency < 1:
		return fmt.Errorf("%w: matching.max_concurrency must be positive", ErrInvalidConfig)
	case c.Limits.SpotifyBatchSize < 1 || c.Limits.SpotifyBatchSize > 100:
		return fmt.Errorf("%w: limits.spotify_batch_size must be between 1 and 100", ErrInvalidConfig)
	}
	return nil
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
