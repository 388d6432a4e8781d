// Package config loads the process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the immutable process configuration. It is loaded once at
// startup and passed explicitly to whichever component needs it.
type Config struct {
	Port            int           `env:"PORT"             envDefault:"8080"`
	DBPath          string        `env:"DB_PATH"          envDefault:"data/anilink.db"`
	DBMaxConns      int           `env:"DB_MAX_CONNS"     envDefault:"4"`
	LogLevel        slog.Level    `env:"LOG_LEVEL"        envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	Discord DiscordConfig `envPrefix:"DISCORD_"`
	AniList AniListConfig `envPrefix:"ANILIST_"`
}

// DiscordConfig holds the OAuth application credentials used by /api/token.
type DiscordConfig struct {
	ClientID     string        `env:"CLIENT_ID"`
	ClientSecret string        `env:"CLIENT_SECRET"`
	TokenURL     string        `env:"TOKEN_URL" envDefault:"https://discord.com/api/oauth2/token"`
	Timeout      time.Duration `env:"TIMEOUT"   envDefault:"10s"`
}

// Enabled reports whether both credentials are present.
func (d DiscordConfig) Enabled() bool {
	return d.ClientID != "" && d.ClientSecret != ""
}

// AniListConfig configures the username verifier.
type AniListConfig struct {
	Endpoint string        `env:"ENDPOINT" envDefault:"https://graphql.anilist.co"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"5s"`
}

// rawEnv adds the keys that only act as fallbacks.
type rawEnv struct {
	Config
	// The activity frontend reads its client id from this key, so a shared
	// .env usually carries it instead of DISCORD_CLIENT_ID.
	ViteClientID string `env:"VITE_DISCORD_CLIENT_ID"`
}

// Load reads the configuration from the process environment and validates it.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from the given key/value pairs instead of
// the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (Config, error) {
	var raw rawEnv
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := raw.Config
	if cfg.Discord.ClientID == "" {
		cfg.Discord.ClientID = raw.ViteClientID
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if c.DBMaxConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout))
	}
	if c.AniList.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ANILIST_TIMEOUT must be positive, got %s", c.AniList.Timeout))
	}
	if err := validateHTTPURL(c.AniList.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("ANILIST_ENDPOINT: %w", err))
	}
	if c.Discord.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("DISCORD_TIMEOUT must be positive, got %s", c.Discord.Timeout))
	}
	if err := validateHTTPURL(c.Discord.TokenURL); err != nil {
		errs = append(errs, fmt.Errorf("DISCORD_TOKEN_URL: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
