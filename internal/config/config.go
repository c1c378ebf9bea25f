package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/tagplayer/internal/machine"
	"github.com/five82/tagplayer/internal/settings"
	"github.com/five82/tagplayer/internal/spotify"
)

// Config is the resolved tagplayer configuration.
type Config struct {
	Spotify      Spotify
	Retry        spotify.RetryPolicy
	Timing       machine.Timing
	ProbeAddress string
	Listen       string
	TagInput     string
	Log          Log
	SettingsPath string
}

// Spotify holds credentials and endpoint overrides.
type Spotify struct {
	Credentials spotify.Credentials
	APIBaseURL  string
	TokenURL    string
	AuthURL     string
	RedirectURL string
}

// Log mirrors the [log] section.
type Log struct {
	Level  string
	Format string
	File   string
}

const (
	defaultConfigPath   = "~/.config/tagplayer/config.toml"
	defaultListen       = ":8080"
	defaultProbeAddress = "api.spotify.com:443"
	defaultTagInput     = "stdin"
	defaultRedirectURL  = "http://127.0.0.1:8080/callback"
)

type rawConfig struct {
	SettingsPath string `toml:"settings_path"`
	Spotify      struct {
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
		DeviceName   string `toml:"device_name"`
		RefreshToken string `toml:"refresh_token"`
		APIBaseURL   string `toml:"api_base_url"`
		TokenURL     string `toml:"token_url"`
		AuthURL      string `toml:"auth_url"`
		RedirectURI  string `toml:"redirect_uri"`
	} `toml:"spotify"`
	Retry struct {
		MaxRetries   *int     `toml:"max_retries"`
		InitialDelay string   `toml:"initial_delay"`
		MaxDelay     string   `toml:"max_delay"`
		Multiplier   *float64 `toml:"multiplier"`
	} `toml:"retry"`
	Timing struct {
		Tick             string `toml:"tick"`
		BootDelay        string `toml:"boot_delay"`
		ConnectTimeout   string `toml:"connect_timeout"`
		ProbeInterval    string `toml:"probe_interval"`
		APIInitTimeout   string `toml:"api_init_timeout"`
		APIInitRetry     string `toml:"api_init_retry"`
		Debounce         string `toml:"debounce"`
		Feedback         string `toml:"feedback"`
		NetCheckInterval string `toml:"net_check_interval"`
		ReconnectTimeout string `toml:"reconnect_timeout"`
		RecoveryCooldown string `toml:"recovery_cooldown"`
	} `toml:"timing"`
	Network struct {
		ProbeAddress string `toml:"probe_address"`
	} `toml:"network"`
	Web struct {
		Listen string `toml:"listen"`
	} `toml:"web"`
	Tag struct {
		Input string `toml:"input"`
	} `toml:"tag"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		File   string `toml:"file"`
	} `toml:"log"`
}

// limits is what gets validated after defaults are applied.
type limits struct {
	MaxRetries       int           `validate:"gte=0,lte=10"`
	Multiplier       float64       `validate:"gte=1"`
	InitialDelay     time.Duration `validate:"gte=0"`
	MaxDelay         time.Duration `validate:"gtefield=InitialDelay"`
	Tick             time.Duration `validate:"gt=0"`
	BootDelay        time.Duration `validate:"gte=0"`
	ConnectTimeout   time.Duration `validate:"gt=0"`
	ProbeInterval    time.Duration `validate:"gt=0"`
	APIInitTimeout   time.Duration `validate:"gt=0"`
	APIInitRetry     time.Duration `validate:"gte=0"`
	Debounce         time.Duration `validate:"gte=0"`
	Feedback         time.Duration `validate:"gte=0"`
	NetCheckInterval time.Duration `validate:"gt=0"`
	ReconnectTimeout time.Duration `validate:"gt=0"`
	RecoveryCooldown time.Duration `validate:"gte=0"`
	Listen           string        `validate:"required,hostname_port"`
	ProbeAddress     string        `validate:"required,hostname_port"`
	LogFormat        string        `validate:"oneof=json console"`
	LogLevel         string        `validate:"oneof=trace debug info warn warning error off disabled"`
}

var validate = validator.New()

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Spotify: Spotify{
			APIBaseURL:  spotify.DefaultAPIBaseURL,
			TokenURL:    spotify.DefaultTokenURL,
			AuthURL:     spotify.DefaultAuthURL,
			RedirectURL: defaultRedirectURL,
		},
		Retry:        spotify.DefaultRetryPolicy(),
		Timing:       machine.DefaultTiming(),
		ProbeAddress: defaultProbeAddress,
		Listen:       defaultListen,
		TagInput:     defaultTagInput,
		Log:          Log{Level: "info", Format: "console"},
		SettingsPath: mustExpand(settings.DefaultPath()),
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := resolve(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and addresses.
func (c Config) Validate() error {
	l := limits{
		MaxRetries:       c.Retry.MaxRetries,
		Multiplier:       c.Retry.Multiplier,
		InitialDelay:     c.Retry.InitialDelay,
		MaxDelay:         c.Retry.MaxDelay,
		Tick:             c.Timing.Tick,
		BootDelay:        c.Timing.BootDelay,
		ConnectTimeout:   c.Timing.ConnectTimeout,
		ProbeInterval:    c.Timing.ProbeInterval,
		APIInitTimeout:   c.Timing.APIInitTimeout,
		APIInitRetry:     c.Timing.APIInitRetry,
		Debounce:         c.Timing.Debounce,
		Feedback:         c.Timing.Feedback,
		NetCheckInterval: c.Timing.NetCheckInterval,
		ReconnectTimeout: c.Timing.ReconnectTimeout,
		RecoveryCooldown: c.Timing.RecoveryCooldown,
		Listen:           c.Listen,
		ProbeAddress:     c.ProbeAddress,
		LogFormat:        strings.ToLower(c.Log.Format),
		LogLevel:         strings.ToLower(c.Log.Level),
	}
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func resolve(raw rawConfig) (Config, error) {
	cfg := Default()

	cfg.Spotify.Credentials = spotify.Credentials{
		ClientID:     strings.TrimSpace(raw.Spotify.ClientID),
		ClientSecret: strings.TrimSpace(raw.Spotify.ClientSecret),
		DeviceName:   strings.TrimSpace(raw.Spotify.DeviceName),
		RefreshToken: strings.TrimSpace(raw.Spotify.RefreshToken),
	}
	setString(&cfg.Spotify.APIBaseURL, raw.Spotify.APIBaseURL)
	setString(&cfg.Spotify.TokenURL, raw.Spotify.TokenURL)
	setString(&cfg.Spotify.AuthURL, raw.Spotify.AuthURL)
	setString(&cfg.Spotify.RedirectURL, raw.Spotify.RedirectURI)

	if raw.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *raw.Retry.MaxRetries
	}
	if raw.Retry.Multiplier != nil {
		cfg.Retry.Multiplier = *raw.Retry.Multiplier
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"retry.initial_delay", raw.Retry.InitialDelay, &cfg.Retry.InitialDelay},
		{"retry.max_delay", raw.Retry.MaxDelay, &cfg.Retry.MaxDelay},
		{"timing.tick", raw.Timing.Tick, &cfg.Timing.Tick},
		{"timing.boot_delay", raw.Timing.BootDelay, &cfg.Timing.BootDelay},
		{"timing.connect_timeout", raw.Timing.ConnectTimeout, &cfg.Timing.ConnectTimeout},
		{"timing.probe_interval", raw.Timing.ProbeInterval, &cfg.Timing.ProbeInterval},
		{"timing.api_init_timeout", raw.Timing.APIInitTimeout, &cfg.Timing.APIInitTimeout},
		{"timing.api_init_retry", raw.Timing.APIInitRetry, &cfg.Timing.APIInitRetry},
		{"timing.debounce", raw.Timing.Debounce, &cfg.Timing.Debounce},
		{"timing.feedback", raw.Timing.Feedback, &cfg.Timing.Feedback},
		{"timing.net_check_interval", raw.Timing.NetCheckInterval, &cfg.Timing.NetCheckInterval},
		{"timing.reconnect_timeout", raw.Timing.ReconnectTimeout, &cfg.Timing.ReconnectTimeout},
		{"timing.recovery_cooldown", raw.Timing.RecoveryCooldown, &cfg.Timing.RecoveryCooldown},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.raw); err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.name, err)
		}
	}

	setString(&cfg.ProbeAddress, raw.Network.ProbeAddress)
	setString(&cfg.Listen, raw.Web.Listen)
	setString(&cfg.TagInput, raw.Tag.Input)
	setString(&cfg.Log.Level, raw.Log.Level)
	setString(&cfg.Log.Format, raw.Log.Format)
	if file := strings.TrimSpace(raw.Log.File); file != "" {
		cfg.Log.File = mustExpand(file)
	}
	if p := strings.TrimSpace(raw.SettingsPath); p != "" {
		cfg.SettingsPath = mustExpand(p)
	}
	if input := cfg.TagInput; strings.HasPrefix(input, "~") {
		cfg.TagInput = mustExpand(input)
	}
	return cfg, nil
}

func setString(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
