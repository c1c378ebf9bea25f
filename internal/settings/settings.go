// Package settings persists values changed at runtime: credentials entered
// through the web API and the TUI theme. They live in
// ~/.config/tagplayer/settings.toml, separate from the hand-edited config.
package settings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/five82/tagplayer/internal/logging"
	"github.com/five82/tagplayer/internal/spotify"
)

// Settings is the persisted file layout.
type Settings struct {
	Theme   string              `toml:"theme"`
	Spotify spotify.Credentials `toml:"spotify"`
	// Cleared is set by Provider.Clear. Credentials from the config file are
	// no longer layered in; only values saved through Apply count.
	Cleared bool `toml:"cleared,omitempty"`
}

const (
	defaultSettingsPath = "~/.config/tagplayer/settings.toml"
	defaultTheme        = "Dracula"
)

// DefaultPath returns the default settings file path.
func DefaultPath() string {
	return defaultSettingsPath
}

// Load reads settings from path, falling back to defaults when the file is
// missing or unreadable.
func Load(path string) (Settings, error) {
	s := Settings{Theme: defaultTheme}

	resolved, err := resolvePath(path)
	if err != nil {
		return s, nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("open settings: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{Theme: defaultTheme}, fmt.Errorf("parse settings: %w", err)
	}

	if strings.TrimSpace(s.Theme) == "" {
		s.Theme = defaultTheme
	}
	s.Spotify = trimCredentials(s.Spotify)
	return s, nil
}

// Save writes settings to path, creating directories as needed. The file
// holds secrets and is written owner-only.
func Save(path string, s Settings) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := resolved + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, resolved); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Provider hands the current credentials to the state machine. Every change
// bumps a version number, which is how the machine notices updates.
type Provider struct {
	path   string
	logger zerolog.Logger

	mu       sync.RWMutex
	settings Settings
	version  uint64
}

// NewProvider loads the settings file and layers it over base: any
// credential field set in the file wins.
func NewProvider(path string, base spotify.Credentials) (*Provider, error) {
	s, err := Load(path)
	p := &Provider{path: path, logger: logging.Component("settings")}
	if err != nil {
		p.logger.Warn().Err(err).Msg("settings unreadable, using config values")
	}
	if !s.Cleared {
		s.Spotify = merge(trimCredentials(base), s.Spotify)
	}
	p.settings = s
	p.version = 1
	return p, nil
}

// Current returns the credentials and their version.
func (p *Provider) Current() (spotify.Credentials, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings.Spotify, p.version
}

// Theme returns the persisted TUI theme name.
func (p *Provider) Theme() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings.Theme
}

// Apply merges the non-empty fields of update into the current credentials,
// persists the result and bumps the version when anything changed.
func (p *Provider) Apply(update spotify.Credentials) (spotify.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := merge(p.settings.Spotify, trimCredentials(update))
	if next == p.settings.Spotify {
		return next, nil
	}
	s := p.settings
	s.Spotify = next
	if err := Save(p.path, s); err != nil {
		return p.settings.Spotify, err
	}
	p.settings = s
	p.version++
	p.logger.Info().
		Uint64("version", p.version).
		Bool("complete", next.Valid()).
		Str("device", next.DeviceName).
		Msg("credentials updated")
	return next, nil
}

// Clear drops every stored credential, persists the empty set and bumps the
// version. The theme is kept.
func (p *Provider) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.settings
	s.Spotify = spotify.Credentials{}
	s.Cleared = true
	if err := Save(p.path, s); err != nil {
		return err
	}
	p.settings = s
	p.version++
	p.logger.Warn().Uint64("version", p.version).Msg("credentials cleared")
	return nil
}

// SetTheme persists a new theme name.
func (p *Provider) SetTheme(theme string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.settings
	s.Theme = strings.TrimSpace(theme)
	if s.Theme == "" {
		s.Theme = defaultTheme
	}
	if err := Save(p.path, s); err != nil {
		return err
	}
	p.settings = s
	return nil
}

func merge(base, over spotify.Credentials) spotify.Credentials {
	if over.ClientID != "" {
		base.ClientID = over.ClientID
	}
	if over.ClientSecret != "" {
		base.ClientSecret = over.ClientSecret
	}
	if over.DeviceName != "" {
		base.DeviceName = over.DeviceName
	}
	if over.RefreshToken != "" {
		base.RefreshToken = over.RefreshToken
	}
	return base
}

func trimCredentials(c spotify.Credentials) spotify.Credentials {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	c.DeviceName = strings.TrimSpace(c.DeviceName)
	c.RefreshToken = strings.TrimSpace(c.RefreshToken)
	return c
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultSettingsPath)
	}
	return expandPath(path)
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
