package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Listen != defaultListen {
		t.Fatalf("Listen = %q, want %q", cfg.Listen, defaultListen)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialDelay != time.Second {
		t.Fatalf("Retry = %+v, want defaults", cfg.Retry)
	}
	if cfg.Timing.Debounce != 500*time.Millisecond {
		t.Fatalf("Debounce = %v, want 500ms", cfg.Timing.Debounce)
	}
	if !strings.HasPrefix(cfg.SettingsPath, home) {
		t.Fatalf("SettingsPath = %q, want it under HOME %q", cfg.SettingsPath, home)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults fail validation: %v", err)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
settings_path = "  ~/tp/settings.toml "

[spotify]
client_id = "  id  "
client_secret = "secret"
device_name = " Kitchen "
refresh_token = "rt"
token_url = "http://127.0.0.1:9000/api/token"

[retry]
max_retries = 5
initial_delay = "250ms"
max_delay = "2s"
multiplier = 1.5

[timing]
tick = "20ms"
debounce = " 1s "
api_init_timeout = "10s"

[web]
listen = "127.0.0.1:9090"

[tag]
input = "/dev/ttyUSB0"

[log]
level = "debug"
format = "json"
file = "~/tp/tagplayer.log"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	creds := cfg.Spotify.Credentials
	if creds.ClientID != "id" || creds.DeviceName != "Kitchen" {
		t.Fatalf("Credentials = %+v, want trimmed values", creds)
	}
	if !creds.Valid() {
		t.Fatalf("Credentials.Valid() = false, want true")
	}
	if cfg.Spotify.TokenURL != "http://127.0.0.1:9000/api/token" {
		t.Fatalf("TokenURL = %q", cfg.Spotify.TokenURL)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.InitialDelay != 250*time.Millisecond || cfg.Retry.MaxDelay != 2*time.Second || cfg.Retry.Multiplier != 1.5 {
		t.Fatalf("Retry = %+v", cfg.Retry)
	}
	if cfg.Timing.Tick != 20*time.Millisecond || cfg.Timing.Debounce != time.Second || cfg.Timing.APIInitTimeout != 10*time.Second {
		t.Fatalf("Timing = %+v", cfg.Timing)
	}
	if cfg.Timing.Feedback != 2*time.Second {
		t.Fatalf("Feedback = %v, want default 2s", cfg.Timing.Feedback)
	}
	if cfg.Listen != "127.0.0.1:9090" {
		t.Fatalf("Listen = %q, want %q", cfg.Listen, "127.0.0.1:9090")
	}
	if cfg.TagInput != "/dev/ttyUSB0" {
		t.Fatalf("TagInput = %q", cfg.TagInput)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "debug" {
		t.Fatalf("Log = %+v", cfg.Log)
	}
	if !strings.HasPrefix(cfg.Log.File, home) || !strings.HasPrefix(cfg.SettingsPath, home) {
		t.Fatalf("paths not expanded: log=%q settings=%q", cfg.Log.File, cfg.SettingsPath)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
[web]
listen = "   "

[timing]
tick = ""
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Listen != defaultListen {
		t.Fatalf("Listen = %q, want %q", cfg.Listen, defaultListen)
	}
	if cfg.Timing.Tick != 10*time.Millisecond {
		t.Fatalf("Tick = %v, want 10ms", cfg.Timing.Tick)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[web\nlisten = ", "parse config:"},
		{"bad duration", "[timing]\ndebounce = \"soon\"", "timing.debounce"},
		{"zero tick", "[timing]\ntick = \"0s\"", "invalid config:"},
		{"multiplier below one", "[retry]\nmultiplier = 0.5", "invalid config:"},
		{"max below initial", "[retry]\ninitial_delay = \"5s\"\nmax_delay = \"1s\"", "invalid config:"},
		{"bad listen", "[web]\nlisten = \"nowhere\"", "invalid config:"},
		{"bad log format", "[log]\nformat = \"xml\"", "invalid config:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("Load succeeded, want error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/x/y")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	if got != filepath.Join(home, "x", "y") {
		t.Fatalf("expandPath = %q, want %q", got, filepath.Join(home, "x", "y"))
	}
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath(blank) succeeded, want error")
	}
}
