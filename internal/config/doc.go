// Package config loads tagplayer's TOML configuration.
//
// # Discovery
//
// Load resolves the config path as follows:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/tagplayer/config.toml
//  3. If the file doesn't exist, fall back to Default()
//  4. Empty or missing fields keep their defaults
//
// # TOML Format
//
//	settings_path = "~/.config/tagplayer/settings.toml"
//
//	[spotify]
//	client_id = "..."
//	client_secret = "..."
//	device_name = "Living Room"
//	refresh_token = "..."
//	redirect_uri = "http://127.0.0.1:8080/callback"
//
//	[retry]
//	max_retries = 3
//	initial_delay = "1s"
//	max_delay = "10s"
//	multiplier = 2.0
//
//	[timing]
//	tick = "10ms"
//	debounce = "500ms"
//	connect_timeout = "3m"
//
//	[network]
//	probe_address = "api.spotify.com:443"
//
//	[web]
//	listen = ":8080"
//
//	[tag]
//	input = "stdin"
//
//	[log]
//	level = "info"
//	format = "console"
//	file = "~/.local/state/tagplayer/tagplayer.log"
//
// Durations use Go duration syntax. Credentials in this file are the
// baseline; values saved through the web interface live in the settings file
// and take precedence.
//
// # Errors
//
// Missing files are not an error. Unreadable files, TOML syntax errors and
// bad durations are reported with "open config:", "read config:" or
// "parse config:" prefixes. Out-of-range values fail Validate with an
// "invalid config:" prefix.
package config
