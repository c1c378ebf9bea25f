package spotify

import "strings"

// Credentials are the externally supplied values needed to talk to the API.
type Credentials struct {
	ClientID     string `toml:"client_id" json:"client_id"`
	ClientSecret string `toml:"client_secret" json:"client_secret"`
	DeviceName   string `toml:"device_name" json:"device_name"`
	RefreshToken string `toml:"refresh_token" json:"refresh_token"`
}

// Valid reports whether all four fields are non-empty.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.DeviceName) != "" &&
		strings.TrimSpace(c.RefreshToken) != ""
}

// Device mirrors an entry of GET /me/player/devices.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	IsRestricted  bool   `json:"is_restricted"`
	VolumePercent *int   `json:"volume_percent,omitempty"`
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

type playOffset struct {
	Position   int `json:"position"`
	PositionMS int `json:"position_ms"`
}

// playRequest is the PUT /me/player/play body. Both offset fields are always
// sent, including zero values.
type playRequest struct {
	ContextURI string     `json:"context_uri"`
	Offset     playOffset `json:"offset"`
}
