package spotify

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/five82/tagplayer/internal/metrics"
)

// Scopes requested by the authorization code flow.
var Scopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
}

// BasicAuthHeader returns the client credential header for the token endpoint.
func (c *Client) BasicAuthHeader() string {
	raw := c.creds.ClientID + ":" + c.creds.ClientSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// BearerAuthHeader returns the Authorization value for API calls, or "" when
// no token is held.
func (c *Client) BearerAuthHeader() string {
	if !c.IsAuthenticated() {
		return ""
	}
	return c.token.Type() + " " + c.token.AccessToken
}

// FetchAccessToken exchanges the refresh token for a new access token. It is
// never retried; callers decide when to call it again.
func (c *Client) FetchAccessToken(ctx context.Context) bool {
	if c.creds.ClientID == "" || c.creds.ClientSecret == "" || c.creds.RefreshToken == "" {
		return false
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.creds.RefreshToken)

	header := http.Header{}
	header.Set("Authorization", c.BasicAuthHeader())
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	out := c.do(ctx, "token", Request{
		Method: http.MethodPost,
		URL:    c.tokenURL.String(),
		Header: header,
		Body:   []byte(form.Encode()),
	})
	if out.Status != http.StatusOK {
		metrics.RecordTokenRefresh(false)
		c.logger.Warn().Int("status", out.Status).Msg("token refresh failed")
		return false
	}

	access := decodeString(out.Body, "access_token")
	if access == "" {
		metrics.RecordTokenRefresh(false)
		c.logger.Warn().Msg("token response without access_token")
		return false
	}

	var payload tokenResponse
	decodeInto(out.Body, &payload)
	tok := &oauth2.Token{AccessToken: access, TokenType: payload.TokenType}
	if payload.ExpiresIn > 0 {
		tok.Expiry = c.clock.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	c.token = tok
	metrics.RecordTokenRefresh(true)
	c.logger.Info().Time("expires", tok.Expiry).Msg("access token refreshed")
	return true
}

// OAuthConfig builds the authorization code flow configuration used to obtain
// a refresh token from the browser.
func OAuthConfig(creds Credentials, redirectURL, authURL, tokenURL string) *oauth2.Config {
	if strings.TrimSpace(authURL) == "" {
		authURL = DefaultAuthURL
	}
	if strings.TrimSpace(tokenURL) == "" {
		tokenURL = DefaultTokenURL
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}
