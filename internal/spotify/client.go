package spotify

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/five82/tagplayer/internal/logging"
	"github.com/five82/tagplayer/internal/metrics"
)

const (
	DefaultAPIBaseURL = "https://api.spotify.com/v1"
	DefaultTokenURL   = "https://accounts.spotify.com/api/token"
	DefaultAuthURL    = "https://accounts.spotify.com/authorize"
)

// Client talks to the Spotify Web API on behalf of one configured device.
//
// Client owns the session (access token and resolved device id). It is not
// safe for concurrent use; callers serialize access through a single owner.
type Client struct {
	creds      Credentials
	token      *oauth2.Token
	deviceID   string
	deviceName string

	policy      RetryPolicy
	caller      Caller
	baseURL     *url.URL
	tokenURL    *url.URL
	rawBaseURL  string
	rawTokenURL string
	clock       clockwork.Clock
	sleep       Sleeper
	rng         *rand.Rand
	logger      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(raw string) Option {
	return func(c *Client) { c.rawBaseURL = raw }
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(raw string) Option {
	return func(c *Client) { c.rawTokenURL = raw }
}

// WithPolicy sets the retry policy.
func WithPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithCaller replaces the HTTP caller.
func WithCaller(caller Caller) Option {
	return func(c *Client) { c.caller = caller }
}

// WithClock sets the clock used for token expiry and backoff sleeps.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithRand sets the jitter source.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rng = r }
}

// NewClient builds a Client for creds.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	c := &Client{
		creds:       creds,
		deviceName:  creds.DeviceName,
		policy:      DefaultRetryPolicy(),
		rawBaseURL:  DefaultAPIBaseURL,
		rawTokenURL: DefaultTokenURL,
		clock:       clockwork.NewRealClock(),
		logger:      logging.Component("spotify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	var err error
	if c.baseURL, err = parseBaseURL(c.rawBaseURL); err != nil {
		return nil, fmt.Errorf("api base url: %w", err)
	}
	if c.tokenURL, err = parseBaseURL(c.rawTokenURL); err != nil {
		return nil, fmt.Errorf("token url: %w", err)
	}
	if err := c.policy.validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}
	if c.caller == nil {
		c.caller = NewHTTPCaller(requestTimeout)
	}
	if c.sleep == nil {
		c.sleep = ClockSleeper(c.clock)
	}
	return c, nil
}

// SetCredentials replaces the credentials and drops the session.
func (c *Client) SetCredentials(creds Credentials) {
	c.creds = creds
	c.token = nil
	c.deviceID = ""
	c.deviceName = creds.DeviceName
}

// Credentials returns the current credentials.
func (c *Client) Credentials() Credentials { return c.creds }

// HasCredentials reports whether all credential fields are set.
func (c *Client) HasCredentials() bool { return c.creds.Valid() }

// IsAuthenticated reports whether an access token is held. Expiry is only
// detected when the API answers 401.
func (c *Client) IsAuthenticated() bool {
	return c.token != nil && c.token.AccessToken != ""
}

// IsDeviceAvailable reports whether a device id is cached.
func (c *Client) IsDeviceAvailable() bool { return c.deviceID != "" }

// DeviceID returns the cached device id.
func (c *Client) DeviceID() string { return c.deviceID }

// DeviceName returns the name of the targeted device.
func (c *Client) DeviceName() string { return c.deviceName }

// SetToken installs a token obtained elsewhere, such as the authorization
// code exchange.
func (c *Client) SetToken(tok *oauth2.Token) {
	if tok == nil || tok.AccessToken == "" {
		c.token = nil
		return
	}
	c.token = tok
}

// Devices lists the devices available to the account.
func (c *Client) Devices(ctx context.Context) ([]Device, Outcome) {
	out := c.CallWithRetry(ctx, http.MethodGet, c.endpoint("/me/player/devices", ""), nil)
	if !out.Success() {
		return nil, out
	}
	return decodeDevices(out.Body), out
}

// DiscoverDevice resolves the configured device name to an id. A failed
// listing leaves the cached id untouched; a listing without the device
// clears it.
func (c *Client) DiscoverDevice(ctx context.Context) bool {
	devices, out := c.Devices(ctx)
	if !out.Success() {
		c.logger.Warn().Int("status", out.Status).Msg("device list failed")
		return false
	}
	for _, d := range devices {
		if d.Name == c.deviceName {
			c.deviceID = d.ID
			c.logger.Info().Str("device", d.Name).Str("device_id", d.ID).Msg("device resolved")
			return true
		}
	}
	c.deviceID = ""
	c.logger.Warn().Str("device", c.deviceName).Int("available", len(devices)).Msg("device not found")
	return false
}

// SetDeviceByID targets the listed device with the given id.
func (c *Client) SetDeviceByID(ctx context.Context, id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	return c.selectDevice(ctx, func(d Device) bool { return d.ID == id })
}

// SetDeviceByName targets the listed device with the given name.
func (c *Client) SetDeviceByName(ctx context.Context, name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return c.selectDevice(ctx, func(d Device) bool { return d.Name == name })
}

func (c *Client) selectDevice(ctx context.Context, match func(Device) bool) bool {
	devices, out := c.Devices(ctx)
	if !out.Success() {
		return false
	}
	for _, d := range devices {
		if match(d) {
			c.deviceID = d.ID
			c.deviceName = d.Name
			c.logger.Info().Str("device", d.Name).Str("device_id", d.ID).Msg("device selected")
			return true
		}
	}
	return false
}

// PlayURI starts playback of a context URI on the cached device. A 404
// triggers one rediscovery and one retried play; a 401 triggers one token
// refresh and, if it succeeds, one retried play. Shuffle is enabled after a
// successful play and its result is ignored.
func (c *Client) PlayURI(ctx context.Context, uri string) bool {
	if !c.IsAuthenticated() && !c.FetchAccessToken(ctx) {
		c.logger.Warn().Str("uri", uri).Msg("play skipped: no access token")
		return false
	}
	body := encodePlayBody(uri)

	out := c.CallWithRetry(ctx, http.MethodPut, c.deviceEndpoint("/me/player/play", ""), body)
	switch {
	case out.NotFound():
		c.logger.Warn().Str("device_id", c.deviceID).Msg("device gone, rediscovering")
		c.DiscoverDevice(ctx)
		out = c.CallWithRetry(ctx, http.MethodPut, c.deviceEndpoint("/me/player/play", ""), body)
	case out.Unauthorized():
		c.logger.Info().Msg("access token rejected, refreshing")
		if c.FetchAccessToken(ctx) {
			out = c.CallWithRetry(ctx, http.MethodPut, c.deviceEndpoint("/me/player/play", ""), body)
		}
	}

	ok := out.Success()
	metrics.RecordPlayback(ok)
	if !ok {
		c.logger.Warn().Str("uri", uri).Int("status", out.Status).Msg("play failed")
		return false
	}
	c.logger.Info().Str("uri", uri).Str("device", c.deviceName).Msg("playback started")
	c.EnableShuffle(ctx)
	return true
}

// NextTrack skips to the next track on the cached device.
func (c *Client) NextTrack(ctx context.Context) bool {
	return c.CallWithRetry(ctx, http.MethodPost, c.deviceEndpoint("/me/player/next", ""), nil).Success()
}

// EnableShuffle turns shuffle on for the cached device.
func (c *Client) EnableShuffle(ctx context.Context) bool {
	return c.CallWithRetry(ctx, http.MethodPut, c.deviceEndpoint("/me/player/shuffle", "state=true"), nil).Success()
}

// CallWithRetry issues an authenticated request, retrying retryable
// outcomes under the retry policy. It makes at most MaxRetries+1 calls and
// returns the last outcome unchanged.
func (c *Client) CallWithRetry(ctx context.Context, method, rawURL string, body []byte) Outcome {
	header := http.Header{}
	if bearer := c.BearerAuthHeader(); bearer != "" {
		header.Set("Authorization", bearer)
	}
	if body != nil {
		header.Set("Content-Type", "application/json")
	}
	req := Request{Method: method, URL: rawURL, Header: header, Body: body}
	endpoint := endpointLabel(rawURL)

	var out Outcome
	for attempt := 0; ; attempt++ {
		out = c.do(ctx, endpoint, req)
		if out.Success() || !out.Retryable() {
			return out
		}
		if attempt >= c.policy.MaxRetries {
			break
		}
		delay := c.Backoff(attempt)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", out.Status).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("retrying api call")
		metrics.RecordRetry(endpoint)
		if err := c.sleep(ctx, delay); err != nil {
			break
		}
	}
	return out
}

// Backoff returns the jittered delay before retry number retry.
func (c *Client) Backoff(retry int) time.Duration {
	return jitter(c.policy.BaseDelay(retry), c.rng)
}

func (c *Client) do(ctx context.Context, endpoint string, req Request) Outcome {
	start := c.clock.Now()
	out := c.caller.Call(ctx, req)
	metrics.RecordAPIRequest(endpoint, out.Status, c.clock.Since(start))
	c.logger.Debug().
		Str("method", req.Method).
		Str("endpoint", endpoint).
		Int("status", out.Status).
		Msg("api call")
	return out
}

func (c *Client) endpoint(p, rawQuery string) string {
	u := c.baseURL.JoinPath(p)
	u.RawQuery = rawQuery
	return u.String()
}

// deviceEndpoint appends device_id after any other query parameters, matching
// the parameter order the API documents.
func (c *Client) deviceEndpoint(p, rawQuery string) string {
	q := "device_id=" + url.QueryEscape(c.deviceID)
	if rawQuery != "" {
		q = rawQuery + "&" + q
	}
	return c.endpoint(p, q)
}

func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return path.Base(u.Path)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty url")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse url %q: missing host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
