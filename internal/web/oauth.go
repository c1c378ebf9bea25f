package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/tagplayer/internal/spotify"
)

type authURLResponse struct {
	URL string `json:"url"`
}

// stateTokens tracks outstanding authorization requests.
type stateTokens struct {
	ttl time.Duration

	mu     sync.Mutex
	issued map[string]time.Time
}

func newStateTokens(ttl time.Duration) *stateTokens {
	return &stateTokens{ttl: ttl, issued: make(map[string]time.Time)}
}

func (t *stateTokens) issue(now time.Time) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, exp := range t.issued {
		if now.After(exp) {
			delete(t.issued, k)
		}
	}
	state := uuid.NewString()
	t.issued[state] = now.Add(t.ttl)
	return state
}

// consume reports whether state was issued and has not expired. A state is
// good for one callback.
func (t *stateTokens) consume(state string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.issued[state]
	if !ok {
		return false
	}
	delete(t.issued, state)
	return !now.After(exp)
}

func (s *Server) oauthConfig() (spotify.Credentials, bool) {
	if s.opts.Credentials == nil {
		return spotify.Credentials{}, false
	}
	creds, _ := s.opts.Credentials.Current()
	return creds, creds.ClientID != "" && creds.ClientSecret != ""
}

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.oauthConfig()
	if !ok {
		respondError(w, http.StatusBadRequest, "client_id and client_secret must be configured first")
		return
	}
	cfg := spotify.OAuthConfig(creds, s.opts.RedirectURL, s.opts.AuthURL, s.opts.TokenURL)
	state := s.states.issue(time.Now())
	respondJSON(w, http.StatusOK, authURLResponse{URL: cfg.AuthCodeURL(state)})
}

// handleCallback completes the authorization code flow, persists the refresh
// token and hands the fresh access token to the client.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		respondError(w, http.StatusBadRequest, "authorization denied: "+msg)
		return
	}
	if !s.states.consume(q.Get("state"), time.Now()) {
		respondError(w, http.StatusBadRequest, "invalid or expired state")
		return
	}
	code := q.Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "code not found")
		return
	}
	creds, ok := s.oauthConfig()
	if !ok {
		respondError(w, http.StatusBadRequest, "client_id and client_secret must be configured first")
		return
	}

	cfg := spotify.OAuthConfig(creds, s.opts.RedirectURL, s.opts.AuthURL, s.opts.TokenURL)
	tok, err := cfg.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Warn().Err(err).Msg("authorization code exchange failed")
		respondError(w, http.StatusBadGateway, "token exchange failed")
		return
	}
	if tok.RefreshToken == "" {
		respondError(w, http.StatusBadGateway, "token response without refresh_token")
		return
	}

	if _, err := s.opts.Credentials.Apply(spotify.Credentials{RefreshToken: tok.RefreshToken}); err != nil {
		s.logger.Error().Err(err).Msg("save refresh token")
		respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	if s.opts.Loop != nil {
		err := s.opts.Loop.Do(r.Context(), func(_ context.Context, c *spotify.Client) {
			c.SetToken(tok)
		})
		if err != nil {
			s.logger.Debug().Err(err).Msg("access token not handed over")
		}
	}
	s.logger.Info().Msg("authorization complete")
	respondJSON(w, http.StatusOK, successResponse{Success: true, Message: "authorization complete"})
}
