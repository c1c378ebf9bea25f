package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/five82/tagplayer/internal/feedback"
	"github.com/five82/tagplayer/internal/logging"
	"github.com/five82/tagplayer/internal/spotify"
	"github.com/five82/tagplayer/internal/state"
)

// Executor runs work on the goroutine that owns the API client.
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context, c *spotify.Client)) error
	RequestRestart()
}

// CredentialStore persists credential updates.
type CredentialStore interface {
	Current() (spotify.Credentials, uint64)
	Apply(update spotify.Credentials) (spotify.Credentials, error)
	Clear() error
}

// NetworkStatus reports the last connectivity probe.
type NetworkStatus interface {
	Address() string
	Last() bool
}

// TagInjector accepts tag payloads from outside the reader hardware.
type TagInjector interface {
	Inject(payload string)
}

// Options configure the web API.
type Options struct {
	Listen      string
	Loop        Executor
	Store       *state.Store
	Credentials CredentialStore
	Tags        TagInjector
	Network     NetworkStatus
	Sink        feedback.Sink
	LogFile     string

	RedirectURL string
	AuthURL     string
	TokenURL    string

	// RateLimit is the per-IP request budget per minute for endpoints that
	// change state. Zero uses 30.
	RateLimit       int
	ShutdownTimeout time.Duration
}

const (
	defaultRateLimit       = 30
	defaultShutdownTimeout = 5 * time.Second
)

// Server is the HTTP API. It implements suture.Service.
type Server struct {
	opts   Options
	router chi.Router
	states *stateTokens
	logger zerolog.Logger
}

// New builds the router.
func New(opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Sink == nil {
		opts.Sink = feedback.SinkFunc(func(feedback.Cue) {})
	}
	s := &Server{
		opts:   opts,
		states: newStateTokens(10 * time.Minute),
		logger: logging.Component("web"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	limited := httprate.LimitByIP(s.opts.RateLimit, time.Minute)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.SetHeader("Access-Control-Allow-Origin", "*"))

		r.Get("/status", s.handleStatus)
		r.Get("/devices", s.handleDevices)
		r.Post("/device", s.handleSetDevice)
		r.Post("/next", s.handleNext)
		r.Post("/restart", s.handleRestart)
		r.Get("/logs", s.handleLogs)
		r.Get("/network", s.handleNetwork)

		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.Post("/tag", s.handleTag)
			r.Post("/config", s.handleConfig)
			r.Post("/config/clear", s.handleClearConfig)
			r.Get("/auth/url", s.handleAuthURL)
		})
	})
	r.With(limited).Get("/callback", s.handleCallback)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info().Str("listen", s.opts.Listen).Msg("web api listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Server) String() string {
	return "web-api"
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
