package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/thejerf/suture/v4"

	"github.com/five82/tagplayer/internal/config"
	"github.com/five82/tagplayer/internal/feedback"
	"github.com/five82/tagplayer/internal/logging"
	"github.com/five82/tagplayer/internal/machine"
	"github.com/five82/tagplayer/internal/netcheck"
	"github.com/five82/tagplayer/internal/settings"
	"github.com/five82/tagplayer/internal/spotify"
	"github.com/five82/tagplayer/internal/state"
	"github.com/five82/tagplayer/internal/tag"
	"github.com/five82/tagplayer/internal/ui"
	"github.com/five82/tagplayer/internal/web"
)

// Options configure the tagplayer application.
type Options struct {
	ConfigPath string
	// TUI shows the terminal status panel. Console logging is then limited
	// to the log file.
	TUI bool
	// Tick overrides the configured tick interval when positive.
	Tick time.Duration
}

// Run boots tagplayer and blocks until ctx is cancelled or a restart is
// requested, in which case it returns an error matching ErrRestart.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Tick > 0 {
		cfg.Timing.Tick = opts.Tick
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File, Output: os.Stderr}
	if opts.TUI {
		logCfg.Output = io.Discard
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()
	logger := logging.Component("app")

	provider, err := settings.NewProvider(cfg.SettingsPath, cfg.Spotify.Credentials)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	creds, _ := provider.Current()

	clock := clockwork.NewRealClock()
	client, err := spotify.NewClient(creds,
		spotify.WithBaseURL(cfg.Spotify.APIBaseURL),
		spotify.WithTokenURL(cfg.Spotify.TokenURL),
		spotify.WithPolicy(cfg.Retry),
		spotify.WithClock(clock),
	)
	if err != nil {
		return fmt.Errorf("init spotify client: %w", err)
	}

	input, closer, err := tag.OpenInput(cfg.TagInput)
	if err != nil {
		logger.Warn().Err(err).Str("input", cfg.TagInput).Msg("tag input unavailable, web taps only")
	}
	if closer != nil {
		defer closer.Close()
	}
	reader := tag.NewReader(input)

	store := &state.Store{}
	sinks := feedback.NewMulti(feedback.NewLogSink())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var panel *ui.Service
	if opts.TUI {
		uiSink := ui.NewSink()
		sinks.Add(uiSink)
		panel = ui.NewService(ui.Options{
			Store:     store,
			ThemeName: provider.Theme(),
			SaveTheme: provider.SetTheme,
			OnQuit:    cancel,
			NoKeys:    tag.IsStdin(cfg.TagInput),
		}, uiSink)
	}

	network := netcheck.New(cfg.ProbeAddress, 0)
	m := machine.New(machine.Deps{
		Client:      client,
		Tags:        reader,
		Sink:        sinks,
		Credentials: provider,
		Network:     network,
		Observer:    store,
		Clock:       clock,
		Timing:      cfg.Timing,
	})
	loop := NewLoop(m, client, store, clock, cfg.Timing.Tick)

	server := web.New(web.Options{
		Listen:      cfg.Listen,
		Loop:        loop,
		Store:       store,
		Credentials: provider,
		Tags:        reader,
		Network:     network,
		Sink:        sinks,
		LogFile:     cfg.Log.File,
		RedirectURL: cfg.Spotify.RedirectURL,
		AuthURL:     cfg.Spotify.AuthURL,
		TokenURL:    cfg.Spotify.TokenURL,
	})

	tree := newTree(DefaultTreeConfig())
	tree.Add(loop)
	tree.Add(server)
	if panel != nil {
		tree.Add(panel)
	}

	logger.Info().
		Str("listen", cfg.Listen).
		Str("device", creds.DeviceName).
		Bool("credentials", creds.Valid()).
		Dur("tick", cfg.Timing.Tick).
		Msg("tagplayer starting")

	err = tree.Serve(ctx)
	switch {
	case errors.Is(err, ErrRestart):
		return ErrRestart
	case errors.Is(err, context.Canceled), err == nil:
		logger.Info().Msg("tagplayer stopped")
		return nil
	default:
		return fmt.Errorf("supervisor: %w", err)
	}
}

// ensure the services satisfy suture.Service.
var (
	_ suture.Service = (*Loop)(nil)
	_ suture.Service = (*web.Server)(nil)
	_ suture.Service = (*ui.Service)(nil)
)
