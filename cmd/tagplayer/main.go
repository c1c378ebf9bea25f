package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/tagplayer/internal/app"
	"github.com/five82/tagplayer/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config path (optional, defaults to "+config.DefaultPath()+")")
	tui := flag.Bool("tui", false, "show the terminal status panel")
	tick := flag.Duration("tick", 0, "state machine tick interval (optional, defaults to the config value)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := app.Run(ctx, app.Options{ConfigPath: *configPath, TUI: *tui, Tick: *tick})
	if errors.Is(err, app.ErrRestart) {
		cancel()
		if err := restart(); err != nil {
			fmt.Fprintf(os.Stderr, "tagplayer: restart: %v\n", err)
			return 1
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tagplayer: %v\n", err)
		return 1
	}
	return 0
}

// restart replaces the process with a fresh copy of itself.
func restart() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
