// hud-tui - The terminal chat window for the hud daemon.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/morganforge/hud-tui/internal/auth"
	"github.com/morganforge/hud-tui/internal/bridge"
	"github.com/morganforge/hud-tui/internal/config"
	"github.com/morganforge/hud-tui/internal/convo"
	"github.com/morganforge/hud-tui/internal/events"
	"github.com/morganforge/hud-tui/internal/geometry"
	"github.com/morganforge/hud-tui/internal/store"
	"github.com/morganforge/hud-tui/internal/telemetry"
	"github.com/morganforge/hud-tui/internal/ui/hud"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.toml (default ~/.hud/config.toml)")
		offline     = flag.Bool("offline", false, "use the local SQLite backend instead of the daemon")
		size        = flag.String("size", "", "window size preset: small, normal, large")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("hud-tui %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "hud-tui needs an interactive terminal")
		os.Exit(1)
	}

	if err := run(*configPath, *offline, *size); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, offlineFlag bool, sizeFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	// CLI flags override config.
	if offlineFlag {
		cfg.Daemon.Offline = true
	}
	if sizeFlag != "" {
		cfg.HUD.Size = sizeFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// The TUI owns the terminal, so diagnostics go to a file.
	logger, closeLog, err := openLogger(cfg.Storage.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Printf("starting hud-tui %s (offline=%v, size=%s)", Version, cfg.Daemon.Offline, cfg.HUD.Size)

	bus := events.NewBus()

	var backend bridge.Backend
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	if cfg.Daemon.Offline {
		db, err := store.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open local store: %w", err)
		}
		cleanup = append(cleanup, func() { db.Close() })
		backend = store.NewLocalBackend(db, bus)
	} else {
		client := bridge.NewClient(cfg.Daemon.URL)
		if token := loadToken(logger); token != nil {
			client.WithToken(token.Token)
		}
		feed := bridge.NewEventFeed(client, bus, logger)
		go feed.Run()
		cleanup = append(cleanup, feed.Stop)
		backend = client
	}

	session := auth.NewSession()
	if token := loadToken(logger); token != nil {
		session.HandleEvent(events.AuthChanged{
			SignedIn:  true,
			UserID:    token.UserID,
			Timestamp: time.Now(),
		})
	}

	opts := []convo.Option{convo.WithLogger(logger)}
	if cfg.Stream.IdleTimeout.Duration > 0 {
		opts = append(opts, convo.WithIdleTimeout(cfg.Stream.IdleTimeout.Duration))
	}
	controller := convo.NewController(backend, opts...)
	pager := convo.NewHistoryPager(backend, convo.DefaultPageSize)

	reactor := geometry.NewReactor(backend, cfg.Dimensions(), geometry.ModeChat)
	reactor.OnError(func(err error) { logger.Printf("resize failed: %v", err) })
	cleanup = append(cleanup, reactor.Close)

	// Config reloads apply the size preset live; everything else needs a
	// restart.
	if path, err := resolvedConfigPath(configPath); err == nil {
		watcher, werr := config.NewWatcher(path, func(next *config.Config) {
			reactor.SetDimensions(next.Dimensions())
		}, logger)
		if werr != nil {
			logger.Printf("config watch unavailable: %v", werr)
		} else {
			cleanup = append(cleanup, func() { watcher.Close() })
		}
	}

	m := hud.New(hud.Deps{
		Controller: controller,
		Pager:      pager,
		Session:    session,
		Usage:      telemetry.NewUsage(),
		Reactor:    reactor,
		Bus:        bus,
		Logger:     logger,
		Offline:    cfg.Daemon.Offline,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running hud-tui: %w", err)
	}
	return nil
}

// loadConfig reads the config from an explicit path or the default location.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvedConfigPath returns the path the watcher should follow.
func resolvedConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.Path()
}

// loadToken reads the persisted daemon token. Missing or expired tokens are
// not errors; the window starts signed out and waits for an auth event.
func loadToken(logger *log.Logger) *auth.TokenRecord {
	dir, err := config.Dir()
	if err != nil {
		return nil
	}
	record, err := auth.LoadToken(filepath.Join(dir, "token.json"))
	if err != nil {
		logger.Printf("token load failed: %v", err)
		return nil
	}
	if !record.Valid(time.Now()) {
		return nil
	}
	return record
}

// openLogger opens the log file for appending. An empty path logs to stderr,
// which is only useful when debugging outside the alt screen.
func openLogger(path string) (*log.Logger, func(), error) {
	if path == "" {
		return log.New(os.Stderr, "", log.LstdFlags), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return log.New(f, "", log.LstdFlags|log.Lshortfile), func() { f.Close() }, nil
}
