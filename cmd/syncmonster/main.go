package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/app"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/config"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/db"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/editor"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/logging"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/mcpserver"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/metrics"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	if err := config.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	apiURL := flag.String("api", cfg.APIURL(), "backend base URL")
	logLevel := flag.String("log-level", cfg.LogLevel(), "log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: syncmonster [flags] [mcp]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	cfg.SetAPIURL(*apiURL)
	cfg.SetLogLevel(*logLevel)

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// The terminal and stdout belong to the TUI or the MCP stream, so logs
	// always go to a file.
	logFile, err := logging.OpenFile(cfg.LogFile())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat(), logFile)
	logger.Info("starting syncmonster", "version", Version, "api_url", cfg.APIURL(), "data_dir", cfg.DataDir())

	store, err := db.Open(db.DefaultPath(cfg.DataDir()))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	met := metrics.New()
	client := api.NewClient(cfg.APIURL(), logging.WithComponent(logger, "api")).
		WithTransport(met.InstrumentTransport(nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := cfg.MetricsAddr(); addr != "" {
		go func() {
			if err := met.Serve(ctx, addr, logging.WithComponent(logger, "metrics")); err != nil {
				logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	opts := editor.Options{
		Interval:    cfg.PollInterval(),
		SubmitDelay: cfg.SubmitDelay(),
		Journal:     store,
		Metrics:     met,
		Logger:      logging.WithComponent(logger, "editor"),
	}

	switch flag.Arg(0) {
	case "":
		return runTUI(client, store, met, cfg, logger)
	case "mcp":
		return runMCP(ctx, client, store, opts, cfg, logger)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", flag.Arg(0))
	}
}

func runTUI(client *api.Client, store *db.Store, met *metrics.Metrics, cfg *config.EnvConfig, logger *slog.Logger) error {
	model := app.New(app.Options{
		Client:       client,
		Store:        store,
		Metrics:      met,
		PageSize:     cfg.PageSize(),
		PollInterval: cfg.PollInterval(),
		SubmitDelay:  cfg.SubmitDelay(),
		Logger:       logging.WithComponent(logger, "tui"),
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	logger.Info("syncmonster exited")
	return nil
}

// runMCP authenticates with the configured credentials, falling back to the
// token saved by the terminal client, and serves MCP on stdio.
func runMCP(ctx context.Context, client *api.Client, store *db.Store, opts editor.Options, cfg *config.EnvConfig, logger *slog.Logger) error {
	if user, pass := cfg.Credentials(); user != "" && pass != "" {
		sess, err := client.Login(ctx, user, pass)
		if err != nil {
			return fmt.Errorf("mcp login: %w", err)
		}
		client = client.WithSession(sess)
		logger.Info("mcp logged in", "username", user, "token", logging.SanitizeToken(sess.Token))
	} else {
		saved, err := store.Credential(ctx, client.BaseURL())
		if err != nil {
			return fmt.Errorf("read saved credential: %w", err)
		}
		if saved != nil {
			client = client.WithSession(api.Session{Username: saved.Username, Token: saved.Token})
			logger.Info("mcp using saved credential", "username", saved.Username)
		} else {
			logger.Warn("mcp running without credentials, write tools will fail")
		}
	}

	srv := mcpserver.NewServer(client, opts, store, logging.WithComponent(logger, "mcp"))
	if err := srv.ServeStdio(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
