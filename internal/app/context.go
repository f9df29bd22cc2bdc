package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"reminderdesk/internal/config"
	"reminderdesk/internal/db"
	"reminderdesk/internal/engine"
	"reminderdesk/internal/logging"
	"reminderdesk/internal/metrics"
	"reminderdesk/internal/migrate"
)

// Options select the workspace and how to open it.
type Options struct {
	Workspace string
	// ConfigPath overrides <workspace>/reminderdesk.yml.
	ConfigPath string
	LogLevel   string
	LogFormat  string
	// Logger is used as-is when set; LogLevel and LogFormat are ignored.
	Logger *zap.Logger
}

// Workspace is an opened, migrated store with its engine.
type Workspace struct {
	Path     string
	Conn     *sql.DB
	Config   *config.Config
	Engine   engine.Engine
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// Open resolves config, opens and migrates the database and wires the
// engine with logging and metrics. A missing config file falls back to the
// built-in defaults unless ConfigPath names it explicitly.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger, err = logging.New(opts.LogLevel, opts.LogFormat)
		if err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open workspace db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	reg := prometheus.NewRegistry()
	e := engine.New(conn, cfg)
	e.Logger = logger
	e.Metrics = metrics.New(reg)
	logger.Debug("workspace opened", zap.String("db", db.Path(opts.Workspace)))
	return &Workspace{
		Path:     opts.Workspace,
		Conn:     conn,
		Config:   cfg,
		Engine:   e,
		Logger:   logger,
		Registry: reg,
	}, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.Conn == nil {
		return nil
	}
	_ = w.Logger.Sync()
	return w.Conn.Close()
}

func loadConfig(opts Options) (*config.Config, error) {
	if opts.ConfigPath != "" {
		cfg, err := config.FromFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.ConfigPath, err)
		}
		return cfg, nil
	}
	return config.LoadOptional(opts.Workspace)
}

// Init creates the workspace directory and writes the default config when
// none exists. It reports whether the config file was written.
func Init(ctx context.Context, workspace string) (bool, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return false, err
	}
	path := config.Path(workspace)
	written := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte(config.DefaultYAML), 0o644); err != nil {
			return false, fmt.Errorf("write config: %w", err)
		}
		written = true
	} else if err != nil {
		return false, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return written, err
	}
	defer conn.Close()
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		return written, fmt.Errorf("migrate: %w", err)
	}
	return written, nil
}
