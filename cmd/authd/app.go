package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-providers"
	"github.com/goliatone/go-auth-providers/config"
)

// App holds the wired service
type App struct {
	config *config.Config
	logger *glog.BaseLogger
	db     *bun.DB
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func loadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

func newApp(ctx context.Context, path string) (*App, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	app := &App{
		config: cfg,
		logger: newLogger(cfg.Debug),
	}

	app.GetLogger("config").Info("configuration loaded",
		"path", path,
		"details", print.MaybePrettyJSON(map[string]any{
			"entity":    cfg.Entity,
			"prefix":    cfg.RoutePrefix,
			"providers": cfg.Providers.Enabled(),
			"server":    cfg.Server,
		}),
	)

	if err := WithPersistence(ctx, app); err != nil {
		return nil, err
	}

	return app, nil
}

func newLogger(debug bool) *glog.BaseLogger {
	if debug {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("authd"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}

	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("authd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

// WithPersistence opens the sqlite database and, when enabled, migrates it
func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.config.Persistence

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "failed to open database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.GetPingTimeout())
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return errors.Wrap(err, errors.CategoryExternal, "failed to reach database")
	}

	app.db = db

	if cfg.Migrate {
		return runMigrations(ctx, app)
	}

	return nil
}

func runMigrations(ctx context.Context, app *App) error {
	logger := app.GetLogger("migrate")

	start := time.Now()
	group, err := auth.Migrate(ctx, app.db)
	if err != nil {
		return err
	}

	if group == nil || group.IsZero() {
		logger.Info("database is up to date")
		return nil
	}

	logger.Info("migrated database", "group", group.String(), "took", time.Since(start).String())
	return nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
