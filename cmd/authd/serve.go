package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-auth-providers"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the auth HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, configFile)
			if err != nil {
				return err
			}
			defer app.Close()

			return serve(ctx, app)
		},
	}
}

func serve(ctx context.Context, app *App) error {
	cfg := app.config
	logger := app.GetLogger("serve")

	sink := auth.MultiActivitySink{
		auth.NewMetricsSink(prometheus.DefaultRegisterer),
		activityLogger(app.GetLogger("auth.activity")),
	}

	svc, err := buildServices(app, sink)
	if err != nil {
		return err
	}

	registry := svc.registry
	sessions := svc.sessions

	controller := auth.NewProviderController(svc.auther, sessions, svc.repos.Users(),
		auth.WithControllerPrefix(cfg.RoutePrefix),
		auth.WithControllerDebug(cfg.Debug),
		auth.WithControllerLoggerProvider(app.logger),
		auth.WithSessionContextKey(cfg.Auth.GetContextKey()),
		auth.WithProtectedMiddleware(sessions.ProtectedRoute("", nil)),
		auth.WithOptionalSessionMiddleware(sessions.OptionalSession()),
	)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			DisableStartupMessage: !cfg.Debug,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))
	controller.RegisterRoutes(srv.Router())

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server listening", "address", cfg.Server.Address, "providers", registry.Names())
		if err := srv.Serve(cfg.Server.Address); err != nil {
			errCh <- errors.Wrap(err, errors.CategoryExternal, "http server failed")
		}
	}()

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("metrics server listening", "address", cfg.Server.MetricsAddress)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- errors.Wrap(err, errors.CategoryExternal, "metrics server failed")
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}

	return serveErr
}
