package main

import (
	"github.com/golang-jwt/jwt/v5"

	auth "github.com/goliatone/go-auth-providers"
	"github.com/goliatone/go-auth-providers/activitymap"
)

// services are the auth components shared by the commands
type services struct {
	repos    auth.RepositoryManager
	registry *auth.Registry
	auther   *auth.Auther
	tokens   auth.TokenService
	sessions *auth.RouteAuthenticator
}

func buildServices(app *App, sink auth.ActivitySink) (*services, error) {
	cfg := app.config

	repos := auth.NewRepositoryManager(app.db)
	if err := repos.Validate(); err != nil {
		return nil, err
	}

	providers, err := cfg.Providers.Build(cfg.Entity, repos.Users(), app.logger)
	if err != nil {
		return nil, err
	}

	registry, err := auth.NewRegistry(providers...)
	if err != nil {
		return nil, err
	}

	auther := auth.NewAuthenticator(registry, repos.Users()).
		WithLoggerProvider(app.logger).
		WithSignupOnLogin(cfg.Auth.SignupOnLogin).
		WithDeterministicIDs(cfg.Auth.DeterministicIDs).
		WithActivitySink(sink)

	tokens := newTokenService(app, cfg.Auth.GetSigningKey())

	previous := make([]auth.TokenValidator, 0, len(cfg.Auth.PreviousSigningKeys))
	for _, key := range cfg.Auth.PreviousSigningKeys {
		previous = append(previous, newTokenService(app, key))
	}

	sessions := auth.NewHTTPAuthenticator(registry, tokens, cfg.Auth).
		WithLoggerProvider(app.logger).
		WithActivitySink(sink).
		WithTokenValidators(previous...)

	return &services{
		repos:    repos,
		registry: registry,
		auther:   auther,
		tokens:   tokens,
		sessions: sessions,
	}, nil
}

func newTokenService(app *App, key string) auth.TokenService {
	cfg := app.config.Auth
	return auth.NewTokenService(
		[]byte(key),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		jwt.ClaimStrings(cfg.GetAudience()),
		app.GetLogger("auth.token"),
	)
}

func activityLogger(logger auth.Logger) auth.ActivitySink {
	return activitymap.Sink(func(n activitymap.Normalized) error {
		logger.Info("auth event", n.Attrs()...)
		return nil
	})
}
