package auth

import (
	"context"
	"fmt"

	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
)

// Logger is the structured logger used across the package.
type Logger = glog.Logger

// LoggerProvider hands out named loggers, e.g. "auth.provider.local".
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Config holds session options
type Config interface {
	GetSigningKey() string
	GetContextKey() string
	GetTokenExpiration() int
	GetExtendedTokenDuration() int
	GetIssuer() string
	GetAudience() []string
	GetSecureCookies() bool
}

// UserRepository is the user store a provider resolves attempts against.
// FindByField returns a go-repository-bun not found error when no record
// matches, and Create returns ErrIdentityConflict when a unique
// constraint on a namespaced identity field is violated.
type UserRepository interface {
	FindByField(ctx context.Context, field, value string) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
}

// SecretDeriver turns plaintext secrets into a slow, salted one-way form
type SecretDeriver interface {
	Derive(plaintext string) (string, error)
	Matches(derived, plaintext string) (bool, error)
}

// SessionEstablisher turns a resolved user into an authenticated session.
// provider names the provider that verified the attempt.
type SessionEstablisher interface {
	Establish(c router.Context, provider string, user *User, extended bool) error
	Clear(c router.Context)
}

// Authenticator orchestrates provider verification for the HTTP layer
type Authenticator interface {
	Login(ctx context.Context, providerName string, attempt Attempt) (*User, error)
	Register(ctx context.Context, providerName string, attempt Attempt) (*User, error)
	Logout(ctx context.Context, providerName string, user *User)
	Registry() *Registry
}

type defLogger struct {
	name string
}

func (d defLogger) Trace(format string, args ...any) { d.print("TRC", format, args...) }
func (d defLogger) Debug(format string, args ...any) { d.print("DBG", format, args...) }
func (d defLogger) Info(format string, args ...any)  { d.print("INF", format, args...) }
func (d defLogger) Warn(format string, args ...any)  { d.print("WRN", format, args...) }
func (d defLogger) Error(format string, args ...any) { d.print("ERR", format, args...) }
func (d defLogger) Fatal(format string, args ...any) { d.print("FTL", format, args...) }

func (d defLogger) WithContext(context.Context) Logger {
	return d
}

func (d defLogger) print(level, msg string, args ...any) {
	name := d.name
	if name == "" {
		name = "auth"
	}
	fmt.Printf("[%s] %s %s", level, name, msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Printf(" %v=%v", args[i], args[i+1])
	}
	fmt.Println()
}

type defLoggerProvider struct{}

func (defLoggerProvider) GetLogger(name string) Logger {
	return defLogger{name: name}
}

// ResolveLogger returns the provider and the scoped logger to use for name.
// A nil provider falls back to the default printf logger, and a provider
// returning nil falls back to fallback.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider == nil {
		provider = defLoggerProvider{}
	}

	logger := provider.GetLogger(name)
	if logger == nil {
		logger = fallback
	}

	if logger == nil {
		logger = defLogger{name: name}
	}

	return provider, logger
}
