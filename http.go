package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-auth-providers/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator is the cookie backed session layer. It implements
// SessionEstablisher and guards routes with the session token.
type RouteAuthenticator struct {
	registry               *Registry
	tokens                 TokenService
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	activitySink           ActivitySink
	claimsDecorator        ClaimsDecorator
	validators             []TokenValidator
	listeners              []ValidationListener
	logger                 Logger
	loggerProvider         LoggerProvider
	ErrorHandler           router.ErrorHandler
}

var _ SessionEstablisher = (*RouteAuthenticator)(nil)

// NewHTTPAuthenticator builds the session layer. Token and cookie lifetimes
// come from cfg in hours.
func NewHTTPAuthenticator(registry *Registry, tokens TokenService, cfg Config) *RouteAuthenticator {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	lp, logger := ResolveLogger("auth.http", nil, nil)

	a := &RouteAuthenticator{
		registry:               registry,
		tokens:                 tokens,
		cfg:                    cfg,
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
		activitySink:           noopActivitySink{},
		claimsDecorator:        noopClaimsDecorator{},
		logger:                 logger,
		loggerProvider:         lp,
	}

	a.ErrorHandler = a.defaultErrHandler

	return a
}

// WithLoggerProvider resolves the "auth.http" logger from provider
func (a *RouteAuthenticator) WithLoggerProvider(provider LoggerProvider) *RouteAuthenticator {
	a.loggerProvider, a.logger = ResolveLogger("auth.http", provider, a.logger)
	return a
}

// WithActivitySink records rejected sessions
func (a *RouteAuthenticator) WithActivitySink(sink ActivitySink) *RouteAuthenticator {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

// WithClaimsDecorator adds extension claims before a session is signed
func (a *RouteAuthenticator) WithClaimsDecorator(d ClaimsDecorator) *RouteAuthenticator {
	a.claimsDecorator = normalizeClaimsDecorator(d)
	return a
}

// WithTokenValidators accepts session tokens the TokenService rejects as
// malformed, e.g. tokens signed with a previous signing key.
func (a *RouteAuthenticator) WithTokenValidators(validators ...TokenValidator) *RouteAuthenticator {
	a.validators = append(a.validators, validators...)
	return a
}

// WithValidationListeners runs listeners on every validated session
func (a *RouteAuthenticator) WithValidationListeners(listeners ...ValidationListener) *RouteAuthenticator {
	a.listeners = append(a.listeners, listeners...)
	return a
}

func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a *RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

// Establish signs a session token for user and sets it as a cookie. Only
// the user id, role and identity keys go into the token.
func (a *RouteAuthenticator) Establish(c router.Context, provider string, user *User, extended bool) error {
	if user == nil {
		return withSource(ErrUnableToFindSession, nil, map[string]any{
			"provider": provider,
		})
	}

	duration := a.cookieDuration
	if extended {
		duration = a.extendedCookieDuration
	}

	claims, err := a.tokens.Claims(user, provider, a.registry.Identities(user), duration)
	if err != nil {
		return err
	}

	snapshot := captureImmutableClaims(claims)
	if err := a.claimsDecorator.Decorate(c.Context(), user, claims); err != nil {
		a.logger.Error("claims decorator failed", "provider", provider, "error", err)
		return err
	}
	if err := snapshot.validate(claims); err != nil {
		a.logger.Error("claims decorator mutated session claims", "provider", provider, "error", err)
		return err
	}

	token, err := a.tokens.SignClaims(claims)
	if err != nil {
		a.logger.Error("unable to sign session token", "provider", provider, "error", err)
		return err
	}

	a.setCookieToken(c, token, duration)
	return nil
}

// Clear removes the session cookie
func (a *RouteAuthenticator) Clear(c router.Context) {
	a.cookieDel(c, a.cfg.GetContextKey())
}

// ProtectedRoute returns a middleware that rejects requests without a
// valid session. minimumRole may be empty.
func (a *RouteAuthenticator) ProtectedRoute(minimumRole UserRole, errorHandler router.ErrorHandler) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = a.ErrorHandler
	}

	cfg := jwtware.Config{
		ErrorHandler:    a.rejected(errorHandler),
		ContextKey:      a.cfg.GetContextKey(),
		TokenLookup:     "cookie:" + a.cfg.GetContextKey() + ",header:" + router.HeaderAuthorization,
		TokenValidator:  a.validator(),
		MinimumRole:     string(minimumRole),
		ContextEnricher: ContextEnricherAdapter,
	}

	RegisterValidationListeners(&cfg, RegisteredProviderListener(a.registry))
	RegisterValidationListeners(&cfg, a.listeners...)

	return jwtware.New(cfg)
}

// OptionalSession loads the session claims when a valid token is present
// and lets the request through either way.
func (a *RouteAuthenticator) OptionalSession() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		cfg := jwtware.Config{
			ErrorHandler: func(c router.Context, _ error) error {
				return next(c)
			},
			ContextKey:      a.cfg.GetContextKey(),
			TokenLookup:     "cookie:" + a.cfg.GetContextKey() + ",header:" + router.HeaderAuthorization,
			TokenValidator:  a.validator(),
			ContextEnricher: ContextEnricherAdapter,
		}
		return jwtware.New(cfg)(next)
	}
}

func (a *RouteAuthenticator) validator() jwtware.TokenValidator {
	chain := NewMultiTokenValidator(append([]TokenValidator{a.tokens}, a.validators...)...)
	return jwtware.TokenValidatorFunc(func(token string) (jwtware.AuthClaims, error) {
		claims, err := chain.Validate(token)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

func (a *RouteAuthenticator) rejected(next router.ErrorHandler) router.ErrorHandler {
	return func(c router.Context, err error) error {
		meta := map[string]any{"error": err.Error()}
		if rich, ok := asRichError(err); ok {
			meta["code"] = rich.TextCode
		}
		event := ActivityEvent{
			EventType:  ActivityEventSessionRejected,
			Actor:      ActorRef{Type: "unknown"},
			Metadata:   meta,
			OccurredAt: time.Now(),
		}
		if recErr := a.activitySink.Record(c.Context(), event); recErr != nil {
			a.logger.Warn("activity sink record error", "error", recErr)
		}
		return next(c, err)
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	richErr := toRichError(err)

	a.logger.Info(
		"session rejected",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = http.StatusUnauthorized
	}
	return c.JSON(status, publicError(richErr))
}

// toRichError maps any error onto a go-errors value, treating unknown
// session failures as unauthorized.
func toRichError(err error) *errors.Error {
	if richErr, ok := asRichError(err); ok {
		return richErr
	}
	return errors.MapToError(err, errors.DefaultErrorMappers())
}

// publicError is the response body for err. Source and metadata are left
// out so store faults and provider data never reach the client.
func publicError(err *errors.Error) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"category":  err.Category.String(),
			"code":      err.Code,
			"text_code": err.TextCode,
			"message":   err.Message,
		},
	}
}
