package auth

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// ProviderController translates HTTP requests into provider attempts. It
// holds no decision logic of its own.
type ProviderController struct {
	Debug        bool
	Prefix       string
	ContextKey   string
	Auther       Authenticator
	Sessions     SessionEstablisher
	Repo         UserRepository
	Protected    router.MiddlewareFunc
	Optional     router.MiddlewareFunc
	ErrorHandler router.ErrorHandler
	logger       Logger
}

type ProviderControllerOption func(*ProviderController) *ProviderController

// WithControllerPrefix mounts the routes under prefix, e.g. "/user"
func WithControllerPrefix(prefix string) ProviderControllerOption {
	return func(c *ProviderController) *ProviderController {
		c.Prefix = "/" + strings.Trim(prefix, "/")
		if c.Prefix == "/" {
			c.Prefix = ""
		}
		return c
	}
}

// WithControllerDebug dumps request payloads, minus secrets
func WithControllerDebug(debug bool) ProviderControllerOption {
	return func(c *ProviderController) *ProviderController {
		c.Debug = debug
		return c
	}
}

// WithControllerLoggerProvider resolves the "auth.http" logger from provider
func WithControllerLoggerProvider(lp LoggerProvider) ProviderControllerOption {
	return func(c *ProviderController) *ProviderController {
		_, c.logger = ResolveLogger("auth.http", lp, c.logger)
		return c
	}
}

// WithProtectedMiddleware sets the middleware guarding session routes
func WithProtectedMiddleware(mw router.MiddlewareFunc) ProviderControllerOption {
	return func(c *ProviderController) *ProviderController {
		c.Protected = mw
		return c
	}
}

// WithOptionalSessionMiddleware sets the middleware that loads, but does
// not require, a session on logout
func WithOptionalSessionMiddleware(mw router.MiddlewareFunc) ProviderControllerOption {
	return func(c *ProviderController) *ProviderController {
		c.Optional = mw
		return c
	}
}

// WithSessionContextKey sets the locals key the session guard stores claims under
func WithSessionContextKey(key string) ProviderControllerOption {
	return func(c *ProviderController) *ProviderController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func NewProviderController(auther Authenticator, sessions SessionEstablisher, repo UserRepository, opts ...ProviderControllerOption) *ProviderController {
	_, logger := ResolveLogger("auth.http", nil, nil)
	c := &ProviderController{
		ContextKey: "user",
		Auther:     auther,
		Sessions:   sessions,
		Repo:       repo,
		logger:     logger,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in provider controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionEstablisher in provider controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}

	return c
}

// RegisterRoutes mounts the login lifecycle for every registered provider
func (c *ProviderController) RegisterRoutes(app RouteRegistrar) {
	base := c.Prefix + "/auth"

	app.Get(base+"/providers", c.Providers).SetName("auth.providers")
	app.Post(base+"/:provider/login", c.Login).SetName("auth.login")
	app.Post(base+"/:provider/register", c.Register).SetName("auth.register")
	if c.Optional != nil {
		app.Get(base+"/:provider/logout", c.Logout, c.Optional).SetName("auth.logout")
	} else {
		app.Get(base+"/:provider/logout", c.Logout).SetName("auth.logout")
	}
	app.Get(base+"/:provider/callback", c.Callback).SetName("auth.callback")

	if c.Protected != nil {
		app.Get(c.Prefix+"/me", c.Me, c.Protected).SetName("auth.me")
	} else {
		c.logger.Warn("no session guard configured, profile route disabled")
	}
}

// LoginRequest is the login and register payload. identity and secret
// are aliased by username and password.
type LoginRequest struct {
	Identity   string `form:"identity" json:"identity"`
	Username   string `form:"username" json:"username"`
	Secret     string `form:"secret" json:"secret"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentity returns the claimed identity from either alias
func (r LoginRequest) GetIdentity() string {
	if r.Identity != "" {
		return r.Identity
	}
	return r.Username
}

// GetSecret returns the presented secret from either alias
func (r LoginRequest) GetSecret() string {
	if r.Secret != "" {
		return r.Secret
	}
	return r.Password
}

// Validate checks the payload shape. Provider specific rules run in Verify.
func (r LoginRequest) Validate() error {
	return r.ValidateWithin(0)
}

// ValidateWithin also bounds the secret to maxSecretBytes when positive.
func (r LoginRequest) ValidateWithin(maxSecretBytes int) error {
	secretRules := []validation.Rule{validation.Required}
	if maxSecretBytes > 0 {
		secretRules = append(secretRules, maxBytes(maxSecretBytes))
	}
	return validation.Errors{
		"identity": validation.Validate(r.GetIdentity(), validation.Required, validation.Length(1, 255)),
		"secret":   validation.Validate(r.GetSecret(), secretRules...),
	}.Filter()
}

// Attempt converts the payload into a provider attempt
func (r LoginRequest) Attempt() Attempt {
	return NewAttempt(r.GetIdentity(), r.GetSecret())
}

func (r LoginRequest) redacted() map[string]any {
	return map[string]any{
		"identity":    r.GetIdentity(),
		"remember_me": r.RememberMe,
	}
}

// Login handles POST {prefix}/auth/:provider/login
func (c *ProviderController) Login(ctx router.Context) error {
	providerName := ctx.Param("provider")

	payload, err := c.bind(ctx, providerName, "login")
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	user, err := c.Auther.Login(ctx.Context(), providerName, payload.Attempt())
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := c.Sessions.Establish(ctx, providerName, user, payload.RememberMe); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"logged_in": true,
	})
}

// Register handles POST {prefix}/auth/:provider/register
func (c *ProviderController) Register(ctx router.Context) error {
	providerName := ctx.Param("provider")

	payload, err := c.bind(ctx, providerName, "register")
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	user, err := c.Auther.Register(ctx.Context(), providerName, payload.Attempt())
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := c.Sessions.Establish(ctx, providerName, user, payload.RememberMe); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"logged_in": true,
		"id":        user.ID.String(),
	})
}

// Logout handles GET {prefix}/auth/:provider/logout
func (c *ProviderController) Logout(ctx router.Context) error {
	providerName := ctx.Param("provider")

	var user *User
	if session, ok := GetRouterSession(ctx, c.ContextKey); ok && HasUserUUID(session) {
		id, _ := session.GetUserUUID()
		user = &User{ID: id, Role: session.GetRole()}
	}

	c.Sessions.Clear(ctx)
	c.Auther.Logout(ctx.Context(), providerName, user)

	return ctx.JSON(router.StatusOK, map[string]any{
		"logged_in": false,
	})
}

// Callback handles GET {prefix}/auth/:provider/callback. The attempt is
// read from the query using the provider's parameter names and the
// request is redirected to the provider's success or failure URL.
func (c *ProviderController) Callback(ctx router.Context) error {
	providerName := ctx.Param("provider")
	registry := c.Auther.Registry()

	provider, err := registry.Get(providerName)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	opts, err := registry.Options(providerName)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	meta := provider.RegistrationMetadata()
	attempt := NewAttempt(ctx.Query(meta.IdentityParam), ctx.Query(meta.SecretParam))

	user, err := c.Auther.Login(ctx.Context(), providerName, attempt)
	if err != nil {
		c.logger.Info("callback rejected", "provider", providerName, "error", err)
		return ctx.Redirect(opts.FailureRedirectURL, http.StatusTemporaryRedirect)
	}

	if err := c.Sessions.Establish(ctx, providerName, user, false); err != nil {
		c.logger.Error("callback session error", "provider", providerName, "error", err)
		return ctx.Redirect(opts.FailureRedirectURL, http.StatusTemporaryRedirect)
	}

	return ctx.Redirect(opts.SuccessRedirectURL, http.StatusTemporaryRedirect)
}

// Me handles GET {prefix}/me for an established session
func (c *ProviderController) Me(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, c.ContextKey)
	if !ok {
		return c.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	if c.Repo == nil {
		return c.ErrorHandler(ctx, withSource(ErrRepositoryUnavailable, nil, nil))
	}

	registry := c.Auther.Registry()
	identities := claims.Identities()

	names := make([]string, 0, len(identities))
	if via := claims.Provider(); via != "" {
		names = append(names, via)
	}
	names = append(names, registry.Names()...)

	for _, name := range names {
		identity, ok := identities[name]
		if !ok || identity == "" {
			continue
		}

		fields, err := registry.Fields(name)
		if err != nil {
			continue
		}

		user, err := c.Repo.FindByField(ctx.Context(), fields.IdentityField, identity)
		if err != nil {
			return c.ErrorHandler(ctx, err)
		}

		if user == nil || user.ID.String() != claims.UserID() {
			break
		}

		return ctx.JSON(router.StatusOK, registry.PublicProfile(user))
	}

	return c.ErrorHandler(ctx, withSource(ErrUnableToDecodeSession, nil, map[string]any{
		"user_id": claims.UserID(),
	}))
}

// Providers handles GET {prefix}/auth/providers
func (c *ProviderController) Providers(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{
		"providers": c.Auther.Registry().Metadata(),
	})
}

func (c *ProviderController) bind(ctx router.Context, providerName, op string) (*LoginRequest, error) {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return nil, withSource(ErrInvalidInput, err, map[string]any{
			"reason": "unable to parse body",
		})
	}

	if c.Debug {
		c.logger.Debug("auth "+op+" payload", "payload", print.MaybePrettyJSON(payload.redacted()))
	}

	if err := payload.ValidateWithin(c.secretLimit(providerName)); err != nil {
		return nil, withSource(ErrInvalidInput, err, map[string]any{
			"validation": err.Error(),
		})
	}

	return payload, nil
}

// secretLimit is 0 for unknown providers; Auther reports those.
func (c *ProviderController) secretLimit(providerName string) int {
	provider, err := c.Auther.Registry().Get(providerName)
	if err != nil {
		return 0
	}
	return MaxSecretBytesOf(provider)
}

func (c *ProviderController) defaultErrHandler(ctx router.Context, err error) error {
	richErr := toRichError(err)

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		c.logger.Error("auth request failed", "text_code", richErr.TextCode, "error", err)
	} else {
		c.logger.Debug("auth request rejected", "text_code", richErr.TextCode, "error", richErr.Message)
	}

	body := publicError(richErr)
	if v, ok := richErr.Metadata["validation"]; ok {
		body["validation"] = v
	}

	return ctx.JSON(status, body)
}
