// Package config loads the authd configuration file.
package config

import (
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	auth "github.com/goliatone/go-auth-providers"
)

var cookieNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Config is the root of the configuration file
type Config struct {
	Debug       bool                 `yaml:"debug"`
	Entity      string               `yaml:"entity"`
	RoutePrefix string               `yaml:"route_prefix"`
	Auth        Auth                 `yaml:"auth"`
	Persistence Persistence          `yaml:"persistence"`
	Server      Server               `yaml:"server"`
	Providers   auth.ProvidersConfig `yaml:"providers"`
}

// Auth holds session and signup options
type Auth struct {
	SigningKey            string   `yaml:"signing_key"`
	PreviousSigningKeys   []string `yaml:"previous_signing_keys"`
	ContextKey            string   `yaml:"context_key"`
	TokenExpiration       int      `yaml:"token_expiration"`
	ExtendedTokenDuration int      `yaml:"extended_token_duration"`
	Issuer                string   `yaml:"issuer"`
	Audience              []string `yaml:"audience"`
	SecureCookies         bool     `yaml:"secure_cookies"`
	SignupOnLogin         bool     `yaml:"signup_on_login"`
	DeterministicIDs      bool     `yaml:"deterministic_ids"`
}

var _ auth.Config = Auth{}

func (a Auth) GetSigningKey() string   { return a.SigningKey }
func (a Auth) GetContextKey() string   { return a.ContextKey }
func (a Auth) GetTokenExpiration() int { return a.TokenExpiration }
func (a Auth) GetExtendedTokenDuration() int {
	return a.ExtendedTokenDuration
}
func (a Auth) GetIssuer() string      { return a.Issuer }
func (a Auth) GetAudience() []string  { return a.Audience }
func (a Auth) GetSecureCookies() bool { return a.SecureCookies }

// Persistence configures the user store
type Persistence struct {
	DSN                   string `yaml:"dsn"`
	Migrate               bool   `yaml:"migrate"`
	PingTimeoutExpression string `yaml:"ping_timeout"`
}

// GetPingTimeout parses the ping timeout, defaulting to five seconds
func (p Persistence) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil || dur <= 0 {
		return 5 * time.Second
	}
	return dur
}

// Server configures the listeners
type Server struct {
	Address         string `yaml:"address"`
	MetricsAddress  string `yaml:"metrics_address"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// GetShutdownTimeout parses the shutdown timeout, defaulting to ten seconds
func (s Server) GetShutdownTimeout() time.Duration {
	dur, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || dur <= 0 {
		return 10 * time.Second
	}
	return dur
}

// Defaults returns the configuration used for unset keys
func Defaults() *Config {
	return &Config{
		Entity:      "User",
		RoutePrefix: "/user",
		Auth: Auth{
			ContextKey:            "session",
			TokenExpiration:       24,
			ExtendedTokenDuration: 24 * 30,
			Issuer:                "authd",
			SecureCookies:         true,
			SignupOnLogin:         true,
		},
		Persistence: Persistence{
			DSN:                   "file:authd.db?cache=shared",
			Migrate:               true,
			PingTimeoutExpression: "5s",
		},
		Server: Server{
			Address:         ":8572",
			MetricsAddress:  ":9572",
			ShutdownTimeout: "10s",
		},
		Providers: auth.ProvidersConfig{
			Local: &auth.LocalProviderOptions{},
		},
	}
}

// Load reads path, expands environment variables, overlays it on the
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to read config file").
			WithMetadata(map[string]any{"path": path})
	}
	return Parse(data)
}

// Parse decodes YAML data on top of the defaults and validates it
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid configuration").
			WithMetadata(map[string]any{"validation": err.Error()})
	}

	return cfg, nil
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Entity, validation.Required),
		validation.Field(&c.Auth),
		validation.Field(&c.Persistence),
		validation.Field(&c.Server),
		validation.Field(&c.Providers, validation.By(validateProviders)),
	)
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&a.PreviousSigningKeys, validation.By(validateKeys)),
		validation.Field(&a.ContextKey, validation.Required, validation.Match(cookieNamePattern)),
		validation.Field(&a.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&a.ExtendedTokenDuration, validation.Min(0)),
	)
}

func validateKeys(value any) error {
	keys, _ := value.([]string)
	for _, key := range keys {
		if err := validation.Validate(key, validation.Required, validation.Length(16, 0)); err != nil {
			return err
		}
	}
	return nil
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DSN, validation.Required),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
	)
}

func validateProviders(value any) error {
	providers, _ := value.(auth.ProvidersConfig)
	if len(providers.Enabled()) == 0 {
		return errors.New("at least one provider must be configured", errors.CategoryValidation)
	}

	if f := providers.Federated; f != nil {
		jwksRules := []validation.Rule{is.URL}
		if len(f.SigningKeys) == 0 {
			jwksRules = append(jwksRules, validation.Required)
		}
		return validation.ValidateStruct(f,
			validation.Field(&f.JWKSURL, jwksRules...),
			validation.Field(&f.Issuer, validation.Required),
		)
	}

	return nil
}
