package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Provider is a named credential verification strategy bound to one entity
type Provider interface {
	// Name returns the registered provider name, e.g. "local".
	Name() string

	// Entity returns the user entity the provider is bound to, e.g. "User".
	Entity() string

	// Fields returns the namespaced columns resolved when the provider was built.
	Fields() ProviderFields

	// Verify runs the credential state machine for one attempt. It never
	// writes to the user store.
	Verify(ctx context.Context, attempt Attempt) (Outcome, error)

	// RegistrationMetadata describes the provider for route and docs wiring.
	RegistrationMetadata() ProviderMetadata
}

// ProviderMetadata describes a registered provider
type ProviderMetadata struct {
	Name        string         `json:"name"`
	Entity      string         `json:"entity"`
	Summary     string         `json:"summary"`
	Description string         `json:"description"`
	Fields      ProviderFields `json:"fields"`
	// SecretKeys lists ProviderData keys never exposed past the session boundary.
	SecretKeys []string `json:"-"`
	// IdentityParam and SecretParam name the request fields carrying the attempt.
	IdentityParam string `json:"identity_param"`
	SecretParam   string `json:"secret_param"`
}

// ProviderOptions are the options every provider recognizes
type ProviderOptions struct {
	Scope              []string `yaml:"scope" json:"scope,omitempty"`
	SuccessRedirectURL string   `yaml:"success_redirect_url" json:"success_redirect_url,omitempty"`
	FailureRedirectURL string   `yaml:"failure_redirect_url" json:"failure_redirect_url,omitempty"`
}

func (o ProviderOptions) withDefaults() ProviderOptions {
	if o.SuccessRedirectURL == "" {
		o.SuccessRedirectURL = "/"
	}
	if o.FailureRedirectURL == "" {
		o.FailureRedirectURL = "/login"
	}
	return o
}

// ProvidersConfig enumerates the providers this package knows how to build.
// A nil entry disables that provider.
type ProvidersConfig struct {
	Local     *LocalProviderOptions     `yaml:"local" json:"local,omitempty"`
	Federated *FederatedProviderOptions `yaml:"federated" json:"federated,omitempty"`
}

// Enabled returns the names of the configured providers
func (c ProvidersConfig) Enabled() []string {
	names := []string{}
	if c.Local != nil {
		names = append(names, LocalProviderName)
	}
	if c.Federated != nil {
		names = append(names, FederatedProviderName)
	}
	return names
}

// Build constructs every configured provider for entity
func (c ProvidersConfig) Build(entity string, repo UserRepository, lp LoggerProvider) ([]Provider, error) {
	providers := []Provider{}

	if c.Local != nil {
		local, err := NewLocalProvider(entity, repo, *c.Local)
		if err != nil {
			return nil, err
		}
		providers = append(providers, local.WithLoggerProvider(lp))
	}

	if c.Federated != nil {
		federated, err := NewFederatedProvider(entity, repo, *c.Federated)
		if err != nil {
			return nil, err
		}
		providers = append(providers, federated.WithLoggerProvider(lp))
	}

	if len(providers) == 0 {
		return nil, withSource(ErrProviderNotFound, nil, map[string]any{
			"reason": "no providers configured",
		})
	}

	return providers, nil
}

type registration struct {
	provider Provider
	fields   ProviderFields
	slot     BindingSlot
	options  ProviderOptions
}

// Registry holds the providers registered for an application
type Registry struct {
	mu        sync.RWMutex
	providers map[string]registration
}

// NewRegistry creates a registry and registers the given providers
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]registration)}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a provider. Names must be unique, namespaceable, and have
// a binding slot on User.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return withSource(ErrInvalidProviderName, nil, nil)
	}

	name := p.Name()
	fields, err := ResolveFieldNames(name)
	if err != nil {
		return err
	}

	slot, ok := LookupBindingSlot(name)
	if !ok {
		return withSource(ErrInvalidProviderName, nil, map[string]any{
			"provider": name,
			"reason":   "user has no binding for provider",
		})
	}

	var opts ProviderOptions
	if op, ok := p.(interface{ Options() ProviderOptions }); ok {
		opts = op.Options()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return withSource(ErrProviderAlreadyRegistered, nil, map[string]any{
			"provider": name,
		})
	}

	r.providers[name] = registration{
		provider: p,
		fields:   fields,
		slot:     slot,
		options:  opts.withDefaults(),
	}

	return nil
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return reg.provider, nil
}

// Fields returns the namespaced columns resolved at registration
func (r *Registry) Fields(name string) (ProviderFields, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return ProviderFields{}, err
	}
	return reg.fields, nil
}

// Options returns the common options of a registered provider
func (r *Registry) Options(name string) (ProviderOptions, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return ProviderOptions{}, err
	}
	return reg.options, nil
}

// Names returns the sorted registered provider names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metadata returns the registration metadata of every provider
func (r *Registry) Metadata() []ProviderMetadata {
	names := r.Names()
	out := make([]ProviderMetadata, 0, len(names))
	for _, name := range names {
		if reg, err := r.lookup(name); err == nil {
			out = append(out, reg.provider.RegistrationMetadata())
		}
	}
	return out
}

// IdentityFields returns every registered identity column
func (r *Registry) IdentityFields() []string {
	names := r.Names()
	out := make([]string, 0, len(names))
	for _, name := range names {
		if reg, err := r.lookup(name); err == nil {
			out = append(out, reg.fields.IdentityField)
		}
	}
	return out
}

// Identities returns provider name to identity key for every bound provider
func (r *Registry) Identities(u *User) map[string]string {
	out := map[string]string{}
	if u == nil {
		return out
	}

	for _, name := range r.Names() {
		reg, err := r.lookup(name)
		if err != nil {
			continue
		}
		if b := reg.slot(u); b != nil && !b.IsZero() {
			out[name] = b.ID
		}
	}
	return out
}

// PublicProfile returns the user as seen past the session boundary: id
// plus each provider's namespaced fields with secret keys removed.
func (r *Registry) PublicProfile(u *User) map[string]any {
	out := map[string]any{}
	if u == nil {
		return out
	}

	out["id"] = u.ID.String()
	out["role"] = string(u.Role)

	for _, name := range r.Names() {
		reg, err := r.lookup(name)
		if err != nil {
			continue
		}

		b := reg.slot(u)
		if b == nil || b.IsZero() {
			continue
		}

		meta := reg.provider.RegistrationMetadata()
		out[reg.fields.IdentityField] = b.ID
		out[reg.fields.DataField] = map[string]any(b.Data.Without(meta.SecretKeys...))
	}

	return out
}

func (r *Registry) lookup(name string) (registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.providers[strings.TrimSpace(name)]
	if !ok {
		return registration{}, withSource(ErrProviderNotFound, nil, map[string]any{
			"provider": name,
		})
	}
	return reg, nil
}
