package auth

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
)

// LocalProviderName is the registered name of the password provider
const LocalProviderName = "local"

const (
	localDataUsername = "username"
	localDataPassword = "password"
)

// LocalProviderOptions are the options recognized by the password provider
type LocalProviderOptions struct {
	ProviderOptions `yaml:",inline" json:",inline"`
	// Scheme selects the secret deriver: "bcrypt" (default) or "argon2id".
	Scheme     string        `yaml:"scheme" json:"scheme,omitempty"`
	BcryptCost int           `yaml:"bcrypt_cost" json:"bcrypt_cost,omitempty"`
	Argon2     Argon2Deriver `yaml:"argon2" json:"argon2,omitempty"`
}

// LocalProvider verifies username and password attempts. Passwords are
// stored in derived form under the "password" key of the local binding.
type LocalProvider struct {
	entity  string
	fields  ProviderFields
	slot    BindingSlot
	repo    UserRepository
	deriver SecretDeriver
	opts    LocalProviderOptions
	logger  Logger
	lp      LoggerProvider
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider builds the password provider for entity
func NewLocalProvider(entity string, repo UserRepository, opts LocalProviderOptions) (*LocalProvider, error) {
	fields, err := ResolveFieldNames(LocalProviderName)
	if err != nil {
		return nil, err
	}

	slot, _ := LookupBindingSlot(LocalProviderName)

	deriver, err := NewSecretDeriver(opts.Scheme, opts.BcryptCost, opts.Argon2)
	if err != nil {
		return nil, err
	}

	lp, logger := ResolveLogger("auth.provider.local", nil, nil)

	return &LocalProvider{
		entity:  entity,
		fields:  fields,
		slot:    slot,
		repo:    repo,
		deriver: deriver,
		opts:    opts,
		logger:  logger,
		lp:      lp,
	}, nil
}

// WithDeriver overrides the secret deriver built from the options
func (p *LocalProvider) WithDeriver(d SecretDeriver) *LocalProvider {
	if d != nil {
		p.deriver = d
	}
	return p
}

// WithLoggerProvider overrides the logger provider used by the provider.
func (p *LocalProvider) WithLoggerProvider(provider LoggerProvider) *LocalProvider {
	p.lp, p.logger = ResolveLogger("auth.provider.local", provider, p.logger)
	return p
}

func (p *LocalProvider) Name() string { return LocalProviderName }

func (p *LocalProvider) Entity() string { return p.entity }

func (p *LocalProvider) Fields() ProviderFields { return p.fields }

// Options returns the common provider options
func (p *LocalProvider) Options() ProviderOptions { return p.opts.ProviderOptions }

// Deriver exposes the deriver so callers can seed or rotate secrets
func (p *LocalProvider) Deriver() SecretDeriver { return p.deriver }

// MaxSecretBytes is the secret limit of the configured deriver, 0 if none
func (p *LocalProvider) MaxSecretBytes() int { return MaxSecretBytesOf(p.deriver) }

func (p *LocalProvider) RegistrationMetadata() ProviderMetadata {
	return ProviderMetadata{
		Name:          LocalProviderName,
		Entity:        p.entity,
		Summary:       "Login for model '" + p.entity + "' with provider " + LocalProviderName,
		Description:   "POST your login data (username, password) to this url",
		Fields:        p.fields,
		SecretKeys:    []string{localDataPassword},
		IdentityParam: localDataUsername,
		SecretParam:   localDataPassword,
	}
}

// Verify looks the username up and either proposes a new identity, returns
// the existing record, or rejects the attempt.
func (p *LocalProvider) Verify(ctx context.Context, attempt Attempt) (Outcome, error) {
	if err := attempt.ValidateWithin(false, p.MaxSecretBytes()); err != nil {
		return Rejected(LocalProviderName), err
	}

	user, err := p.repo.FindByField(ctx, p.fields.IdentityField, attempt.ClaimedIdentity)
	if err != nil && !repository.IsRecordNotFound(err) {
		p.logger.Error("local provider lookup failed", "error", err)
		return Rejected(LocalProviderName), withSource(ErrRepositoryUnavailable, err, map[string]any{
			"provider": LocalProviderName,
		})
	}

	if err != nil || user == nil {
		return p.newIdentity(attempt)
	}

	binding := p.slot(user)
	stored := binding.Data.String(localDataPassword)
	if stored == "" {
		p.logger.Error("local provider record has no derived secret", "user_id", user.ID.String())
		return Rejected(LocalProviderName), withSource(ErrDerivationFailure, nil, map[string]any{
			"provider": LocalProviderName,
			"user_id":  user.ID.String(),
		})
	}

	ok, err := p.deriver.Matches(stored, attempt.PresentedSecret)
	if err != nil {
		p.logger.Error("local provider secret verification failed", "error", err)
		if !IsDerivationFailure(err) {
			err = withSource(ErrDerivationFailure, err, map[string]any{
				"provider": LocalProviderName,
			})
		}
		return Rejected(LocalProviderName), err
	}

	if !ok {
		return Rejected(LocalProviderName), withSource(ErrInvalidCredentials, nil, map[string]any{
			"provider": LocalProviderName,
		})
	}

	return Authenticated(LocalProviderName, user), nil
}

// Provision builds an unpersisted user holding a derived secret for
// identity, for seeding accounts out of band.
func (p *LocalProvider) Provision(identity, secret string, role UserRole) (*User, error) {
	attempt := NewAttempt(identity, secret)
	if err := attempt.ValidateWithin(false, p.MaxSecretBytes()); err != nil {
		return nil, err
	}

	outcome, err := p.newIdentity(attempt)
	if err != nil {
		return nil, err
	}

	user := outcome.Profile
	if role != "" {
		if _, ok := ParseRole(string(role)); !ok {
			return nil, withSource(ErrInvalidInput, nil, map[string]any{
				"role": string(role),
			})
		}
		user.Role = role
	}
	return user, nil
}

func (p *LocalProvider) newIdentity(attempt Attempt) (Outcome, error) {
	derived, err := p.deriver.Derive(attempt.PresentedSecret)
	if IsInvalidInput(err) {
		return Rejected(LocalProviderName), err
	}
	if err != nil {
		p.logger.Error("local provider secret derivation failed", "error", err)
		if !IsDerivationFailure(err) {
			err = withSource(ErrDerivationFailure, err, map[string]any{
				"provider": LocalProviderName,
			})
		}
		return Rejected(LocalProviderName), err
	}

	profile := &User{}
	*p.slot(profile) = Binding{
		ID: attempt.ClaimedIdentity,
		Data: ProviderData{
			localDataUsername: attempt.ClaimedIdentity,
			localDataPassword: derived,
		},
	}

	return NewIdentity(LocalProviderName, profile), nil
}
