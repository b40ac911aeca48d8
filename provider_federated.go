package auth

import (
	"context"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// FederatedProviderName is the registered name of the identity assertion provider
const FederatedProviderName = "federated"

const (
	federatedDataIssuer  = "issuer"
	federatedDataEmail   = "email"
	federatedDataSubject = "subject"
)

// FederatedProviderOptions are the options recognized by the federated provider.
// Either JWKSURL or SigningKeys must be set.
type FederatedProviderOptions struct {
	ProviderOptions `yaml:",inline" json:",inline"`
	Issuer          string            `yaml:"issuer" json:"issuer,omitempty"`
	Audience        []string          `yaml:"audience" json:"audience,omitempty"`
	JWKSURL         string            `yaml:"jwks_url" json:"jwks_url,omitempty"`
	SigningKeys     map[string]string `yaml:"signing_keys" json:"-"`
	Algorithms      []string          `yaml:"algorithms" json:"algorithms,omitempty"`
}

type federatedClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// FederatedProvider verifies identity assertions (signed JWTs) issued by an
// external identity provider after its own out of band login. The claimed
// identity is the assertion subject and the presented secret is the
// assertion itself; nothing secret is stored.
type FederatedProvider struct {
	entity  string
	fields  ProviderFields
	slot    BindingSlot
	repo    UserRepository
	opts    FederatedProviderOptions
	keyFunc jwt.Keyfunc
	logger  Logger
	lp      LoggerProvider
}

var _ Provider = (*FederatedProvider)(nil)

// NewFederatedProvider builds the federated provider for entity
func NewFederatedProvider(entity string, repo UserRepository, opts FederatedProviderOptions) (*FederatedProvider, error) {
	fields, err := ResolveFieldNames(FederatedProviderName)
	if err != nil {
		return nil, err
	}

	slot, _ := LookupBindingSlot(FederatedProviderName)

	if len(opts.Algorithms) == 0 {
		opts.Algorithms = []string{"RS256", "ES256", "HS256"}
	}

	lp, logger := ResolveLogger("auth.provider.federated", nil, nil)

	p := &FederatedProvider{
		entity: entity,
		fields: fields,
		slot:   slot,
		repo:   repo,
		opts:   opts,
		logger: logger,
		lp:     lp,
	}

	kf, err := p.buildKeyfunc()
	if err != nil {
		return nil, err
	}
	p.keyFunc = kf

	return p, nil
}

// WithLoggerProvider overrides the logger provider used by the provider.
func (p *FederatedProvider) WithLoggerProvider(provider LoggerProvider) *FederatedProvider {
	p.lp, p.logger = ResolveLogger("auth.provider.federated", provider, p.logger)
	return p
}

// WithKeyfunc overrides the key lookup built from the options
func (p *FederatedProvider) WithKeyfunc(kf jwt.Keyfunc) *FederatedProvider {
	if kf != nil {
		p.keyFunc = kf
	}
	return p
}

func (p *FederatedProvider) buildKeyfunc() (jwt.Keyfunc, error) {
	var givenKeys map[string]keyfunc.GivenKey
	if len(p.opts.SigningKeys) > 0 {
		givenKeys = make(map[string]keyfunc.GivenKey, len(p.opts.SigningKeys))
		for kid, key := range p.opts.SigningKeys {
			givenKeys[kid] = keyfunc.NewGivenCustom([]byte(key), keyfunc.GivenKeyOptions{
				Algorithm: jwt.SigningMethodHS256.Alg(),
			})
		}
	}

	if url := strings.TrimSpace(p.opts.JWKSURL); url != "" {
		jwks, err := keyfunc.Get(url, keyfunc.Options{
			GivenKeys: givenKeys,
			RefreshErrorHandler: func(err error) {
				p.logger.Warn("federated provider failed to refresh JWKS", "error", err)
			},
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryExternal, "failed to load federated JWKS").
				WithMetadata(map[string]any{"jwks_url": url})
		}
		return jwks.Keyfunc, nil
	}

	if len(givenKeys) > 0 {
		return keyfunc.NewGiven(givenKeys).Keyfunc, nil
	}

	return nil, errors.New("federated provider requires jwks_url or signing_keys", errors.CategoryValidation).
		WithTextCode(TextCodeInvalidInput)
}

func (p *FederatedProvider) Name() string { return FederatedProviderName }

func (p *FederatedProvider) Entity() string { return p.entity }

func (p *FederatedProvider) Fields() ProviderFields { return p.fields }

// Options returns the common provider options
func (p *FederatedProvider) Options() ProviderOptions { return p.opts.ProviderOptions }

func (p *FederatedProvider) RegistrationMetadata() ProviderMetadata {
	return ProviderMetadata{
		Name:          FederatedProviderName,
		Entity:        p.entity,
		Summary:       "Callback Route for model '" + p.entity + "' with provider " + FederatedProviderName,
		Description:   "The identity provider redirects here with the subject and a signed id_token",
		Fields:        p.fields,
		IdentityParam: "subject",
		SecretParam:   "id_token",
	}
}

// Verify validates the assertion and resolves its subject against the store
func (p *FederatedProvider) Verify(ctx context.Context, attempt Attempt) (Outcome, error) {
	if err := attempt.Validate(false); err != nil {
		return Rejected(FederatedProviderName), err
	}

	claims, err := p.parse(attempt.PresentedSecret)
	if err != nil {
		p.logger.Debug("federated provider rejected assertion", "error", err)
		return Rejected(FederatedProviderName), withSource(ErrInvalidCredentials, err, map[string]any{
			"provider": FederatedProviderName,
		})
	}

	if claims.Subject != attempt.ClaimedIdentity {
		return Rejected(FederatedProviderName), withSource(ErrInvalidCredentials, nil, map[string]any{
			"provider": FederatedProviderName,
		})
	}

	user, err := p.repo.FindByField(ctx, p.fields.IdentityField, claims.Subject)
	if err != nil && !repository.IsRecordNotFound(err) {
		p.logger.Error("federated provider lookup failed", "error", err)
		return Rejected(FederatedProviderName), withSource(ErrRepositoryUnavailable, err, map[string]any{
			"provider": FederatedProviderName,
		})
	}

	if err == nil && user != nil {
		return Authenticated(FederatedProviderName, user), nil
	}

	profile := &User{}
	*p.slot(profile) = Binding{
		ID: claims.Subject,
		Data: ProviderData{
			federatedDataSubject: claims.Subject,
			federatedDataIssuer:  claims.Issuer,
			federatedDataEmail:   claims.Email,
		},
	}

	return NewIdentity(FederatedProviderName, profile), nil
}

func (p *FederatedProvider) parse(raw string) (*federatedClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods(p.opts.Algorithms),
		jwt.WithExpirationRequired(),
	}
	if p.opts.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(p.opts.Issuer))
	}
	if len(p.opts.Audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(p.opts.Audience...))
	}

	claims := &federatedClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, p.keyFunc, parserOptions...)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrUnableToDecodeSession
	}

	return claims, nil
}
