package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Attempt is a single, unpersisted verification request
type Attempt struct {
	ClaimedIdentity string `json:"identity"`
	PresentedSecret string `json:"-"`
}

// NewAttempt trims the claimed identity; secrets are taken verbatim
func NewAttempt(identity, secret string) Attempt {
	return Attempt{
		ClaimedIdentity: strings.TrimSpace(identity),
		PresentedSecret: secret,
	}
}

// SecretLimiter is implemented by derivers and providers that cannot accept
// secrets longer than MaxSecretBytes.
type SecretLimiter interface {
	MaxSecretBytes() int
}

// MaxSecretBytesOf returns the secret limit of v, or 0 when v has none
func MaxSecretBytesOf(v any) int {
	if limiter, ok := v.(SecretLimiter); ok {
		return limiter.MaxSecretBytes()
	}
	return 0
}

// Validate checks the attempt. allowEmptySecret is provider defined.
func (a Attempt) Validate(allowEmptySecret bool) error {
	return a.ValidateWithin(allowEmptySecret, 0)
}

// ValidateWithin is Validate with an upper bound on the secret length in
// bytes. maxSecretBytes <= 0 means unbounded.
func (a Attempt) ValidateWithin(allowEmptySecret bool, maxSecretBytes int) error {
	secretRules := []validation.Rule{}
	if !allowEmptySecret {
		secretRules = append(secretRules, validation.Required)
	}
	if maxSecretBytes > 0 {
		secretRules = append(secretRules, maxBytes(maxSecretBytes))
	}

	err := validation.ValidateStruct(&a,
		validation.Field(&a.ClaimedIdentity, validation.Required, validation.Length(1, 255)),
		validation.Field(&a.PresentedSecret, secretRules...),
	)
	if err != nil {
		return withSource(ErrInvalidInput, err, map[string]any{
			"validation": err.Error(),
		})
	}
	return nil
}

// maxBytes limits the byte length of a string, unlike validation.Length
// which counts runes.
func maxBytes(limit int) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return errSecretTooLong
		}
		return nil
	})
}

var errSecretTooLong = errors.New("exceeds the maximum secret length")

// OutcomeKind is the terminal state of a verification
type OutcomeKind string

const (
	// OutcomeRejected means the attempt did not prove the identity
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeNewIdentity means the identity is unknown and Profile should be persisted
	OutcomeNewIdentity OutcomeKind = "new_identity"
	// OutcomeAuthenticated means the identity exists and the secret matched
	OutcomeAuthenticated OutcomeKind = "authenticated"
)

// Outcome is the result of Provider.Verify. Profile is set for
// OutcomeNewIdentity and User for OutcomeAuthenticated.
type Outcome struct {
	Kind     OutcomeKind
	Provider string
	Profile  *User
	User     *User
}

// Rejected builds a rejected outcome for provider
func Rejected(provider string) Outcome {
	return Outcome{Kind: OutcomeRejected, Provider: provider}
}

// NewIdentity builds an outcome asking the caller to persist profile
func NewIdentity(provider string, profile *User) Outcome {
	return Outcome{Kind: OutcomeNewIdentity, Provider: provider, Profile: profile}
}

// Authenticated builds an outcome carrying the existing record
func Authenticated(provider string, user *User) Outcome {
	return Outcome{Kind: OutcomeAuthenticated, Provider: provider, User: user}
}

// Record returns the user the session layer should consume, if any
func (o Outcome) Record() *User {
	switch o.Kind {
	case OutcomeAuthenticated:
		return o.User
	case OutcomeNewIdentity:
		return o.Profile
	default:
		return nil
	}
}
