package auth

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidInput          = "INVALID_INPUT"
	TextCodeInvalidCreds          = "INVALID_CREDENTIALS"
	TextCodeIdentityExists        = "IDENTITY_EXISTS"
	TextCodeRepositoryUnavailable = "REPOSITORY_UNAVAILABLE"
	TextCodeDerivationFailure     = "DERIVATION_FAILURE"
	TextCodeProviderNotFound      = "PROVIDER_NOT_FOUND"
	TextCodeInvalidProviderName   = "INVALID_PROVIDER_NAME"
	TextCodeProviderRegistered    = "PROVIDER_ALREADY_REGISTERED"
	TextCodeEmptySecret           = "EMPTY_SECRET"
	TextCodeSessionNotFound       = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError    = "SESSION_DECODE_ERROR"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeImmutableClaim        = "IMMUTABLE_CLAIM_MUTATION"
)

// ErrInvalidInput is returned for malformed attempts, before the store is touched
var ErrInvalidInput = errors.New("invalid authentication attempt", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidInput).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials is the single rejection reason callers see for a
// wrong secret, and for an unknown identity when signup on login is off.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrIdentityConflict is returned when the identity already exists
var ErrIdentityConflict = errors.New("account already exists", errors.CategoryConflict).
	WithTextCode(TextCodeIdentityExists).
	WithCode(errors.CodeConflict)

// ErrRepositoryUnavailable wraps user store faults. It is never retried here.
var ErrRepositoryUnavailable = errors.New("user repository unavailable", errors.CategoryExternal).
	WithTextCode(TextCodeRepositoryUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrDerivationFailure is returned when the secret derivation primitive faults
var ErrDerivationFailure = errors.New("secret derivation failed", errors.CategoryInternal).
	WithTextCode(TextCodeDerivationFailure).
	WithCode(errors.CodeInternal)

// ErrProviderNotFound is returned for names missing from the registry
var ErrProviderNotFound = errors.New("auth provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidProviderName is returned when a provider name can not be namespaced
var ErrInvalidProviderName = errors.New("invalid provider name", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidProviderName).
	WithCode(errors.CodeBadRequest)

// ErrProviderAlreadyRegistered is returned when two providers share a name
var ErrProviderAlreadyRegistered = errors.New("auth provider already registered", errors.CategoryConflict).
	WithTextCode(TextCodeProviderRegistered).
	WithCode(errors.CodeConflict)

// ErrNoEmptyString is returned when deriving an empty secret
var ErrNoEmptyString = errors.New("secret can not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptySecret).
	WithCode(errors.CodeBadRequest)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for expired session tokens
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for session tokens we can not parse
var ErrTokenMalformed = errors.New("session token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrImmutableClaimMutation is returned when a claims decorator touches a
// protected claim
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim).
	WithCode(errors.CodeInternal)

// withSource clones a sentinel so callers can match on its text code while
// keeping the underlying cause.
func withSource(base *errors.Error, source error, meta map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

func asRichError(err error) (*errors.Error, bool) {
	if err == nil {
		return nil, false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return nil, false
	}
	return richErr, true
}

// HasTextCode reports whether err is a rich error carrying code
func HasTextCode(err error, code string) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.TextCode == code
}

// IsInvalidInput reports whether err rejects a malformed attempt
func IsInvalidInput(err error) bool {
	return HasTextCode(err, TextCodeInvalidInput)
}

// IsInvalidCredentials reports whether err is the generic authentication failure
func IsInvalidCredentials(err error) bool {
	return HasTextCode(err, TextCodeInvalidCreds)
}

// IsIdentityConflict reports whether err signals an existing account
func IsIdentityConflict(err error) bool {
	return HasTextCode(err, TextCodeIdentityExists)
}

// IsRepositoryUnavailable reports whether err is a user store fault
func IsRepositoryUnavailable(err error) bool {
	return HasTextCode(err, TextCodeRepositoryUnavailable)
}

// IsDerivationFailure reports whether err is a secret derivation fault
func IsDerivationFailure(err error) bool {
	return HasTextCode(err, TextCodeDerivationFailure)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// isUniqueViolation matches unique constraint failures from sqlite and
// postgres drivers anywhere in the error chain, or a conflict already
// classified by the repository layer.
func isUniqueViolation(err error) bool {
	if richErr, ok := asRichError(err); ok && richErr.Category == errors.CategoryConflict {
		return true
	}
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		msg := e.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "duplicate key value violates unique constraint") ||
			strings.Contains(msg, "SQLSTATE 23505") {
			return true
		}
	}
	return false
}
