package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptMaxSecretBytes is the longest input bcrypt accepts
const BcryptMaxSecretBytes = 72

// BcryptDeriver derives secrets with bcrypt
type BcryptDeriver struct {
	Cost int
}

// NewBcryptDeriver returns a deriver using cost, or the package default when
// cost is outside bcrypt's accepted range.
func NewBcryptDeriver(cost int) BcryptDeriver {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultBcryptCost()
	}
	return BcryptDeriver{Cost: cost}
}

// MaxSecretBytes reports bcrypt's input limit
func (d BcryptDeriver) MaxSecretBytes() int {
	return BcryptMaxSecretBytes
}

// Derive will generate a salted bcrypt hash
func (d BcryptDeriver) Derive(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrNoEmptyString
	}

	cost := d.Cost
	if cost == 0 {
		cost = defaultBcryptCost()
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", withSource(ErrInvalidInput, err, map[string]any{
			"scheme":           "bcrypt",
			"max_secret_bytes": BcryptMaxSecretBytes,
		})
	}
	if err != nil {
		return "", withSource(ErrDerivationFailure, err, map[string]any{
			"scheme": "bcrypt",
		})
	}
	return string(h), nil
}

// Matches reports whether plaintext hashes to derived. A malformed derived
// form is a derivation failure, never a mismatch.
func (d BcryptDeriver) Matches(derived, plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(derived), []byte(plaintext))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, withSource(ErrDerivationFailure, err, map[string]any{
		"scheme": "bcrypt",
	})
}
