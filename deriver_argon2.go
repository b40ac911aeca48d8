package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Deriver derives secrets with argon2id and stores them in the PHC
// string format: $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
type Argon2Deriver struct {
	Memory      uint32 `yaml:"memory" json:"memory"`
	Iterations  uint32 `yaml:"iterations" json:"iterations"`
	Parallelism uint8  `yaml:"parallelism" json:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length" json:"salt_length"`
	KeyLength   uint32 `yaml:"key_length" json:"key_length"`
}

// NewArgon2Deriver returns a deriver with the argon2 node defaults
func NewArgon2Deriver() Argon2Deriver {
	return Argon2Deriver{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (d Argon2Deriver) withDefaults() Argon2Deriver {
	def := NewArgon2Deriver()
	if d.Memory == 0 {
		d.Memory = def.Memory
	}
	if d.Iterations == 0 {
		d.Iterations = def.Iterations
	}
	if d.Parallelism == 0 {
		d.Parallelism = def.Parallelism
	}
	if d.SaltLength == 0 {
		d.SaltLength = def.SaltLength
	}
	if d.KeyLength == 0 {
		d.KeyLength = def.KeyLength
	}
	return d
}

// Derive hashes plaintext with a fresh random salt
func (d Argon2Deriver) Derive(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrNoEmptyString
	}

	p := d.withDefaults()
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", withSource(ErrDerivationFailure, err, map[string]any{
			"scheme": "argon2id",
		})
	}

	key := argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Iterations,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Matches recomputes the key with the parameters stored in derived and
// compares in constant time.
func (d Argon2Deriver) Matches(derived, plaintext string) (bool, error) {
	params, salt, key, err := decodeArgon2(derived)
	if err != nil {
		return false, withSource(ErrDerivationFailure, err, map[string]any{
			"scheme": "argon2id",
		})
	}

	other := argon2.IDKey([]byte(plaintext), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodeArgon2(encoded string) (Argon2Deriver, []byte, []byte, error) {
	var p Argon2Deriver

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, fmt.Errorf("argon2: invalid encoded hash")
	}

	if parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("argon2: unsupported variant %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("argon2: invalid version: %w", err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("argon2: incompatible version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("argon2: invalid parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, fmt.Errorf("argon2: invalid salt")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("argon2: invalid key")
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}

// NewSecretDeriver returns the deriver registered under scheme
func NewSecretDeriver(scheme string, bcryptCost int, argon Argon2Deriver) (SecretDeriver, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", "bcrypt":
		return NewBcryptDeriver(bcryptCost), nil
	case "argon2", "argon2id":
		return argon.withDefaults(), nil
	default:
		return nil, withSource(ErrDerivationFailure, fmt.Errorf("unknown scheme %q", scheme), map[string]any{
			"scheme": scheme,
		})
	}
}
