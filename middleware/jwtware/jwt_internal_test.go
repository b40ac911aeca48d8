package jwtware

import (
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleClaims struct {
	role  string
	level int
}

var levels = map[string]int{"guest": 0, "member": 1, "admin": 2}

func (c roleClaims) Subject() string          { return "sub" }
func (c roleClaims) UserID() string           { return "user" }
func (c roleClaims) Role() string             { return c.role }
func (c roleClaims) HasRole(role string) bool { return c.role == role }
func (c roleClaims) IsAtLeast(minRole string) bool {
	return levels[c.role] >= levels[minRole]
}

func TestPerformAuthorizationChecks(t *testing.T) {
	member := roleClaims{role: "member"}

	assert.NoError(t, performAuthorizationChecks(member, Config{}))
	assert.NoError(t, performAuthorizationChecks(member, Config{MinimumRole: "guest"}))
	assert.NoError(t, performAuthorizationChecks(member, Config{RequiredRole: "member"}))

	err := performAuthorizationChecks(member, Config{MinimumRole: "admin"})
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, errors.CategoryAuthz, richErr.Category)
	assert.Equal(t, TextCodeAccessDenied, richErr.TextCode)
	assert.Equal(t, "admin", richErr.Metadata["minimum_role"])

	err = performAuthorizationChecks(member, Config{RequiredRole: "guest"})
	require.Error(t, err)
}

func TestGetDefaultConfigRequiresValidator(t *testing.T) {
	assert.Panics(t, func() {
		GetDefaultConfig(Config{})
	})

	cfg := GetDefaultConfig(Config{
		TokenValidator: TokenValidatorFunc(func(string) (AuthClaims, error) { return nil, nil }),
	})
	assert.Equal(t, "user", cfg.ContextKey)
	assert.Equal(t, "Bearer", cfg.AuthScheme)
	assert.Equal(t, defaultTokenLookup, cfg.TokenLookup)
	assert.NotNil(t, cfg.ErrorHandler)
}

func TestGetExtractorsSkipsUnknownSources(t *testing.T) {
	extractors := GetExtractors("cookie:session, header:Authorization,bogus:x,nocolon")
	assert.Len(t, extractors, 2)
}
