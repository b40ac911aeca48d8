package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	federatedIssuer = "https://idp.example.com"
	federatedKID    = "idp-key-1"
	federatedKey    = "federated-shared-secret-0123456789"
)

func newFederatedProvider(t *testing.T, repo auth.UserRepository) *auth.FederatedProvider {
	t.Helper()
	p, err := auth.NewFederatedProvider("User", repo, auth.FederatedProviderOptions{
		Issuer:      federatedIssuer,
		Audience:    []string{"authd"},
		SigningKeys: map[string]string{federatedKID: federatedKey},
	})
	require.NoError(t, err)
	return p.WithLoggerProvider(silentProvider{})
}

func mintAssertion(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = federatedKID
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func assertionClaims(subject string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   subject,
		"iss":   federatedIssuer,
		"aud":   "authd",
		"email": subject + "@example.com",
		"exp":   time.Now().Add(5 * time.Minute).Unix(),
		"iat":   time.Now().Unix(),
	}
}

func TestFederatedProviderNewIdentity(t *testing.T) {
	repo := newMemUsers()
	p := newFederatedProvider(t, repo)

	assertion := mintAssertion(t, assertionClaims("sub-42"), federatedKey)
	outcome, err := p.Verify(context.Background(), auth.NewAttempt("sub-42", assertion))
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeNewIdentity, outcome.Kind)

	profile := outcome.Profile
	assert.Equal(t, "sub-42", profile.Federated.ID)
	assert.Equal(t, federatedIssuer, profile.Federated.Data.String("issuer"))
	assert.Equal(t, "sub-42@example.com", profile.Federated.Data.String("email"))
	assert.True(t, profile.Local.IsZero())
	assert.NotContains(t, profile.Federated.Data, "id_token", "assertions are never stored")
}

func TestFederatedProviderAuthenticated(t *testing.T) {
	repo := newMemUsers()
	p := newFederatedProvider(t, repo)

	_, err := repo.Create(context.Background(), &auth.User{Federated: auth.Binding{ID: "sub-42"}})
	require.NoError(t, err)

	assertion := mintAssertion(t, assertionClaims("sub-42"), federatedKey)
	outcome, err := p.Verify(context.Background(), auth.NewAttempt("sub-42", assertion))
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, outcome.Kind)
	assert.Equal(t, "sub-42", outcome.User.Federated.ID)
}

func TestFederatedProviderRejections(t *testing.T) {
	repo := newMemUsers()
	p := newFederatedProvider(t, repo)

	expired := assertionClaims("sub-42")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	wrongIssuer := assertionClaims("sub-42")
	wrongIssuer["iss"] = "https://evil.example.com"

	noExpiry := assertionClaims("sub-42")
	delete(noExpiry, "exp")

	tests := []struct {
		name     string
		identity string
		secret   string
	}{
		{name: "bad signature", identity: "sub-42", secret: mintAssertion(t, assertionClaims("sub-42"), "some-other-key-0123456789")},
		{name: "expired", identity: "sub-42", secret: mintAssertion(t, expired, federatedKey)},
		{name: "wrong issuer", identity: "sub-42", secret: mintAssertion(t, wrongIssuer, federatedKey)},
		{name: "missing expiry", identity: "sub-42", secret: mintAssertion(t, noExpiry, federatedKey)},
		{name: "subject mismatch", identity: "sub-43", secret: mintAssertion(t, assertionClaims("sub-42"), federatedKey)},
		{name: "garbage", identity: "sub-42", secret: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := p.Verify(context.Background(), auth.NewAttempt(tt.identity, tt.secret))
			require.Error(t, err)
			assert.Equal(t, auth.OutcomeRejected, outcome.Kind)
			assert.True(t, auth.IsInvalidCredentials(err))
		})
	}

	assert.Equal(t, 0, repo.count())
}

func TestFederatedProviderRequiresKeys(t *testing.T) {
	_, err := auth.NewFederatedProvider("User", newMemUsers(), auth.FederatedProviderOptions{
		Issuer: federatedIssuer,
	})
	require.Error(t, err)
}

func TestFederatedProviderMetadata(t *testing.T) {
	p := newFederatedProvider(t, newMemUsers())
	meta := p.RegistrationMetadata()
	assert.Equal(t, "federated", meta.Name)
	assert.Equal(t, "subject", meta.IdentityParam)
	assert.Equal(t, "id_token", meta.SecretParam)
	assert.Equal(t, "federated_id", meta.Fields.IdentityField)
}
