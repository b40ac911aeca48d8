package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-auth-providers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// namedProvider is a provider stub with an arbitrary name
type namedProvider struct {
	name string
}

func (p namedProvider) Name() string                { return p.name }
func (p namedProvider) Entity() string              { return "User" }
func (p namedProvider) Fields() auth.ProviderFields { return auth.ProviderFields{} }
func (p namedProvider) Verify(context.Context, auth.Attempt) (auth.Outcome, error) {
	return auth.Rejected(p.name), nil
}
func (p namedProvider) RegistrationMetadata() auth.ProviderMetadata {
	return auth.ProviderMetadata{Name: p.name}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	repo := newMemUsers()
	local := newLocalProvider(repo)

	registry, err := auth.NewRegistry(local)
	require.NoError(t, err)

	got, err := registry.Get("local")
	require.NoError(t, err)
	assert.Same(t, local, got)

	fields, err := registry.Fields("local")
	require.NoError(t, err)
	assert.Equal(t, "local_id", fields.IdentityField)

	opts, err := registry.Options("local")
	require.NoError(t, err)
	assert.Equal(t, "/", opts.SuccessRedirectURL)
	assert.Equal(t, "/login", opts.FailureRedirectURL)

	assert.Equal(t, []string{"local"}, registry.Names())
	assert.Equal(t, []string{"local_id"}, registry.IdentityFields())
}

func TestRegistryUnknownProvider(t *testing.T) {
	registry, err := auth.NewRegistry()
	require.NoError(t, err)

	_, err = registry.Get("github")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeProviderNotFound))

	_, err = registry.Fields("github")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeProviderNotFound))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	repo := newMemUsers()
	_, err := auth.NewRegistry(newLocalProvider(repo), newLocalProvider(repo))
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeProviderRegistered))
}

func TestRegistryRejectsUnnamespaceableProviders(t *testing.T) {
	registry, err := auth.NewRegistry()
	require.NoError(t, err)

	err = registry.Register(namedProvider{name: "my_provider"})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidProviderName))

	err = registry.Register(namedProvider{name: "github"})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidProviderName), "no binding on User")

	err = registry.Register(nil)
	assert.Error(t, err)

	assert.Empty(t, registry.Names())
}

func TestRegistryIdentitiesAndPublicProfile(t *testing.T) {
	repo := newMemUsers()
	registry, err := auth.NewRegistry(newLocalProvider(repo))
	require.NoError(t, err)

	user := &auth.User{
		ID:   uuid.New(),
		Role: auth.RoleMember,
		Local: auth.Binding{
			ID:   "alice",
			Data: auth.ProviderData{"username": "alice", "password": "$2a$04$derived"},
		},
		// not registered, never exposed
		Federated: auth.Binding{ID: "sub-1"},
	}

	assert.Equal(t, map[string]string{"local": "alice"}, registry.Identities(user))
	assert.Empty(t, registry.Identities(nil))

	profile := registry.PublicProfile(user)
	assert.Equal(t, user.ID.String(), profile["id"])
	assert.Equal(t, "member", profile["role"])
	assert.Equal(t, "alice", profile["local_id"])
	assert.Equal(t, map[string]any{"username": "alice"}, profile["local_data"])
	assert.NotContains(t, profile, "federated_id")

	assert.Equal(t, "$2a$04$derived", user.Local.Data["password"], "profile must not mutate the record")
}

func TestRegistryMetadata(t *testing.T) {
	repo := newMemUsers()
	registry, err := auth.NewRegistry(newLocalProvider(repo))
	require.NoError(t, err)

	meta := registry.Metadata()
	require.Len(t, meta, 1)
	assert.Equal(t, "local", meta[0].Name)
	assert.Equal(t, "User", meta[0].Entity)
	assert.Equal(t, "username", meta[0].IdentityParam)
	assert.Equal(t, "password", meta[0].SecretParam)
	assert.Equal(t, []string{"password"}, meta[0].SecretKeys)
}

func TestProvidersConfigBuild(t *testing.T) {
	repo := newMemUsers()

	_, err := auth.ProvidersConfig{}.Build("User", repo, silentProvider{})
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeProviderNotFound))

	cfg := auth.ProvidersConfig{
		Local: &auth.LocalProviderOptions{BcryptCost: 4},
		Federated: &auth.FederatedProviderOptions{
			Issuer:      federatedIssuer,
			SigningKeys: map[string]string{federatedKID: federatedKey},
		},
	}
	assert.Equal(t, []string{"local", "federated"}, cfg.Enabled())

	providers, err := cfg.Build("User", repo, silentProvider{})
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "local", providers[0].Name())
	assert.Equal(t, "federated", providers[1].Name())

	_, err = auth.NewRegistry(providers...)
	require.NoError(t, err)
}
