package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	auth "github.com/goliatone/go-auth-providers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLocalUser(t *testing.T, repo *memUsers, local *auth.LocalProvider, identity, secret string) *auth.User {
	t.Helper()
	user, err := local.Provision(identity, secret, auth.RoleMember)
	require.NoError(t, err)
	created, err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	return created
}

func TestLocalProviderNewIdentity(t *testing.T) {
	repo := newMemUsers()
	local := newLocalProvider(repo)

	outcome, err := local.Verify(context.Background(), auth.NewAttempt("alice", "s3cret"))
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeNewIdentity, outcome.Kind)
	require.NotNil(t, outcome.Profile)

	profile := outcome.Profile
	assert.Equal(t, "alice", profile.Local.ID)
	assert.Equal(t, "alice", profile.Local.Data.String("username"))

	derived := profile.Local.Data.String("password")
	assert.NotEmpty(t, derived)
	assert.NotEqual(t, "s3cret", derived, "secret must be stored derived")

	ok, err := local.Deriver().Matches(derived, "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, profile.Federated.IsZero(), "other bindings stay empty")
	assert.Equal(t, 0, repo.count(), "verify never writes")
}

func TestLocalProviderAuthenticated(t *testing.T) {
	repo := newMemUsers()
	local := newLocalProvider(repo)
	seeded := seedLocalUser(t, repo, local, "alice", "s3cret")

	outcome, err := local.Verify(context.Background(), auth.NewAttempt("alice", "s3cret"))
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeAuthenticated, outcome.Kind)
	assert.Equal(t, seeded.ID, outcome.User.ID)
}

func TestLocalProviderWrongSecret(t *testing.T) {
	repo := newMemUsers()
	local := newLocalProvider(repo)
	seedLocalUser(t, repo, local, "alice", "s3cret")

	outcome, err := local.Verify(context.Background(), auth.NewAttempt("alice", "wrong"))
	require.Error(t, err)
	assert.Equal(t, auth.OutcomeRejected, outcome.Kind)
	assert.True(t, auth.IsInvalidCredentials(err))
	assert.Nil(t, outcome.Record())
}

func TestLocalProviderInvalidInput(t *testing.T) {
	repo := newMemUsers()
	repo.findErr = errors.New("must not be called")
	local := newLocalProvider(repo)

	for _, attempt := range []auth.Attempt{
		auth.NewAttempt("", "s3cret"),
		auth.NewAttempt("alice", ""),
	} {
		outcome, err := local.Verify(context.Background(), attempt)
		require.Error(t, err)
		assert.True(t, auth.IsInvalidInput(err))
		assert.Equal(t, auth.OutcomeRejected, outcome.Kind)
	}
}

func TestLocalProviderRepositoryFault(t *testing.T) {
	repo := newMemUsers()
	repo.findErr = errors.New("connection refused")
	local := newLocalProvider(repo)

	outcome, err := local.Verify(context.Background(), auth.NewAttempt("alice", "s3cret"))
	require.Error(t, err)
	assert.Equal(t, auth.OutcomeRejected, outcome.Kind)
	assert.True(t, auth.IsRepositoryUnavailable(err))
	assert.False(t, auth.IsInvalidCredentials(err), "store faults are not credential failures")
}

func TestLocalProviderCorruptRecord(t *testing.T) {
	repo := newMemUsers()
	local := newLocalProvider(repo)

	_, err := repo.Create(context.Background(), &auth.User{
		ID:    uuid.New(),
		Local: auth.Binding{ID: "alice", Data: auth.ProviderData{"password": "garbage"}},
	})
	require.NoError(t, err)

	_, err = local.Verify(context.Background(), auth.NewAttempt("alice", "s3cret"))
	require.Error(t, err)
	assert.True(t, auth.IsDerivationFailure(err))

	_, err = repo.Create(context.Background(), &auth.User{
		ID:    uuid.New(),
		Local: auth.Binding{ID: "bob"},
	})
	require.NoError(t, err)

	_, err = local.Verify(context.Background(), auth.NewAttempt("bob", "s3cret"))
	require.Error(t, err)
	assert.True(t, auth.IsDerivationFailure(err))
}

type failingDeriver struct{}

func (failingDeriver) Derive(string) (string, error) {
	return "", errors.New("entropy exhausted")
}

func (failingDeriver) Matches(string, string) (bool, error) {
	return false, errors.New("entropy exhausted")
}

func TestLocalProviderDerivationFault(t *testing.T) {
	repo := newMemUsers()
	local := newLocalProvider(repo).WithDeriver(failingDeriver{})

	outcome, err := local.Verify(context.Background(), auth.NewAttempt("alice", "s3cret"))
	require.Error(t, err)
	assert.Equal(t, auth.OutcomeRejected, outcome.Kind)
	assert.True(t, auth.IsDerivationFailure(err))
}

type timeoutDeriver struct {
	auth.BcryptDeriver
}

func (timeoutDeriver) Matches(string, string) (bool, error) {
	return false, context.DeadlineExceeded
}

func TestLocalProviderMatchFaultIsDerivationFailure(t *testing.T) {
	repo := newMemUsers()
	local := newLocalProvider(repo)
	seedLocalUser(t, repo, local, "alice", "s3cret")

	local.WithDeriver(timeoutDeriver{})

	outcome, err := local.Verify(context.Background(), auth.NewAttempt("alice", "s3cret"))
	require.Error(t, err)
	assert.Equal(t, auth.OutcomeRejected, outcome.Kind)
	assert.True(t, auth.IsDerivationFailure(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalProviderSecretLengthLimit(t *testing.T) {
	ctx := context.Background()
	repo := newMemUsers()
	local := newLocalProvider(repo)

	assert.Equal(t, auth.BcryptMaxSecretBytes, local.MaxSecretBytes())

	atLimit := strings.Repeat("p", auth.BcryptMaxSecretBytes)
	outcome, err := local.Verify(ctx, auth.NewAttempt("alice", atLimit))
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeNewIdentity, outcome.Kind)

	seedLocalUser(t, repo, local, "bob", "s3cret")
	repo.findErr = errors.New("must not be called")

	for name, attempt := range map[string]auth.Attempt{
		"unknown identity": auth.NewAttempt("alice", atLimit+"p"),
		"known identity":   auth.NewAttempt("bob", atLimit+"p"),
		"multibyte":        auth.NewAttempt("alice", strings.Repeat("é", 37)),
	} {
		t.Run(name, func(t *testing.T) {
			outcome, err := local.Verify(ctx, attempt)
			require.Error(t, err)
			assert.Equal(t, auth.OutcomeRejected, outcome.Kind)
			assert.True(t, auth.IsInvalidInput(err))
			assert.False(t, auth.IsDerivationFailure(err))
		})
	}

	_, err = local.Provision("carol", atLimit+"p", "")
	assert.True(t, auth.IsInvalidInput(err))
}

func TestLocalProviderArgon2HasNoSecretLimit(t *testing.T) {
	local, err := auth.NewLocalProvider("User", newMemUsers(), auth.LocalProviderOptions{Scheme: "argon2id"})
	require.NoError(t, err)
	assert.Equal(t, 0, local.MaxSecretBytes())

	outcome, err := local.Verify(context.Background(), auth.NewAttempt("alice", strings.Repeat("p", 200)))
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeNewIdentity, outcome.Kind)
}

func TestLocalProviderProvision(t *testing.T) {
	repo := newMemUsers()
	local := newLocalProvider(repo)

	user, err := local.Provision("carol", "s3cret", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, user.Role)
	assert.Equal(t, "carol", user.Local.ID)

	_, err = local.Provision("carol", "s3cret", auth.UserRole("root"))
	assert.True(t, auth.IsInvalidInput(err))

	_, err = local.Provision("", "s3cret", "")
	assert.True(t, auth.IsInvalidInput(err))
}

func TestLocalProviderUnknownScheme(t *testing.T) {
	_, err := auth.NewLocalProvider("User", newMemUsers(), auth.LocalProviderOptions{Scheme: "sha1"})
	require.Error(t, err)
	assert.True(t, auth.IsDerivationFailure(err))
}
