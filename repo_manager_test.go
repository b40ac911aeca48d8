package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-auth-providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryManagerValidate(t *testing.T) {
	repos := auth.NewRepositoryManager(nil)

	err := repos.Validate()
	require.Error(t, err)
	assert.True(t, auth.IsRepositoryUnavailable(err))
	assert.Panics(t, repos.MustValidate)

	repos = auth.NewRepositoryManager(newTestDB(t))
	assert.NoError(t, repos.Validate())
	assert.NotNil(t, repos.Users().Base())
}
