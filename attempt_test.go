package auth_test

import (
	"strings"
	"testing"

	auth "github.com/goliatone/go-auth-providers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttemptTrimsIdentity(t *testing.T) {
	attempt := auth.NewAttempt("  alice \n", " s3cret ")
	assert.Equal(t, "alice", attempt.ClaimedIdentity)
	assert.Equal(t, " s3cret ", attempt.PresentedSecret)
}

func TestAttemptValidate(t *testing.T) {
	tests := []struct {
		name        string
		attempt     auth.Attempt
		allowEmpty  bool
		expectError bool
	}{
		{name: "valid", attempt: auth.NewAttempt("alice", "s3cret")},
		{name: "empty identity", attempt: auth.NewAttempt("   ", "s3cret"), expectError: true},
		{name: "empty secret", attempt: auth.NewAttempt("alice", ""), expectError: true},
		{name: "empty secret allowed", attempt: auth.NewAttempt("alice", ""), allowEmpty: true},
		{name: "identity too long", attempt: auth.NewAttempt(strings.Repeat("a", 256), "s3cret"), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.attempt.Validate(tt.allowEmpty)
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, auth.IsInvalidInput(err))
		})
	}
}

func TestOutcomeRecord(t *testing.T) {
	user := &auth.User{ID: uuid.New()}
	profile := &auth.User{}

	assert.Nil(t, auth.Rejected("local").Record())
	assert.Same(t, user, auth.Authenticated("local", user).Record())
	assert.Same(t, profile, auth.NewIdentity("local", profile).Record())

	outcome := auth.NewIdentity("federated", profile)
	assert.Equal(t, auth.OutcomeNewIdentity, outcome.Kind)
	assert.Equal(t, "federated", outcome.Provider)
}
