package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-auth-providers"
	"github.com/stretchr/testify/assert"
)

func TestUserRoleHierarchy(t *testing.T) {
	assert.True(t, auth.RoleAdmin.IsAtLeast(auth.RoleMember))
	assert.True(t, auth.RoleMember.IsAtLeast(auth.RoleMember))
	assert.False(t, auth.RoleGuest.IsAtLeast(auth.RoleMember))
	assert.False(t, auth.UserRole("owner").IsAtLeast(auth.RoleGuest))
	assert.False(t, auth.RoleAdmin.IsAtLeast(auth.UserRole("owner")))
}

func TestParseRole(t *testing.T) {
	role, ok := auth.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, role)

	_, ok = auth.ParseRole("root")
	assert.False(t, ok)

	assert.Equal(t, []auth.UserRole{auth.RoleGuest, auth.RoleMember, auth.RoleAdmin}, auth.GetAllRoles())
}
