package security

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

func TestRolePermissions(t *testing.T) {
	as := NewAuthorizationService(nil)

	assert.True(t, as.HasPermission(domain.RoleAdmin, PermManageUsers))
	assert.False(t, as.HasPermission(domain.RoleModerator, PermManageUsers))
	assert.False(t, as.HasPermission(domain.RoleUser, PermManageUsers))
	assert.True(t, as.HasPermission(domain.RoleUser, PermViewDashboard))
	assert.True(t, as.HasPermission(domain.RoleModerator, PermViewUsers))

	// configured extra roles fall back to the user set
	assert.True(t, as.HasPermission("auditor", PermViewUsers))
	assert.False(t, as.HasPermission("auditor", PermManageUsers))
	assert.False(t, as.HasPermission("", PermViewUsers))
}

func TestValidatePermission(t *testing.T) {
	as := NewAuthorizationService(nil)

	assert.NoError(t, as.ValidatePermission(domain.RoleAdmin, PermManageUsers))

	err := as.ValidatePermission(domain.RoleUser, PermManageUsers)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, "Insufficient permissions", domain.PublicMessage(err, ""))
}
