package security

import (
	"log/slog"
	"slices"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermViewUsers     Permission = "view_users"
	PermManageUsers   Permission = "manage_users"
	PermViewDashboard Permission = "view_dashboard"
)

// RolePermissions maps roles to their permissions. Roles added through
// configuration get the user set.
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermViewUsers,
		PermManageUsers,
		PermViewDashboard,
	},
	domain.RoleModerator: {
		PermViewUsers,
		PermViewDashboard,
	},
	domain.RoleUser: {
		PermViewUsers,
		PermViewDashboard,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	return slices.Contains(as.GetRolePermissions(role), permission)
}

// ValidatePermission returns a domain.ErrForbidden error when role lacks permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return domain.Forbidden("Insufficient permissions")
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	if perms, ok := RolePermissions[role]; ok {
		return perms
	}
	if role == "" {
		return nil
	}
	return RolePermissions[domain.RoleUser]
}
