package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

// SeedUser is one account of the bootstrap set
type SeedUser struct {
	Name     string
	Email    string
	Username string
	Password string
	Role     domain.Role
	Status   domain.Status
}

// DefaultSeed is created on first start so the dashboard is usable without
// provisioning: an administrator plus three sample accounts.
func DefaultSeed() []SeedUser {
	return []SeedUser{
		{Name: "Administrator", Email: "admin@example.com", Username: "admin", Password: "admin123", Role: domain.RoleAdmin, Status: domain.StatusActive},
		{Name: "John Doe", Email: "john@example.com", Username: "john", Password: "password123", Role: domain.RoleAdmin, Status: domain.StatusActive},
		{Name: "Jane Smith", Email: "jane@example.com", Username: "jane", Password: "password123", Role: domain.RoleUser, Status: domain.StatusActive},
		{Name: "Bob Johnson", Email: "bob@example.com", Username: "bob", Password: "password123", Role: domain.RoleModerator, Status: domain.StatusInactive},
	}
}

// Seed creates the given accounts through Create when nothing has ever been
// persisted. It reports whether seeding happened.
func (d *Directory) Seed(ctx context.Context, seeds []SeedUser) (bool, error) {
	snap, err := d.load(ctx)
	if err != nil {
		return false, err
	}
	if snap.Version != 0 {
		return false, nil
	}

	for _, s := range seeds {
		_, err := d.Create(ctx, CreateUserInput{
			Name:     s.Name,
			Email:    s.Email,
			Username: s.Username,
			Password: s.Password,
			Role:     s.Role,
			Status:   s.Status,
		})
		if errors.Is(err, domain.ErrValidationConflict) {
			// another instance seeded concurrently
			d.logger.Info("bootstrap seed already present", slog.String("username", s.Username))
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}

	d.logger.Info("bootstrap users created", slog.Int("count", len(seeds)))
	return true, nil
}
