package domain

import (
	"context"
	"time"
)

// Role is the flat authorization label carried by every user
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
)

// Status marks whether an account is in use
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// User is a persisted user record
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is a user record with the password hash stripped.
// It is the only shape handed out past the directory.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the password hash
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// Snapshot is the complete persisted record set at one point in time.
// Version 0 means nothing has been persisted yet.
type Snapshot struct {
	Users   []User
	Version uint64
}

// UserStore persists the whole record set as a single unit.
// Save must fail with ErrStaleSnapshot when the persisted version is no
// longer the expected one.
type UserStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, users []User, expected uint64) (uint64, error)
	Ping(ctx context.Context) error
}
