package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aryan0dhankhar/admindash/internal/domain"
	"github.com/aryan0dhankhar/admindash/internal/observability/metrics"
	"github.com/aryan0dhankhar/admindash/internal/observability/tracing"
	"github.com/aryan0dhankhar/admindash/internal/reliability/retry"
)

// maxPasswordBytes is the longest input bcrypt accepts
const maxPasswordBytes = 72

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// DirectoryOptions tunes create defaults and retry behaviour
type DirectoryOptions struct {
	// DefaultPassword is hashed for accounts created without a password
	// while AllowDefaultPassword is on.
	DefaultPassword      string
	AllowDefaultPassword bool
	// ExtraRoles extends the built-in admin/user/moderator set.
	ExtraRoles []string
	// Retry controls how often a save that lost a race with another writer is
	// replayed. Nil uses retry.DefaultConfig.
	Retry *retry.Config
}

// CreateUserInput carries the fields for a new account. Empty fields get defaults.
type CreateUserInput struct {
	Name     string
	Email    string
	Username string
	Role     domain.Role
	Status   domain.Status
	Password string
}

// UpdateUserInput carries the fields to overwrite; nil fields stay as they are
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Username *string
	Role     *domain.Role
	Status   *domain.Status
}

// Stats summarises the record set for the dashboard
type Stats struct {
	TotalUsers    int                 `json:"totalUsers"`
	ActiveUsers   int                 `json:"activeUsers"`
	InactiveUsers int                 `json:"inactiveUsers"`
	ByRole        map[domain.Role]int `json:"byRole"`
}

// Directory implements user CRUD over a UserStore. Every call loads the whole
// record set; mutations modify a copy and save it back. Mutations are
// serialized in-process, and a save rejected as stale (another process wrote
// in between) is replayed against a fresh load.
type Directory struct {
	store  domain.UserStore
	hasher PasswordHasher
	opts   DirectoryOptions
	roles  map[domain.Role]struct{}
	logger *slog.Logger
	tracer trace.Tracer

	now   func() time.Time
	newID func() string

	listeners []func()

	mu sync.Mutex
}

// NewDirectory creates a user directory
func NewDirectory(store domain.UserStore, hasher PasswordHasher, opts DirectoryOptions, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	cfg := *opts.Retry
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, domain.ErrStaleSnapshot) }
	opts.Retry = &cfg

	roles := map[domain.Role]struct{}{
		domain.RoleAdmin:     {},
		domain.RoleUser:      {},
		domain.RoleModerator: {},
	}
	for _, r := range opts.ExtraRoles {
		if r = strings.TrimSpace(r); r != "" {
			roles[domain.Role(r)] = struct{}{}
		}
	}

	return &Directory{
		store:  store,
		hasher: hasher,
		opts:   opts,
		roles:  roles,
		logger: logger,
		tracer: tracing.Tracer("service/directory"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// OnChange registers fn to run after every committed mutation.
// Register listeners before the directory is shared.
func (d *Directory) OnChange(fn func()) {
	d.listeners = append(d.listeners, fn)
}

// Roles lists the accepted role labels
func (d *Directory) Roles() []domain.Role {
	out := make([]domain.Role, 0, len(d.roles))
	for r := range d.roles {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// ListAll returns every user without password hashes
func (d *Directory) ListAll(ctx context.Context) (_ []domain.PublicUser, err error) {
	ctx, end := d.begin(ctx, "list")
	defer func() { end(err) }()

	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicUser, 0, len(snap.Users))
	for i := range snap.Users {
		out = append(out, snap.Users[i].Public())
	}
	return out, nil
}

// GetByID returns one user without its password hash
func (d *Directory) GetByID(ctx context.Context, id string) (_ *domain.PublicUser, err error) {
	ctx, end := d.begin(ctx, "get")
	defer func() { end(err) }()

	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexByID(snap.Users, id)
	if i < 0 {
		return nil, errUserNotFound()
	}
	pub := snap.Users[i].Public()
	return &pub, nil
}

// FindByUsername returns the full record, password hash included.
// It is meant for credential checks only.
func (d *Directory) FindByUsername(ctx context.Context, username string) (_ *domain.User, err error) {
	ctx, end := d.begin(ctx, "find_by_username")
	defer func() { end(err) }()

	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snap.Users {
		if snap.Users[i].Username == username {
			u := snap.Users[i]
			return &u, nil
		}
	}
	return nil, errUserNotFound()
}

// Create adds a user. Email is checked for uniqueness before username.
func (d *Directory) Create(ctx context.Context, in CreateUserInput) (_ *domain.PublicUser, err error) {
	ctx, end := d.begin(ctx, "create")
	defer func() { end(err) }()

	user, password, err := d.prepareCreate(in)
	if err != nil {
		return nil, err
	}
	// hash outside the lock; bcrypt is slow on purpose
	user.PasswordHash, err = d.hasher.Hash(password)
	if err != nil {
		return nil, domain.StorageFailure(err)
	}

	err = d.mutate(ctx, "create", func(users []domain.User) ([]domain.User, error) {
		if err := checkUnique(users, "", user.Email, user.Username); err != nil {
			return nil, err
		}
		user.ID = d.newID()
		user.CreatedAt = d.now().UTC()
		return append(users, user), nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
	pub := user.Public()
	return &pub, nil
}

// Update overwrites the supplied fields. A record may keep its own email and
// username; colliding with another record is a conflict.
func (d *Directory) Update(ctx context.Context, id string, in UpdateUserInput) (_ *domain.PublicUser, err error) {
	ctx, end := d.begin(ctx, "update")
	defer func() { end(err) }()

	if err := d.validateUpdate(in); err != nil {
		return nil, err
	}

	var updated domain.User
	err = d.mutate(ctx, "update", func(users []domain.User) ([]domain.User, error) {
		i := indexByID(users, id)
		if i < 0 {
			return nil, errUserNotFound()
		}
		u := users[i]
		if in.Name != nil {
			u.Name = strings.TrimSpace(*in.Name)
		}
		if in.Email != nil {
			u.Email = strings.TrimSpace(*in.Email)
		}
		if in.Username != nil {
			u.Username = strings.TrimSpace(*in.Username)
		}
		if in.Role != nil {
			u.Role = *in.Role
		}
		if in.Status != nil {
			u.Status = *in.Status
		}
		if err := checkUnique(users, id, u.Email, u.Username); err != nil {
			return nil, err
		}
		users[i] = u
		updated = u
		return users, nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("user updated", slog.String("user_id", id))
	pub := updated.Public()
	return &pub, nil
}

// Delete removes a user permanently
func (d *Directory) Delete(ctx context.Context, id string) (err error) {
	ctx, end := d.begin(ctx, "delete")
	defer func() { end(err) }()

	err = d.mutate(ctx, "delete", func(users []domain.User) ([]domain.User, error) {
		i := indexByID(users, id)
		if i < 0 {
			return nil, errUserNotFound()
		}
		return slices.Delete(users, i, i+1), nil
	})
	if err != nil {
		return err
	}

	d.logger.Info("user deleted", slog.String("user_id", id))
	return nil
}

// Stats counts users by status and role
func (d *Directory) Stats(ctx context.Context) (_ *Stats, err error) {
	ctx, end := d.begin(ctx, "stats")
	defer func() { end(err) }()

	snap, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{TotalUsers: len(snap.Users), ByRole: map[domain.Role]int{}}
	for _, u := range snap.Users {
		if u.Status == domain.StatusActive {
			st.ActiveUsers++
		} else {
			st.InactiveUsers++
		}
		st.ByRole[u.Role]++
	}
	return st, nil
}

func (d *Directory) prepareCreate(in CreateUserInput) (domain.User, string, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return domain.User{}, "", domain.InvalidInput("Email is required")
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		local, _, _ := strings.Cut(email, "@")
		username = local
	}
	if username == "" {
		return domain.User{}, "", domain.InvalidInput("Username is required")
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if _, ok := d.roles[role]; !ok {
		return domain.User{}, "", domain.InvalidInput("Unknown role")
	}

	status := in.Status
	if status == "" {
		status = domain.StatusActive
	}
	if !status.Valid() {
		return domain.User{}, "", domain.InvalidInput("Unknown status")
	}

	password := in.Password
	if password == "" {
		if !d.opts.AllowDefaultPassword || d.opts.DefaultPassword == "" {
			return domain.User{}, "", domain.InvalidInput("Password is required")
		}
		password = d.opts.DefaultPassword
	}
	if len(password) > maxPasswordBytes {
		return domain.User{}, "", domain.InvalidInput("Password is too long")
	}

	return domain.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Username: username,
		Role:     role,
		Status:   status,
	}, password, nil
}

func (d *Directory) validateUpdate(in UpdateUserInput) error {
	if in.Email != nil && strings.TrimSpace(*in.Email) == "" {
		return domain.InvalidInput("Email is required")
	}
	if in.Username != nil && strings.TrimSpace(*in.Username) == "" {
		return domain.InvalidInput("Username is required")
	}
	if in.Role != nil {
		if _, ok := d.roles[*in.Role]; !ok {
			return domain.InvalidInput("Unknown role")
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return domain.InvalidInput("Unknown status")
	}
	return nil
}

func (d *Directory) load(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := d.store.Load(ctx)
	if err != nil {
		d.logger.Error("failed to load users", slog.String("error", err.Error()))
		return nil, domain.StorageFailure(err)
	}
	return snap, nil
}

// mutate runs one load/modify/save cycle under the directory lock. fn gets a
// private copy of the records and returns the set to persist.
func (d *Directory) mutate(ctx context.Context, op string, fn func([]domain.User) ([]domain.User, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := retry.Do(ctx, d.opts.Retry, d.logger, "directory."+op, func(ctx context.Context) (struct{}, error) {
		snap, err := d.store.Load(ctx)
		if err != nil {
			return struct{}{}, err
		}
		next, err := fn(slices.Clone(snap.Users))
		if err != nil {
			return struct{}{}, err
		}
		_, err = d.store.Save(ctx, next, snap.Version)
		return struct{}{}, err
	})
	if err == nil {
		for _, fn := range d.listeners {
			fn()
		}
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	d.logger.Error("user store cycle failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return domain.StorageFailure(err)
}

// begin opens a span and returns a finisher that records the outcome
func (d *Directory) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := d.tracer.Start(ctx, "directory."+op, trace.WithAttributes(attribute.String("directory.operation", op)))
	return ctx, func(err error) {
		metrics.ObserveDirectoryOperation(op, resultLabel(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, domain.PublicMessage(err, "error"))
		}
		span.End()
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidationConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

// checkUnique scans every record except self, email first
func checkUnique(users []domain.User, self, email, username string) error {
	for _, u := range users {
		if u.ID != self && u.Email == email {
			return domain.Conflict("Email already exists")
		}
	}
	for _, u := range users {
		if u.ID != self && u.Username == username {
			return domain.Conflict("Username already exists")
		}
	}
	return nil
}

func indexByID(users []domain.User, id string) int {
	return slices.IndexFunc(users, func(u domain.User) bool { return u.ID == id })
}

func errUserNotFound() error {
	return domain.NotFound("User not found")
}
