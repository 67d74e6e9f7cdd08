package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/admindash/internal/domain"
	"github.com/aryan0dhankhar/admindash/internal/reliability/retry"
	"github.com/aryan0dhankhar/admindash/internal/repository"
	"github.com/aryan0dhankhar/admindash/internal/security/auth"
)

type memStore struct {
	mu         sync.Mutex
	users      []domain.User
	version    uint64
	loadErr    error
	saveErr    error
	staleSaves int
	saves      int
}

func (m *memStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	users := make([]domain.User, len(m.users))
	copy(users, m.users)
	return &domain.Snapshot{Users: users, Version: m.version}, nil
}

func (m *memStore) Save(ctx context.Context, users []domain.User, expected uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	if m.staleSaves > 0 {
		m.staleSaves--
		m.version++
		return 0, domain.ErrStaleSnapshot
	}
	if expected != m.version {
		return 0, domain.ErrStaleSnapshot
	}
	m.users = make([]domain.User, len(users))
	copy(m.users, users)
	m.version++
	m.saves++
	return m.version, nil
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) snapshot() []domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, len(m.users))
	copy(out, m.users)
	return out
}

// plainHasher keeps directory tests fast; bcrypt is covered in the auth package
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }
func (plainHasher) Verify(p, h string) bool       { return h == "hashed:"+p }

func fastRetry() *retry.Config {
	return &retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
}

func newTestDirectory(store domain.UserStore) *Directory {
	return NewDirectory(store, plainHasher{}, DirectoryOptions{
		DefaultPassword:      "defaultPassword123",
		AllowDefaultPassword: true,
		Retry:                fastRetry(),
	}, nil)
}

func mustCreate(t *testing.T, d *Directory, name, email, username string) *domain.PublicUser {
	t.Helper()
	u, err := d.Create(context.Background(), CreateUserInput{Name: name, Email: email, Username: username, Password: "password123"})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func TestCreateAddsOneRecordWithFreshID(t *testing.T) {
	store := &memStore{}
	d := newTestDirectory(store)
	ctx := context.Background()

	first := mustCreate(t, d, "Jane Smith", "jane@example.com", "jane")
	before, err := d.ListAll(ctx)
	require.NoError(t, err)

	second := mustCreate(t, d, "Bob Johnson", "bob@example.com", "bob")
	after, err := d.ListAll(ctx)
	require.NoError(t, err)

	assert.Len(t, after, len(before)+1)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)

	raw, err := json.Marshal(after)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "passwordHash")
	assert.NotContains(t, string(raw), "hashed:")

	stored := store.snapshot()
	assert.Equal(t, "hashed:password123", stored[1].PasswordHash)
}

func TestCreateDefaults(t *testing.T) {
	store := &memStore{}
	d := newTestDirectory(store)

	u, err := d.Create(context.Background(), CreateUserInput{Name: "Ann", Email: "ann.lee@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "ann.lee", u.Username)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.Equal(t, domain.StatusActive, u.Status)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, "hashed:defaultPassword123", store.snapshot()[0].PasswordHash)
}

func TestCreateWithoutPasswordWhenDefaultDisabled(t *testing.T) {
	store := &memStore{}
	d := NewDirectory(store, plainHasher{}, DirectoryOptions{DefaultPassword: "x", AllowDefaultPassword: false, Retry: fastRetry()}, nil)

	_, err := d.Create(context.Background(), CreateUserInput{Email: "ann@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, "Password is required", domain.PublicMessage(err, ""))
	assert.Empty(t, store.snapshot())
}

func TestCreateRejectsOverlongPassword(t *testing.T) {
	store := &memStore{}
	d := NewDirectory(store, auth.NewBcryptHasher(bcrypt.MinCost), DirectoryOptions{Retry: fastRetry()}, nil)

	_, err := d.Create(context.Background(), CreateUserInput{
		Email:    "ann@example.com",
		Password: strings.Repeat("x", 80),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotErrorIs(t, err, domain.ErrStorageFailure)
	assert.Equal(t, "Password is too long", domain.PublicMessage(err, ""))
	assert.Empty(t, store.snapshot())

	_, err = d.Create(context.Background(), CreateUserInput{
		Email:    "bob@example.com",
		Password: strings.Repeat("x", 72),
	})
	assert.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	d := NewDirectory(&memStore{}, plainHasher{}, DirectoryOptions{
		AllowDefaultPassword: true,
		DefaultPassword:      "pw",
		ExtraRoles:           []string{"auditor"},
		Retry:                fastRetry(),
	}, nil)
	ctx := context.Background()

	cases := []CreateUserInput{
		{Email: ""},
		{Email: "@example.com"},
		{Email: "a@example.com", Role: "superuser"},
		{Email: "a@example.com", Status: "suspended"},
	}
	for _, in := range cases {
		_, err := d.Create(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "input %+v", in)
	}

	u, err := d.Create(ctx, CreateUserInput{Email: "a@example.com", Role: "auditor"})
	require.NoError(t, err)
	assert.Equal(t, domain.Role("auditor"), u.Role)
	assert.Contains(t, d.Roles(), domain.Role("auditor"))
}

func TestCreateConflicts(t *testing.T) {
	store := &memStore{}
	d := newTestDirectory(store)
	ctx := context.Background()
	mustCreate(t, d, "Jane", "jane@example.com", "jane")
	mustCreate(t, d, "Bob", "bob@example.com", "bob")
	before := store.snapshot()

	cases := []struct {
		name, email, username, message string
	}{
		{"email", "jane@example.com", "jane2", "Email already exists"},
		{"username", "other@example.com", "bob", "Username already exists"},
		{"both collide, email wins", "bob@example.com", "jane", "Email already exists"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Create(ctx, CreateUserInput{Email: tc.email, Username: tc.username, Password: "pw"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidationConflict)
			assert.Equal(t, tc.message, domain.PublicMessage(err, ""))
			assert.Equal(t, before, store.snapshot())
		})
	}
}

func TestEmailMatchIsCaseSensitive(t *testing.T) {
	d := newTestDirectory(&memStore{})
	mustCreate(t, d, "Jane", "jane@example.com", "jane")

	_, err := d.Create(context.Background(), CreateUserInput{Email: "Jane@example.com", Username: "jane2", Password: "pw"})
	assert.NoError(t, err)
}

func TestGetByID(t *testing.T) {
	d := newTestDirectory(&memStore{})
	created := mustCreate(t, d, "Jane", "jane@example.com", "jane")

	got, err := d.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)

	_, err = d.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "User not found", domain.PublicMessage(err, ""))
}

func TestFindByUsernameReturnsHash(t *testing.T) {
	d := newTestDirectory(&memStore{})
	mustCreate(t, d, "Jane", "jane@example.com", "jane")

	u, err := d.FindByUsername(context.Background(), "jane")
	require.NoError(t, err)
	assert.Equal(t, "hashed:password123", u.PasswordHash)

	_, err = d.FindByUsername(context.Background(), "JANE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateSelfCollisionAllowed(t *testing.T) {
	store := &memStore{}
	d := newTestDirectory(store)
	jane := mustCreate(t, d, "Jane", "jane@example.com", "jane")

	updated, err := d.Update(context.Background(), jane.ID, UpdateUserInput{
		Name:     ptr("Jane Smith"),
		Email:    ptr("jane@example.com"),
		Username: ptr("jane"),
		Role:     ptr(domain.RoleModerator),
		Status:   ptr(domain.StatusInactive),
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", updated.Name)
	assert.Equal(t, domain.RoleModerator, updated.Role)
	assert.Equal(t, domain.StatusInactive, updated.Status)
	assert.Equal(t, jane.ID, updated.ID)
	assert.Equal(t, jane.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "hashed:password123", store.snapshot()[0].PasswordHash)
}

func TestUpdateOnlySuppliedFields(t *testing.T) {
	d := newTestDirectory(&memStore{})
	jane := mustCreate(t, d, "Jane", "jane@example.com", "jane")

	updated, err := d.Update(context.Background(), jane.ID, UpdateUserInput{Name: ptr("J. Smith")})
	require.NoError(t, err)
	assert.Equal(t, "J. Smith", updated.Name)
	assert.Equal(t, jane.Email, updated.Email)
	assert.Equal(t, jane.Username, updated.Username)
	assert.Equal(t, jane.Role, updated.Role)
	assert.Equal(t, jane.Status, updated.Status)
}

func TestUpdateConflictWithOtherRecord(t *testing.T) {
	store := &memStore{}
	d := newTestDirectory(store)
	jane := mustCreate(t, d, "Jane", "jane@example.com", "jane")
	mustCreate(t, d, "Bob", "bob@example.com", "bob")
	before := store.snapshot()

	_, err := d.Update(context.Background(), jane.ID, UpdateUserInput{Email: ptr("bob@example.com")})
	assert.ErrorIs(t, err, domain.ErrValidationConflict)
	assert.Equal(t, "Email already exists", domain.PublicMessage(err, ""))

	_, err = d.Update(context.Background(), jane.ID, UpdateUserInput{Username: ptr("bob")})
	assert.ErrorIs(t, err, domain.ErrValidationConflict)
	assert.Equal(t, "Username already exists", domain.PublicMessage(err, ""))

	assert.Equal(t, before, store.snapshot())
}

func TestUpdateErrors(t *testing.T) {
	d := newTestDirectory(&memStore{})
	jane := mustCreate(t, d, "Jane", "jane@example.com", "jane")
	ctx := context.Background()

	_, err := d.Update(ctx, "missing", UpdateUserInput{Name: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = d.Update(ctx, jane.ID, UpdateUserInput{Email: ptr("  ")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.Update(ctx, jane.ID, UpdateUserInput{Role: ptr(domain.Role("root"))})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.Update(ctx, jane.ID, UpdateUserInput{Status: ptr(domain.Status("banned"))})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteTwice(t *testing.T) {
	store := &memStore{}
	d := newTestDirectory(store)
	jane := mustCreate(t, d, "Jane", "jane@example.com", "jane")
	bob := mustCreate(t, d, "Bob", "bob@example.com", "bob")

	require.NoError(t, d.Delete(context.Background(), jane.ID))
	err := d.Delete(context.Background(), jane.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	remaining := store.snapshot()
	require.Len(t, remaining, 1)
	assert.Equal(t, bob.ID, remaining[0].ID)
}

func TestDeletedIDIsNotReused(t *testing.T) {
	d := newTestDirectory(&memStore{})
	jane := mustCreate(t, d, "Jane", "jane@example.com", "jane")
	require.NoError(t, d.Delete(context.Background(), jane.ID))

	again := mustCreate(t, d, "Jane", "jane@example.com", "jane")
	assert.NotEqual(t, jane.ID, again.ID)
}

func TestStats(t *testing.T) {
	d := newTestDirectory(&memStore{})
	ctx := context.Background()
	_, err := d.Create(ctx, CreateUserInput{Email: "a@example.com", Role: domain.RoleAdmin, Password: "pw"})
	require.NoError(t, err)
	_, err = d.Create(ctx, CreateUserInput{Email: "b@example.com", Password: "pw"})
	require.NoError(t, err)
	_, err = d.Create(ctx, CreateUserInput{Email: "c@example.com", Status: domain.StatusInactive, Password: "pw"})
	require.NoError(t, err)

	st, err := d.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalUsers)
	assert.Equal(t, 2, st.ActiveUsers)
	assert.Equal(t, 1, st.InactiveUsers)
	assert.Equal(t, map[domain.Role]int{domain.RoleAdmin: 1, domain.RoleUser: 2}, st.ByRole)
}

func TestStorageFailuresAreSurfaced(t *testing.T) {
	boom := errors.New("disk on fire")
	store := &memStore{loadErr: boom}
	d := newTestDirectory(store)
	ctx := context.Background()

	_, err := d.ListAll(ctx)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Storage unavailable", domain.PublicMessage(err, ""))

	_, err = d.Create(ctx, CreateUserInput{Email: "a@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrStorageFailure)

	store.loadErr = nil
	store.saveErr = boom
	_, err = d.Create(ctx, CreateUserInput{Email: "a@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}

func TestStaleSaveIsReplayed(t *testing.T) {
	store := &memStore{staleSaves: 2}
	d := newTestDirectory(store)

	_, err := d.Create(context.Background(), CreateUserInput{Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, store.snapshot(), 1)
	assert.Equal(t, 1, store.saves)
}

func TestPersistentStaleSaveBecomesStorageFailure(t *testing.T) {
	store := &memStore{staleSaves: 10}
	d := newTestDirectory(store)

	_, err := d.Create(context.Background(), CreateUserInput{Email: "a@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.ErrorIs(t, err, domain.ErrStaleSnapshot)
	assert.Empty(t, store.snapshot())
}

func TestConcurrentCreatesAreAllPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store := repository.NewFileUserStore(path, repository.CorruptFail, nil)
	d := newTestDirectory(store)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := d.Create(context.Background(), CreateUserInput{
				Email:    fmt.Sprintf("user%d@example.com", i),
				Password: "pw",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	users, err := d.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, n)
}

func TestConcurrentCreatesAcrossDirectories(t *testing.T) {
	// each directory serializes only its own writers, so the store has to
	// reject the loser of every race
	store := repository.NewFileUserStore(filepath.Join(t.TempDir(), "users.json"), repository.CorruptFail, nil)
	a := newTestDirectory(store)
	b := newTestDirectory(store)
	a.opts.Retry.MaxAttempts = 50
	b.opts.Retry.MaxAttempts = 50

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := a.Create(context.Background(), CreateUserInput{Email: fmt.Sprintf("a%d@example.com", i), Password: "pw"})
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := b.Create(context.Background(), CreateUserInput{Email: fmt.Sprintf("b%d@example.com", i), Password: "pw"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	users, err := a.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2*n)
}

func TestSeed(t *testing.T) {
	store := &memStore{}
	d := newTestDirectory(store)
	ctx := context.Background()

	seeded, err := d.Seed(ctx, DefaultSeed())
	require.NoError(t, err)
	assert.True(t, seeded)

	users, err := d.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 4)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.Equal(t, domain.StatusInactive, users[3].Status)
	for _, u := range store.snapshot() {
		assert.NotEmpty(t, u.PasswordHash)
	}

	seeded, err = d.Seed(ctx, DefaultSeed())
	require.NoError(t, err)
	assert.False(t, seeded)
	users, err = d.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)
}

func TestSeedSkipsWhenEverythingWasDeleted(t *testing.T) {
	store := &memStore{}
	d := newTestDirectory(store)
	ctx := context.Background()
	jane := mustCreate(t, d, "Jane", "jane@example.com", "jane")
	require.NoError(t, d.Delete(ctx, jane.ID))

	seeded, err := d.Seed(ctx, DefaultSeed())
	require.NoError(t, err)
	assert.False(t, seeded)
}
