package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

// CorruptPolicy decides what Load does with a document it cannot decode
type CorruptPolicy string

const (
	// CorruptFail reports the unreadable document as an error
	CorruptFail CorruptPolicy = "fail"
	// CorruptDegrade moves the unreadable document aside and reports an empty set
	CorruptDegrade CorruptPolicy = "degrade"
)

// FileUserStore keeps every user record in one JSON array on disk.
// Writes go to a temp file that is renamed over the old document, so readers
// see either the old or the new content.
type FileUserStore struct {
	path   string
	policy CorruptPolicy
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewFileUserStore creates a store backed by path
func NewFileUserStore(path string, policy CorruptPolicy, logger *slog.Logger) *FileUserStore {
	if logger == nil {
		logger = slog.Default()
	}
	if policy != CorruptDegrade {
		policy = CorruptFail
	}
	return &FileUserStore{
		path:   path,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the document location
func (s *FileUserStore) Path() string {
	return s.path
}

// Load reads the whole record set
func (s *FileUserStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &domain.Snapshot{Users: []domain.User{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user document %s: %w", s.path, err)
	}

	users, err := decodeUsers(data)
	if err != nil {
		if s.policy == CorruptDegrade {
			return s.quarantine(data, err)
		}
		return nil, fmt.Errorf("decode user document %s: %w", s.path, err)
	}

	return &domain.Snapshot{Users: users, Version: versionOf(data)}, nil
}

// Save replaces the whole record set if nobody else wrote since expected
func (s *FileUserStore) Save(ctx context.Context, users []domain.User, expected uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentVersion()
	if err != nil {
		return 0, err
	}
	if current != expected {
		return 0, fmt.Errorf("%w: document version %d, expected %d", domain.ErrStaleSnapshot, current, expected)
	}

	data, err := encodeUsers(users)
	if err != nil {
		return 0, err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return 0, fmt.Errorf("write user document %s: %w", s.path, err)
	}
	return versionOf(data), nil
}

// Ping verifies the document directory is reachable
func (s *FileUserStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		// created on first save
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (s *FileUserStore) currentVersion() (uint64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read user document %s: %w", s.path, err)
	}
	return versionOf(data), nil
}

// quarantine renames an undecodable document so the empty set reported in
// its place cannot overwrite it.
func (s *FileUserStore) quarantine(data []byte, cause error) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// a concurrent Save may already have replaced the document
	if current, err := s.currentVersion(); err == nil && current != versionOf(data) {
		return nil, fmt.Errorf("%w: document changed while loading", domain.ErrStaleSnapshot)
	}

	aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, aside); err != nil {
		return nil, fmt.Errorf("quarantine user document %s: %w", s.path, err)
	}

	s.logger.Warn("user document unreadable, continuing with empty record set",
		slog.String("path", s.path),
		slog.String("moved_to", aside),
		slog.String("error", cause.Error()),
	)
	return &domain.Snapshot{Users: []domain.User{}}, nil
}

func decodeUsers(data []byte) ([]domain.User, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.User{}, nil
	}
	var users []domain.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func encodeUsers(users []domain.User) ([]byte, error) {
	if users == nil {
		users = []domain.User{}
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode user document: %w", err)
	}
	return append(data, '\n'), nil
}

// versionOf derives a document version from its bytes. Blank content is
// version 0, the same as a missing document.
func versionOf(data []byte) uint64 {
	if len(bytes.TrimSpace(data)) == 0 {
		return 0
	}
	v := xxhash.Sum64(data)
	if v == 0 {
		v = 1
	}
	return v
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".users-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
